// internal/config/config.go
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	Enabled  bool     `yaml:"enabled"`
	APIKey   string   `yaml:"api_key,omitempty"`
	Endpoint string   `yaml:"endpoint,omitempty"`
	Prefixes []string `yaml:"prefixes,omitempty"`
}

type Config struct {
	Listen string `yaml:"listen"`
	Store  struct {
		Backend string `yaml:"backend"` // memory or sqlite
		Path    string `yaml:"path,omitempty"`
	} `yaml:"store"`
	Providers struct {
		OpenAI    ProviderConfig `yaml:"openai"`
		Anthropic ProviderConfig `yaml:"anthropic"`
	} `yaml:"providers"`
	Rates    map[string]float64 `yaml:"rates"` // model id -> cost per 1k tokens
	Defaults struct {
		TurnTimeout     int     `yaml:"turn_timeout"` // seconds
		CostWarning     float64 `yaml:"cost_warning"`
		QualityAnalyzer bool    `yaml:"quality_analyzer"`
	} `yaml:"defaults"`
}

func Load() (*Config, error) {
	return LoadPath(ConfigPath())
}

// LoadPath reads the config file, expanding environment variables in
// the raw bytes so api keys can live outside the file. A missing file
// yields the built-in defaults.
func LoadPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultConfig(), nil
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8692"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if !cfg.Providers.OpenAI.Enabled && !cfg.Providers.Anthropic.Enabled {
		cfg.Providers.OpenAI.Enabled = true
		cfg.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Providers.Anthropic.Enabled = true
		cfg.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if len(cfg.Providers.OpenAI.Prefixes) == 0 {
		cfg.Providers.OpenAI.Prefixes = []string{"gpt-", "o1", "o3", "o4"}
	}
	if len(cfg.Providers.Anthropic.Prefixes) == 0 {
		cfg.Providers.Anthropic.Prefixes = []string{"claude-"}
	}
	if cfg.Rates == nil {
		cfg.Rates = map[string]float64{
			"gpt-4o":            0.0125,
			"gpt-4o-mini":       0.00075,
			"claude-sonnet-4-0": 0.018,
			"claude-haiku-3-5":  0.004,
		}
	}
	if cfg.Defaults.TurnTimeout == 0 {
		cfg.Defaults.TurnTimeout = 120
	}
	if cfg.Defaults.CostWarning == 0 {
		cfg.Defaults.CostWarning = 1.0
	}
}

func ConfigPath() string {
	configDir, _ := os.UserConfigDir()
	if configDir == "" {
		configDir = os.ExpandEnv("$HOME/.config")
	}
	return filepath.Join(configDir, "colloquy", "config.yaml")
}
