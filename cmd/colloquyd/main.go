// cmd/colloquyd/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"colloquy/internal/api"
	"colloquy/internal/config"
	"colloquy/internal/cost"
	"colloquy/internal/provider"
	"colloquy/internal/quality"
	"colloquy/internal/scheduler"
	"colloquy/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: "+config.ConfigPath()+")")
	listen := flag.String("listen", "", "listen address, overrides config")
	flag.Parse()

	log.SetFlags(log.LstdFlags)

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()

	registry, err := buildRegistry(cfg)
	if err != nil {
		log.Fatalf("[provider] %v", err)
	}

	opts := []scheduler.Option{
		scheduler.WithTimeout(time.Duration(cfg.Defaults.TurnTimeout) * time.Second),
	}
	if cfg.Defaults.QualityAnalyzer {
		opts = append(opts, scheduler.WithAnalyzer(quality.NewKeywordAnalyzer()))
	}
	sched := scheduler.New(st, registry, cost.Rates(cfg.Rates), opts...)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(sched),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[server] shutdown: %v", err)
		}
	}()

	log.Printf("[server] listening on %s (store=%s, providers=%v)",
		cfg.Listen, cfg.Store.Backend, registry.Prefixes())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[server] %v", err)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		if cfg.Store.Path != "" {
			return store.OpenSQLitePath(cfg.Store.Path)
		}
		return store.OpenSQLite()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	enabled := 0

	if pc := cfg.Providers.OpenAI; pc.Enabled {
		if pc.APIKey == "" {
			return nil, fmt.Errorf("openai enabled but no api key configured")
		}
		p := provider.NewOpenAI(pc.APIKey)
		if pc.Endpoint != "" {
			p = provider.NewOpenAIWithEndpoint(pc.APIKey, pc.Endpoint)
		}
		for _, prefix := range pc.Prefixes {
			registry.Register(prefix, p)
		}
		enabled++
	}

	if pc := cfg.Providers.Anthropic; pc.Enabled {
		if pc.APIKey == "" {
			return nil, fmt.Errorf("anthropic enabled but no api key configured")
		}
		p := provider.NewAnthropic(pc.APIKey)
		if pc.Endpoint != "" {
			p = provider.NewAnthropicWithEndpoint(pc.APIKey, pc.Endpoint)
		}
		for _, prefix := range pc.Prefixes {
			registry.Register(prefix, p)
		}
		enabled++
	}

	if enabled == 0 {
		return nil, fmt.Errorf("no providers enabled, set OPENAI_API_KEY or ANTHROPIC_API_KEY or edit %s", config.ConfigPath())
	}
	return registry, nil
}
