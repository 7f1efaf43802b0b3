// internal/event/emitter.go
package event

// Emitter receives scheduler events in emission order. Emit must not
// block the scheduler indefinitely; transport emitters buffer.
type Emitter interface {
	Emit(Event)
}

// ChannelEmitter bridges the scheduler to a consumer goroutine. The
// producer closes it after the terminal event of the turn request.
type ChannelEmitter struct {
	ch chan Event
}

func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{ch: make(chan Event, buffer)}
}

func (e *ChannelEmitter) Emit(ev Event) {
	e.ch <- ev
}

// Events is the consumer side; drained until closed
func (e *ChannelEmitter) Events() <-chan Event {
	return e.ch
}

func (e *ChannelEmitter) Close() {
	close(e.ch)
}

// Discard drops every event; used when no consumer is attached
type Discard struct{}

func (Discard) Emit(Event) {}

// FilterChunks suppresses per-chunk passthrough for consumers that
// only want completed turns.
type FilterChunks struct {
	Next Emitter
}

func (f FilterChunks) Emit(ev Event) {
	if ev.Type == TypeChunk {
		return
	}
	f.Next.Emit(ev)
}
