package events

import "flakeledger/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload is implemented by events that can be flattened into the canonical
// attribute map consumed by indexers.
type Payload interface {
	EventType() string
	Event() *types.Event
}

// Flatten converts an event into its canonical payload. Events that do not
// expose attributes are returned with an empty attribute map.
func Flatten(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if p, ok := evt.(Payload); ok {
		if out := p.Event(); out != nil {
			return out
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Buffer stages events until the enclosing operation either commits them to
// the downstream emitter with Flush or discards them with Reset.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Len reports the number of staged events.
func (b *Buffer) Len() int { return len(b.pending) }

// Reset drops all staged events.
func (b *Buffer) Reset() { b.pending = b.pending[:0] }

// Flush forwards the staged events in order and clears the buffer.
func (b *Buffer) Flush(to Emitter) {
	staged := b.pending
	b.pending = nil
	if to == nil {
		return
	}
	for _, evt := range staged {
		to.Emit(evt)
	}
}

// Recorder keeps every emitted event in order. Tests use it to assert on the
// observable event stream.
type Recorder struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) { r.Events = append(r.Events, evt) }

// Types returns the event types in emission order.
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.Events))
	for _, evt := range r.Events {
		out = append(out, evt.EventType())
	}
	return out
}
