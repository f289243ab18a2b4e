package types

// Event represents a typed event emitted during ledger state transitions.
// Sequence is assigned by the node when the event is appended to its log and
// is zero for events that have not been committed yet.
type Event struct {
	Sequence   uint64            `json:"sequence,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &Event{Sequence: e.Sequence, Type: e.Type, Attributes: attrs}
}
