package types

// Event represents a typed event emitted during state transitions. Height is
// stamped by the host when the event is recorded against a block.
type Event struct {
	Type       string            `json:"type"`
	Height     uint64            `json:"height,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the named attribute or the empty string.
func (e *Event) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
