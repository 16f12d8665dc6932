package chat

// EventType names a session change.
type EventType string

const (
	EventReset   EventType = "reset"
	EventMessage EventType = "message"
)

// Event is published after every session mutation.
type Event struct {
	Type       EventType `json:"type"`
	Generation uint64    `json:"generation"`
	Index      int       `json:"index"`
	Message    *Message  `json:"message,omitempty"`
}
