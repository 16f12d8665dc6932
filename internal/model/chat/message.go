package chat

// Kind tags a message with the side of the conversation it belongs to.
type Kind string

const (
	KindQuestion Kind = "question"
	KindAnswer   Kind = "answer"
)

// Message is one chat turn. CreatedAt is formatted once when the message is
// appended and never recomputed.
type Message struct {
	Text         string `json:"text"`
	Kind         Kind   `json:"kind"`
	CreatedAt    string `json:"createdAt"`
	Illustration string `json:"illustration,omitempty"`
}
