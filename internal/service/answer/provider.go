package answer

import "context"

// Answer is the payload returned by an answer provider.
type Answer struct {
	Answer string `json:"answer"`
	Forced bool   `json:"forced"`
	Image  string `json:"image,omitempty"`
}

// Provider fetches an answer for the latest question. A nil Answer with a nil
// error means the provider had nothing to say. Providers may ignore question.
type Provider interface {
	Fetch(ctx context.Context, question string) (*Answer, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, question string) (*Answer, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context, question string) (*Answer, error) {
	return f(ctx, question)
}
