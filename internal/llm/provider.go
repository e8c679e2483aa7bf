package llm

import (
	"context"
	"errors"
)

// ErrRateLimited marks a 429 from the upstream API. The client retries these
// with backoff before giving up; callers can distinguish them from hard
// upstream failures with errors.Is.
var ErrRateLimited = errors.New("rate limited by upstream API")

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the model gateway. Implementations must return an error value
// for every upstream failure; they never panic into the caller.
type Provider interface {
	// CompleteChat sends a chat completion request and returns the reply text.
	CompleteChat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)

	// Embed generates one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
