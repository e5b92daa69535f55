// Package llm defines the provider interface, the HTTP backends, and the
// typed single-shot agent call used by every pipeline stage.
package llm

import "context"

// Message is one chat turn sent to a backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request configures one completion.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	JSON        bool
	Temperature float64
	MaxTokens   int
}

// Provider generates text for a request using a remote model.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}
