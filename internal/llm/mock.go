package llm

import (
	"context"
	"sync"
)

// MockProvider is a test double that returns canned responses.
type MockProvider struct {
	Response string
	Err      error
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(_ context.Context, _ Request) (string, error) {
	return m.Response, m.Err
}

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// ScriptedProvider answers calls in order and records every request. Once
// the script is exhausted it returns ErrEmptyResponse.
type ScriptedProvider struct {
	mu       sync.Mutex
	replies  []Reply
	Requests []Request

	// OnCall runs before a reply is returned; tests use it to cancel mid-turn.
	OnCall func(n int, req Request)
}

// NewScripted builds a ScriptedProvider.
func NewScripted(replies ...Reply) *ScriptedProvider {
	return &ScriptedProvider{replies: replies}
}

func (s *ScriptedProvider) Name() string { return "scripted" }

func (s *ScriptedProvider) Generate(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	s.Requests = append(s.Requests, req)
	n := len(s.Requests)
	var r Reply
	if n <= len(s.replies) {
		r = s.replies[n-1]
	} else {
		r = Reply{Err: ErrEmptyResponse}
	}
	hook := s.OnCall
	s.mu.Unlock()

	if hook != nil {
		hook(n, req)
	}
	if err := ctx.Err(); err != nil {
		return "", &AgentCallFailed{Provider: s.Name(), Err: err}
	}
	return r.Text, r.Err
}

// Calls returns the number of requests received.
func (s *ScriptedProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
