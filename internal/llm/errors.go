package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the backend answered with no content.
var ErrEmptyResponse = errors.New("llm: empty response")

// ErrTruncated marks output cut off by the token limit.
var ErrTruncated = errors.New("response truncated by token limit")

// AgentCallFailed reports a transport failure or a non-2xx backend answer.
// StatusCode is 0 when no HTTP response was received.
type AgentCallFailed struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *AgentCallFailed) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *AgentCallFailed) Unwrap() error { return e.Err }

// MalformedAgentOutput reports model output that is not the expected JSON
// shape. Raw holds the offending text for logs; it must not reach end users.
type MalformedAgentOutput struct {
	Raw string
	Err error
}

func (e *MalformedAgentOutput) Error() string {
	return fmt.Sprintf("llm: malformed agent output: %v", e.Err)
}

func (e *MalformedAgentOutput) Unwrap() error { return e.Err }

// Malformed wraps err as a MalformedAgentOutput carrying raw.
func Malformed(raw string, err error) error {
	return &MalformedAgentOutput{Raw: raw, Err: err}
}
