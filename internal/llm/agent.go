package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Agent carries the settings shared by every stage call.
type Agent struct {
	Provider    Provider
	Temperature float64
	MaxTokens   int

	// Timeout bounds a single call; zero leaves the caller's context alone.
	Timeout time.Duration

	// Trace, when set, receives the system prompt, user payload, and raw
	// output of every call.
	Trace func(system, payload, raw string)
}

// Call sends one instruction plus a JSON payload and decodes the JSON answer
// into T. Unknown fields are rejected. There are no retries.
func Call[T any](ctx context.Context, a *Agent, system string, payload any, model string) (T, error) {
	var zero T

	user, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("llm: marshal payload: %w", err)
	}

	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	raw, err := a.Provider.Generate(ctx, Request{
		Model:       model,
		System:      system,
		Messages:    []Message{{Role: "user", Content: string(user)}},
		JSON:        true,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	})
	if a.Trace != nil {
		a.Trace(system, string(user), raw)
	}
	if err != nil {
		return zero, err
	}

	body := ExtractJSON(raw)
	if strings.TrimSpace(body) == "" {
		return zero, ErrEmptyResponse
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	var out T
	if err := dec.Decode(&out); err != nil {
		return zero, Malformed(raw, err)
	}
	if dec.More() {
		return zero, Malformed(raw, fmt.Errorf("trailing data after JSON object"))
	}
	return out, nil
}
