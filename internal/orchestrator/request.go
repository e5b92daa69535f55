package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
)

// ErrBadRequest marks a turn request rejected before any event is emitted.
var ErrBadRequest = errors.New("orchestrator: bad request")

// TurnRequest is what a caller sends to start a turn.
type TurnRequest struct {
	Messages       []llm.Message `json:"messages"`
	ProjectContext string        `json:"projectContext"`
	FileTree       string        `json:"fileTree"`
}

// Validate checks the request shape: at least one user message with content
// and only known roles.
func (r TurnRequest) Validate() error {
	hasUser := false
	for i, m := range r.Messages {
		switch m.Role {
		case "user":
			if strings.TrimSpace(m.Content) != "" {
				hasUser = true
			}
		case "assistant", "system":
		default:
			return fmt.Errorf("%w: messages[%d]: unknown role %q", ErrBadRequest, i, m.Role)
		}
	}
	if !hasUser {
		return fmt.Errorf("%w: at least one user message is required", ErrBadRequest)
	}
	return nil
}

// Split returns the latest user message and the messages before it.
func (r TurnRequest) Split() (string, []llm.Message) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m.Role == "user" && strings.TrimSpace(m.Content) != "" {
			return m.Content, r.Messages[:i]
		}
	}
	return "", nil
}
