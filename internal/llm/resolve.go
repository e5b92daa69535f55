package llm

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Options selects and configures a backend.
type Options struct {
	// Kind is "openai", "anthropic", or empty to detect from the environment.
	Kind    string
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// ResolveProvider builds the configured backend. With no explicit kind it
// picks the first backend whose API key is present in the environment.
func ResolveProvider(o Options) (Provider, error) {
	switch strings.ToLower(o.Kind) {
	case "openai":
		return NewOpenAI(firstNonEmpty(o.APIKey, os.Getenv("OPENAI_API_KEY")), o.BaseURL, o.Client)
	case "anthropic":
		return NewAnthropic(firstNonEmpty(o.APIKey, os.Getenv("ANTHROPIC_API_KEY")), o.BaseURL, o.Client)
	case "":
	default:
		return nil, fmt.Errorf("unknown provider kind %q", o.Kind)
	}

	// Auto-detect from environment
	if o.APIKey != "" {
		return NewOpenAI(o.APIKey, o.BaseURL, o.Client)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAI(key, o.BaseURL, o.Client)
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return NewAnthropic(key, o.BaseURL, o.Client)
	}

	return nil, fmt.Errorf("no LLM provider configured: set provider.api_key, OPENAI_API_KEY or ANTHROPIC_API_KEY")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
