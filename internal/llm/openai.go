package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	openaiAPIURL       = "https://api.openai.com/v1/chat/completions"
	openaiDefaultModel = "gpt-4o-mini"
)

// OpenAIProvider talks to any chat-completions compatible backend: it posts
// {model, messages, response_format} and reads choices[0].message.content.
type OpenAIProvider struct {
	apiKey string
	apiURL string
	client *http.Client
}

// NewOpenAI creates a chat-completions provider. An empty baseURL targets
// the OpenAI API; otherwise baseURL is the full completions endpoint.
func NewOpenAI(apiKey, baseURL string, client *http.Client) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key not set")
	}
	if baseURL == "" {
		baseURL = openaiAPIURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAIProvider{apiKey: apiKey, apiURL: baseURL, client: client}, nil
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Generate(ctx context.Context, r Request) (string, error) {
	model := r.Model
	if model == "" {
		model = openaiDefaultModel
	}

	msgs := make([]openaiMessage, 0, len(r.Messages)+1)
	if r.System != "" {
		msgs = append(msgs, openaiMessage{Role: "system", Content: r.System})
	}
	for _, m := range r.Messages {
		msgs = append(msgs, openaiMessage{Role: m.Role, Content: m.Content})
	}

	reqBody := openaiRequest{
		Model:       model,
		Temperature: r.Temperature,
		Messages:    msgs,
	}
	if r.MaxTokens > 0 {
		reqBody.MaxTokens = r.MaxTokens
	}
	if r.JSON {
		reqBody.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &AgentCallFailed{Provider: o.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AgentCallFailed{Provider: o.Name(), Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AgentCallFailed{Provider: o.Name(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result openaiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", Malformed(string(respBody), fmt.Errorf("openai: parse response: %w", err))
	}

	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	choice := result.Choices[0]
	if choice.FinishReason == "length" {
		return "", Malformed(choice.Message.Content, fmt.Errorf("openai: %w", ErrTruncated))
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return choice.Message.Content, nil
}

type openaiRequest struct {
	Model          string                `json:"model"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature"`
	Messages       []openaiMessage       `json:"messages"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
}

type openaiChoice struct {
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}
