package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	defaultOpenAIModel    = "gpt-4o-mini"

	// continuationInstruction steers chat models towards plain text
	// completion instead of answering the prompt.
	continuationInstruction = "Continue the user's text with one or two sentences. Reply with the continuation only."
	continuationTemperature = 0.8
	continuationMaxTokens   = 120
)

// ErrNoChoices is returned when a chat completion carries no message.
var ErrNoChoices = errors.New("completion has no choices")

// OpenAIClient is a ModelClient backed by a Chat Completions endpoint.
// Any OpenAI-compatible server (Ollama, vLLM, LM Studio) works via WithBaseURL.
type OpenAIClient struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithModel selects the chat model.
func WithModel(name string) OpenAIOption {
	return func(c *OpenAIClient) { c.model = name }
}

// WithBaseURL points the client at another OpenAI-compatible server.
func WithBaseURL(base string) OpenAIOption {
	return func(c *OpenAIClient) { c.endpoint = strings.TrimRight(base, "/") }
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) { c.client.Timeout = d }
}

// NewOpenAIClient creates an OpenAIClient.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:   apiKey,
		endpoint: defaultOpenAIEndpoint,
		model:    defaultOpenAIModel,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete asks the model to continue prompt and returns only the
// continuation. Transient failures are retried once.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: continuationInstruction},
			{Role: "user", Content: prompt},
		},
		Temperature: continuationTemperature,
		MaxTokens:   continuationMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	text, err := withRetry(ctx, 2, func() (string, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", c.model, err)
	}
	return text, nil
}

func (c *OpenAIClient) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	raw, err := fetch(c.client, req)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	switch {
	case resp.Error != nil:
		return "", errors.New(resp.Error.Message)
	case len(resp.Choices) == 0:
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
