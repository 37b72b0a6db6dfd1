// Package openai provides a text-generation backend for OpenAI and
// OpenAI-compatible chat completion APIs.
package openai

import (
	"context"
	"net/http"
	"strings"

	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/errors"
)

// Name identifies this backend in errors, logs and metrics.
const Name = "openai"

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Client implements backend.Completer on top of the chat completions API.
type Client struct {
	api         *openaiapi.Client
	model       string
	baseURL     string
	httpClient  *http.Client
	temperature float32
	maxTokens   int
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *Client) {
		if t >= 0 {
			c.temperature = t
		}
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// New creates a client. An API key is required unless a base URL for a
// self-hosted server is given.
func New(apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		model:       DefaultModel,
		temperature: constants.DefaultTemperature,
		maxTokens:   constants.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	if apiKey == "" && c.baseURL == "" {
		return nil, &errors.AuthenticationError{
			Backend: Name,
			Method:  "api-key",
			Message: "API key required for OpenAI",
			Err:     errors.ErrAPIKeyRequired,
		}
	}

	cfg := openaiapi.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	c.api = openaiapi.NewClientWithConfig(cfg)
	return c, nil
}

// Name returns the backend name.
func (c *Client) Name() string { return Name }

// Model returns the configured chat model.
func (c *Client) Model() string { return c.model }

// Complete sends one system and one user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := make([]openaiapi.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openaiapi.ChatCompletionMessage{Role: openaiapi.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openaiapi.ChatCompletionMessage{Role: openaiapi.ChatMessageRoleUser, Content: prompt})

	resp, err := c.api.CreateChatCompletion(ctx, openaiapi.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", convertError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &errors.APIError{Backend: Name, Endpoint: "chat/completions", Message: "reply has no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

// convertError maps client library errors onto the shared error taxonomy
// so retry classification sees the HTTP status.
func convertError(err error) error {
	var apiErr *openaiapi.APIError
	if errors.As(err, &apiErr) {
		return &errors.APIError{
			Backend:    Name,
			StatusCode: apiErr.HTTPStatusCode,
			Endpoint:   "chat/completions",
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openaiapi.RequestError
	if errors.As(err, &reqErr) {
		return &errors.APIError{
			Backend:    Name,
			StatusCode: reqErr.HTTPStatusCode,
			Endpoint:   "chat/completions",
			Message:    errors.Truncate(reqErr.Error(), constants.SampleLength),
			Err:        err,
		}
	}

	return err
}
