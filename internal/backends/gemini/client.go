// Package gemini provides a text-generation backend for the Gemini API
// through the Google GenAI SDK.
package gemini

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/errors"
)

// Name identifies this backend in errors, logs and metrics.
const Name = "gemini"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Client implements backend.Completer on top of GenerateContent.
type Client struct {
	api         *genai.Client
	model       string
	baseURL     string
	httpClient  *http.Client
	temperature float32
	maxTokens   int32
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the generation model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = strings.TrimPrefix(model, "models/")
		}
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
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
			c.maxTokens = int32(n)
		}
	}
}

// New creates a Gemini API client authenticated with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		model:       DefaultModel,
		temperature: constants.DefaultTemperature,
		maxTokens:   constants.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	if apiKey == "" {
		return nil, &errors.AuthenticationError{
			Backend: Name,
			Method:  "api-key",
			Message: "API key required for the Gemini API",
			Err:     errors.ErrAPIKeyRequired,
		}
	}

	config := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	}
	if c.baseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	if c.httpClient != nil {
		config.HTTPClient = c.httpClient
	}

	api, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, errors.NewConfigError(Name, "create client", err)
	}
	c.api = api
	return c, nil
}

// Name returns the backend name.
func (c *Client) Name() string { return Name }

// Model returns the configured model.
func (c *Client) Model() string { return c.model }

// Complete generates a reply to prompt under the given system instruction.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: c.maxTokens,
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.api.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", convertError(c.model, err)
	}

	text := resp.Text()
	if text == "" {
		return "", &errors.APIError{Backend: Name, Endpoint: c.model, Message: "reply has no text"}
	}
	return text, nil
}

// convertError maps SDK errors onto the shared error taxonomy.
func convertError(model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &errors.APIError{
			Backend:    Name,
			StatusCode: apiErr.Code,
			Endpoint:   model,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	var apiPtr *genai.APIError
	if errors.As(err, &apiPtr) && apiPtr != nil {
		return &errors.APIError{
			Backend:    Name,
			StatusCode: apiPtr.Code,
			Endpoint:   model,
			Message:    apiPtr.Message,
			Err:        err,
		}
	}
	return err
}
