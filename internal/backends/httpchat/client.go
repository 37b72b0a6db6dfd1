// Package httpchat provides a text-generation backend for any HTTP service
// that accepts an OpenAI-style chat completion body.
package httpchat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/agentstation/edimap/internal/transport"
	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/errors"
)

// Name identifies this backend in errors, logs and metrics.
const Name = "http"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body posted to the chat endpoint.
type Request struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// Response covers the reply shapes of common chat servers.
type Response struct {
	Choices []struct {
		Message Message `json:"message"`
		Text    string  `json:"text"`
	} `json:"choices"`
	Content  string   `json:"content"`
	Response string   `json:"response"`
	Message  *Message `json:"message"`
}

// Text returns the first non-empty reply text.
func (r *Response) Text() string {
	for _, choice := range r.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content
		}
		if choice.Text != "" {
			return choice.Text
		}
	}
	switch {
	case r.Content != "":
		return r.Content
	case r.Response != "":
		return r.Response
	case r.Message != nil:
		return r.Message.Content
	}
	return ""
}

// Client implements backend.Completer over plain HTTP.
type Client struct {
	url         string
	model       string
	apiKey      string
	auth        transport.Authenticator
	timeout     time.Duration
	httpClient  *http.Client
	temperature float32
	maxTokens   int
	transport   *transport.Client
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the model field of the request body.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithAPIKey sets the credential handed to the authenticator.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithAuth sets how the credential is attached to requests.
func WithAuth(auth transport.Authenticator) Option {
	return func(c *Client) {
		if auth != nil {
			c.auth = auth
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
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

// New creates a client posting to url. A base URL without a path gets the
// conventional /v1/chat/completions suffix.
func New(url string, opts ...Option) (*Client, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, errors.NewValidationError("base_url", url, "must be an http or https URL")
	}

	c := &Client{
		url:         endpoint(url),
		auth:        &transport.BearerAuth{},
		timeout:     constants.DefaultHTTPTimeout,
		temperature: constants.DefaultTemperature,
		maxTokens:   constants.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.transport = transport.New(c.auth,
		transport.WithAPIKey(c.apiKey),
		transport.WithHTTPClient(c.httpClient),
		transport.WithTimeout(c.timeout),
		transport.WithName(Name),
	)
	return c, nil
}

func endpoint(url string) string {
	trimmed := strings.TrimRight(url, "/")
	rest := trimmed[strings.Index(trimmed, "://")+3:]
	if !strings.Contains(rest, "/") {
		return trimmed + "/v1/chat/completions"
	}
	return trimmed
}

// Name returns the backend name.
func (c *Client) Name() string { return Name }

// URL returns the chat endpoint.
func (c *Client) URL() string { return c.url }

// Complete posts the prompt and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	req := Request{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, Message{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, Message{Role: "user", Content: prompt})

	var resp Response
	if err := c.transport.PostJSON(ctx, c.url, req, &resp); err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", &errors.APIError{Backend: Name, Endpoint: c.url, Message: "reply has no text"}
	}
	return text, nil
}
