// Package backends builds the configured text-generation backend.
package backends

import (
	"context"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/agentstation/edimap/internal/backends/gemini"
	"github.com/agentstation/edimap/internal/backends/httpchat"
	"github.com/agentstation/edimap/internal/backends/openai"
	"github.com/agentstation/edimap/internal/transport"
	"github.com/agentstation/edimap/pkg/backend"
	"github.com/agentstation/edimap/pkg/errors"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderHTTP   = "http"
)

// Config selects and configures a backend.
type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	AuthType    string
	AuthHeader  string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

type factory func(ctx context.Context, cfg Config) (backend.Completer, error)

var factories = map[string]factory{
	ProviderOpenAI: newOpenAI,
	ProviderGemini: newGemini,
	ProviderHTTP:   newHTTP,
}

// Providers lists the supported provider names in sorted order.
func Providers() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New returns the backend named by cfg.Provider. A missing API key is
// looked up in the provider's conventional environment variables.
func New(ctx context.Context, cfg Config) (backend.Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	build, ok := factories[provider]
	if !ok {
		return nil, errors.NewValidationError("backend.provider", cfg.Provider,
			"must be one of "+strings.Join(Providers(), ", "))
	}
	if cfg.APIKey == "" {
		cfg.APIKey = KeyFromEnv(provider)
	}
	return build(ctx, cfg)
}

// KeyFromEnv returns the first non-empty conventional API key variable for provider.
func KeyFromEnv(provider string) string {
	var names []string
	switch provider {
	case ProviderOpenAI:
		names = []string{"OPENAI_API_KEY"}
	case ProviderGemini:
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func newOpenAI(_ context.Context, cfg Config) (backend.Completer, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithMaxTokens(cfg.MaxTokens),
		openai.WithTemperature(cfg.Temperature),
	}
	c, err := openai.New(cfg.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newGemini(ctx context.Context, cfg Config) (backend.Completer, error) {
	opts := []gemini.Option{
		gemini.WithModel(cfg.Model),
		gemini.WithMaxTokens(cfg.MaxTokens),
		gemini.WithTemperature(cfg.Temperature),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
	}
	c, err := gemini.New(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newHTTP(_ context.Context, cfg Config) (backend.Completer, error) {
	auth, err := transport.AuthenticatorFor(cfg.AuthType, cfg.AuthHeader)
	if err != nil {
		return nil, err
	}
	opts := []httpchat.Option{
		httpchat.WithModel(cfg.Model),
		httpchat.WithAPIKey(cfg.APIKey),
		httpchat.WithAuth(auth),
		httpchat.WithMaxTokens(cfg.MaxTokens),
		httpchat.WithTemperature(cfg.Temperature),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, httpchat.WithTimeout(cfg.Timeout))
	}
	c, err := httpchat.New(cfg.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}
