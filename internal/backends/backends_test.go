package backends

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/edimap/internal/backends/httpchat"
	"github.com/agentstation/edimap/internal/backends/openai"
	"github.com/agentstation/edimap/pkg/backend"
	"github.com/agentstation/edimap/pkg/errors"
)

func TestNew(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	b, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, b)
	assert.Equal(t, openai.Name, backend.NameOf(b))

	b, err = New(context.Background(), Config{Provider: "HTTP", BaseURL: "http://localhost:11434", AuthType: "none"})
	require.NoError(t, err)
	require.IsType(t, &httpchat.Client{}, b)
	assert.Equal(t, "http://localhost:11434/v1/chat/completions", b.(*httpchat.Client).URL())
}

func TestNewErrors(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := New(context.Background(), Config{Provider: "carrier-pigeon"})
	assert.True(t, errors.IsValidationError(err))

	_, err = New(context.Background(), Config{Provider: ProviderHTTP, BaseURL: "http://x", AuthType: "kerberos"})
	assert.True(t, errors.IsValidationError(err))

	_, err = New(context.Background(), Config{Provider: ProviderGemini})
	assert.True(t, errors.IsAPIKeyError(err))
}

func TestKeyFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", " g-key ")
	assert.Equal(t, "g-key", KeyFromEnv(ProviderGemini))
	assert.Empty(t, KeyFromEnv(ProviderHTTP))
}

func TestProviders(t *testing.T) {
	assert.Equal(t, []string{"gemini", "http", "openai"}, Providers())
}
