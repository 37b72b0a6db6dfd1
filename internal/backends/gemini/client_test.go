package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/edimap/pkg/errors"
)

type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
	GenerationConfig struct {
		Temperature     float32 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

func newServer(t *testing.T, status int, body string, seen *generateRequest, path *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path != nil {
			*path = r.URL.Path
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	var seen generateRequest
	var path string
	srv := newServer(t, http.StatusOK, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"flags\": []}"}]}, "finishReason": "STOP"}]
	}`, &seen, &path)

	c, err := New(context.Background(), "test-key",
		WithBaseURL(srv.URL+"/"), WithModel("models/gemini-test"), WithMaxTokens(256), WithTemperature(0.3))
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", c.Model())

	got, err := c.Complete(context.Background(), "check coverage", "you review mappings")
	require.NoError(t, err)
	assert.Equal(t, `{"flags": []}`, got)

	assert.True(t, strings.HasSuffix(path, "gemini-test:generateContent"), "path %s", path)
	require.Len(t, seen.Contents, 1)
	require.NotEmpty(t, seen.Contents[0].Parts)
	assert.Equal(t, "check coverage", seen.Contents[0].Parts[0].Text)
	require.NotNil(t, seen.SystemInstruction)
	assert.Equal(t, "you review mappings", seen.SystemInstruction.Parts[0].Text)
	assert.InDelta(t, 0.3, seen.GenerationConfig.Temperature, 0.0001)
	assert.Equal(t, 256, seen.GenerationConfig.MaxOutputTokens)
}

func TestCompleteEmptyReply(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"candidates": []}`, nil, nil)
	c, err := New(context.Background(), "test-key", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "p", "")
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, Name, apiErr.Backend)
	assert.True(t, errors.IsRetryable(err))
}

func TestCompleteStatusError(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests,
		`{"error": {"code": 429, "message": "quota exhausted", "status": "RESOURCE_EXHAUSTED"}}`, nil, nil)
	c, err := New(context.Background(), "test-key", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "p", "s")
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.True(t, errors.IsRateLimited(err))
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsAPIKeyError(err))
}
