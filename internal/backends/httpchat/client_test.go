package httpchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/edimap/internal/transport"
	"github.com/agentstation/edimap/pkg/errors"
)

func TestComplete(t *testing.T) {
	var seen Request
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&seen)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL,
		WithAPIKey("k-1"),
		WithAuth(&transport.HeaderAuth{Header: "x-api-key"}),
		WithModel("local-model"),
		WithMaxTokens(100))
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "user text", "system text")
	require.NoError(t, err)
	assert.Equal(t, "[]", got)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "k-1", gotKey)
	assert.Equal(t, "local-model", seen.Model)
	assert.Equal(t, 100, seen.MaxTokens)
	assert.False(t, seen.Stream)
	assert.Equal(t, []Message{{Role: "system", Content: "system text"}, {Role: "user", Content: "user text"}}, seen.Messages)
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "choices message", body: `{"choices":[{"message":{"content":"a"}}]}`, want: "a"},
		{name: "choices text", body: `{"choices":[{"text":"b"}]}`, want: "b"},
		{name: "content", body: `{"content":"c"}`, want: "c"},
		{name: "response", body: `{"response":"d"}`, want: "d"},
		{name: "message", body: `{"message":{"role":"assistant","content":"e"}}`, want: "e"},
		{name: "nothing", body: `{"id":"x"}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Response
			require.NoError(t, json.Unmarshal([]byte(tt.body), &r))
			assert.Equal(t, tt.want, r.Text())
		})
	}
}

func TestCompleteEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/api/chat")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api/chat", c.URL())

	_, err = c.Complete(context.Background(), "p", "")
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, Name, apiErr.Backend)
}

func TestCompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "p", "")
	require.Error(t, err)
	assert.False(t, errors.IsRetryable(err))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("localhost:8080")
	assert.True(t, errors.IsValidationError(err))
}
