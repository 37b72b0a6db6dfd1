package backend

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/logging"
)

type scripted struct {
	calls   atomic.Int32
	replies []string
	errs    []error
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Complete(ctx context.Context, _, _ string) (string, error) {
	i := int(s.calls.Add(1)) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

func newRetrying(t *testing.T, next Completer, opts ...Option) *Retrying {
	t.Helper()
	nop := logging.Nop
	opts = append([]Option{WithBackoff(0), WithLogger(&nop)}, opts...)
	r, err := NewRetrying(next, opts...)
	require.NoError(t, err)
	return r
}

func TestRetryingSucceedsAfterTransientErrors(t *testing.T) {
	s := &scripted{
		errs:    []error{errors.NewAPIError("scripted", 503, "overloaded"), errors.NewAPIError("scripted", 429, "slow down")},
		replies: []string{"", "", `{"ok":true}`},
	}
	r := newRetrying(t, s, WithAttempts(3))

	reply, err := r.Complete(context.Background(), "prompt", "system")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, reply)
	assert.Equal(t, int32(3), s.calls.Load())
}

func TestRetryingGivesUp(t *testing.T) {
	s := &scripted{errs: []error{
		errors.NewAPIError("scripted", 500, "a"),
		errors.NewAPIError("scripted", 500, "b"),
		errors.NewAPIError("scripted", 500, "c"),
	}}
	r := newRetrying(t, s, WithAttempts(3))

	_, err := r.Complete(context.Background(), "prompt", "system")
	require.Error(t, err)

	var callErr *errors.BackendCallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, 3, callErr.Attempts)
	assert.Equal(t, "scripted", callErr.Backend)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.False(t, errors.IsFatal(err))
}

func TestRetryingStopsOnClientError(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404} {
		s := &scripted{errs: []error{errors.NewAPIError("scripted", code, "rejected")}}
		r := newRetrying(t, s, WithAttempts(5))

		_, err := r.Complete(context.Background(), "prompt", "system")
		var callErr *errors.BackendCallError
		require.ErrorAs(t, err, &callErr, "status %d", code)
		assert.Equal(t, 1, callErr.Attempts, "status %d", code)
		assert.Equal(t, int32(1), s.calls.Load(), "status %d", code)
		assert.False(t, errors.IsFatal(err), "status %d degrades the unit only", code)
	}
}

func TestRetryingPerAttemptTimeout(t *testing.T) {
	slow := CompleterFunc(func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	r := newRetrying(t, slow, WithAttempts(2), WithTimeout(10*time.Millisecond))

	_, err := r.Complete(context.Background(), "prompt", "system")
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))

	var callErr *errors.BackendCallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, 2, callErr.Attempts)
}

func TestRetryingHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocking := CompleterFunc(func(ctx context.Context, _, _ string) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})
	r := newRetrying(t, blocking, WithAttempts(3), WithBackoff(time.Hour))

	_, err := r.Complete(ctx, "prompt", "system")
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
}

func TestRetryingObserver(t *testing.T) {
	s := &scripted{errs: []error{errors.NewAPIError("scripted", 502, "gateway")}, replies: []string{"", "done"}}

	var attempts []int
	var failures int
	obs := ObserverFunc(func(name string, attempt int, _ time.Duration, err error) {
		assert.Equal(t, "scripted", name)
		attempts = append(attempts, attempt)
		if err != nil {
			failures++
		}
	})
	r := newRetrying(t, s, WithObserver(obs))

	_, err := r.Complete(context.Background(), "prompt", "system")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
	assert.Equal(t, 1, failures)
}

func TestRetryingRateLimit(t *testing.T) {
	s := &scripted{replies: []string{"a", "b", "c"}}
	r := newRetrying(t, s, WithRateLimit(1000, 1))

	for range 3 {
		_, err := r.Complete(context.Background(), "prompt", "system")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), s.calls.Load())
}

func TestNewRetryingValidation(t *testing.T) {
	_, err := NewRetrying(nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = NewRetrying(CompleterFunc(nil), WithAttempts(0))
	assert.True(t, errors.IsValidationError(err))

	_, err = NewRetrying(CompleterFunc(nil), WithBackoff(-time.Second))
	assert.True(t, errors.IsValidationError(err))
}

func TestNameOf(t *testing.T) {
	assert.Equal(t, "scripted", NameOf(&scripted{}))
	assert.Equal(t, "backend", NameOf(CompleterFunc(nil)))

	r := newRetrying(t, &scripted{}, WithName("openai"))
	assert.Equal(t, "openai", r.Name())
}
