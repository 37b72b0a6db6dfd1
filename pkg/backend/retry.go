package backend

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/logging"
)

// Retrying wraps a Completer with bounded attempts.
type Retrying struct {
	next     Completer
	name     string
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter
	observer Observer
	logger   *zerolog.Logger
}

// Option configures a Retrying completer.
type Option func(*Retrying) error

// WithAttempts sets the maximum number of attempts per call.
func WithAttempts(n int) Option {
	return func(r *Retrying) error {
		if n < 1 {
			return errors.NewValidationError("attempts", n, "must be at least 1")
		}
		r.attempts = n
		return nil
	}
}

// WithBackoff sets the pause between attempts.
func WithBackoff(d time.Duration) Option {
	return func(r *Retrying) error {
		if d < 0 {
			return errors.NewValidationError("backoff", d, "must not be negative")
		}
		r.backoff = d
		return nil
	}
}

// WithTimeout bounds each attempt. Zero disables the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Retrying) error {
		if d < 0 {
			return errors.NewValidationError("timeout", d, "must not be negative")
		}
		r.timeout = d
		return nil
	}
}

// WithRateLimit allows perSecond attempts per second with the given burst.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Retrying) error {
		if perSecond <= 0 {
			r.limiter = nil
			return nil
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, burst))
		return nil
	}
}

// WithName overrides the backend name used in logs and errors.
func WithName(name string) Option {
	return func(r *Retrying) error {
		r.name = name
		return nil
	}
}

// WithObserver installs an attempt observer.
func WithObserver(o Observer) Option {
	return func(r *Retrying) error {
		r.observer = o
		return nil
	}
}

// WithLogger sets the logger. Attempts are also logged to the context logger when none is set.
func WithLogger(l *zerolog.Logger) Option {
	return func(r *Retrying) error {
		r.logger = l
		return nil
	}
}

// NewRetrying wraps next.
func NewRetrying(next Completer, opts ...Option) (*Retrying, error) {
	if next == nil {
		return nil, errors.NewValidationError("backend", nil, "completer is required")
	}
	r := &Retrying{
		next:     next,
		name:     NameOf(next),
		attempts: constants.DefaultMaxAttempts,
		backoff:  constants.DefaultRetryBackoff,
		timeout:  constants.DefaultRequestTimeout,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Name returns the wrapped backend's name.
func (r *Retrying) Name() string { return r.name }

// Complete calls the wrapped completer until it succeeds, the error is not
// retryable, or the attempts are exhausted. Failures are returned as
// *errors.BackendCallError.
func (r *Retrying) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	logger := r.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	var lastErr error
	attempt := 0
	for attempt < r.attempts {
		attempt++

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				lastErr = errors.Join(errors.ErrCanceled, err)
				break
			}
		}

		reply, err := r.attempt(ctx, attempt, prompt, systemPrompt)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			lastErr = errors.Join(errors.ErrCanceled, err)
			break
		}
		if !errors.IsRetryable(err) {
			logger.Debug().Err(err).Str("backend", r.name).Int("attempt", attempt).Msg("Backend error is not retryable")
			break
		}
		if attempt < r.attempts {
			logger.Warn().Err(err).
				Str("backend", r.name).
				Int("attempt", attempt).
				Dur("backoff", r.backoff).
				Msg("Backend call failed, retrying")
			if err := sleep(ctx, r.backoff); err != nil {
				lastErr = errors.Join(errors.ErrCanceled, lastErr)
				break
			}
		}
	}

	return "", &errors.BackendCallError{Backend: r.name, Attempts: attempt, Err: lastErr}
}

func (r *Retrying) attempt(ctx context.Context, n int, prompt, systemPrompt string) (string, error) {
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := r.next.Complete(callCtx, prompt, systemPrompt)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = errors.Join(errors.NewTimeoutError(r.name+" completion", r.timeout.String(), err.Error()), err)
	}
	if r.observer != nil {
		r.observer.ObserveAttempt(r.name, n, time.Since(start), err)
	}
	return reply, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
