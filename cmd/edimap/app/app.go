// Package app provides the application context and dependency management
// for the edimap CLI. It centralizes configuration, the backend chain and
// the pipeline so commands only parse flags and print results.
package app

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/edimap"
	"github.com/agentstation/edimap/internal/backends"
	"github.com/agentstation/edimap/internal/docsource"
	"github.com/agentstation/edimap/internal/metrics"
	"github.com/agentstation/edimap/pkg/backend"
	"github.com/agentstation/edimap/pkg/errors"
)

// App represents the edimap application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	stdout io.Writer

	// Lazily built, shared by every command of one invocation
	mu       sync.Mutex
	raw      backend.Completer
	backend  backend.Completer
	source   edimap.TextSource
	recorder *metrics.Recorder
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration instead of loading one.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if config == nil {
			return errors.NewValidationError("config", nil, "cannot be nil")
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithBackend sets the backend the retry wrapper is built around (useful for testing).
func WithBackend(b backend.Completer) Option {
	return func(a *App) error {
		a.raw = b
		return nil
	}
}

// WithTextSource sets how specification documents are read.
func WithTextSource(src edimap.TextSource) Option {
	return func(a *App) error {
		a.source = src
		return nil
	}
}

// WithStdout redirects command output.
func WithStdout(w io.Writer) Option {
	return func(a *App) error {
		a.stdout = w
		return nil
	}
}

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment unless WithConfig is given.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		stdout:  os.Stdout,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, err
		}
		app.config = config
	}

	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Stdout returns the writer commands print results to.
func (a *App) Stdout() io.Writer {
	return a.stdout
}

// Backend returns the configured backend wrapped with retries, per-request
// timeouts and rate limiting, creating it on first use.
func (a *App) Backend(ctx context.Context) (backend.Completer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.backend != nil {
		return a.backend, nil
	}

	raw := a.raw
	if raw == nil {
		var err error
		if raw, err = backends.New(ctx, a.config.BackendSettings()); err != nil {
			return nil, err
		}
	}

	opts := []backend.Option{
		backend.WithAttempts(a.config.Backend.MaxAttempts),
		backend.WithBackoff(a.config.Backend.RetryBackoff),
		backend.WithTimeout(a.config.Backend.Timeout),
		backend.WithRateLimit(a.config.Backend.RateLimit, a.config.Backend.Burst),
		backend.WithLogger(a.logger),
	}
	if r := a.recorderLocked(); r != nil {
		opts = append(opts, backend.WithObserver(r))
	}
	wrapped, err := backend.NewRetrying(raw, opts...)
	if err != nil {
		return nil, err
	}

	a.backend = wrapped
	a.logger.Debug().
		Str("backend", wrapped.Name()).
		Int("max_attempts", a.config.Backend.MaxAttempts).
		Msg("Backend ready")
	return wrapped, nil
}

// Recorder returns the metrics recorder, or nil when no metrics file is configured.
func (a *App) Recorder() *metrics.Recorder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recorderLocked()
}

func (a *App) recorderLocked() *metrics.Recorder {
	if a.recorder == nil && a.config.Metrics.File != "" {
		a.recorder = metrics.New()
	}
	return a.recorder
}

// Pipeline builds a pipeline from the configuration.
func (a *App) Pipeline(ctx context.Context) (*edimap.Pipeline, error) {
	b, err := a.Backend(ctx)
	if err != nil {
		return nil, err
	}

	source := a.source
	if source == nil {
		source = docsource.New(docsource.WithLogger(a.logger))
	}

	opts := []edimap.Option{
		edimap.WithTextSource(source),
		edimap.WithChunking(a.config.Chunk.Pages, a.config.Chunk.Chars),
		edimap.WithWorkers(a.config.Workers),
		edimap.WithBatchSize(a.config.Match.BatchSize),
		edimap.WithLogger(a.logger),
	}
	if r := a.Recorder(); r != nil {
		opts = append(opts, edimap.WithMetrics(r))
	}
	return edimap.New(b, opts...)
}

// Shutdown performs graceful shutdown of the application. It writes the
// metrics textfile when one is configured and anything was recorded.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	r := a.recorder
	a.mu.Unlock()

	if r == nil {
		return nil
	}
	if err := r.WriteTextfile(a.config.Metrics.File); err != nil {
		return err
	}
	a.logger.Debug().Str("path", a.config.Metrics.File).Msg("Wrote metrics")
	return nil
}
