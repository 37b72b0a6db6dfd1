package edimap

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/edimap/internal/metrics"
	"github.com/agentstation/edimap/pkg/chunk"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/reconcile"
)

// Option is a function that configures a Pipeline
type Option func(*Pipeline) error

// WithTextSource sets how specification documents are read
func WithTextSource(src TextSource) Option {
	return func(p *Pipeline) error {
		p.source = src
		return nil
	}
}

// WithChunking sets the page budget and the character budget used for
// documents without page delimiters. Zero keeps the default.
func WithChunking(pagesPerChunk, maxChars int) Option {
	return func(p *Pipeline) error {
		if pagesPerChunk < 0 || maxChars < 0 {
			return errors.NewValidationError("chunk", []int{pagesPerChunk, maxChars}, "budgets cannot be negative")
		}
		p.chunker = chunk.New(chunk.WithPagesPerChunk(pagesPerChunk), chunk.WithMaxChars(maxChars))
		return nil
	}
}

// WithWorkers bounds concurrent backend calls per fan-out
func WithWorkers(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return errors.NewValidationError("workers", n, "must be at least 1")
		}
		p.workers = n
		return nil
	}
}

// WithBatchSize sets the number of fields per semantic match request
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return errors.NewValidationError("batch_size", n, "must be at least 1")
		}
		p.batchSize = n
		return nil
	}
}

// WithStrategy replaces the default tiered resolution strategy
func WithStrategy(s reconcile.Strategy) Option {
	return func(p *Pipeline) error {
		if s == nil {
			return errors.NewValidationError("strategy", nil, "cannot be nil")
		}
		p.strategy = s
		return nil
	}
}

// WithSemanticMatching enables or disables matching of unmapped fields
func WithSemanticMatching(enabled bool) Option {
	return func(p *Pipeline) error {
		p.matching = enabled
		return nil
	}
}

// WithFlagging enables or disables value discrepancy flagging
func WithFlagging(enabled bool) Option {
	return func(p *Pipeline) error {
		p.flagging = enabled
		return nil
	}
}

// WithProvenance enables or disables per-row provenance tracking
func WithProvenance(enabled bool) Option {
	return func(p *Pipeline) error {
		p.provenance = enabled
		return nil
	}
}

// WithMetrics records chunk, batch, row and flag counters in r
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) error {
		p.recorder = r
		return nil
	}
}

// WithLogger sets the logger for every component
func WithLogger(l *zerolog.Logger) Option {
	return func(p *Pipeline) error {
		p.logger = l
		return nil
	}
}

// WithExtractedHook registers a callback run after each extraction
func WithExtractedHook(fn ExtractedHook) Option {
	return func(p *Pipeline) error {
		p.hooks.OnExtracted(fn)
		return nil
	}
}

// WithReconciledHook registers a callback run after each reconciliation
func WithReconciledHook(fn ReconciledHook) Option {
	return func(p *Pipeline) error {
		p.hooks.OnReconciled(fn)
		return nil
	}
}
