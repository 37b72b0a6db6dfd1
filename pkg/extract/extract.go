// Package extract turns the text of a vendor implementation guide into
// per-segment constraint records.
//
// The document is chunked, each chunk is sent to the text-generation backend
// concurrently, every reply is decoded tolerantly, and the per-chunk records
// are merged by segment in chunk order. A chunk that fails contributes no
// records and never aborts the run.
package extract

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/edimap/pkg/backend"
	"github.com/agentstation/edimap/pkg/chunk"
	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/decode"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/fanout"
	"github.com/agentstation/edimap/pkg/logging"
)

// Result is the outcome of one extraction run.
type Result struct {
	Records []edi.ConstraintRecord
	// Chunks is the number of chunks the document was split into.
	Chunks int
	// FailedChunks lists the indices of chunks that produced nothing because
	// the backend call or the decode failed.
	FailedChunks []int
	// SalvagedChunks counts replies that were repaired after truncation.
	SalvagedChunks int
}

// Extractor runs constraint extraction against a backend.
type Extractor struct {
	backend backend.Completer
	chunker *chunk.Chunker
	workers int
	logger  *zerolog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithChunker replaces the default chunker.
func WithChunker(c *chunk.Chunker) Option {
	return func(x *Extractor) error {
		if c == nil {
			return errors.NewValidationError("chunker", nil, "must not be nil")
		}
		x.chunker = c
		return nil
	}
}

// WithWorkers caps the number of concurrent chunk requests.
func WithWorkers(n int) Option {
	return func(x *Extractor) error {
		if n < 1 {
			return errors.NewValidationError("workers", n, "must be at least 1")
		}
		x.workers = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(x *Extractor) error {
		x.logger = l
		return nil
	}
}

// New creates an Extractor.
func New(b backend.Completer, opts ...Option) (*Extractor, error) {
	if b == nil {
		return nil, errors.NewValidationError("backend", nil, "completer is required")
	}
	x := &Extractor{
		backend: b,
		chunker: chunk.New(),
		workers: constants.DefaultMaxWorkers,
	}
	for _, opt := range opts {
		if err := opt(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

type chunkOutput struct {
	records  []edi.ConstraintRecord
	salvaged bool
}

// Extract runs extraction over text. The returned error is non-nil only when
// ctx was canceled; the partial result is still returned in that case.
func (x *Extractor) Extract(ctx context.Context, text string) (*Result, error) {
	logger := x.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	ctx = logging.WithOperation(logging.WithLogger(ctx, logger), "extract")

	var tasks []fanout.Task[int, chunkOutput]
	for c := range x.chunker.Chunks(text) {
		tasks = append(tasks, fanout.Task[int, chunkOutput]{
			Key: c.Index,
			Run: func(ctx context.Context) (chunkOutput, error) {
				return x.extractChunk(logging.WithChunk(ctx, c.Index), c)
			},
		})
	}

	result := &Result{Chunks: len(tasks)}
	if len(tasks) == 0 {
		logger.Warn().Msg("Document produced no text to extract from")
		return result, ctx.Err()
	}

	logger.Info().
		Int("chunks", len(tasks)).
		Int("workers", fanout.Workers(len(tasks), x.workers)).
		Msg("Extracting constraints")

	outcomes := fanout.Run(ctx, x.workers, tasks)
	merger := fanout.Reduce(tasks, outcomes, NewMerger(),
		func(m *Merger, _ int, out chunkOutput) *Merger {
			if out.salvaged {
				result.SalvagedChunks++
			}
			return m.Add(out.records...)
		},
		func(index int, err error) {
			result.FailedChunks = append(result.FailedChunks, index)
			logger.Warn().Err(err).Int("chunk", index).Msg("Chunk extraction failed, continuing without it")
		})
	result.Records = merger.Records()

	logger.Info().
		Int("segments", len(result.Records)).
		Int("failed_chunks", len(result.FailedChunks)).
		Int("salvaged_chunks", result.SalvagedChunks).
		Msg("Constraint extraction complete")

	if err := ctx.Err(); err != nil {
		return result, errors.Join(errors.ErrCanceled, err)
	}
	return result, nil
}

func (x *Extractor) extractChunk(ctx context.Context, c chunk.Chunk) (chunkOutput, error) {
	logger := logging.FromContext(ctx)

	reply, err := x.backend.Complete(ctx, BuildPrompt(c), SystemPrompt)
	if err != nil {
		return chunkOutput{}, err
	}

	res, err := decode.Extract(reply)
	if err != nil {
		logger.Warn().
			Str("sample", errors.Truncate(reply, constants.SampleLength)).
			Msg("Extraction reply could not be decoded")
		return chunkOutput{}, err
	}

	records, skipped := ParseRecords(res)
	if skipped > 0 {
		logger.Debug().Int("skipped", skipped).Msg("Ignored reply items without a segment code")
	}
	if len(records) == 0 {
		logger.Warn().Int("first_page", c.FirstPage).Msg("Chunk produced no segments")
	}
	logger.Debug().
		Int("segments", len(records)).
		Str("shape", res.Shape.String()).
		Bool("salvaged", res.Salvaged).
		Msg("Chunk extracted")

	return chunkOutput{records: records, salvaged: res.Salvaged || res.Fragments}, nil
}
