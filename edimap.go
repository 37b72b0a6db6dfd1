// Package edimap reconciles a list of ERP IDoc fields with a standard X12
// mapping table and with the segment constraints extracted from a vendor
// specification document.
//
// A Pipeline reads the specification through a TextSource, extracts
// constraint records chunk by chunk with a text-generation backend, builds
// the lookup indices, resolves one grid row per ERP field, asks the backend
// to match the fields no standard mapping covers, and flags confirmed rows
// whose mapping rule does not handle every allowed value.
//
// Only an unreadable specification document and a missing standard table
// stop a run. Every other failure degrades to UNMAPPED rows or missing
// flags and is reported on the result.
package edimap

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/edimap/internal/metrics"
	"github.com/agentstation/edimap/pkg/backend"
	"github.com/agentstation/edimap/pkg/chunk"
	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/discrepancy"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/extract"
	"github.com/agentstation/edimap/pkg/index"
	"github.com/agentstation/edimap/pkg/logging"
	"github.com/agentstation/edimap/pkg/reconcile"
	"github.com/agentstation/edimap/pkg/semantic"
)

// TextSource returns the plain text of a specification document.
type TextSource interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Input is everything one run reconciles.
type Input struct {
	// SpecPath is read through the pipeline's TextSource unless SpecText
	// or Constraints is set.
	SpecPath string
	// SpecText is used instead of reading SpecPath.
	SpecText string
	// Constraints skips extraction entirely when non-nil.
	Constraints []edi.ConstraintRecord

	ErpFields []edi.ErpField
	Standard  []edi.StandardMapping
}

// Report is the outcome of a run.
type Report struct {
	*reconcile.Result

	// Extraction is nil when the constraints were supplied by the caller.
	Extraction *extract.Result
	// Constraints are the records the grid was reconciled against.
	Constraints []edi.ConstraintRecord
	Index       index.Stats
}

// Pipeline wires the extraction, reconciliation, matching and flagging
// components around one backend.
type Pipeline struct {
	backend  backend.Completer
	source   TextSource
	chunker  *chunk.Chunker
	strategy reconcile.Strategy
	recorder *metrics.Recorder
	logger   *zerolog.Logger
	hooks    *hooks

	workers    int
	batchSize  int
	provenance bool
	matching   bool
	flagging   bool
}

// New creates a Pipeline around b. The backend is used as given; wrap it
// with backend.NewRetrying for retries, timeouts and rate limiting.
func New(b backend.Completer, opts ...Option) (*Pipeline, error) {
	if b == nil {
		return nil, errors.NewValidationError("backend", nil, "completer is required")
	}
	p := &Pipeline{
		backend:    b,
		chunker:    chunk.New(),
		strategy:   reconcile.NewTieredStrategy(),
		hooks:      newHooks(),
		workers:    constants.DefaultMaxWorkers,
		batchSize:  constants.DefaultMatchBatchSize,
		provenance: true,
		matching:   true,
		flagging:   true,
	}
	if err := p.options(opts...); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) options(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return err
		}
	}
	return nil
}

// ExtractConstraints reads the document at path and extracts its
// constraint records. A missing or unreadable document is fatal.
func (p *Pipeline) ExtractConstraints(ctx context.Context, path string) (*extract.Result, error) {
	ctx = p.runContext(ctx)
	text, err := p.readDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.extract(ctx, text)
}

// Run reconciles in. The returned error is non-nil for a missing document,
// a missing standard table or a canceled ctx; after cancellation the
// partial report is returned with it.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Report, error) {
	ctx = p.runContext(ctx)
	logger := logging.FromContext(ctx)

	if len(in.Standard) == 0 {
		return nil, errors.Join(errors.ErrStandardMissing,
			errors.NewValidationError("standard", nil, "no standard mappings loaded"))
	}

	report := &Report{Constraints: in.Constraints}
	if report.Constraints == nil {
		text := in.SpecText
		if strings.TrimSpace(text) == "" {
			var err error
			if text, err = p.readDocument(ctx, in.SpecPath); err != nil {
				return nil, err
			}
		}
		res, err := p.extract(ctx, text)
		report.Extraction = res
		if res != nil {
			report.Constraints = res.Records
		}
		if err != nil {
			return report, err
		}
	}

	ix := index.Build(in.Standard, report.Constraints)
	report.Index = ix.Stats()
	logger.Info().
		Int("mappings", report.Index.Mappings).
		Int("segments", report.Index.Segments).
		Int("elements", report.Index.Elements).
		Int("ambiguous_keys", report.Index.AmbiguousKeys).
		Msg("Built indices")

	engine, err := p.engine(ix)
	if err != nil {
		return nil, err
	}
	result, err := engine.Run(ctx, in.ErpFields)
	report.Result = result
	if result != nil {
		if p.recorder != nil {
			p.recorder.RecordResult(result)
		}
		p.hooks.reconciled(result)
	}
	return report, err
}

func (p *Pipeline) engine(ix *index.Index) (*reconcile.Engine, error) {
	opts := []reconcile.Option{
		reconcile.WithStrategy(p.strategy),
		reconcile.WithProvenance(p.provenance),
	}
	if p.logger != nil {
		opts = append(opts, reconcile.WithLogger(p.logger))
	}

	if p.matching {
		matcher, err := semantic.New(p.backend,
			semantic.WithBatchSize(p.batchSize),
			semantic.WithWorkers(p.workers),
			semantic.WithLogger(p.logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, reconcile.WithMatcher(matcher))
	}
	if p.flagging {
		flagger, err := discrepancy.New(p.backend, discrepancy.WithLogger(p.logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, reconcile.WithFlagger(flagger))
	}
	return reconcile.New(ix, opts...)
}

func (p *Pipeline) extract(ctx context.Context, text string) (*extract.Result, error) {
	extractor, err := extract.New(p.backend,
		extract.WithChunker(p.chunker),
		extract.WithWorkers(p.workers),
		extract.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}

	res, err := extractor.Extract(ctx, text)
	if res != nil {
		if p.recorder != nil {
			p.recorder.RecordExtraction(res)
		}
		p.hooks.extracted(res)
	}
	return res, err
}

func (p *Pipeline) readDocument(ctx context.Context, path string) (string, error) {
	if p.source == nil {
		return "", errors.NewDocumentReadError(path, errors.NewConfigError("pipeline", "no text source configured", nil))
	}
	if strings.TrimSpace(path) == "" {
		return "", errors.NewDocumentReadError(path, errors.NewValidationError("spec", path, "document path is required"))
	}

	ctx = logging.WithDocument(ctx, path)
	text, err := p.source.ExtractText(ctx, path)
	if err != nil {
		var docErr *errors.DocumentReadError
		if errors.As(err, &docErr) {
			return "", err
		}
		return "", errors.NewDocumentReadError(path, err)
	}
	logging.FromContext(ctx).Debug().Int("chars", len(text)).Msg("Read specification document")
	return text, nil
}

// runContext attaches the pipeline logger and a run id to ctx.
func (p *Pipeline) runContext(ctx context.Context) context.Context {
	if p.logger != nil {
		ctx = logging.WithLogger(ctx, p.logger)
	}
	if logging.RunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, uuid.NewString())
	}
	return ctx
}
