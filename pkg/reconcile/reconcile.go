// Package reconcile builds the output grid: one row per ERP field, resolved
// from the standard mapping table, confirmed against the constraints of the
// vendor specification, completed by semantic matching, and checked for
// value discrepancies.
package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/edimap/pkg/discrepancy"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/index"
	"github.com/agentstation/edimap/pkg/logging"
	"github.com/agentstation/edimap/pkg/semantic"
)

// Matcher proposes wire elements for unmapped ERP fields.
type Matcher interface {
	Match(ctx context.Context, fields []edi.ErpField, catalogue []edi.CatalogueEntry) (*semantic.Report, error)
}

// Flagger checks confirmed rows against allowed values.
type Flagger interface {
	Flag(ctx context.Context, candidates []edi.FlagCandidate) (*discrepancy.Report, error)
}

// MatchRequest is an unmapped field waiting for semantic matching.
type MatchRequest struct {
	Row   int
	Field edi.ErpField
}

// Draft is the grid before semantic matching and flagging.
type Draft struct {
	Grid      *edi.Grid
	Requests  []MatchRequest
	Ambiguous int
	tracker   ProvenanceTracker
}

// Fields returns the fields of the pending match requests.
func (d *Draft) Fields() []edi.ErpField {
	fields := make([]edi.ErpField, len(d.Requests))
	for i, req := range d.Requests {
		fields[i] = req.Field
	}
	return fields
}

// Provenance returns the provenance recorded so far.
func (d *Draft) Provenance() ProvenanceMap {
	return d.tracker.Export()
}

// Engine reconciles ERP fields against an index.
type Engine struct {
	index    *index.Index
	strategy Strategy
	matcher  Matcher
	flagger  Flagger
	tracking bool
	logger   *zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine) error

// New creates an Engine over ix.
func New(ix *index.Index, opts ...Option) (*Engine, error) {
	if ix == nil {
		return nil, errors.NewValidationError("index", nil, "index is required")
	}
	e := &Engine{
		index:    ix,
		strategy: NewTieredStrategy(),
		tracking: true,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Strategy returns the strategy in use.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Reconcile resolves every field in input order without calling any backend.
func (e *Engine) Reconcile(fields []edi.ErpField) *Draft {
	d := &Draft{
		Grid:    &edi.Grid{Rows: make([]edi.GridRow, 0, len(fields))},
		tracker: NewProvenanceTracker(e.tracking),
	}
	logger := logging.OrDefault(e.logger)

	for _, field := range fields {
		res := e.strategy.Resolve(field, e.index)
		row := d.Grid.Append(res.Row)

		if res.Ambiguous {
			d.Ambiguous++
			logger.Debug().
				Str("field", field.Key().String()).
				Int("mappings", len(res.Alternatives)+1).
				Msg("Reverse lookup is ambiguous, using the first standard mapping")
		}
		if res.NeedsMatch {
			d.Requests = append(d.Requests, MatchRequest{Row: row, Field: field})
		}
		d.tracker.Track(Provenance{
			Row:          row,
			Key:          field.Key(),
			Source:       res.Row.Source,
			Confidence:   res.Row.Confidence,
			Strategy:     e.strategy.Name(),
			Reason:       res.Reason,
			Alternatives: res.Alternatives,
			Warnings:     res.Warnings,
		})
	}
	return d
}

// ApplyMatches writes accepted candidates into the rows of the draft's match
// requests and returns how many were applied. Nil candidates, candidates
// without an element and NONE confidence leave the row unmapped.
func (e *Engine) ApplyMatches(d *Draft, candidates map[edi.ErpKey]*edi.MatchCandidate) int {
	applied := 0
	for _, req := range d.Requests {
		c := candidates[req.Field.Key()]
		if c == nil || c.WireElement == "" || c.Confidence == edi.ConfidenceNone {
			continue
		}
		row, ok := d.Grid.At(req.Row)
		if !ok {
			continue
		}

		row.WireSegment = c.WireSegment
		row.WireElement = c.WireElement
		row.WireElementDesc = c.ElementDesc
		row.MappingRule = c.MappingRule
		row.SegmentStatus, row.ElementStatus, row.Values = "", "", nil
		if seg, ok := e.index.Segment(c.WireSegment); ok {
			row.SegmentStatus = seg.Status
		}
		if f, ok := e.index.Constraint(c.WireSegment, c.WireElement); ok {
			row.ElementStatus = f.Status
			row.Values = f.Values
			if row.WireElementDesc == "" {
				row.WireElementDesc = f.Description
			}
		}
		row.Source = edi.SourceAIMatch
		row.Confidence = c.Confidence
		row.Notes = c.Reason

		d.tracker.Track(Provenance{
			Row:        req.Row,
			Key:        req.Field.Key(),
			Source:     row.Source,
			Confidence: row.Confidence,
			Strategy:   "semantic",
			Reason:     fmt.Sprintf("matched %s/%s", c.WireSegment, c.WireElement),
		})
		applied++
	}
	return applied
}

// FlagCandidates selects the STANDARD+CONSTRAINED rows that carry allowed values.
func FlagCandidates(grid *edi.Grid) []edi.FlagCandidate {
	var out []edi.FlagCandidate
	for i, row := range grid.All() {
		if row.Source != edi.SourceStandardConstrained || len(row.Values) == 0 {
			continue
		}
		out = append(out, edi.FlagCandidate{
			Row:         i,
			WireSegment: row.WireSegment,
			WireElement: row.WireElement,
			MappingRule: row.MappingRule,
			Values:      row.Values,
		})
	}
	return out
}

// Run reconciles fields, matches unmapped ones and flags value
// discrepancies. Matching and flagging failures are recorded in the result
// and never fail the run; only cancellation of ctx returns an error, along
// with the result reached so far.
func (e *Engine) Run(ctx context.Context, fields []edi.ErpField) (*Result, error) {
	runID := logging.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}
	if e.logger != nil {
		ctx = logging.WithLogger(ctx, e.logger)
	}
	logger := logging.FromContext(ctx)

	builder := NewResultBuilder().
		WithRunID(runID).
		WithStrategy(e.strategy.Name())

	draft := e.Reconcile(fields)
	stats := Statistics{
		AmbiguousLookups: draft.Ambiguous,
		MatchRequests:    len(draft.Requests),
	}
	finish := func() *Result {
		return builder.
			WithGrid(draft.Grid).
			WithProvenance(draft.Provenance()).
			WithStatistics(stats).
			Build()
	}

	if len(draft.Requests) > 0 && e.matcher != nil {
		report, err := e.matcher.Match(ctx, draft.Fields(), e.index.Catalogue())
		if report != nil {
			stats.MatchBatches = report.Batches
			stats.MatchBatchesFailed = len(report.FailedBatches)
			stats.MatchesRejected = report.Rejected
			stats.MatchesApplied = e.ApplyMatches(draft, report.Candidates)
			if n := len(report.FailedBatches); n > 0 {
				builder.WithError(fmt.Errorf("%d of %d match batches failed", n, report.Batches))
			}
		}
		if err != nil {
			return finish(), err
		}
	}

	candidates := FlagCandidates(draft.Grid)
	stats.FlagCandidates = len(candidates)
	if len(candidates) > 0 && e.flagger != nil {
		report, err := e.flagger.Flag(ctx, candidates)
		if report != nil {
			builder.WithFlags(report.Flags)
			stats.FlagRowsSent = report.Sent
			stats.FlaggingFailed = report.Failed
			if report.Failed {
				builder.WithError(errors.New("value flagging failed"))
			}
		}
		if err != nil {
			return finish(), err
		}
	}

	prov := draft.Provenance()
	for _, row := range prov.Rows() {
		for _, w := range prov[row][0].Warnings {
			builder.WithWarning(fmt.Sprintf("row %d: %s", row, w))
		}
	}

	result := finish()
	if n := result.Metadata.Stats.Unmapped(); n > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d of %d fields remain unmapped", n, result.Metadata.Stats.Rows))
	}

	logger.Info().
		Int("rows", result.Metadata.Stats.Rows).
		Int("standard_constrained", result.Metadata.Stats.BySource[edi.SourceStandardConstrained]).
		Int("standard", result.Metadata.Stats.BySource[edi.SourceStandard]).
		Int("ai_match", result.Metadata.Stats.BySource[edi.SourceAIMatch]).
		Int("unmapped", result.Metadata.Stats.Unmapped()).
		Int("ambiguous", stats.AmbiguousLookups).
		Int("flags", len(result.Flags)).
		Msg("Reconciliation complete")

	return result, nil
}

// Option Functions
// ================

// WithStrategy sets the resolution strategy
func WithStrategy(strategy Strategy) Option {
	return func(e *Engine) error {
		if strategy == nil {
			return fmt.Errorf("strategy cannot be nil")
		}
		e.strategy = strategy
		return nil
	}
}

// WithMatcher enables semantic matching of unmapped fields
func WithMatcher(m Matcher) Option {
	return func(e *Engine) error {
		e.matcher = m
		return nil
	}
}

// WithFlagger enables value discrepancy flagging
func WithFlagger(f Flagger) Option {
	return func(e *Engine) error {
		e.flagger = f
		return nil
	}
}

// WithProvenance enables or disables row-level tracking
func WithProvenance(enabled bool) Option {
	return func(e *Engine) error {
		e.tracking = enabled
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(l *zerolog.Logger) Option {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}
