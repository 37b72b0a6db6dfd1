package reconcile

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/agentstation/edimap/pkg/edi"
)

// Result represents the outcome of a reconciliation run
type Result struct {
	// Grid holds one row per ERP field, in input order
	Grid *edi.Grid

	// Flags maps grid row indices to value discrepancies
	Flags map[int]edi.Flag

	// Provenance information for audit trail
	Provenance ProvenanceMap

	// Errors contains non-fatal failures of the run
	Errors []error

	// Warnings contains coverage and consistency notes
	Warnings []string

	// Metadata about the run
	Metadata ResultMetadata
}

// ResultMetadata contains metadata about the reconciliation run
type ResultMetadata struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Strategy  string
	Stats     Statistics
}

// Statistics contains counts gathered during the run
type Statistics struct {
	Rows         int                          `json:"rows" yaml:"rows"`
	BySource     map[edi.ResolutionSource]int `json:"by_source" yaml:"by_source"`
	ByConfidence map[edi.Confidence]int       `json:"by_confidence" yaml:"by_confidence"`

	// Reverse lookups that had more than one standard mapping
	AmbiguousLookups int `json:"ambiguous_lookups" yaml:"ambiguous_lookups"`

	// Semantic matching
	MatchRequests      int `json:"match_requests" yaml:"match_requests"`
	MatchBatches       int `json:"match_batches" yaml:"match_batches"`
	MatchBatchesFailed int `json:"match_batches_failed" yaml:"match_batches_failed"`
	MatchesApplied     int `json:"matches_applied" yaml:"matches_applied"`
	MatchesRejected    int `json:"matches_rejected" yaml:"matches_rejected"`

	// Value flagging
	FlagCandidates int  `json:"flag_candidates" yaml:"flag_candidates"`
	FlagRowsSent   int  `json:"flag_rows_sent" yaml:"flag_rows_sent"`
	Flags          int  `json:"flags" yaml:"flags"`
	FlaggingFailed bool `json:"flagging_failed" yaml:"flagging_failed"`

	TotalTimeMs int64 `json:"total_time_ms" yaml:"total_time_ms"`
}

// Unmapped returns the number of rows still UNMAPPED.
func (s Statistics) Unmapped() int {
	return s.BySource[edi.SourceUnmapped]
}

// Coverage returns the fraction of rows with a resolution.
func (s Statistics) Coverage() float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(s.Rows-s.Unmapped()) / float64(s.Rows)
}

// HasErrors returns true if there were errors
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there were warnings
func (r *Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasFlags returns true if any row was flagged
func (r *Result) HasFlags() bool {
	return len(r.Flags) > 0
}

// FlaggedRows returns the flagged row indices in ascending order.
func (r *Result) FlaggedRows() []int {
	rows := make([]int, 0, len(r.Flags))
	for row := range r.Flags {
		rows = append(rows, row)
	}
	slices.Sort(rows)
	return rows
}

// Summary returns a one-line summary of the result
func (r *Result) Summary() string {
	s := r.Metadata.Stats
	return fmt.Sprintf("Reconciled %d fields: %d standard+constrained, %d standard, %d AI match, %d unmapped; %d flagged",
		s.Rows,
		s.BySource[edi.SourceStandardConstrained],
		s.BySource[edi.SourceStandard],
		s.BySource[edi.SourceAIMatch],
		s.Unmapped(),
		len(r.Flags))
}

// Report generates a detailed report of the run
func (r *Result) Report() string {
	var sb strings.Builder
	s := r.Metadata.Stats

	fmt.Fprintf(&sb, `
Reconciliation Report
=====================
Run: %s
Duration: %s
Strategy: %s
Coverage: %.1f%%

`, r.Metadata.RunID, r.Metadata.Duration, r.Metadata.Strategy, s.Coverage()*100)

	sb.WriteString("Rows by source:\n---------------\n")
	for _, src := range edi.Sources {
		fmt.Fprintf(&sb, "%-22s %d\n", src, s.BySource[src])
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, `Statistics:
-----------
Ambiguous Lookups: %d
Match Requests: %d (%d batches, %d failed)
Matches Applied: %d (%d rejected)
Flag Candidates: %d (%d sent)
Flags: %d

`, s.AmbiguousLookups,
		s.MatchRequests, s.MatchBatches, s.MatchBatchesFailed,
		s.MatchesApplied, s.MatchesRejected,
		s.FlagCandidates, s.FlagRowsSent,
		s.Flags)

	if r.HasFlags() {
		fmt.Fprintf(&sb, "Flags (%d):\n----------\n", len(r.Flags))
		for _, row := range r.FlaggedRows() {
			f := r.Flags[row]
			fmt.Fprintf(&sb, "row %d %s: %s [%s]\n", row, f.WireElement, f.Reason, strings.Join(f.UncoveredValues, ", "))
		}
		sb.WriteString("\n")
	}

	if r.HasErrors() {
		fmt.Fprintf(&sb, "Errors (%d):\n------------\n", len(r.Errors))
		for i, err := range r.Errors {
			fmt.Fprintf(&sb, "%d. %v\n", i+1, err)
		}
		sb.WriteString("\n")
	}

	if r.HasWarnings() {
		fmt.Fprintf(&sb, "Warnings (%d):\n--------------\n", len(r.Warnings))
		for i, warning := range r.Warnings {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, warning)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// ResultBuilder helps construct Result objects
type ResultBuilder struct {
	result *Result
}

// NewResultBuilder creates a new ResultBuilder
func NewResultBuilder() *ResultBuilder {
	return &ResultBuilder{
		result: &Result{
			Grid:       &edi.Grid{},
			Flags:      make(map[int]edi.Flag),
			Errors:     []error{},
			Warnings:   []string{},
			Provenance: make(ProvenanceMap),
			Metadata: ResultMetadata{
				StartTime: time.Now(),
			},
		},
	}
}

// WithRunID sets the run identifier
func (b *ResultBuilder) WithRunID(id string) *ResultBuilder {
	b.result.Metadata.RunID = id
	return b
}

// WithStrategy sets the name of the strategy used
func (b *ResultBuilder) WithStrategy(name string) *ResultBuilder {
	b.result.Metadata.Strategy = name
	return b
}

// WithGrid sets the reconciled grid
func (b *ResultBuilder) WithGrid(grid *edi.Grid) *ResultBuilder {
	if grid != nil {
		b.result.Grid = grid
	}
	return b
}

// WithFlags sets the value discrepancy flags
func (b *ResultBuilder) WithFlags(flags map[int]edi.Flag) *ResultBuilder {
	if flags != nil {
		b.result.Flags = flags
	}
	return b
}

// WithError adds an error
func (b *ResultBuilder) WithError(err error) *ResultBuilder {
	if err != nil {
		b.result.Errors = append(b.result.Errors, err)
	}
	return b
}

// WithWarning adds a warning
func (b *ResultBuilder) WithWarning(warning string) *ResultBuilder {
	b.result.Warnings = append(b.result.Warnings, warning)
	return b
}

// WithProvenance sets the provenance map
func (b *ResultBuilder) WithProvenance(provenance ProvenanceMap) *ResultBuilder {
	if provenance != nil {
		b.result.Provenance = provenance
	}
	return b
}

// WithStatistics sets the result statistics
func (b *ResultBuilder) WithStatistics(stats Statistics) *ResultBuilder {
	b.result.Metadata.Stats = stats
	return b
}

// Build finalizes and returns the Result. Row counts are taken from the grid.
func (b *ResultBuilder) Build() *Result {
	r := b.result
	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)

	stats := &r.Metadata.Stats
	stats.TotalTimeMs = r.Metadata.Duration.Milliseconds()
	stats.Rows = r.Grid.Len()
	stats.BySource = r.Grid.CountBySource()
	stats.ByConfidence = make(map[edi.Confidence]int)
	for _, row := range r.Grid.Rows {
		stats.ByConfidence[row.Confidence]++
	}
	stats.Flags = len(r.Flags)

	return r
}
