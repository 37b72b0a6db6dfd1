package reconcile

import (
	"fmt"
	"strings"

	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/index"
)

// Resolution is a strategy's decision for one ERP field.
type Resolution struct {
	Row edi.GridRow
	// NeedsMatch marks a row that should be offered to semantic matching.
	NeedsMatch bool
	// Ambiguous is set when more than one standard mapping was available.
	Ambiguous    bool
	Alternatives []edi.ElementKey
	Reason       string
	Warnings     []string
}

// Strategy defines how a single ERP field is resolved from the indexes
type Strategy interface {
	// Name returns the strategy name
	Name() string

	// Description returns a human-readable description
	Description() string

	// Resolve builds the grid row for field
	Resolve(field edi.ErpField, ix *index.Index) Resolution
}

// baseStrategy provides common strategy functionality
type baseStrategy struct {
	name        string
	description string
}

// Name returns the strategy name
func (s *baseStrategy) Name() string {
	return s.name
}

// Description returns a human-readable description
func (s *baseStrategy) Description() string {
	return s.description
}

// TieredStrategy resolves a field from the standard mapping table first,
// confirms it against the extracted constraints, and leaves fields without
// a standard mapping for semantic matching.
type TieredStrategy struct {
	baseStrategy
	crossReference bool
}

// NewTieredStrategy creates the default strategy.
func NewTieredStrategy() Strategy {
	return &TieredStrategy{
		baseStrategy: baseStrategy{
			name:        "tiered",
			description: "Standard mapping, confirmed by specification constraints, then semantic match",
		},
		crossReference: true,
	}
}

// NewStandardOnlyStrategy resolves from the standard mapping table without
// consulting constraints. Every mapped row is STANDARD / MEDIUM.
func NewStandardOnlyStrategy() Strategy {
	return &TieredStrategy{
		baseStrategy: baseStrategy{
			name:        "standard-only",
			description: "Standard mapping only, no specification cross-reference",
		},
	}
}

// Resolve implements Strategy.
func (s *TieredStrategy) Resolve(field edi.ErpField, ix *index.Index) Resolution {
	row := edi.GridRow{ErpField: field}

	mappings := ix.Standard(field.Key())
	if len(mappings) == 0 {
		row.Source = edi.SourceUnmapped
		row.Confidence = edi.ConfidenceNone
		return Resolution{Row: row, NeedsMatch: true, Reason: "no standard mapping"}
	}

	std := mappings[0]
	res := Resolution{Ambiguous: len(mappings) > 1}
	for _, alt := range mappings[1:] {
		res.Alternatives = append(res.Alternatives, alt.ElementKey())
	}

	row.WireSegment = strings.TrimSpace(std.WireSegment)
	row.WireElement = strings.TrimSpace(std.WireElement)
	row.WireElementDesc = std.ElementDesc
	row.MappingRule = std.MappingRule
	row.Notes = std.Notes

	constraint, found := edi.FieldConstraint{}, false
	if s.crossReference {
		constraint, found = ix.Constraint(std.WireSegment, std.WireElement)
	}
	if !found {
		row.Source = edi.SourceStandard
		row.Confidence = edi.ConfidenceMedium
		res.Row = row
		res.Reason = "standard mapping " + std.ElementKey().String()
		if s.crossReference {
			res.Reason += ", element not in specification"
		}
		return res
	}

	if seg, ok := ix.Segment(std.WireSegment); ok {
		row.SegmentStatus = seg.Status
	}
	row.ElementStatus = constraint.Status
	row.Values = constraint.Values
	if constraint.Description != "" {
		row.WireElementDesc = constraint.Description
	}
	if w := descriptionMismatch(std.ElementDesc, constraint.Description); w != "" {
		res.Warnings = append(res.Warnings, w)
	}
	row.Source = edi.SourceStandardConstrained
	row.Confidence = edi.ConfidenceHigh
	res.Row = row
	res.Reason = "standard mapping " + std.ElementKey().String() + " confirmed by specification"
	return res
}

// descriptionMismatch reports standard and specification descriptions that
// share less than 30% of the words of the shorter one.
func descriptionMismatch(standard, spec string) string {
	a := wordSet(standard)
	b := wordSet(spec)
	if len(a) == 0 || len(b) == 0 {
		return ""
	}
	overlap := 0
	for w := range a {
		if _, ok := b[w]; ok {
			overlap++
		}
	}
	if float64(overlap) < float64(min(len(a), len(b)))*0.3 {
		return fmt.Sprintf("description mismatch: standard %q vs specification %q", standard, spec)
	}
	return ""
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(edi.FoldText(s)) {
		set[w] = struct{}{}
	}
	return set
}
