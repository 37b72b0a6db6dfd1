package reconcile

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/agentstation/edimap/pkg/edi"
)

// Provenance records how one grid row obtained its resolution.
type Provenance struct {
	Row        int                  // Grid row index
	Key        edi.ErpKey           // ERP field identity
	Source     edi.ResolutionSource // Resolution source chosen
	Confidence edi.Confidence       // Confidence assigned
	Strategy   string               // Strategy or stage that decided
	Reason     string               // Why this resolution was chosen
	// Alternatives are standard mappings that were not chosen for an
	// ambiguous reverse lookup, in load order.
	Alternatives []edi.ElementKey
	Warnings     []string
	Timestamp    time.Time
}

// ProvenanceMap holds the provenance history of every tracked row.
type ProvenanceMap map[int][]Provenance

// Current returns the latest entry for row.
func (m ProvenanceMap) Current(row int) (Provenance, bool) {
	h := m[row]
	if len(h) == 0 {
		return Provenance{}, false
	}
	return h[len(h)-1], true
}

// Rows returns the tracked row indices in ascending order.
func (m ProvenanceMap) Rows() []int {
	rows := make([]int, 0, len(m))
	for row := range m {
		rows = append(rows, row)
	}
	slices.Sort(rows)
	return rows
}

// ProvenanceTracker manages provenance tracking during reconciliation
type ProvenanceTracker interface {
	// Track records provenance for a row
	Track(info Provenance)

	// Row retrieves the provenance history of a row
	Row(row int) []Provenance

	// Export returns the complete provenance map
	Export() ProvenanceMap

	// Clear removes all provenance data
	Clear()
}

// provenanceTracker is the default implementation
type provenanceTracker struct {
	provenance ProvenanceMap
	enabled    bool
}

// NewProvenanceTracker creates a new provenance tracker
func NewProvenanceTracker(enabled bool) ProvenanceTracker {
	return &provenanceTracker{
		provenance: make(ProvenanceMap),
		enabled:    enabled,
	}
}

// Track records provenance for a row
func (p *provenanceTracker) Track(info Provenance) {
	if !p.enabled {
		return
	}
	if info.Timestamp.IsZero() {
		info.Timestamp = time.Now()
	}
	p.provenance[info.Row] = append(p.provenance[info.Row], info)
}

// Row retrieves the provenance history of a row
func (p *provenanceTracker) Row(row int) []Provenance {
	if !p.enabled {
		return nil
	}
	return slices.Clone(p.provenance[row])
}

// Export returns the complete provenance map
func (p *provenanceTracker) Export() ProvenanceMap {
	if !p.enabled {
		return nil
	}

	// Return a copy to prevent external modification
	result := make(ProvenanceMap, len(p.provenance))
	for k, v := range p.provenance {
		result[k] = slices.Clone(v)
	}
	return result
}

// Clear removes all provenance data
func (p *provenanceTracker) Clear() {
	p.provenance = make(ProvenanceMap)
}

// String renders the provenance map row by row.
func (m ProvenanceMap) String() string {
	var sb strings.Builder
	sb.WriteString("Provenance Report\n")
	sb.WriteString("=================\n\n")

	for _, row := range m.Rows() {
		history := m[row]
		current := history[len(history)-1]
		fmt.Fprintf(&sb, "row %d %s: %s/%s (%s)\n", row, current.Key, current.Source, current.Confidence, current.Strategy)
		if current.Reason != "" {
			fmt.Fprintf(&sb, "  reason: %s\n", current.Reason)
		}
		for _, alt := range current.Alternatives {
			fmt.Fprintf(&sb, "  not chosen: %s\n", alt)
		}
		for _, w := range current.Warnings {
			fmt.Fprintf(&sb, "  warning: %s\n", w)
		}
		if len(history) > 1 {
			fmt.Fprintf(&sb, "  history: %d entries\n", len(history))
		}
	}
	return sb.String()
}
