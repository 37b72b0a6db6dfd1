// Package index builds the read-only lookup tables used during
// reconciliation: the reverse index of the standard mapping table, the
// constraint index of the vendor specification and the element catalogue
// offered to semantic matching.
package index

import (
	"slices"

	"github.com/agentstation/edimap/pkg/edi"
)

// SegmentInfo is the segment-level part of a constraint record.
type SegmentInfo struct {
	Segment     string
	Description string
	Status      string
}

// Stats summarises an index.
type Stats struct {
	Mappings      int
	ErpKeys       int
	AmbiguousKeys int
	Segments      int
	Elements      int
}

// Index is immutable after Build and safe for concurrent readers.
type Index struct {
	standard    map[edi.ErpKey][]edi.StandardMapping
	ambiguous   []edi.ErpKey
	mappings    int
	constraints map[edi.ElementKey]edi.FieldConstraint
	segments    map[string]SegmentInfo
	catalogue   []edi.CatalogueEntry
}

// Build indexes the standard mappings by ERP key, preserving load order
// within a key, and the constraint records by normalised (segment, element).
// When a segment or element occurs more than once the first occurrence wins.
func Build(mappings []edi.StandardMapping, records []edi.ConstraintRecord) *Index {
	ix := &Index{
		standard:    make(map[edi.ErpKey][]edi.StandardMapping),
		constraints: make(map[edi.ElementKey]edi.FieldConstraint),
		segments:    make(map[string]SegmentInfo),
	}

	for _, m := range mappings {
		key := m.ErpKey()
		if key.Segment == "" || key.Field == "" {
			continue
		}
		ix.mappings++
		ix.standard[key] = append(ix.standard[key], m)
		if len(ix.standard[key]) == 2 {
			ix.ambiguous = append(ix.ambiguous, key)
		}
	}

	for _, rec := range records {
		seg := edi.NormalizeSegment(rec.Segment)
		if seg == "" {
			continue
		}
		if _, seen := ix.segments[seg]; !seen {
			ix.segments[seg] = SegmentInfo{Segment: seg, Description: rec.Description, Status: rec.Status}
		}
		for _, f := range rec.Fields {
			key := edi.NewElementKey(seg, f.ElementID)
			if key.Element == "" {
				continue
			}
			if _, seen := ix.constraints[key]; seen {
				continue
			}
			f.ElementID = key.Element
			f.Values = slices.Clone(f.Values)
			ix.constraints[key] = f
			ix.catalogue = append(ix.catalogue, edi.CatalogueEntry{
				Segment:     seg,
				Element:     key.Element,
				Description: f.Description,
			})
		}
	}
	return ix
}

// Standard returns every mapping for key in load order.
func (ix *Index) Standard(key edi.ErpKey) []edi.StandardMapping {
	return slices.Clone(ix.standard[key])
}

// Constraint returns the constraint for a wire element. Both parts are
// normalised, so ("beg", "2") finds BEG02.
func (ix *Index) Constraint(segment, element string) (edi.FieldConstraint, bool) {
	f, ok := ix.constraints[edi.NewElementKey(segment, element)]
	if ok {
		f.Values = slices.Clone(f.Values)
	}
	return f, ok
}

// Segment returns the segment-level constraint information.
func (ix *Index) Segment(segment string) (SegmentInfo, bool) {
	info, ok := ix.segments[edi.NormalizeSegment(segment)]
	return info, ok
}

// Catalogue returns the (segment, element, description) triples in
// extraction order.
func (ix *Index) Catalogue() []edi.CatalogueEntry {
	return slices.Clone(ix.catalogue)
}

// InCatalogue reports whether the wire element is part of the catalogue.
func (ix *Index) InCatalogue(segment, element string) bool {
	_, ok := ix.constraints[edi.NewElementKey(segment, element)]
	return ok
}

// Ambiguous lists the ERP keys with more than one standard mapping, in the
// order the second mapping was seen.
func (ix *Index) Ambiguous() []edi.ErpKey {
	return slices.Clone(ix.ambiguous)
}

// Stats returns the index sizes.
func (ix *Index) Stats() Stats {
	return Stats{
		Mappings:      ix.mappings,
		ErpKeys:       len(ix.standard),
		AmbiguousKeys: len(ix.ambiguous),
		Segments:      len(ix.segments),
		Elements:      len(ix.constraints),
	}
}
