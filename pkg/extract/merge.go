package extract

import (
	"slices"

	"github.com/agentstation/edimap/pkg/edi"
)

// Merger accumulates constraint records from many chunks into one record
// per segment. Segments keep the order they were first seen in, and an
// element already present is never duplicated.
//
// The first occurrence wins for every attribute it actually carries. A later
// sighting never overwrites a value; it only fills attributes the earlier
// record left blank (segment description and status, element description,
// status and values). Chunks often cut a segment's table in half, so the
// first chunk may name an element without its codes.
type Merger struct {
	order    []string
	segments map[string]*edi.ConstraintRecord
	elements map[string]map[string]int
}

// NewMerger creates an empty Merger.
func NewMerger() *Merger {
	return &Merger{
		segments: make(map[string]*edi.ConstraintRecord),
		elements: make(map[string]map[string]int),
	}
}

// Add folds records into the accumulated state.
func (m *Merger) Add(records ...edi.ConstraintRecord) *Merger {
	for _, rec := range records {
		seg := edi.NormalizeSegment(rec.Segment)
		if seg == "" {
			continue
		}

		cur, ok := m.segments[seg]
		if !ok {
			cur = &edi.ConstraintRecord{Segment: seg}
			m.segments[seg] = cur
			m.elements[seg] = make(map[string]int)
			m.order = append(m.order, seg)
		}
		if cur.Description == "" {
			cur.Description = rec.Description
		}
		if cur.Status == "" {
			cur.Status = rec.Status
		}

		index := m.elements[seg]
		for _, f := range rec.Fields {
			id := edi.NormalizeElementID(seg, f.ElementID)
			if id == "" {
				continue
			}
			if i, seen := index[id]; seen {
				fillBlanks(&cur.Fields[i], f)
				continue
			}
			f.ElementID = id
			f.Values = slices.Clone(f.Values)
			index[id] = len(cur.Fields)
			cur.Fields = append(cur.Fields, f)
		}
	}
	return m
}

// Len returns the number of distinct segments.
func (m *Merger) Len() int {
	return len(m.order)
}

// Records returns a copy of the merged records in first-seen order.
func (m *Merger) Records() []edi.ConstraintRecord {
	out := make([]edi.ConstraintRecord, 0, len(m.order))
	for _, seg := range m.order {
		rec := *m.segments[seg]
		rec.Fields = make([]edi.FieldConstraint, len(rec.Fields))
		for i, f := range m.segments[seg].Fields {
			f.Values = slices.Clone(f.Values)
			rec.Fields[i] = f
		}
		out = append(out, rec)
	}
	return out
}

// Merge folds batches of records in the order given.
func Merge(batches ...[]edi.ConstraintRecord) []edi.ConstraintRecord {
	m := NewMerger()
	for _, b := range batches {
		m.Add(b...)
	}
	return m.Records()
}

// fillBlanks copies the attributes of src that dst does not have yet.
func fillBlanks(dst *edi.FieldConstraint, src edi.FieldConstraint) {
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Status == "" {
		dst.Status = src.Status
	}
	if len(dst.Values) == 0 {
		dst.Values = slices.Clone(src.Values)
	}
}
