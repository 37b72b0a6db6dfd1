package edi

import (
	"iter"
	"strings"
)

// GridHeaders is the fixed header row of the output grid.
var GridHeaders = []string{
	"SAP Segment",
	"SAP Segment Desc",
	"SAP Field",
	"SAP Field Desc",
	"SAP Data Type",
	"SAP Length",
	"X12 Segment",
	"X12 Element",
	"X12 Element Desc",
	"Mapping Rule",
	"Spec Seg Status",
	"Spec Elem Status",
	"Spec Values",
	"Mapping Source",
	"Confidence",
	"Notes",
}

// Column positions within a grid row.
const (
	ColErpSegment = iota
	ColErpSegmentDesc
	ColErpField
	ColErpFieldDesc
	ColDataType
	ColLength
	ColWireSegment
	ColWireElement
	ColWireElementDesc
	ColMappingRule
	ColSegmentStatus
	ColElementStatus
	ColValues
	ColSource
	ColConfidence
	ColNotes
)

// HeaderRows is the number of rows preceding the first data row.
const HeaderRows = 1

// GridRow is the reconciled view of one ERP field.
type GridRow struct {
	ErpField `yaml:",inline"`

	WireSegment     string           `json:"x12_segment" yaml:"x12_segment"`
	WireElement     string           `json:"x12_element" yaml:"x12_element"`
	WireElementDesc string           `json:"x12_element_desc,omitempty" yaml:"x12_element_desc,omitempty"`
	MappingRule     string           `json:"mapping_rule,omitempty" yaml:"mapping_rule,omitempty"`
	SegmentStatus   string           `json:"spec_segment_status,omitempty" yaml:"spec_segment_status,omitempty"`
	ElementStatus   string           `json:"spec_element_status,omitempty" yaml:"spec_element_status,omitempty"`
	Values          []string         `json:"spec_values,omitempty" yaml:"spec_values,omitempty"`
	Source          ResolutionSource `json:"source" yaml:"source"`
	Confidence      Confidence       `json:"confidence" yaml:"confidence"`
	Notes           string           `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Cells renders the row in GridHeaders order.
func (r GridRow) Cells() []string {
	return []string{
		r.SegmentName,
		r.SegmentDesc,
		r.FieldName,
		r.FieldDesc,
		r.DataType,
		r.Length,
		r.WireSegment,
		r.WireElement,
		r.WireElementDesc,
		r.MappingRule,
		r.SegmentStatus,
		r.ElementStatus,
		strings.Join(r.Values, ", "),
		string(r.Source),
		string(r.Confidence),
		r.Notes,
	}
}

// Grid holds the data rows of a reconciliation. Row indices handed out by
// the grid count the header, so the first data row is index 1.
type Grid struct {
	Rows []GridRow `json:"rows" yaml:"rows"`
}

// Len returns the number of data rows.
func (g *Grid) Len() int {
	return len(g.Rows)
}

// Append adds a row and returns its grid index.
func (g *Grid) Append(row GridRow) int {
	g.Rows = append(g.Rows, row)
	return len(g.Rows) - 1 + HeaderRows
}

// At returns the row at grid index i.
func (g *Grid) At(i int) (*GridRow, bool) {
	pos := i - HeaderRows
	if pos < 0 || pos >= len(g.Rows) {
		return nil, false
	}
	return &g.Rows[pos], true
}

// All iterates the data rows with their grid indices.
func (g *Grid) All() iter.Seq2[int, *GridRow] {
	return func(yield func(int, *GridRow) bool) {
		for pos := range g.Rows {
			if !yield(pos+HeaderRows, &g.Rows[pos]) {
				return
			}
		}
	}
}

// Table returns the header followed by every row as cells.
func (g *Grid) Table() [][]string {
	table := make([][]string, 0, len(g.Rows)+HeaderRows)
	table = append(table, append([]string(nil), GridHeaders...))
	for _, row := range g.Rows {
		table = append(table, row.Cells())
	}
	return table
}

// CountBySource tallies rows per resolution source.
func (g *Grid) CountBySource() map[ResolutionSource]int {
	counts := make(map[ResolutionSource]int, len(Sources))
	for _, row := range g.Rows {
		counts[row.Source]++
	}
	return counts
}
