package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/edimap/internal/gridio"
	"github.com/agentstation/edimap/pkg/edi"
)

// SummaryData renders the statistics of a reconciliation document.
func SummaryData(doc *gridio.Document) Data {
	s := doc.Statistics
	rows := [][]string{
		{"Rows", strconv.Itoa(s.Rows)},
	}
	for _, src := range edi.Sources {
		rows = append(rows, []string{string(src), strconv.Itoa(s.BySource[src])})
	}
	rows = append(rows,
		[]string{"Coverage", fmt.Sprintf("%.1f%%", doc.Coverage*100)},
		[]string{"Ambiguous lookups", strconv.Itoa(s.AmbiguousLookups)},
		[]string{"Match batches failed", fmt.Sprintf("%d/%d", s.MatchBatchesFailed, s.MatchBatches)},
		[]string{"Flags", strconv.Itoa(len(doc.Flags))},
	)
	return Data{
		Title:           fmt.Sprintf("Run %s (%s, %s)", doc.RunID, doc.Strategy, doc.Duration),
		Headers:         []string{"Metric", "Value"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
}

// FlagsData renders the value discrepancy flags of a document.
func FlagsData(doc *gridio.Document) Data {
	data := Data{
		Title:   "Flags",
		Headers: []string{"Row", "X12 Element", "Uncovered Values", "Reason"},
	}
	for _, f := range doc.Flags {
		data.Rows = append(data.Rows, []string{
			strconv.Itoa(f.Row + edi.HeaderRows),
			f.WireElement,
			strings.Join(f.UncoveredValues, ", "),
			f.Reason,
		})
	}
	return data
}

// GridData renders the mapping grid with its fixed headers.
func GridData(doc *gridio.Document) Data {
	data := Data{Title: "Mapping", Headers: edi.GridHeaders}
	for _, row := range doc.Rows {
		data.Rows = append(data.Rows, row.Cells())
	}
	return data
}

// ReportTables returns the tables printed for a reconciliation. Wide output
// includes the full grid.
func ReportTables(doc *gridio.Document, wide bool) []Data {
	tables := []Data{SummaryData(doc)}
	if len(doc.Flags) > 0 {
		tables = append(tables, FlagsData(doc))
	}
	if wide {
		tables = append(tables, GridData(doc))
	}
	return tables
}

// ConstraintsData renders extracted constraint records, one row per element.
func ConstraintsData(records []edi.ConstraintRecord) Data {
	data := Data{
		Headers: []string{"Segment", "Seg Status", "Element", "Elem Status", "Description", "Values"},
	}
	for _, rec := range records {
		if len(rec.Fields) == 0 {
			data.Rows = append(data.Rows, []string{rec.Segment, rec.Status, "", "", rec.Description, ""})
			continue
		}
		for _, f := range rec.Fields {
			data.Rows = append(data.Rows, []string{
				rec.Segment,
				rec.Status,
				f.ElementID,
				f.Status,
				f.Description,
				strings.Join(f.Values, ", "),
			})
		}
	}
	return data
}
