package gridio

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/reconcile"
)

// SummarySheet lists run statistics.
const SummarySheet = "Summary"

// FlagHeaders is the header row of the Flags sheet.
var FlagHeaders = []string{"Row", "Column", "X12 Element", "Uncovered Values", "Reason"}

// WriteXLSX writes the grid, flags and a run summary as a workbook.
func WriteXLSX(w io.Writer, r *reconcile.Result) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", constants.MappingSheet); err != nil {
		return errors.WrapIO("write", "xlsx", err)
	}

	doc := NewDocument(r)
	if err := writeRows(f, constants.MappingSheet, edi.GridHeaders, gridRows(doc.Rows)); err != nil {
		return err
	}
	if err := addSheet(f, constants.FlagsSheet, FlagHeaders, flagRows(doc.Flags)); err != nil {
		return err
	}
	if err := addSheet(f, SummarySheet, []string{"Metric", "Value"}, summaryRows(doc)); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return errors.WrapIO("write", "xlsx", err)
	}
	return nil
}

func addSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.WrapIO("write", sheet, err)
	}
	return writeRows(f, sheet, headers, rows)
}

func writeRows(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.WrapIO("write", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.WrapIO("write", sheet, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.WrapIO("write", sheet, err)
		}
	}
	return nil
}

func gridRows(rows []edi.GridRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		cells := r.Cells()
		row := make([]any, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		out[i] = row
	}
	return out
}

func flagRows(flags []edi.Flag) [][]any {
	out := make([][]any, len(flags))
	for i, f := range flags {
		out[i] = []any{f.Row, f.Column, f.WireElement, strings.Join(f.UncoveredValues, ", "), f.Reason}
	}
	return out
}

func summaryRows(doc *Document) [][]any {
	s := doc.Statistics
	rows := [][]any{
		{"Run", doc.RunID},
		{"Strategy", doc.Strategy},
		{"Duration", doc.Duration},
		{"Rows", s.Rows},
	}
	for _, src := range edi.Sources {
		rows = append(rows, []any{string(src), s.BySource[src]})
	}
	rows = append(rows,
		[]any{"Coverage", fmt.Sprintf("%.1f%%", doc.Coverage*100)},
		[]any{"Match batches failed", s.MatchBatchesFailed},
		[]any{"Flags", len(doc.Flags)},
		[]any{"Errors", len(doc.Errors)},
	)
	return rows
}
