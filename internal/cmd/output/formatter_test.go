package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/edimap/internal/gridio"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/reconcile"
)

func testDocument() *gridio.Document {
	return &gridio.Document{
		RunID:    "run-1",
		Strategy: "tiered",
		Duration: "1s",
		Coverage: 0.5,
		Statistics: reconcile.Statistics{
			Rows:     2,
			BySource: map[edi.ResolutionSource]int{edi.SourceStandardConstrained: 1, edi.SourceUnmapped: 1},
		},
		Rows: []edi.GridRow{
			{ErpField: edi.ErpField{SegmentName: "E1EDK14", FieldName: "ORGID"}, WireElement: "BEG02", Source: edi.SourceStandardConstrained},
			{ErpField: edi.ErpField{SegmentName: "E1EDKA1", FieldName: "PARVW"}, Source: edi.SourceUnmapped},
		},
		Flags: []edi.Flag{{Row: 0, WireElement: "BEG02", UncoveredValues: []string{"BG", "SA"}, Reason: "not handled"}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", "", false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"wide", FormatWide, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.True(t, errors.IsValidationError(err), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestReportTables(t *testing.T) {
	doc := testDocument()

	tables := ReportTables(doc, false)
	require.Len(t, tables, 2)
	assert.Equal(t, []string{"1", "BEG02", "BG, SA", "not handled"}, tables[1].Rows[0])

	wide := ReportTables(doc, true)
	require.Len(t, wide, 3)
	assert.Len(t, wide[2].Rows, 2)
	assert.Len(t, wide[2].Rows[0], len(edi.GridHeaders))

	doc.Flags = nil
	assert.Len(t, ReportTables(doc, false), 1)
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, ReportTables(testDocument(), false)))

	out := buf.String()
	assert.Contains(t, out, "Run run-1 (tiered, 1s)")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "BG, SA")
}

func TestTableFormatterStruct(t *testing.T) {
	type info struct {
		Version string `json:"version"`
		BuiltBy string `json:"built_by"`
	}
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, info{Version: "1.2.3", BuiltBy: "make"}))
	assert.Contains(t, buf.String(), "Built By")
	assert.Contains(t, buf.String(), "1.2.3")
}

func TestStructuredFormatters(t *testing.T) {
	records := []edi.ConstraintRecord{{Segment: "BEG", Status: "M", Fields: []edi.FieldConstraint{{ElementID: "BEG02", Values: []string{"DS"}}}}}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, records))
	assert.True(t, strings.HasPrefix(buf.String(), "[\n  {"))

	buf.Reset()
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, records))
	assert.Contains(t, buf.String(), "segment: BEG")
}

func TestConstraintsData(t *testing.T) {
	data := ConstraintsData([]edi.ConstraintRecord{
		{Segment: "BEG", Status: "M", Fields: []edi.FieldConstraint{
			{ElementID: "BEG02", Values: []string{"DS", "SA"}},
			{ElementID: "BEG03"},
		}},
		{Segment: "CTT", Description: "Totals"},
	})
	require.Len(t, data.Rows, 3)
	assert.Equal(t, "DS, SA", data.Rows[0][5])
	assert.Equal(t, []string{"CTT", "", "", "", "Totals", ""}, data.Rows[2])
}
