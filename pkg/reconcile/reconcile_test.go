package reconcile

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/edimap/pkg/discrepancy"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/index"
	"github.com/agentstation/edimap/pkg/logging"
	"github.com/agentstation/edimap/pkg/semantic"
)

var (
	belnr = edi.ErpField{SegmentName: "E1EDK01", SegmentDesc: "Header", FieldName: "BELNR", FieldDesc: "Document number", DataType: "CHAR", Length: "35"}
	bsart = edi.ErpField{SegmentName: "E1EDK01", SegmentDesc: "Header", FieldName: "BSART", FieldDesc: "Document type", DataType: "CHAR", Length: "4"}
	curcy = edi.ErpField{SegmentName: "E1EDK01", SegmentDesc: "Header", FieldName: "CURCY", FieldDesc: "Currency", DataType: "CHAR", Length: "3"}
	name1 = edi.ErpField{SegmentName: "E1EDKA1", SegmentDesc: "Partner", FieldName: "NAME1", FieldDesc: "Name 1", DataType: "CHAR", Length: "35"}

	mappings = []edi.StandardMapping{
		{WireSegment: "BEG", WireElement: "BEG03", ElementDesc: "PO Number", ErpSegment: "E1EDK01", ErpField: "BELNR", MappingRule: "Pass through", Notes: "header"},
		{WireSegment: "BEG", WireElement: "BEG02", ElementDesc: "PO Type Code", ErpSegment: "E1EDK01", ErpField: "BSART", MappingRule: "Map DS to ZDS"},
		{WireSegment: "CUR", WireElement: "CUR02", ElementDesc: "Currency Code", ErpSegment: "E1EDK01", ErpField: "CURCY", MappingRule: "Copy"},
	}

	records = []edi.ConstraintRecord{
		{Segment: "BEG", Status: "M", Fields: []edi.FieldConstraint{
			{ElementID: "BEG02", Description: "Purchase Order Type Code", Status: "M", Values: []string{"DS", "BG", "SA"}},
			{ElementID: "BEG03", Description: "Purchase Order Number", Status: "M", Values: []string{"123456"}},
		}},
		{Segment: "N1", Status: "O", Fields: []edi.FieldConstraint{
			{ElementID: "N102", Description: "Name", Status: "C"},
		}},
	}
)

type fakeMatcher struct {
	candidates map[edi.ErpKey]*edi.MatchCandidate
	err        error
	gotFields  []edi.ErpField
	gotCat     []edi.CatalogueEntry
}

func (m *fakeMatcher) Match(_ context.Context, fields []edi.ErpField, cat []edi.CatalogueEntry) (*semantic.Report, error) {
	m.gotFields, m.gotCat = fields, cat
	report := &semantic.Report{Candidates: map[edi.ErpKey]*edi.MatchCandidate{}, Batches: 1}
	for _, f := range fields {
		report.Candidates[f.Key()] = m.candidates[f.Key()]
	}
	return report, m.err
}

type fakeFlagger struct {
	flags map[int]edi.Flag
	got   []edi.FlagCandidate
}

func (f *fakeFlagger) Flag(_ context.Context, candidates []edi.FlagCandidate) (*discrepancy.Report, error) {
	f.got = candidates
	return &discrepancy.Report{Flags: f.flags, Sent: len(candidates)}, nil
}

func newEngine(t *testing.T, maps []edi.StandardMapping, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
	e, err := New(index.Build(maps, records), opts...)
	require.NoError(t, err)
	return e
}

func TestReconcileTiers(t *testing.T) {
	d := newEngine(t, mappings).Reconcile([]edi.ErpField{belnr, curcy, name1})

	want := []edi.GridRow{
		{
			ErpField:        belnr,
			WireSegment:     "BEG",
			WireElement:     "BEG03",
			WireElementDesc: "Purchase Order Number",
			MappingRule:     "Pass through",
			SegmentStatus:   "M",
			ElementStatus:   "M",
			Values:          []string{"123456"},
			Source:          edi.SourceStandardConstrained,
			Confidence:      edi.ConfidenceHigh,
			Notes:           "header",
		},
		{
			ErpField:        curcy,
			WireSegment:     "CUR",
			WireElement:     "CUR02",
			WireElementDesc: "Currency Code",
			MappingRule:     "Copy",
			Source:          edi.SourceStandard,
			Confidence:      edi.ConfidenceMedium,
		},
		{
			ErpField:   name1,
			Source:     edi.SourceUnmapped,
			Confidence: edi.ConfidenceNone,
		},
	}
	if diff := cmp.Diff(want, d.Grid.Rows); diff != "" {
		t.Errorf("Reconcile() grid mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []MatchRequest{{Row: 3, Field: name1}}, d.Requests)
	assert.Zero(t, d.Ambiguous)
}

func TestReconcileAmbiguousLookupUsesFirstMapping(t *testing.T) {
	maps := append([]edi.StandardMapping{}, mappings...)
	maps = append(maps, edi.StandardMapping{WireSegment: "REF", WireElement: "REF02", ErpSegment: "E1EDK01", ErpField: "BELNR"})

	d := newEngine(t, maps).Reconcile([]edi.ErpField{belnr})
	require.Equal(t, 1, d.Grid.Len())
	assert.Equal(t, "BEG03", d.Grid.Rows[0].WireElement)
	assert.Equal(t, 1, d.Ambiguous)

	prov, ok := d.Provenance().Current(1)
	require.True(t, ok)
	assert.Equal(t, []edi.ElementKey{{Segment: "REF", Element: "REF02"}}, prov.Alternatives)
}

func TestApplyMatches(t *testing.T) {
	e := newEngine(t, mappings)
	d := e.Reconcile([]edi.ErpField{name1, belnr})

	applied := e.ApplyMatches(d, map[edi.ErpKey]*edi.MatchCandidate{
		name1.Key(): {WireSegment: "N1", WireElement: "N102", MappingRule: "Copy name", Confidence: edi.ConfidenceMedium, Reason: "names match"},
	})
	require.Equal(t, 1, applied)

	row, ok := d.Grid.At(1)
	require.True(t, ok)
	assert.Equal(t, edi.SourceAIMatch, row.Source)
	assert.Equal(t, edi.ConfidenceMedium, row.Confidence, "confidence comes from the match")
	assert.Equal(t, "O", row.SegmentStatus)
	assert.Equal(t, "C", row.ElementStatus)
	assert.Equal(t, "Name", row.WireElementDesc)
	assert.Equal(t, "names match", row.Notes)

	history := d.Provenance()[1]
	require.Len(t, history, 2)
	assert.Equal(t, edi.SourceUnmapped, history[0].Source)
	assert.Equal(t, edi.SourceAIMatch, history[1].Source)
}

func TestApplyMatchesIgnoresNonMatches(t *testing.T) {
	e := newEngine(t, mappings)
	d := e.Reconcile([]edi.ErpField{name1})

	for _, c := range []*edi.MatchCandidate{
		nil,
		{WireSegment: "N1", WireElement: "", Confidence: edi.ConfidenceHigh},
		{WireSegment: "N1", WireElement: "N102", Confidence: edi.ConfidenceNone},
	} {
		assert.Zero(t, e.ApplyMatches(d, map[edi.ErpKey]*edi.MatchCandidate{name1.Key(): c}))
	}
	assert.Equal(t, edi.SourceUnmapped, d.Grid.Rows[0].Source)
	assert.Equal(t, edi.ConfidenceNone, d.Grid.Rows[0].Confidence)
}

func TestFlagCandidates(t *testing.T) {
	d := newEngine(t, mappings).Reconcile([]edi.ErpField{curcy, bsart, name1, belnr})

	got := FlagCandidates(d.Grid)
	want := []edi.FlagCandidate{
		{Row: 2, WireSegment: "BEG", WireElement: "BEG02", MappingRule: "Map DS to ZDS", Values: []string{"DS", "BG", "SA"}},
		{Row: 4, WireSegment: "BEG", WireElement: "BEG03", MappingRule: "Pass through", Values: []string{"123456"}},
	}
	assert.Empty(t, cmp.Diff(want, got))
}

func TestRun(t *testing.T) {
	matcher := &fakeMatcher{candidates: map[edi.ErpKey]*edi.MatchCandidate{
		name1.Key(): {WireSegment: "N1", WireElement: "N102", ElementDesc: "Name", MappingRule: "Copy", Confidence: edi.ConfidenceHigh},
	}}
	flagger := &fakeFlagger{flags: map[int]edi.Flag{
		2: {Row: 2, Column: edi.ColMappingRule, WireElement: "BEG02", UncoveredValues: []string{"BG", "SA"}, Reason: "BG and SA unhandled"},
	}}
	e := newEngine(t, mappings, WithMatcher(matcher), WithFlagger(flagger))

	result, err := e.Run(context.Background(), []edi.ErpField{belnr, bsart, curcy, name1})
	require.NoError(t, err)

	assert.Equal(t, []edi.ErpField{name1}, matcher.gotFields)
	assert.Len(t, matcher.gotCat, 3)
	assert.Len(t, flagger.got, 2)

	stats := result.Metadata.Stats
	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, 2, stats.BySource[edi.SourceStandardConstrained])
	assert.Equal(t, 1, stats.BySource[edi.SourceStandard])
	assert.Equal(t, 1, stats.BySource[edi.SourceAIMatch])
	assert.Zero(t, stats.Unmapped())
	assert.Equal(t, 1, stats.MatchesApplied)
	assert.Equal(t, 1, stats.Flags)
	assert.Equal(t, 2, stats.FlagRowsSent)
	assert.InDelta(t, 1.0, stats.Coverage(), 0.0001)

	assert.Equal(t, []int{2}, result.FlaggedRows())
	assert.NotEmpty(t, result.Metadata.RunID)
	assert.Equal(t, "tiered", result.Metadata.Strategy)
	assert.Contains(t, result.Summary(), "Reconciled 4 fields")
	assert.Contains(t, result.Report(), "BG and SA unhandled")
	assert.False(t, result.HasErrors())
}

func TestRunWithoutMatcherLeavesRowsUnmapped(t *testing.T) {
	result, err := newEngine(t, mappings).Run(logging.WithRunID(context.Background(), "run-1"), []edi.ErpField{name1})
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.Metadata.RunID)
	assert.Equal(t, 1, result.Metadata.Stats.Unmapped())
	assert.Contains(t, result.Warnings, "1 of 1 fields remain unmapped")
	assert.Empty(t, result.Flags)
}

func TestRunReturnsPartialResultOnCancel(t *testing.T) {
	canceled := errors.Join(errors.ErrCanceled, context.Canceled)
	e := newEngine(t, mappings, WithMatcher(&fakeMatcher{err: canceled}), WithFlagger(&fakeFlagger{}))

	result, err := e.Run(context.Background(), []edi.ErpField{belnr, name1})
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Grid.Len())
}

func TestStandardOnlyStrategy(t *testing.T) {
	d := newEngine(t, mappings, WithStrategy(NewStandardOnlyStrategy())).Reconcile([]edi.ErpField{belnr})
	assert.Equal(t, edi.SourceStandard, d.Grid.Rows[0].Source)
	assert.Equal(t, edi.ConfidenceMedium, d.Grid.Rows[0].Confidence)
	assert.Empty(t, FlagCandidates(d.Grid))
}

func TestDescriptionMismatchWarning(t *testing.T) {
	maps := []edi.StandardMapping{{WireSegment: "BEG", WireElement: "BEG02", ElementDesc: "Shipment routing", ErpSegment: "E1EDK01", ErpField: "BSART"}}
	result, err := newEngine(t, maps).Run(context.Background(), []edi.ErpField{bsart})
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "description mismatch")
	assert.Contains(t, result.Warnings[0], "row 1")
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = New(index.Build(nil, nil), WithStrategy(nil))
	assert.Error(t, err)
}

func TestProvenanceDisabled(t *testing.T) {
	d := newEngine(t, mappings, WithProvenance(false)).Reconcile([]edi.ErpField{belnr})
	assert.Nil(t, d.Provenance())
}
