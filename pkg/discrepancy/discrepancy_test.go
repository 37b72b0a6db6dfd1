package discrepancy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/edimap/pkg/backend"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/logging"
)

var (
	beg03 = edi.FlagCandidate{Row: 1, WireSegment: "BEG", WireElement: "BEG03", MappingRule: "Pass through the PO number", Values: []string{"123456"}}
	beg02 = edi.FlagCandidate{Row: 2, WireSegment: "BEG", WireElement: "BEG02", MappingRule: "Map DS to ORDERS type ZDS", Values: []string{"DS", "BG", "SA"}}
	ref01 = edi.FlagCandidate{Row: 3, WireSegment: "REF", WireElement: "REF01", MappingRule: "If DP map dept, if IA map vendor", Values: []string{"DP", "IA"}}
)

func newFlagger(t *testing.T, b backend.Completer) *Flagger {
	t.Helper()
	f, err := New(b, WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	return f
}

func fixed(reply string, prompts *[]string) backend.Completer {
	return backend.CompleterFunc(func(_ context.Context, prompt, _ string) (string, error) {
		if prompts != nil {
			*prompts = append(*prompts, prompt)
		}
		return reply, nil
	})
}

func TestFlagPassThroughAndPartialCoverage(t *testing.T) {
	reply := `[
		{"row_idx": 1, "flagged": false, "uncovered_values": [], "reason": ""},
		{"row_idx": 2, "flagged": true, "uncovered_values": ["SA", "BG", "ZZ"], "reason": "BG and SA are not handled"}
	]`
	report, err := newFlagger(t, fixed(reply, nil)).Flag(context.Background(), []edi.FlagCandidate{beg03, beg02})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Sent)
	require.Len(t, report.Flags, 1)
	flag := report.Flags[2]
	assert.Equal(t, []string{"BG", "SA"}, flag.UncoveredValues, "restricted to the row's values, in constraint order")
	assert.Equal(t, "BG and SA are not handled", flag.Reason)
	assert.Equal(t, edi.ColMappingRule, flag.Column)
	assert.Equal(t, "BEG02", flag.WireElement)
}

func TestFlagSendsEveryCandidateWithValues(t *testing.T) {
	var prompts []string
	report, err := newFlagger(t, fixed(`[]`, &prompts)).Flag(context.Background(), []edi.FlagCandidate{ref01, beg02, {Row: 9}})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Sent)
	require.Len(t, prompts, 1, "one batched request per run")
	assert.Contains(t, prompts[0], `"row_idx": 2`)
	assert.Contains(t, prompts[0], `"row_idx": 3`, "a rule naming every value is still judged by the backend")
	assert.NotContains(t, prompts[0], `"row_idx": 9`)
	assert.Empty(t, report.Flags)
}

func TestFlagNoRequestWithoutValues(t *testing.T) {
	b := backend.CompleterFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("must not be called")
	})
	report, err := newFlagger(t, b).Flag(context.Background(), []edi.FlagCandidate{{Row: 9, WireElement: "BEG01"}})
	require.NoError(t, err)
	assert.Empty(t, report.Flags)
	assert.Zero(t, report.Sent)
	assert.False(t, report.Failed)
}

func TestFlagCommonWordCodes(t *testing.T) {
	n101 := edi.FlagCandidate{
		Row:         4,
		WireSegment: "N1",
		WireElement: "N101",
		MappingRule: "Send ST when the ship-to partner is present in E1EDKA1, set by PARVW=WE",
		Values:      []string{"BY", "ST", "IN"},
	}
	reply := `[{"row_idx": 4, "flagged": true, "uncovered_values": ["IN", "BY"], "reason": "only ST is mapped"}]`

	var prompts []string
	report, err := newFlagger(t, fixed(reply, &prompts)).Flag(context.Background(), []edi.FlagCandidate{n101})
	require.NoError(t, err)

	require.Len(t, prompts, 1)
	assert.Equal(t, 1, report.Sent)
	require.Contains(t, report.Flags, 4)
	assert.Equal(t, []string{"BY", "IN"}, report.Flags[4].UncoveredValues)
	assert.Equal(t, "only ST is mapped", report.Flags[4].Reason)
}

func TestFlagKeepsOnlyValidFlags(t *testing.T) {
	reply := `{"flags": [
		{"row_idx": "2", "flagged": "true", "uncovered_values": "BG, SA", "reason": "missing BG, SA"},
		{"row_idx": 1, "flagged": true, "reason": "  "},
		{"row_idx": 7, "flagged": true, "reason": "not a requested row"}
	]}`
	report, err := newFlagger(t, fixed(reply, nil)).Flag(context.Background(), []edi.FlagCandidate{beg03, beg02})
	require.NoError(t, err)

	require.Len(t, report.Flags, 1)
	assert.Equal(t, []string{"BG", "SA"}, report.Flags[2].UncoveredValues)
}

func TestFlagFallsBackToLocalGaps(t *testing.T) {
	reply := `[{"row_idx": 2, "flagged": true, "reason": "values missing"}]`
	report, err := newFlagger(t, fixed(reply, nil)).Flag(context.Background(), []edi.FlagCandidate{beg02})
	require.NoError(t, err)
	assert.Equal(t, []string{"BG", "SA"}, report.Flags[2].UncoveredValues)
}

func TestFlagDegradesOnFailure(t *testing.T) {
	failing := backend.CompleterFunc(func(context.Context, string, string) (string, error) {
		return "", errors.NewAPIError("scripted", 503, "down")
	})
	report, err := newFlagger(t, failing).Flag(context.Background(), []edi.FlagCandidate{beg02})
	require.NoError(t, err)
	assert.True(t, report.Failed)
	assert.Empty(t, report.Flags)

	report, err = newFlagger(t, fixed("nothing to report", nil)).Flag(context.Background(), []edi.FlagCandidate{beg02})
	require.NoError(t, err)
	assert.True(t, report.Failed)
	assert.Empty(t, report.Flags)
}

func TestFlagCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := backend.CompleterFunc(func(ctx context.Context, _, _ string) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	_, err := newFlagger(t, b).Flag(ctx, []edi.FlagCandidate{beg02})
	assert.True(t, errors.IsCanceled(err))
}

func TestUncovered(t *testing.T) {
	tests := []struct {
		rule   string
		values []string
		want   []string
	}{
		{rule: "Map DS", values: []string{"DS", "BG", "SA"}, want: []string{"BG", "SA"}},
		{rule: "map ds/bg/sa", values: []string{"DS", "BG", "SA"}, want: nil},
		{rule: "DSX only", values: []string{"DS"}, want: []string{"DS"}},
		{rule: "Use 'Not Used' when absent", values: []string{"Not Used"}, want: nil},
		{rule: "", values: []string{"00"}, want: []string{"00"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Uncovered(tt.rule, tt.values), "rule %q", tt.rule)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt([]requestItem{{Row: 4, WireElement: "BEG02", MappingRule: "Map DS", Values: []string{"DS", "SA"}}})
	assert.True(t, strings.Contains(p, `"row_idx": 4`))
	assert.Contains(t, p, `"x12_element": "BEG02"`)
}
