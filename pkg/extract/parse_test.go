package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/edimap/pkg/decode"
	"github.com/agentstation/edimap/pkg/edi"
)

func parse(t *testing.T, raw string) []edi.ConstraintRecord {
	t.Helper()
	res, err := decode.Extract(raw)
	require.NoError(t, err)
	records, _ := ParseRecords(res)
	return records
}

func TestParseRecordsCanonicalShape(t *testing.T) {
	records := parse(t, `[{"segment":"beg","description":"Beginning","status":"Mandatory",
		"fields":[{"id":"02","status":"M","values":["DS"," BG","SA","DS"]},{"id":"BEG03","values":[]}]}]`)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "BEG", rec.Segment)
	assert.Equal(t, "M", rec.Status)
	require.Len(t, rec.Fields, 2)
	assert.Equal(t, "BEG02", rec.Fields[0].ElementID)
	assert.Equal(t, []string{"DS", "BG", "SA"}, rec.Fields[0].Values)
	assert.Equal(t, "BEG03", rec.Fields[1].ElementID)
	assert.Nil(t, rec.Fields[1].Values)
}

func TestParseRecordsAlternateKeys(t *testing.T) {
	records := parse(t, `{"mandatory_segments":[{"segment_id":"REF","req":"Optional",
		"elements":[{"element":"1","allowed_values":"DP, IA"},{"element_id":"REF02","codes":[{"code":"X"},7]}]}]}`)

	require.Len(t, records, 1)
	assert.Equal(t, "REF", records[0].Segment)
	assert.Equal(t, "O", records[0].Status)
	require.Len(t, records[0].Fields, 2)
	assert.Equal(t, edi.FieldConstraint{ElementID: "REF01", Values: []string{"DP", "IA"}}, records[0].Fields[0])
	assert.Equal(t, []string{"X", "7"}, records[0].Fields[1].Values)
}

func TestParseRecordsKeyedBySegment(t *testing.T) {
	records := parse(t, `{"segments":{"BEG":{"req":"M","elements":{"01":{"values":["00"]},"BEG02":["SA"]}},
		"N1":{"req":"O","elements":{}}}}`)

	require.Len(t, records, 2)
	assert.Equal(t, "BEG", records[0].Segment)
	assert.Equal(t, "N1", records[1].Segment)
	require.Len(t, records[0].Fields, 2)
	assert.Equal(t, "BEG01", records[0].Fields[0].ElementID)
	assert.Equal(t, []string{"00"}, records[0].Fields[0].Values)
	assert.Equal(t, "BEG02", records[0].Fields[1].ElementID)
	assert.Equal(t, []string{"SA"}, records[0].Fields[1].Values)
}

func TestParseRecordsSingleObject(t *testing.T) {
	records := parse(t, `{"segment":"PO1","fields":[{"id":"PO101"}]}`)
	require.Len(t, records, 1)
	assert.Equal(t, "PO1", records[0].Segment)
}

func TestParseRecordsSkipsItemsWithoutSegment(t *testing.T) {
	res, err := decode.Extract(`[{"description":"orphan"},"text",{"segment":"CTT","fields":[]}]`)
	require.NoError(t, err)

	records, skipped := ParseRecords(res)
	require.Len(t, records, 1)
	assert.Equal(t, "CTT", records[0].Segment)
	assert.Equal(t, 2, skipped)
}
