package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/agentstation/edimap/pkg/decode"
	"github.com/agentstation/edimap/pkg/edi"
)

// Member names accepted for each attribute of a segment or element object.
var (
	segmentKeys     = []string{"segment", "segment_id", "segment_code", "seg", "tag"}
	descriptionKeys = []string{"description", "desc", "name", "title"}
	statusKeys      = []string{"status", "req", "usage", "requirement"}
	fieldListKeys   = []string{"fields", "elements"}
	elementIDKeys   = []string{"id", "element", "element_id", "elem", "ref", "position"}
	valueKeys       = []string{"values", "allowed_values", "codes", "code_values"}
)

// ParseRecords converts decoded reply items into constraint records. Items
// that are not objects or carry no segment code are counted as skipped.
func ParseRecords(res *decode.ExtractionResult) ([]edi.ConstraintRecord, int) {
	if res == nil {
		return nil, 0
	}
	records := make([]edi.ConstraintRecord, 0, len(res.Items))
	skipped := 0
	for _, item := range res.Items {
		rec, ok := parseRecord(item)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

func parseRecord(item decode.Item) (edi.ConstraintRecord, bool) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(item.Raw, &members); err != nil {
		return edi.ConstraintRecord{}, false
	}

	segment := firstString(members, segmentKeys)
	if segment == "" {
		segment = item.Key
	}
	segment = edi.NormalizeSegment(segment)
	if segment == "" {
		return edi.ConstraintRecord{}, false
	}

	rec := edi.ConstraintRecord{
		Segment:     segment,
		Description: firstString(members, descriptionKeys),
		Status:      edi.NormalizeStatus(firstString(members, statusKeys)),
	}
	for _, key := range fieldListKeys {
		if raw, ok := lookup(members, key); ok {
			rec.Fields = parseFields(segment, raw)
			break
		}
	}
	return rec, true
}

// parseFields accepts a list of element objects or an object keyed by element id.
func parseFields(segment string, raw json.RawMessage) []edi.FieldConstraint {
	var items []decode.Item
	switch firstByte(raw) {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
		for _, r := range list {
			items = append(items, decode.Item{Raw: r})
		}
	case '{':
		members, err := decode.Members(raw)
		if err != nil {
			return nil
		}
		items = members
	default:
		return nil
	}

	fields := make([]edi.FieldConstraint, 0, len(items))
	for _, item := range items {
		var members map[string]json.RawMessage
		if err := json.Unmarshal(item.Raw, &members); err != nil {
			// {"BEG01": ["00", "06"]}
			if id := edi.NormalizeElementID(segment, item.Key); id != "" {
				fields = append(fields, edi.FieldConstraint{ElementID: id, Values: edi.CleanValues(parseValues(item.Raw))})
			}
			continue
		}
		id := firstString(members, elementIDKeys)
		if id == "" {
			id = item.Key
		}
		id = edi.NormalizeElementID(segment, id)
		if id == "" {
			continue
		}
		var values []string
		for _, key := range valueKeys {
			if v, ok := lookup(members, key); ok {
				values = parseValues(v)
				break
			}
		}
		fields = append(fields, edi.FieldConstraint{
			ElementID:   id,
			Description: firstString(members, descriptionKeys),
			Status:      edi.NormalizeStatus(firstString(members, statusKeys)),
			Values:      edi.CleanValues(values),
		})
	}
	return fields
}

// parseValues reads a list of scalars, a list of {code, description}
// objects, or a single comma-separated string.
func parseValues(raw json.RawMessage) []string {
	if s, ok := scalar(raw); ok {
		return strings.Split(s, ",")
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	values := make([]string, 0, len(list))
	for _, r := range list {
		if s, ok := scalar(r); ok {
			values = append(values, s)
			continue
		}
		var obj map[string]json.RawMessage
		if json.Unmarshal(r, &obj) == nil {
			if s := firstString(obj, []string{"code", "value", "id"}); s != "" {
				values = append(values, s)
			}
		}
	}
	return values
}

// lookup finds a member by name, ignoring case.
func lookup(members map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if v, ok := members[key]; ok {
		return v, true
	}
	for k, v := range members {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func firstString(members map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		raw, ok := lookup(members, key)
		if !ok {
			continue
		}
		if s, ok := scalar(raw); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// scalar renders a JSON string or number as text.
func scalar(raw json.RawMessage) (string, bool) {
	switch firstByte(raw) {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return n.String(), true
	}
	return "", false
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
