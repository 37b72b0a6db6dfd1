package decode

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/errors"
)

// Shape tags the layout a reply arrived in.
type Shape int

const (
	// ShapeArray is a bare list of items.
	ShapeArray Shape = iota
	// ShapeObject is a single item object.
	ShapeObject
	// ShapeWrapped is a list held under one of the recognised wrapper keys.
	ShapeWrapped
	// ShapeKeyed is an object whose members are items keyed by name,
	// either at the top level or under a wrapper key.
	ShapeKeyed
)

// String returns the name of the shape.
func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeObject:
		return "object"
	case ShapeWrapped:
		return "wrapped"
	case ShapeKeyed:
		return "keyed"
	default:
		return "unknown"
	}
}

// DefaultWrapperKeys are the member names under which backends tend to nest
// the list that was asked for.
var DefaultWrapperKeys = []string{
	"segments",
	"data",
	"results",
	"records",
	"items",
	"mandatory_segments",
}

// Item is one element of a decoded reply. Key is set for keyed shapes.
type Item struct {
	Key string
	Raw json.RawMessage
}

// Unmarshal decodes the item into v.
func (it Item) Unmarshal(v any) error {
	return json.Unmarshal(it.Raw, v)
}

// ExtractionResult is the typed outcome of decoding a reply that should
// contain a list of records.
type ExtractionResult struct {
	Shape      Shape
	WrapperKey string
	// Salvaged is set when the value had to be repaired after truncation.
	Salvaged bool
	// Fragments is set when items were recovered one object at a time.
	Fragments bool
	Items     []Item
}

// Len returns the number of items.
func (r *ExtractionResult) Len() int {
	return len(r.Items)
}

// Extract decodes raw into a list of items. Wrapper keys are matched
// case-insensitively in the order given; DefaultWrapperKeys is used when
// none are passed.
func Extract(raw string, wrapperKeys ...string) (*ExtractionResult, error) {
	loc, err := locate(raw)
	if err != nil {
		return nil, err
	}

	if loc.fragments != nil {
		res := &ExtractionResult{Shape: ShapeArray, Fragments: true}
		for _, frag := range loc.fragments {
			res.Items = append(res.Items, Item{Raw: frag})
		}
		return res, nil
	}

	if len(wrapperKeys) == 0 {
		wrapperKeys = DefaultWrapperKeys
	}

	res, err := classify([]byte(loc.text), wrapperKeys)
	if err != nil {
		return nil, errors.NewDecodeError("classify", raw, constants.SampleLength, err)
	}
	res.Salvaged = loc.salvaged
	return res, nil
}

func classify(text []byte, wrapperKeys []string) (*ExtractionResult, error) {
	if isArray(text) {
		items, err := arrayItems(text)
		if err != nil {
			return nil, err
		}
		return &ExtractionResult{Shape: ShapeArray, Items: items}, nil
	}

	members, err := Members(text)
	if err != nil {
		return nil, err
	}

	for _, want := range wrapperKeys {
		for _, m := range members {
			if !strings.EqualFold(m.Key, want) {
				continue
			}
			switch {
			case isArray(m.Raw):
				items, err := arrayItems(m.Raw)
				if err != nil {
					return nil, err
				}
				return &ExtractionResult{Shape: ShapeWrapped, WrapperKey: m.Key, Items: items}, nil
			case isObject(m.Raw):
				inner, err := Members(m.Raw)
				if err != nil {
					return nil, err
				}
				return &ExtractionResult{Shape: ShapeKeyed, WrapperKey: m.Key, Items: inner}, nil
			}
		}
	}

	if len(members) > 0 && allObjects(members) {
		return &ExtractionResult{Shape: ShapeKeyed, Items: members}, nil
	}
	return &ExtractionResult{Shape: ShapeObject, Items: []Item{{Raw: json.RawMessage(bytes.TrimSpace(text))}}}, nil
}

func arrayItems(text []byte) ([]Item, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(text, &raw); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, Item{Raw: r})
	}
	return items, nil
}

// Members returns the members of a JSON object in document order.
func Members(text []byte) ([]Item, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected object")
	}

	var items []Item
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		items = append(items, Item{Key: key, Raw: value})
	}
	return items, nil
}

func allObjects(items []Item) bool {
	for _, it := range items {
		if !isObject(it.Raw) {
			return false
		}
	}
	return true
}

// Items unmarshals every item of res into T, skipping items that do not fit.
// It returns the decoded values and the number skipped.
func Items[T any](res *ExtractionResult) ([]T, int) {
	if res == nil {
		return nil, 0
	}
	out := make([]T, 0, len(res.Items))
	skipped := 0
	for _, it := range res.Items {
		var v T
		if err := json.Unmarshal(it.Raw, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}
