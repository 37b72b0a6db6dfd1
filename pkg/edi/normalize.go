package edi

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErpKey identifies an ERP field by segment and field name.
type ErpKey struct {
	Segment string
	Field   string
}

// NewErpKey builds a key that ignores case and the spacing and punctuation
// differences removed by NormalizeFieldName.
func NewErpKey(segment, field string) ErpKey {
	return ErpKey{
		Segment: strings.ToUpper(NormalizeFieldName(segment)),
		Field:   strings.ToUpper(NormalizeFieldName(field)),
	}
}

// String renders the key as SEGMENT.FIELD.
func (k ErpKey) String() string {
	return k.Segment + "." + k.Field
}

// IsZero reports whether the key names nothing.
func (k ErpKey) IsZero() bool {
	return k.Segment == "" && k.Field == ""
}

// ElementKey identifies a wire element within its segment.
type ElementKey struct {
	Segment string
	Element string
}

// NewElementKey normalises both parts of a wire element identity.
func NewElementKey(segment, element string) ElementKey {
	return ElementKey{
		Segment: NormalizeSegment(segment),
		Element: NormalizeElementID(segment, element),
	}
}

// String renders the key as SEGMENT/ELEMENT.
func (k ElementKey) String() string {
	return k.Segment + "/" + k.Element
}

// NormalizeSegment upper-cases a segment code and drops anything that is not
// a letter or digit.
func NormalizeSegment(segment string) string {
	return alnumUpper(segment)
}

// NormalizeElementID returns the full SEGMENT+INDEX form of an element id.
// Separators are dropped, a bare index shorter than three characters gets the
// segment prepended, and a single-digit index is zero padded:
//
//	("BEG", "02")     -> "BEG02"
//	("BEG", "beg-3")  -> "BEG03"
//	("N1", "1")       -> "N101"
//	("", "REF02")     -> "REF02"
func NormalizeElementID(segment, id string) string {
	seg := alnumUpper(segment)
	raw := alnumUpper(id)
	if raw == "" {
		return ""
	}
	if seg == "" {
		return raw
	}
	if !strings.HasPrefix(raw, seg) && len(raw) < 3 {
		raw = seg + raw
	}
	if rest, ok := strings.CutPrefix(raw, seg); ok && len(rest) == 1 && rest[0] >= '0' && rest[0] <= '9' {
		raw = seg + "0" + rest
	}
	return raw
}

// NormalizeFieldName turns a free-form field label into an identifier:
// "(" becomes "_", ")" is dropped, whitespace and dashes become "_", runs of
// "_" collapse to one, and leading or trailing "_" are trimmed. Case is kept.
// The function is idempotent.
func NormalizeFieldName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '(' || r == '-' || unicode.IsSpace(r):
			return '_'
		case r == ')':
			return -1
		}
		return r
	}, name)

	var b strings.Builder
	b.Grow(len(mapped))
	prev := false
	for _, r := range mapped {
		if r == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "_")
}

// NormalizeStatus maps requirement labels onto their one-letter codes:
// Mandatory/Required/Must Use -> M, Optional -> O, Conditional -> C,
// Not Used -> X. Other labels are returned upper-cased.
func NormalizeStatus(status string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(status), " "))
	switch s {
	case "MANDATORY", "REQUIRED", "MUST USE", "REQ":
		return "M"
	case "OPTIONAL", "OPT", "USED":
		return "O"
	case "CONDITIONAL", "COND", "RECOMMENDED":
		return "C"
	case "NOT USED", "NOT_USED", "N/U", "NU":
		return "X"
	}
	return s
}

// CleanValues trims each value and drops empties and duplicates, keeping the
// first occurrence order.
func CleanValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// FoldText folds case and compatibility forms so free text from different
// sources can be compared token by token.
func FoldText(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func alnumUpper(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return b.String()
}
