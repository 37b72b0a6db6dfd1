// Package edi defines the data model shared by the extraction and
// reconciliation stages: ERP target fields, standard wire mappings,
// constraints extracted from vendor specifications, and the output grid.
package edi

import "strings"

// ResolutionSource records which evidence produced a grid row.
type ResolutionSource string

// Resolution sources, strongest first.
const (
	SourceStandardConstrained ResolutionSource = "STANDARD+CONSTRAINED"
	SourceStandard            ResolutionSource = "STANDARD"
	SourceAIMatch             ResolutionSource = "AI_MATCH"
	SourceUnmapped            ResolutionSource = "UNMAPPED"
)

// Sources lists every resolution source in reporting order.
var Sources = []ResolutionSource{
	SourceStandardConstrained,
	SourceStandard,
	SourceAIMatch,
	SourceUnmapped,
}

// Confidence is the tier attached to a resolved row.
type Confidence string

// Confidence tiers.
const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
	ConfidenceNone   Confidence = "NONE"
)

// ParseConfidence maps a backend label onto a tier. Labels that are
// missing or unrecognised become LOW; only an explicit NONE is NONE.
func ParseConfidence(label string) Confidence {
	switch Confidence(strings.ToUpper(strings.TrimSpace(label))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	case ConfidenceNone:
		return ConfidenceNone
	default:
		return ConfidenceLow
	}
}

// ErpField is one field of the ERP record layout (an IDoc segment field).
type ErpField struct {
	SegmentName string `json:"segment_name" yaml:"segment_name"`
	SegmentDesc string `json:"segment_desc,omitempty" yaml:"segment_desc,omitempty"`
	FieldName   string `json:"field_name" yaml:"field_name"`
	FieldDesc   string `json:"field_desc,omitempty" yaml:"field_desc,omitempty"`
	DataType    string `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	Length      string `json:"length,omitempty" yaml:"length,omitempty"`
}

// Key returns the field's identity.
func (f ErpField) Key() ErpKey {
	return NewErpKey(f.SegmentName, f.FieldName)
}

// StandardMapping is a curated correspondence between a wire element and an ERP field.
type StandardMapping struct {
	WireSegment string `json:"x12_segment" yaml:"x12_segment"`
	WireElement string `json:"x12_element" yaml:"x12_element"`
	ElementDesc string `json:"element_description,omitempty" yaml:"element_description,omitempty"`
	ErpSegment  string `json:"sap_segment" yaml:"sap_segment"`
	ErpField    string `json:"sap_field" yaml:"sap_field"`
	MappingRule string `json:"mapping_rule,omitempty" yaml:"mapping_rule,omitempty"`
	Notes       string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ErpKey returns the reverse-lookup key of the mapping.
func (m StandardMapping) ErpKey() ErpKey {
	return NewErpKey(m.ErpSegment, m.ErpField)
}

// ElementKey returns the wire identity of the mapping.
func (m StandardMapping) ElementKey() ElementKey {
	return NewElementKey(m.WireSegment, m.WireElement)
}

// FieldConstraint is what a vendor specification says about one element.
type FieldConstraint struct {
	ElementID   string   `json:"id" yaml:"id"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string   `json:"status,omitempty" yaml:"status,omitempty"`
	Values      []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// ConstraintRecord groups the constraints of one wire segment.
type ConstraintRecord struct {
	Segment     string            `json:"segment" yaml:"segment"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string            `json:"status,omitempty" yaml:"status,omitempty"`
	Fields      []FieldConstraint `json:"fields" yaml:"fields"`
}

// CatalogueEntry is one (segment, element, description) triple offered to the
// semantic matcher.
type CatalogueEntry struct {
	Segment     string `json:"seg"`
	Element     string `json:"elem"`
	Description string `json:"desc"`
}

// MatchCandidate is a semantic match proposed for an unmapped ERP field.
type MatchCandidate struct {
	WireSegment string
	WireElement string
	ElementDesc string
	MappingRule string
	Confidence  Confidence
	Reason      string
}

// FlagCandidate is a confirmed row whose mapping rule must be checked
// against the allowed values of its element.
type FlagCandidate struct {
	Row         int
	WireSegment string
	WireElement string
	MappingRule string
	Values      []string
}

// Flag records allowed values that a mapping rule does not account for.
type Flag struct {
	Row             int      `json:"row" yaml:"row"`
	Column          int      `json:"col" yaml:"col"`
	WireElement     string   `json:"x12_element,omitempty" yaml:"x12_element,omitempty"`
	UncoveredValues []string `json:"uncovered_values" yaml:"uncovered_values"`
	Reason          string   `json:"reason" yaml:"reason"`
}
