package semantic

import (
	"encoding/json"
	"fmt"

	"github.com/agentstation/edimap/pkg/edi"
)

// SystemPrompt is sent with every match request.
const SystemPrompt = "You are an EDI/SAP mapping specialist. Return ONLY valid JSON."

type batchField struct {
	Segment     string `json:"sap_segment"`
	Field       string `json:"sap_field"`
	Description string `json:"sap_desc"`
}

// BuildPrompt renders the match request for one batch.
func BuildPrompt(fields []edi.ErpField, catalogue []edi.CatalogueEntry) string {
	input := make([]batchField, len(fields))
	for i, f := range fields {
		input[i] = batchField{Segment: f.SegmentName, Field: f.FieldName, Description: f.FieldDesc}
	}
	cat, _ := json.Marshal(catalogue)
	batch, _ := json.MarshalIndent(input, "", "  ")

	return fmt.Sprintf(`You are an EDI/SAP integration expert.

The SAP IDoc fields below need to be mapped to X12 EDI elements.
First comes the full list of X12 elements defined by the vendor specification,
then the SAP fields that need matches.

## Available X12 Elements:
%s

## SAP Fields to Match:
%s

## TASK:
For each SAP field, find the BEST matching X12 element from the list above.
Match on the meaning of descriptions, field names and domain knowledge.

## OUTPUT FORMAT - Strict JSON array:
[
  {
    "sap_segment": "<sap_segment>",
    "sap_field": "<field_name>",
    "x12_segment": "<matched X12 segment or empty>",
    "x12_element": "<matched X12 element or empty>",
    "x12_description": "<description of matched element>",
    "mapping_rule": "<brief mapping logic>",
    "confidence": "HIGH" | "MEDIUM" | "LOW" | "NONE",
    "reason": "<1-line explanation>"
  }
]

## RULES:
1. If no reasonable match exists, set x12_element to "" and confidence to "NONE".
2. Do NOT force matches. Only match when semantically meaningful.
3. Consider the SAP segment context (E1EDK01 = header, E1EDP01 = item, E1EDKA1 = partner).
4. Only use elements from the list above.
5. Return ONLY valid JSON, no markdown.
`, cat, batch)
}
