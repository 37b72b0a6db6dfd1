package discrepancy

import (
	"encoding/json"
	"fmt"
)

// SystemPrompt is sent with every flagging request.
const SystemPrompt = "You are an EDI mapping validation expert. Return ONLY valid JSON."

type requestItem struct {
	Row         int      `json:"row_idx"`
	WireElement string   `json:"x12_element"`
	MappingRule string   `json:"mapping_rule"`
	Values      []string `json:"spec_values"`
}

// BuildPrompt renders the flagging request.
func BuildPrompt(items []requestItem) string {
	body, _ := json.MarshalIndent(items, "", "  ")
	return fmt.Sprintf(`You are an EDI mapping validator.

Below is a list of X12 elements that have a standard mapping rule AND a set of
values allowed by the vendor specification.
For each item, check whether ALL the allowed values are covered by the mapping rule.

## Items to check:
%s

## TASK:
For each item, compare "spec_values" against "mapping_rule".
- If the mapping rule mentions or handles ALL the values, the item is clean.
- If the specification has values that the mapping rule does not mention or handle, flag it.

## OUTPUT - Strict JSON array:
[
  {
    "row_idx": <number>,
    "flagged": true/false,
    "uncovered_values": ["AB", "CD"],
    "reason": "Specification allows AB, CD for <element> but the mapping rule only covers TE and FX."
  }
]

## RULES:
1. Only flag items with a genuine gap: allowed values the rule does not handle.
2. A rule that passes the inbound value through unchanged covers every value.
3. The reason must be a single clear line explaining what is missing.
4. Return ONLY valid JSON, no markdown.
`, body)
}
