package extract

import (
	"fmt"
	"strings"

	"github.com/agentstation/edimap/pkg/chunk"
)

// SystemPrompt is sent with every extraction request.
const SystemPrompt = "You are an expert EDI technical specification analyst. " +
	"You extract segment and element rules from vendor implementation guides. Return ONLY valid JSON."

// BuildPrompt renders the extraction request for one chunk.
func BuildPrompt(c chunk.Chunk) string {
	var b strings.Builder
	b.WriteString("Analyze this part of an X12 EDI implementation guide and list every segment it defines.\n\n")
	if c.FirstPage > 0 {
		fmt.Fprintf(&b, "## DOCUMENT TEXT (pages %d-%d):\n", c.FirstPage, c.LastPage)
	} else {
		fmt.Fprintf(&b, "## DOCUMENT TEXT (part %d):\n", c.Index+1)
	}
	b.WriteString(c.Text)
	b.WriteString(`

## TASK:
For each segment found in the text, report its requirement status and each of its elements.
For each element give the requirement status and the exact code values the vendor allows, if any.

## OUTPUT FORMAT - Strict JSON array:
[
  {
    "segment": "BEG",
    "description": "Beginning Segment for Purchase Order",
    "status": "M",
    "fields": [
      {"id": "BEG01", "description": "Transaction Set Purpose Code", "status": "M", "values": ["00"]},
      {"id": "BEG02", "description": "Purchase Order Type Code", "status": "M", "values": ["DS", "SA"]}
    ]
  }
]

## RULES:
1. Use M for mandatory, O for optional, C for conditional and X for not used.
2. Element ids combine the segment code and the two digit position, e.g. N101.
3. Only list code values that appear in the text. Use [] when none are listed.
4. If the text defines no segments, return [].
5. Return ONLY valid JSON, no markdown.
`)
	return b.String()
}
