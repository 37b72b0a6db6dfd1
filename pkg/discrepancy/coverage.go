package discrepancy

import (
	"strings"
	"unicode"

	"github.com/agentstation/edimap/pkg/edi"
)

// Uncovered returns the values that do not appear in rule as whole tokens,
// in the order given. Comparison folds case and compatibility forms.
func Uncovered(rule string, values []string) []string {
	ruleTokens := tokens(rule)
	var out []string
	for _, v := range values {
		if !containsPhrase(ruleTokens, tokens(v)) {
			out = append(out, v)
		}
	}
	return out
}

func tokens(s string) []string {
	return strings.FieldsFunc(edi.FoldText(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether phrase occurs as a contiguous run in words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return true
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
