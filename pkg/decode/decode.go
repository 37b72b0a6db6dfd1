// Package decode recovers structured values from text-generation replies.
//
// Replies are often wrapped in code fences, surrounded by prose, cut off
// mid-value, or otherwise malformed. Decoding runs a fixed sequence of
// increasingly lenient stages and returns the first value that parses:
//
//  1. strip an enclosing code fence
//  2. slice from the first opening bracket to the last closer of that kind
//  3. parse directly
//  4. salvage: cut after the last complete element and close open brackets
//  5. fragments: parse individual record objects found anywhere in the text
//
// A DecodeError from this package means "no records", never a fatal condition.
package decode

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/errors"
)

var (
	closedFence = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \\t]*\\r?\\n?(.*?)```")
	openFence   = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \\t]*\\r?\\n?(.*)$")

	// objectStart finds objects that open with a quoted key.
	objectStart = regexp.MustCompile(`\{\s*"`)
)

// Record-shaped fragments must carry one key from each set.
var (
	segmentKeys = []string{"segment", "segment_id", "segment_code", "seg", "tag"}
	fieldsKeys  = []string{"fields", "elements"}
)

// located is the outcome of the locate stages.
type located struct {
	text      string
	salvaged  bool
	fragments []json.RawMessage
}

// Decode returns the largest structured value recoverable from raw. The
// result is a []any or map[string]any as produced by encoding/json.
func Decode(raw string) (any, error) {
	loc, err := locate(raw)
	if err != nil {
		return nil, err
	}

	if loc.fragments != nil {
		out := make([]any, 0, len(loc.fragments))
		for _, frag := range loc.fragments {
			var v any
			if err := json.Unmarshal(frag, &v); err == nil {
				out = append(out, v)
			}
		}
		return out, nil
	}

	var v any
	if err := json.Unmarshal([]byte(loc.text), &v); err != nil {
		return nil, errors.NewDecodeError("parse", raw, constants.SampleLength, err)
	}
	return v, nil
}

// StripFence returns the content of the first fenced block in raw. A fence
// that is opened but never closed yields everything after the opener.
// Text without a fence is returned trimmed.
func StripFence(raw string) string {
	if m := closedFence.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := openFence.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

func locate(raw string) (located, error) {
	body := StripFence(raw)
	candidates := candidatesOf(body)
	if len(candidates) == 0 {
		return located{}, errors.NewDecodeError("locate", raw, constants.SampleLength, errors.New("no opening bracket"))
	}

	// Each bracket kind is parsed and then salvaged before the next one is
	// tried. An empty container is only used when nothing better turns up.
	var fallback string
	for _, c := range candidates {
		if json.Valid([]byte(c.span)) {
			return located{text: c.span}, nil
		}
		repaired, ok := Salvage(c.tail)
		if !ok || !json.Valid([]byte(repaired)) {
			continue
		}
		if !isEmptyContainer(repaired) {
			return located{text: repaired, salvaged: true}, nil
		}
		if fallback == "" {
			fallback = repaired
		}
	}

	if frags := Fragments(body); len(frags) > 0 {
		return located{fragments: frags}, nil
	}
	if fallback != "" {
		return located{text: fallback, salvaged: true}, nil
	}

	return located{}, errors.NewDecodeError("fragments", raw, constants.SampleLength, errors.New("no parseable value"))
}

// candidate is one bracket kind found in a reply. span runs from the first
// opener to the rightmost closer of the same kind; tail runs from the opener
// to the end of the text and is what salvage works on.
type candidate struct {
	start int
	span  string
	tail  string
}

// candidatesOf returns the array and object candidates of text ordered by
// the position of their first opener.
func candidatesOf(text string) []candidate {
	var out []candidate
	for _, kind := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		start := strings.IndexByte(text, kind[0])
		if start < 0 {
			continue
		}
		c := candidate{start: start, span: text[start:], tail: text[start:]}
		if end := strings.LastIndexByte(text, kind[1]); end > start {
			c.span = text[start : end+1]
		}
		out = append(out, c)
	}
	if len(out) == 2 && out[1].start < out[0].start {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

func isEmptyContainer(text string) bool {
	compact := strings.Join(strings.Fields(text), "")
	return compact == "[]" || compact == "{}"
}

// Salvage repairs a value that was cut off or followed by garbage. It scans
// text outside string literals and records every point where an element is
// complete: after a closer, or before a comma. When the scan ends inside an
// array, the text is cut after that array's last complete element (the
// outermost open array wins) and the brackets still open there are closed.
// A truncated list of records therefore keeps its complete leading records
// and drops the partial trailing one. Otherwise the last complete point at
// the shallowest depth is used, which also trims garbage after a complete value.
func Salvage(text string) (string, bool) {
	type cut struct{ pos, depth int }

	var (
		stack     []byte
		opened    []int
		cuts      []cut
		inString  bool
		escaped   bool
		best      = -1
		bestDepth = int(^uint(0) >> 1)
		bestStack []byte
	)

	mark := func(pos int) {
		d := len(stack)
		cuts = append(cuts, cut{pos, d})
		if d <= bestDepth {
			best, bestDepth = pos, d
			bestStack = append(bestStack[:0], stack...)
		}
	}

scan:
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[', '{':
			stack = append(stack, c)
			opened = append(opened, i)
		case ',':
			if len(stack) > 0 {
				mark(i)
			}
		case ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != opener(c) {
				break scan
			}
			stack = stack[:len(stack)-1]
			opened = opened[:len(opened)-1]
			mark(i + 1)
			if len(stack) == 0 {
				break scan
			}
		}
	}

	for k, b := range stack {
		if b != '[' {
			continue
		}
		for j := len(cuts) - 1; j >= 0 && cuts[j].pos > opened[k]; j-- {
			if cuts[j].depth == k+1 {
				return closeAt(text, cuts[j].pos, stack[:k+1]), true
			}
		}
	}

	if best < 0 {
		return "", false
	}
	return closeAt(text, best, bestStack), true
}

func closeAt(text string, pos int, open []byte) string {
	var b strings.Builder
	b.Grow(pos + len(open))
	b.WriteString(strings.TrimRight(text[:pos], " \t\r\n"))
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteByte(closer(open[i]))
	}
	return b.String()
}

// Fragments returns every well-formed object in text that carries a
// segment-like key and a fields-like key. Objects nested inside an accepted
// fragment are not reported separately.
func Fragments(text string) []json.RawMessage {
	var out []json.RawMessage
	next := 0
	for _, loc := range objectStart.FindAllStringIndex(text, -1) {
		start := loc[0]
		if start < next {
			continue
		}
		end, ok := balancedEnd(text, start)
		if !ok {
			continue
		}
		frag := []byte(text[start:end])
		if !json.Valid(frag) || !isRecord(frag) {
			continue
		}
		out = append(out, json.RawMessage(frag))
		next = end
	}
	return out
}

func isRecord(frag []byte) bool {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(frag, &members); err != nil {
		return false
	}
	return hasAnyKey(members, segmentKeys) && hasAnyKey(members, fieldsKeys)
}

func hasAnyKey(members map[string]json.RawMessage, keys []string) bool {
	for k := range members {
		for _, want := range keys {
			if strings.EqualFold(k, want) {
				return true
			}
		}
	}
	return false
}

// balancedEnd returns the index just past the bracket that closes the one
// at start.
func balancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}

func opener(c byte) byte {
	if c == ']' {
		return '['
	}
	return '{'
}

func closer(c byte) byte {
	if c == '[' {
		return ']'
	}
	return '}'
}

// isArray reports whether raw holds a JSON array.
func isArray(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// isObject reports whether raw holds a JSON object.
func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
