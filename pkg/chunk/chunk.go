// Package chunk splits extracted document text into pieces small enough for
// a single text-generation request.
//
// Text carrying page delimiters ("--- Page N ---" lines, or form feeds) is
// grouped a fixed number of pages at a time. Text without delimiters is cut
// into fixed-size character slices with no overlap. Concatenating the chunks
// of a document always reproduces the document.
package chunk

import (
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agentstation/edimap/pkg/constants"
)

var pageDelimiter = regexp.MustCompile(`(?m)^[ \t]*-{3,}[ \t]*Page[ \t]+(\d+)[ \t]*-{3,}[ \t]*$`)

// Chunk is one request-sized piece of a document.
type Chunk struct {
	// Index is the position of the chunk in its sequence, starting at 0.
	Index int
	// FirstPage and LastPage are the page span, or zero when the text had no pages.
	FirstPage int
	LastPage  int
	Text      string
}

// Chunker produces chunks under a page or character budget.
type Chunker struct {
	pagesPerChunk int
	maxChars      int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithPagesPerChunk sets the page budget. Values below 1 are ignored.
func WithPagesPerChunk(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.pagesPerChunk = n
		}
	}
}

// WithMaxChars sets the slice size used for undelimited text. Values below 1 are ignored.
func WithMaxChars(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// New creates a Chunker with the default budgets.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		pagesPerChunk: constants.DefaultPagesPerChunk,
		maxChars:      constants.DefaultChunkChars,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunks returns the chunks of text as a lazy sequence. The sequence can be
// ranged over any number of times; each pass recomputes it from text.
// Chunks holding only whitespace are not produced.
func (c *Chunker) Chunks(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if pages := splitPages(text); len(pages) > 0 {
			c.byPages(text, pages, yield)
			return
		}
		c.byChars(text, yield)
	}
}

// Split collects every chunk of text.
func (c *Chunker) Split(text string) []Chunk {
	return slices.Collect(c.Chunks(text))
}

type page struct {
	number     int
	start, end int
}

func (c *Chunker) byPages(text string, pages []page, yield func(Chunk) bool) {
	index := 0
	for i := 0; i < len(pages); i += c.pagesPerChunk {
		j := min(i+c.pagesPerChunk, len(pages)) - 1
		body := text[pages[i].start:pages[j].end]
		if strings.TrimSpace(body) == "" {
			continue
		}
		ch := Chunk{
			Index:     index,
			FirstPage: pages[i].number,
			LastPage:  pages[j].number,
			Text:      body,
		}
		if !yield(ch) {
			return
		}
		index++
	}
}

func (c *Chunker) byChars(text string, yield func(Chunk) bool) {
	index := 0
	for start := 0; start < len(text); {
		end := start
		for n := 0; n < c.maxChars && end < len(text); n++ {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
		}
		body := text[start:end]
		start = end
		if strings.TrimSpace(body) == "" {
			continue
		}
		if !yield(Chunk{Index: index, Text: body}) {
			return
		}
		index++
	}
}

// splitPages returns contiguous page spans covering all of text, or nil when
// text has no page delimiters. Text before the first delimiter belongs to
// the first page.
func splitPages(text string) []page {
	if locs := pageDelimiter.FindAllStringSubmatchIndex(text, -1); len(locs) > 0 {
		pages := make([]page, len(locs))
		for i, loc := range locs {
			number, _ := strconv.Atoi(text[loc[2]:loc[3]])
			pages[i] = page{number: number, start: loc[0]}
			if i > 0 {
				pages[i-1].end = loc[0]
			}
		}
		pages[0].start = 0
		pages[len(pages)-1].end = len(text)
		return pages
	}

	if !strings.ContainsRune(text, '\f') {
		return nil
	}
	var pages []page
	start := 0
	for start < len(text) {
		end := len(text)
		if ff := strings.IndexByte(text[start:], '\f'); ff >= 0 {
			end = start + ff + 1
		}
		pages = append(pages, page{number: len(pages) + 1, start: start, end: end})
		start = end
	}
	return pages
}
