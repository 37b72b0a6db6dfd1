// Package docsource extracts plain text from specification documents.
//
// PDF documents are rendered page by page with "--- Page N ---" delimiter
// lines so the chunker can group whole pages. Text and markdown files are
// returned as they are.
package docsource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/logging"
)

// Kind is a supported document format.
type Kind string

// Supported kinds.
const (
	KindText Kind = "text"
	KindPDF  Kind = "pdf"
)

var kinds = map[string]Kind{
	"":          KindText,
	".txt":      KindText,
	".text":     KindText,
	".md":       KindText,
	".markdown": KindText,
	".pdf":      KindPDF,
}

// KindOf returns the kind implied by the file extension.
func KindOf(path string) (Kind, bool) {
	kind, ok := kinds[strings.ToLower(filepath.Ext(path))]
	return kind, ok
}

// Source reads documents from the local filesystem.
type Source struct {
	logger *zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for per-page warnings.
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// New creates a Source.
func New(opts ...Option) *Source {
	s := &Source{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractText returns the text of the document at path. Every failure is a
// *errors.DocumentReadError; a missing file also matches errors.ErrNotFound.
func (s *Source) ExtractText(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errors.NewDocumentReadError(path, errors.Join(errors.ErrNotFound, err))
		}
		return "", errors.NewDocumentReadError(path, err)
	}
	if info.IsDir() {
		return "", errors.NewDocumentReadError(path, errors.NewValidationError("path", path, "is a directory"))
	}

	kind, ok := KindOf(path)
	if !ok {
		return "", errors.NewDocumentReadError(path,
			errors.NewValidationError("path", path, "unsupported document type "+filepath.Ext(path)))
	}

	var text string
	switch kind {
	case KindPDF:
		text, err = s.readPDF(ctx, path)
	default:
		text, err = readText(path)
	}
	if err != nil {
		return "", errors.NewDocumentReadError(path, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.NewDocumentReadError(path, errors.New("no extractable text"))
	}
	return text, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return "", errors.WrapIO("read", path, err)
	}
	return string(data), nil
}

func (s *Source) readPDF(ctx context.Context, path string) (string, error) {
	logger := s.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.WrapParse("pdf", path, err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", errors.Join(errors.ErrCanceled, err)
		}

		fmt.Fprintf(&b, "--- Page %d ---\n", i)
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Int("page", i).Msg("Page text not extractable")
			continue
		}
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteByte('\n')
		}
	}

	logger.Debug().Str("path", path).Int("pages", pages).Msg("Extracted PDF text")
	return b.String(), nil
}
