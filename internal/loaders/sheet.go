// Package loaders reads the ERP field definitions, the standard mapping
// table and saved constraint records from spreadsheets and YAML/JSON files.
package loaders

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/agentstation/edimap/pkg/errors"
)

// Format is an input file format.
type Format string

// Supported formats.
const (
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf returns the format implied by the file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

type options struct {
	sheet string
}

// Option configures a loader.
type Option func(*options)

// WithSheet selects the worksheet to read.
func WithSheet(name string) Option {
	return func(o *options) { o.sheet = strings.TrimSpace(name) }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// checkFile reports a missing file as a NotFoundError.
func checkFile(kind, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.NewNotFoundError(kind, path)
		}
		return errors.WrapIO("stat", path, err)
	}
	if info.IsDir() {
		return errors.NewValidationError("path", path, "is a directory")
	}
	return nil
}

// readSheet returns all rows of a worksheet. An empty sheet name selects
// the first sheet.
func readSheet(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.WrapParse("xlsx", path, err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.NewParseError("xlsx", path, "workbook has no sheets", nil)
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, errors.NewNotFoundError("sheet", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.WrapParse("xlsx", path, err)
	}
	return rows, nil
}

// columns maps normalised header names to their position.
type columns map[string]int

func headerKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == ' ' || r == '_' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func newColumns(header []string) columns {
	c := make(columns, len(header))
	for i, h := range header {
		k := headerKey(h)
		if _, dup := c[k]; !dup && k != "" {
			c[k] = i
		}
	}
	return c
}

// missing returns the required headers absent from c.
func (c columns) missing(required ...string) []string {
	var out []string
	for _, name := range required {
		if _, ok := c[headerKey(name)]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// get returns the trimmed cell under header, or "" when the row is short
// or the column is absent.
func (c columns) get(row []string, header string) string {
	i, ok := c[headerKey(header)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
