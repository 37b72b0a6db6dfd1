// Package gridio writes reconciliation results and extracted constraints
// to spreadsheets, JSON and YAML.
package gridio

import (
	"cmp"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/reconcile"
)

// Format is an output file format.
type Format string

// Supported formats.
const (
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", errors.NewValidationError("output", path, "must end in .xlsx, .json or .yaml")
}

// Document is the serialisable form of a reconciliation result.
type Document struct {
	RunID      string               `json:"run_id" yaml:"run_id"`
	Strategy   string               `json:"strategy" yaml:"strategy"`
	StartedAt  time.Time            `json:"started_at" yaml:"started_at"`
	Duration   string               `json:"duration" yaml:"duration"`
	Coverage   float64              `json:"coverage" yaml:"coverage"`
	Statistics reconcile.Statistics `json:"statistics" yaml:"statistics"`
	Headers    []string             `json:"headers" yaml:"headers"`
	Rows       []edi.GridRow        `json:"rows" yaml:"rows"`
	Flags      []edi.Flag           `json:"flags" yaml:"flags"`
	Warnings   []string             `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors     []string             `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewDocument converts r. Flags are ordered by row.
func NewDocument(r *reconcile.Result) *Document {
	doc := &Document{
		RunID:      r.Metadata.RunID,
		Strategy:   r.Metadata.Strategy,
		StartedAt:  r.Metadata.StartTime.UTC(),
		Duration:   r.Metadata.Duration.String(),
		Coverage:   r.Metadata.Stats.Coverage(),
		Statistics: r.Metadata.Stats,
		Headers:    edi.GridHeaders,
		Rows:       []edi.GridRow{},
		Flags:      make([]edi.Flag, 0, len(r.Flags)),
		Warnings:   r.Warnings,
	}
	if r.Grid != nil {
		doc.Rows = r.Grid.Rows
	}
	for _, f := range r.Flags {
		doc.Flags = append(doc.Flags, f)
	}
	slices.SortFunc(doc.Flags, func(a, b edi.Flag) int { return cmp.Compare(a.Row, b.Row) })
	for _, err := range r.Errors {
		doc.Errors = append(doc.Errors, err.Error())
	}
	return doc
}

// Write writes r to path in the format implied by its extension.
func Write(path string, r *reconcile.Result) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	return writeFile(path, func(w io.Writer) error {
		switch format {
		case FormatXLSX:
			return WriteXLSX(w, r)
		case FormatYAML:
			return WriteYAML(w, NewDocument(r))
		default:
			return WriteJSON(w, NewDocument(r))
		}
	})
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return errors.WrapParse("json", "", err)
	}
	return nil
}

// WriteYAML writes v as YAML.
func WriteYAML(w io.Writer, v any) error {
	data, err := yaml.MarshalWithOptions(v,
		yaml.Indent(2),
		yaml.IndentSequence(false),
	)
	if err != nil {
		return errors.WrapParse("yaml", "", err)
	}
	_, err = w.Write(data)
	return err
}

// writeFile creates the parent directory and writes path through fn,
// removing a partially written file on failure.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("mkdir", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions) //nolint:gosec // operator supplied path
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.WrapIO("close", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	return fn(f)
}
