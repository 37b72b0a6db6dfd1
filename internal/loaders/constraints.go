package loaders

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
)

// ConstraintDocument is the on-disk form of extracted constraint records.
type ConstraintDocument struct {
	Source   string                 `json:"source,omitempty" yaml:"source,omitempty"`
	Segments []edi.ConstraintRecord `json:"segments" yaml:"segments"`
}

// LoadConstraints reads constraint records saved by a previous extraction,
// either as a ConstraintDocument or as a bare list of records.
func LoadConstraints(path string) ([]edi.ConstraintRecord, error) {
	if err := checkFile("constraints", path); err != nil {
		return nil, err
	}
	format, ok := FormatOf(path)
	if !ok || format == FormatXLSX {
		return nil, errors.NewValidationError("constraints", path, "must be .yaml or .json")
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var records []edi.ConstraintRecord
	if err := yaml.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var doc ConstraintDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse(string(format), path, err)
	}
	return doc.Segments, nil
}
