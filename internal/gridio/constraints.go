package gridio

import (
	"io"

	"github.com/agentstation/edimap/internal/loaders"
	"github.com/agentstation/edimap/pkg/errors"
)

// WriteConstraints writes extracted constraint records to path as YAML or JSON.
func WriteConstraints(path string, doc loaders.ConstraintDocument) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return errors.NewValidationError("output", path, "constraints are written as .yaml or .json")
	}
	return writeFile(path, func(w io.Writer) error {
		if format == FormatJSON {
			return WriteJSON(w, doc)
		}
		return WriteYAML(w, doc)
	})
}
