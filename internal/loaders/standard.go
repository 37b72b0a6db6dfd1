package loaders

import (
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
)

// Standard mapping headers.
const (
	HeaderWireSegment = "X12_Segment"
	HeaderWireElement = "X12_Element"
	HeaderWireDesc    = "Element_Description"
	HeaderErpSegment  = "SAP_IDoc_Segment"
	HeaderErpField    = "SAP_Field"
	HeaderMappingRule = "Mapping_Rule"
	HeaderNotes       = "Notes"
)

// LoadStandard reads the standard mapping table. Rows without a wire
// segment or element are skipped. Every failure matches
// errors.ErrStandardMissing, which callers treat as fatal.
func LoadStandard(path string, opts ...Option) ([]edi.StandardMapping, error) {
	mappings, err := loadStandard(path, opts)
	if err != nil {
		return nil, errors.Join(errors.ErrStandardMissing, err)
	}
	return mappings, nil
}

func loadStandard(path string, opts []Option) ([]edi.StandardMapping, error) {
	if err := checkFile("standard mapping", path); err != nil {
		return nil, err
	}

	format, ok := FormatOf(path)
	if !ok {
		return nil, errors.NewValidationError("standard.path", path, "must be .xlsx, .yaml or .json")
	}
	if format != FormatXLSX {
		return loadStandardDocument(path, format)
	}

	o := applyOptions(opts)
	if o.sheet == "" {
		o.sheet = constants.MappingSheet
	}
	rows, err := readSheet(path, o.sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewParseError("xlsx", path, "sheet "+o.sheet+" is empty", nil)
	}

	cols := newColumns(rows[0])
	if missing := cols.missing(HeaderWireSegment, HeaderWireElement, HeaderErpSegment, HeaderErpField); len(missing) > 0 {
		return nil, errors.NewParseError("xlsx", path, "missing columns: "+strings.Join(missing, ", "), nil)
	}

	mappings := make([]edi.StandardMapping, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		m := edi.StandardMapping{
			WireSegment: cols.get(row, HeaderWireSegment),
			WireElement: cols.get(row, HeaderWireElement),
			ElementDesc: cols.get(row, HeaderWireDesc),
			ErpSegment:  cols.get(row, HeaderErpSegment),
			ErpField:    cols.get(row, HeaderErpField),
			MappingRule: cols.get(row, HeaderMappingRule),
			Notes:       cols.get(row, HeaderNotes),
		}
		if m.WireSegment == "" || m.WireElement == "" {
			continue
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func loadStandardDocument(path string, format Format) ([]edi.StandardMapping, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var mappings []edi.StandardMapping
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		var doc struct {
			Mappings []edi.StandardMapping `yaml:"mappings"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.WrapParse(string(format), path, err)
		}
		mappings = doc.Mappings
	}

	out := mappings[:0]
	for _, m := range mappings {
		if strings.TrimSpace(m.WireSegment) == "" || strings.TrimSpace(m.WireElement) == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
