package loaders

import (
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
)

// ERP definition headers.
const (
	HeaderSegmentName = "Segment name"
	HeaderSegmentDesc = "Segment description"
	HeaderElementName = "Element name"
	HeaderElementDesc = "Element description"
	HeaderDataType    = "Data type"
	HeaderLength      = "External length"
)

// LoadErpFields reads the ERP field definitions in file order. Rows without
// a segment or element name are skipped.
func LoadErpFields(path string, opts ...Option) ([]edi.ErpField, error) {
	if err := checkFile("erp definition", path); err != nil {
		return nil, err
	}

	format, ok := FormatOf(path)
	if !ok {
		return nil, errors.NewValidationError("erp.path", path, "must be .xlsx, .yaml or .json")
	}
	if format != FormatXLSX {
		return loadErpDocument(path)
	}

	o := applyOptions(opts)
	rows, err := readSheet(path, o.sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := newColumns(rows[0])
	if missing := cols.missing(HeaderSegmentName, HeaderElementName); len(missing) > 0 {
		return nil, errors.NewParseError("xlsx", path, "missing columns: "+strings.Join(missing, ", "), nil)
	}

	fields := make([]edi.ErpField, 0, len(rows)-1)
	for _, row := range rows[1:] {
		f := edi.ErpField{
			SegmentName: cols.get(row, HeaderSegmentName),
			SegmentDesc: cols.get(row, HeaderSegmentDesc),
			FieldName:   cols.get(row, HeaderElementName),
			FieldDesc:   cols.get(row, HeaderElementDesc),
			DataType:    cols.get(row, HeaderDataType),
			Length:      cols.get(row, HeaderLength),
		}
		if f.SegmentName == "" || f.FieldName == "" {
			continue
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func loadErpDocument(path string) ([]edi.ErpField, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var doc struct {
		Fields []edi.ErpField `yaml:"fields"`
	}
	var fields []edi.ErpField
	if err := yaml.Unmarshal(data, &fields); err != nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.WrapParse(string(mustFormat(path)), path, err)
		}
		fields = doc.Fields
	}

	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f.SegmentName) == "" || strings.TrimSpace(f.FieldName) == "" {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func mustFormat(path string) Format {
	f, _ := FormatOf(path)
	return f
}
