package export

import "fmt"

// Format names a supported export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Dataset defines tabular export content.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     [][]string
}

// Renderer turns a dataset into encoded bytes.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the renderer for f.
func ForFormat(f Format) (Renderer, error) {
	switch f {
	case FormatCSV, "":
		return NewCSVExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

func validate(data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("export requires at least one header")
	}
	for i, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(row), len(data.Headers))
		}
	}
	return nil
}
