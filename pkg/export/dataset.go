package export

import "fmt"

// Dataset defines tabular export content. Rows are positional and must match Headers in length.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Summary lines are rendered after the table, e.g. "Overall average: 85.00".
	Summary []string
}

// Format identifies a supported rendering.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Valid reports whether the format can be rendered.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatPDF
}

// Renderer turns a dataset into file bytes.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
}

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(row), len(d.Headers))
		}
	}
	return nil
}
