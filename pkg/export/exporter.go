package export

import (
	"fmt"
	"strings"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Formats lists the supported formats.
var Formats = []Format{FormatCSV, FormatPDF, FormatXLSX}

// Exporter renders a dataset into a file body.
type Exporter interface {
	Render(data Dataset) ([]byte, error)
	Extension() string
	ContentType() string
}

// ForFormat returns the exporter registered for the given format name.
func ForFormat(name string) (Exporter, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatCSV:
		return NewCSVExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	case FormatXLSX:
		return NewXLSXExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", name)
	}
}
