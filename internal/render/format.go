package render

import "fmt"

// Format selects the output file format for a finished plot.
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
	FormatSVG Format = "svg"
)

// ValidFormats contains all supported output formats.
var ValidFormats = []Format{FormatPNG, FormatPDF, FormatSVG}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range ValidFormats {
		if s == string(f) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q: want png, pdf or svg", s)
}

// Ext returns the file extension for the format, with the dot.
func (f Format) Ext() string {
	return "." + string(f)
}
