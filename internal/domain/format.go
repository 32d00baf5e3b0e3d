package domain

import (
	"fmt"
	"strings"
)

// Format is the declared encoding of an uploaded statement.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat converts a format tag into a Format. Tags are case-insensitive.
func ParseFormat(tag string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(tag))); f {
	case FormatCSV, FormatPDF:
		return f, nil
	default:
		return Format(tag), fmt.Errorf("unknown statement format %q", tag)
	}
}

// FormatFromFilename derives the format tag from the text after the last dot.
// The returned tag is not validated; pass it through ParseFormat.
func FormatFromFilename(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx == -1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
