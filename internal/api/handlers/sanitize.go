package handlers

import (
	"html"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// sanitizeFilename reduces a client-supplied upload name to a printable base
// name without markup. The result is echoed back in JSON and in the export's
// Content-Disposition header.
func sanitizeFilename(name string) string {
	// StrictPolicy escapes the text it keeps; only the tag removal is wanted here.
	name = html.UnescapeString(strictPolicy.Sanitize(name))
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if !unicode.IsPrint(r) || r == '"' {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return ""
	}
	return name
}
