// Package statement turns raw M-Pesa statement exports (CSV or PDF) into the
// canonical transaction ledger.
//
// Ingestion happens in two stages. Normalizer.Normalize locates the real
// transaction table in the uploaded bytes and returns a RawTable whose header
// strings are exactly as observed. Cleaner.Clean maps those headers onto the
// canonical schema, drops footer noise, parses amounts and timestamps and
// assigns categories.
package statement

import (
	"context"
	"slices"
	"strings"
)

// RawCell is one observed cell together with the header it was found under.
type RawCell struct {
	Header string
	Value  string
}

// RawRow is a table row in source column order.
type RawRow []RawCell

// Get returns the value of the last cell whose header equals name.
func (r RawRow) Get(name string) (string, bool) {
	val, found := "", false
	for _, c := range r {
		if c.Header == name {
			val, found = c.Value, true
		}
	}
	return val, found
}

// RawTable is the output of the normalizer: ordered rows keyed by the header
// text observed in the source. Headers are not yet canonicalized.
type RawTable struct {
	Rows []RawRow

	headers []string
	grids   [][]string
}

// Headers returns the distinct headers of every grid in first-seen order,
// including grids that contributed no data rows.
func (t *RawTable) Headers() []string {
	out := make([]string, len(t.headers))
	copy(out, t.headers)
	return out
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	return len(t.Rows)
}

func (t *RawTable) appendGrid(headers []string, records [][]string) {
	t.grids = append(t.grids, slices.Clone(headers))
	for _, h := range headers {
		if !slices.Contains(t.headers, h) {
			t.headers = append(t.headers, h)
		}
	}
	for _, rec := range records {
		row := make(RawRow, len(headers))
		for i, h := range headers {
			val := ""
			if i < len(rec) {
				val = rec[i]
			}
			row[i] = RawCell{Header: h, Value: val}
		}
		t.Rows = append(t.Rows, row)
	}
}

// Page is one page of a PDF as returned by a TableExtractor.
// Each grid is a list of rows of cell text; missing cells are empty strings.
type Page struct {
	Number int
	Grids  [][][]string
}

// TableExtractor extracts raw cell grids from every page of a PDF document.
type TableExtractor interface {
	ExtractTables(ctx context.Context, pdf []byte) ([]Page, error)
}

// cleanHeader trims a header and collapses embedded line breaks to single spaces.
func cleanHeader(h string) string {
	h = strings.ReplaceAll(h, "\r\n", "\n")
	h = strings.ReplaceAll(h, "\r", "\n")
	var parts []string
	for _, p := range strings.Split(h, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
