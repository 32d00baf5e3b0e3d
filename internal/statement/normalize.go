package statement

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/dvloznov/mpesa-insights/internal/logger"
)

const (
	// headerScanLines is how many leading lines of a CSV are searched for the header.
	headerScanLines = 20

	csvReceiptToken = "Receipt No."
	csvTimeToken    = "Completion Time"
)

// pdfHeaderTokens must all appear in a grid row for it to be treated as the header.
var pdfHeaderTokens = []string{"receipt", "details", "balance"}

// Normalizer extracts a raw table from statement bytes.
type Normalizer struct {
	extractor TableExtractor
}

// NewNormalizer creates a Normalizer. The extractor is only needed for PDF input.
func NewNormalizer(extractor TableExtractor) *Normalizer {
	return &Normalizer{extractor: extractor}
}

// Normalize locates the transaction table in data according to format.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, format domain.Format) (*RawTable, error) {
	switch format {
	case domain.FormatCSV:
		return n.normalizeCSV(ctx, data)
	case domain.FormatPDF:
		return n.normalizePDF(ctx, data)
	default:
		return nil, newIngestError(ErrUnsupportedFormat, format, fmt.Errorf("please upload a PDF or CSV statement"))
	}
}

func (n *Normalizer) normalizeCSV(ctx context.Context, data []byte) (*RawTable, error) {
	log := logger.FromContext(ctx)
	text := decodeText(data)

	// Well-formed exports start with the header line.
	records, err := readCSV(text)
	if err == nil && len(records) > 0 && hasCanonicalHeader(records[0]) {
		return tableFromRecords(records), nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("Direct CSV parse failed, scanning for header row")
	}

	lines := strings.Split(text, "\n")
	limit := headerScanLines
	if len(lines) < limit {
		limit = len(lines)
	}

	headerRow := -1
	for i := 0; i < limit; i++ {
		if strings.Contains(lines[i], csvReceiptToken) && strings.Contains(lines[i], csvTimeToken) {
			headerRow = i
			break
		}
	}
	if headerRow == -1 {
		return nil, newIngestError(ErrHeaderNotFound, domain.FormatCSV,
			fmt.Errorf("no line containing %q and %q in the first %d lines", csvReceiptToken, csvTimeToken, headerScanLines))
	}

	log.Debug().Int("skipped_lines", headerRow).Msg("Located CSV header row")

	records, err = readCSV(strings.Join(lines[headerRow:], "\n"))
	if err != nil {
		return nil, newIngestError(ErrParseFailure, domain.FormatCSV, fmt.Errorf("normalizeCSV: reading records: %w", err))
	}
	return tableFromRecords(records), nil
}

func (n *Normalizer) normalizePDF(ctx context.Context, data []byte) (*RawTable, error) {
	log := logger.FromContext(ctx)

	if n.extractor == nil {
		return nil, newIngestError(ErrParseFailure, domain.FormatPDF, fmt.Errorf("normalizePDF: no table extractor configured"))
	}

	pages, err := n.extractor.ExtractTables(ctx, data)
	if err != nil {
		return nil, newIngestError(ErrParseFailure, domain.FormatPDF, fmt.Errorf("normalizePDF: extracting tables: %w", err))
	}

	table := &RawTable{}
	matched := 0
	for _, page := range pages {
		for gi, grid := range page.Grids {
			idx := findGridHeader(grid)
			if idx == -1 {
				continue
			}
			matched++

			headers := make([]string, len(grid[idx]))
			for i, h := range grid[idx] {
				headers[i] = cleanHeader(h)
			}
			table.appendGrid(headers, grid[idx+1:])

			log.Debug().
				Int("page", page.Number).
				Int("grid", gi).
				Int("rows", len(grid)-idx-1).
				Msg("Transaction table found")
		}
	}

	if matched == 0 {
		return nil, newIngestError(ErrNoTransactionsFound, domain.FormatPDF,
			fmt.Errorf("none of %d pages contained a table with receipt, details and balance headers", len(pages)))
	}
	return table, nil
}

// findGridHeader returns the index of the first row whose joined text contains
// every PDF header token, or -1.
func findGridHeader(grid [][]string) int {
	for i, row := range grid {
		var parts []string
		for _, cell := range row {
			if cell != "" {
				parts = append(parts, cell)
			}
		}
		joined := strings.ToLower(strings.Join(parts, " "))

		ok := true
		for _, tok := range pdfHeaderTokens {
			if !strings.Contains(joined, tok) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

// decodeText converts statement bytes to text, dropping a UTF-8 BOM, normalizing
// line endings and replacing invalid sequences.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text := strings.ToValidUTF8(string(data), "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func readCSV(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1 // metadata rows have their own widths
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	out := records[:0]
	for _, rec := range records {
		if !blankRecord(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// hasCanonicalHeader reports whether header contains every canonical field name.
func hasCanonicalHeader(header []string) bool {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	for _, f := range domain.CanonicalFields {
		if !present[f] {
			return false
		}
	}
	return true
}

func tableFromRecords(records [][]string) *RawTable {
	table := &RawTable{}
	if len(records) == 0 {
		return table
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	table.appendGrid(headers, records[1:])
	return table
}
