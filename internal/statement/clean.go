package statement

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/mpesa-insights/internal/categorizer"
	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/shopspring/decimal"
)

// minReceiptLen is the length a receipt number must exceed for a row to be kept.
// Footer and metadata rows carry short or empty values in that column.
const minReceiptLen = 5

// ConflictPolicy decides what happens when two source headers map to the same
// canonical field.
type ConflictPolicy int

const (
	// ConflictLastWins keeps the later column and records the conflict in the report.
	ConflictLastWins ConflictPolicy = iota
	// ConflictReject fails the clean with ErrAmbiguousHeader.
	ConflictReject
)

func (p ConflictPolicy) String() string {
	switch p {
	case ConflictReject:
		return "reject"
	default:
		return "last_wins"
	}
}

// ParseConflictPolicy parses "last_wins" or "reject".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last_wins":
		return ConflictLastWins, nil
	case "reject":
		return ConflictReject, nil
	default:
		return ConflictLastWins, fmt.Errorf("unknown header conflict policy %q", s)
	}
}

// Options configures a Cleaner. The zero value is the lenient default.
type Options struct {
	// Strict drops rows with an unparseable amount or completion time
	// instead of coercing them to zero or null.
	Strict bool

	HeaderConflicts ConflictPolicy
}

// RowWarning describes a coerced or rejected value.
type RowWarning struct {
	Row       int    `json:"row"`
	ReceiptNo string `json:"receipt_no"`
	Field     string `json:"field"`
	Value     string `json:"value"`
	Rejected  bool   `json:"rejected"`
}

// HeaderConflict records two or more source headers competing for one field.
type HeaderConflict struct {
	Field   string   `json:"field"`
	Headers []string `json:"headers"`
	Kept    string   `json:"kept"`
}

// Report summarizes a Clean run.
type Report struct {
	RowsSeen    int              `json:"rows_seen"`
	RowsDropped int              `json:"rows_dropped"`
	Warnings    []RowWarning     `json:"warnings,omitempty"`
	Conflicts   []HeaderConflict `json:"conflicts,omitempty"`
}

// Cleaner maps a RawTable onto the canonical transaction schema.
type Cleaner struct {
	opts        Options
	categorizer *categorizer.Categorizer
}

// NewCleaner creates a Cleaner. A nil categorizer uses the default rules.
func NewCleaner(opts Options, cat *categorizer.Categorizer) *Cleaner {
	if cat == nil {
		cat = categorizer.New()
	}
	return &Cleaner{opts: opts, categorizer: cat}
}

// canonicalField returns the field a source header maps to, or "" when the
// header is not part of the schema. Rules are tried in order; the first wins.
func canonicalField(header string) string {
	h := strings.ToLower(cleanHeader(header))
	switch {
	case strings.Contains(h, "receipt"):
		return domain.FieldReceiptNo
	case strings.Contains(h, "time"), strings.Contains(h, "date"):
		return domain.FieldCompletionTime
	case strings.Contains(h, "details"):
		return domain.FieldDetails
	case strings.Contains(h, "status"):
		return domain.FieldTransactionStatus
	case strings.Contains(h, "paid in"):
		return domain.FieldPaidIn
	case strings.Contains(h, "withdrawn"):
		return domain.FieldWithdrawn
	case strings.Contains(h, "balance"):
		return domain.FieldBalance
	default:
		return ""
	}
}

// Clean converts table into a ledger. Row-level problems never fail the call;
// they are coerced (or, in strict mode, the row is dropped) and listed in the report.
func (c *Cleaner) Clean(ctx context.Context, table *RawTable) (domain.Ledger, *Report, error) {
	log := logger.FromContext(ctx)
	report := &Report{}

	if table == nil {
		return nil, report, newIngestError(ErrParseFailure, "", fmt.Errorf("clean: nil table"))
	}

	mapped := make(map[string]bool)
	for _, h := range table.Headers() {
		if f := canonicalField(h); f != "" {
			mapped[f] = true
		}
	}
	if !mapped[domain.FieldReceiptNo] {
		return nil, report, newIngestError(ErrParseFailure, "",
			fmt.Errorf("clean: mapping headers %q: %w", table.Headers(), ErrMissingReceiptColumn))
	}

	for _, hc := range headerConflicts(table) {
		if c.opts.HeaderConflicts == ConflictReject {
			return nil, report, newIngestError(ErrParseFailure, "",
				fmt.Errorf("clean: field %q claimed by headers %q: %w", hc.Field, hc.Headers, ErrAmbiguousHeader))
		}
		report.Conflicts = append(report.Conflicts, hc)
		log.Warn().
			Str("field", hc.Field).
			Strs("headers", hc.Headers).
			Str("kept", hc.Kept).
			Msg("Multiple columns map to one field, keeping the last")
	}

	ledger := make(domain.Ledger, 0, table.Len())

	for i, raw := range table.Rows {
		report.RowsSeen++

		fields := mapRow(raw)
		receipt := strings.TrimSpace(fields[domain.FieldReceiptNo])
		if utf8.RuneCountInString(receipt) <= minReceiptLen {
			report.RowsDropped++
			continue
		}

		tx, warnings, ok := c.buildTransaction(i, receipt, fields, mapped)
		report.Warnings = append(report.Warnings, warnings...)
		if !ok {
			report.RowsDropped++
			continue
		}
		ledger = append(ledger, tx)
	}

	for _, w := range report.Warnings {
		log.Debug().
			Int("row", w.Row).
			Str("receipt_no", w.ReceiptNo).
			Str("field", w.Field).
			Str("value", w.Value).
			Bool("rejected", w.Rejected).
			Msg("Row value could not be parsed")
	}

	log.Info().
		Int("rows_seen", report.RowsSeen).
		Int("rows_kept", len(ledger)).
		Int("rows_dropped", report.RowsDropped).
		Int("warnings", len(report.Warnings)).
		Msg("Statement cleaned")

	return ledger, report, nil
}

// headerConflicts lists, once per distinct header set, every canonical field
// that more than one column of the same grid maps to. Headers are listed in
// column order, so the last one is the column whose value is kept.
func headerConflicts(table *RawTable) []HeaderConflict {
	seen := make(map[string]bool)
	var conflicts []HeaderConflict

	for _, grid := range table.grids {
		sources := make(map[string][]string)
		for _, h := range grid {
			f := canonicalField(h)
			if f == "" || slices.Contains(sources[f], h) {
				continue
			}
			sources[f] = append(sources[f], h)
		}

		for _, f := range domain.CanonicalFields {
			hs := sources[f]
			if len(hs) < 2 {
				continue
			}
			key := f + "\x00" + strings.Join(hs, "\x00")
			if seen[key] {
				continue
			}
			seen[key] = true
			conflicts = append(conflicts, HeaderConflict{Field: f, Headers: hs, Kept: hs[len(hs)-1]})
		}
	}
	return conflicts
}

// mapRow folds a raw row onto canonical fields. Later columns overwrite earlier ones.
func mapRow(raw RawRow) map[string]string {
	fields := make(map[string]string, len(domain.CanonicalFields))
	for _, cell := range raw {
		if f := canonicalField(cell.Header); f != "" {
			fields[f] = cell.Value
		}
	}
	return fields
}

func (c *Cleaner) buildTransaction(row int, receipt string, fields map[string]string, mapped map[string]bool) (domain.Transaction, []RowWarning, bool) {
	var warnings []RowWarning
	rejected := false

	warn := func(field, value string) {
		warnings = append(warnings, RowWarning{
			Row:       row,
			ReceiptNo: receipt,
			Field:     field,
			Value:     value,
			Rejected:  c.opts.Strict,
		})
		if c.opts.Strict {
			rejected = true
		}
	}

	amount := func(field string) decimal.Decimal {
		d, ok := ParseAmount(fields[field])
		if !ok {
			warn(field, fields[field])
		}
		return d
	}

	paidIn := amount(domain.FieldPaidIn)
	withdrawn := amount(domain.FieldWithdrawn)
	balance := amount(domain.FieldBalance)

	var completed *time.Time
	if mapped[domain.FieldCompletionTime] {
		t, ok := ParseTimestamp(fields[domain.FieldCompletionTime])
		if !ok {
			warn(domain.FieldCompletionTime, fields[domain.FieldCompletionTime])
		}
		completed = t
	}

	if rejected {
		return domain.Transaction{}, warnings, false
	}

	details := fields[domain.FieldDetails]
	return domain.Transaction{
		ReceiptNo:         receipt,
		CompletionTime:    completed,
		Details:           details,
		TransactionStatus: fields[domain.FieldTransactionStatus],
		PaidIn:            paidIn,
		Withdrawn:         withdrawn,
		Balance:           balance,
		Amount:            domain.SignedAmount(paidIn, withdrawn),
		Category:          c.categorizer.Categorize(details),
	}, warnings, true
}
