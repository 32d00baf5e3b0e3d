// Package export writes ledgers as delimited text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// TimeLayout is the completion time format used in exported files.
const TimeLayout = "2006-01-02 15:04:05"

// WriteCSV writes ledger with the canonical column headers, the derived
// Amount and Category columns last. The output can be ingested again as a
// CSV statement.
func WriteCSV(w io.Writer, ledger domain.Ledger) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(domain.ExportColumns); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}

	for i, tx := range ledger {
		if err := cw.Write(record(tx)); err != nil {
			return fmt.Errorf("WriteCSV: row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}

func record(tx domain.Transaction) []string {
	completed := ""
	if tx.CompletionTime != nil {
		completed = tx.CompletionTime.UTC().Format(TimeLayout)
	}
	return []string{
		tx.ReceiptNo,
		completed,
		tx.Details,
		tx.TransactionStatus,
		money(tx.PaidIn),
		money(tx.Withdrawn),
		money(tx.Balance),
		money(tx.Amount),
		tx.Category.String(),
	}
}

// money formats d with two decimal places, or with every place d carries
// when it is more precise than a cent.
func money(d decimal.Decimal) string {
	places := int32(2)
	if exp := -d.Exponent(); exp > places {
		places = exp
	}
	return d.StringFixed(places)
}

// Filename returns the download name for an export of the named statement.
func Filename(statement string) string {
	if statement == "" {
		return "mpesa_transactions.csv"
	}
	return fmt.Sprintf("mpesa_transactions_%s.csv", stem(statement))
}

func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
