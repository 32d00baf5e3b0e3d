package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Canonical field names. These are the column headers used on export and the
// names every parsed statement row is mapped onto.
const (
	FieldReceiptNo         = "Receipt No."
	FieldCompletionTime    = "Completion Time"
	FieldDetails           = "Details"
	FieldTransactionStatus = "Transaction Status"
	FieldPaidIn            = "Paid In"
	FieldWithdrawn         = "Withdrawn"
	FieldBalance           = "Balance"
	FieldAmount            = "Amount"
	FieldCategory          = "Category"
)

// CanonicalFields is the seven-field statement schema in column order.
var CanonicalFields = []string{
	FieldReceiptNo,
	FieldCompletionTime,
	FieldDetails,
	FieldTransactionStatus,
	FieldPaidIn,
	FieldWithdrawn,
	FieldBalance,
}

// ExportColumns is the canonical schema followed by the derived fields.
var ExportColumns = append(append([]string{}, CanonicalFields...), FieldAmount, FieldCategory)

// Transaction represents one canonical statement row.
// Amount is derived from the two legs: PaidIn when PaidIn > 0, otherwise -Withdrawn.
type Transaction struct {
	ReceiptNo         string          `json:"receipt_no"`
	CompletionTime    *time.Time      `json:"completion_time"` // nil when the source value could not be parsed
	Details           string          `json:"details"`
	TransactionStatus string          `json:"transaction_status"`
	PaidIn            decimal.Decimal `json:"paid_in"`
	Withdrawn         decimal.Decimal `json:"withdrawn"`
	Balance           decimal.Decimal `json:"balance"`
	Amount            decimal.Decimal `json:"amount"`
	Category          Category        `json:"category"`
}

// SignedAmount derives the signed amount from the credit and debit legs.
func SignedAmount(paidIn, withdrawn decimal.Decimal) decimal.Decimal {
	if paidIn.IsPositive() {
		return paidIn
	}
	return withdrawn.Neg()
}

// IsIncome reports whether the transaction is a credit.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

// IsExpense reports whether the transaction is a debit.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// Ledger is the ordered set of transactions produced by one ingestion run.
// Duplicate receipt numbers are kept as distinct entries.
type Ledger []Transaction

// Len returns the number of transactions.
func (l Ledger) Len() int {
	return len(l)
}

// Filter returns a new ledger holding the transactions for which keep returns true.
// The receiver is never modified.
func (l Ledger) Filter(keep func(Transaction) bool) Ledger {
	out := make(Ledger, 0, len(l))
	for _, tx := range l {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// DateRange returns the earliest and latest completion times in the ledger.
// ok is false when no transaction carries a completion time.
func (l Ledger) DateRange() (first, last time.Time, ok bool) {
	for _, tx := range l {
		if tx.CompletionTime == nil {
			continue
		}
		ts := *tx.CompletionTime
		if !ok {
			first, last, ok = ts, ts, true
			continue
		}
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	return first, last, ok
}
