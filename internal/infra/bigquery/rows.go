package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// numericScale is the number of decimal places kept when reading NUMERIC values back.
const numericScale = 2

// StatementMeta describes the source of an archived ledger.
type StatementMeta struct {
	SessionID        string
	OriginalFilename string
	Format           domain.Format
	GCSURI           string
	ChecksumSHA256   string
	RowsSeen         int
	RowsDropped      int
	Warnings         int
}

// NewStatementRow builds the statement record for ledger.
func NewStatementRow(meta StatementMeta, ledger domain.Ledger, now time.Time) *StatementRow {
	row := &StatementRow{
		StatementID:      uuid.NewString(),
		SessionID:        meta.SessionID,
		OriginalFilename: meta.OriginalFilename,
		Format:           string(meta.Format),
		GCSURI:           meta.GCSURI,
		ChecksumSHA256:   meta.ChecksumSHA256,
		RowsSeen:         int64(meta.RowsSeen),
		RowsKept:         int64(ledger.Len()),
		RowsDropped:      int64(meta.RowsDropped),
		Warnings:         int64(meta.Warnings),
		IngestedTS:       now,
	}
	if first, last, ok := ledger.DateRange(); ok {
		row.PeriodStart = bigquery.NullDate{Date: civil.DateOf(first.UTC()), Valid: true}
		row.PeriodEnd = bigquery.NullDate{Date: civil.DateOf(last.UTC()), Valid: true}
	}
	return row
}

// NewTransactionRows maps every transaction of ledger to a warehouse row.
func NewTransactionRows(statementID string, ledger domain.Ledger, now time.Time) []*TransactionRow {
	rows := make([]*TransactionRow, 0, len(ledger))
	for i, tx := range ledger {
		row := &TransactionRow{
			TransactionID:     uuid.NewString(),
			StatementID:       statementID,
			ReceiptNo:         tx.ReceiptNo,
			Details:           tx.Details,
			TransactionStatus: tx.TransactionStatus,
			PaidIn:            tx.PaidIn.Rat(),
			Withdrawn:         tx.Withdrawn.Rat(),
			Balance:           tx.Balance.Rat(),
			Amount:            tx.Amount.Rat(),
			Category:          tx.Category.String(),
			StatementLineNo:   int64(i + 1),
			CreatedTS:         now,
		}
		if tx.CompletionTime != nil {
			ts := tx.CompletionTime.UTC()
			row.CompletionTS = bigquery.NullTimestamp{Timestamp: ts, Valid: true}
			row.TransactionDate = bigquery.NullDate{Date: civil.DateOf(ts), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// ToTransaction converts an archived row back into a ledger entry.
func (r *TransactionRow) ToTransaction() domain.Transaction {
	tx := domain.Transaction{
		ReceiptNo:         r.ReceiptNo,
		Details:           r.Details,
		TransactionStatus: r.TransactionStatus,
		PaidIn:            fromRat(r.PaidIn),
		Withdrawn:         fromRat(r.Withdrawn),
		Balance:           fromRat(r.Balance),
		Amount:            fromRat(r.Amount),
		Category:          domain.Category(r.Category),
	}
	if r.CompletionTS.Valid {
		ts := r.CompletionTS.Timestamp.UTC()
		tx.CompletionTime = &ts
	}
	if !tx.Category.Valid() {
		tx.Category = domain.CategoryOther
	}
	return tx
}

func fromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, numericScale)
}
