package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	StatementID   string `bigquery:"statement_id"`   // REQUIRED

	ReceiptNo       string                 `bigquery:"receipt_no"`       // REQUIRED
	CompletionTS    bigquery.NullTimestamp `bigquery:"completion_ts"`    // NULLABLE
	TransactionDate bigquery.NullDate      `bigquery:"transaction_date"` // NULLABLE, partition column

	Details           string `bigquery:"details"`            // REQUIRED STRING
	TransactionStatus string `bigquery:"transaction_status"` // NULLABLE

	PaidIn    *big.Rat `bigquery:"paid_in"`   // REQUIRED NUMERIC
	Withdrawn *big.Rat `bigquery:"withdrawn"` // REQUIRED NUMERIC
	Balance   *big.Rat `bigquery:"balance"`   // REQUIRED NUMERIC
	Amount    *big.Rat `bigquery:"amount"`    // REQUIRED NUMERIC, signed

	Category string `bigquery:"category"` // REQUIRED

	StatementLineNo int64 `bigquery:"statement_line_no"`

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
