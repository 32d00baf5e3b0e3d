package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// StatementRow is one ingested statement file.
type StatementRow struct {
	StatementID string `bigquery:"statement_id"` // REQUIRED
	SessionID   string `bigquery:"session_id"`   // NULLABLE

	OriginalFilename string `bigquery:"original_filename"` // REQUIRED
	Format           string `bigquery:"format"`            // REQUIRED (csv|pdf)
	GCSURI           string `bigquery:"gcs_uri"`           // NULLABLE
	ChecksumSHA256   string `bigquery:"checksum_sha256"`   // REQUIRED

	PeriodStart bigquery.NullDate `bigquery:"period_start"` // NULLABLE
	PeriodEnd   bigquery.NullDate `bigquery:"period_end"`   // NULLABLE

	RowsSeen    int64 `bigquery:"rows_seen"`
	RowsKept    int64 `bigquery:"rows_kept"`
	RowsDropped int64 `bigquery:"rows_dropped"`
	Warnings    int64 `bigquery:"warnings"`

	IngestedTS time.Time `bigquery:"ingested_ts"` // REQUIRED
}
