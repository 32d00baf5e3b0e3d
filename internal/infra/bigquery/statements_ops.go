package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const statementsTable = "statements"

// InsertStatementWithClient inserts a single StatementRow.
func InsertStatementWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *StatementRow) error {
	inserter := client.Dataset(datasetID).Table(statementsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertStatement: inserting row: %w", err)
	}
	return nil
}

// FindStatementByChecksumWithClient returns the most recent statement with the
// given checksum, or nil when none exists.
func FindStatementByChecksumWithClient(ctx context.Context, client *bigquery.Client, datasetID, checksum string) (*StatementRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			statement_id,
			session_id,
			original_filename,
			format,
			gcs_uri,
			checksum_sha256,
			period_start,
			period_end,
			rows_seen,
			rows_kept,
			rows_dropped,
			warnings,
			ingested_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE checksum_sha256 = @checksum
		ORDER BY ingested_ts DESC
		LIMIT 1
	`, client.Project(), datasetID, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "checksum", Value: checksum},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindStatementByChecksum: query read: %w", err)
	}

	var row StatementRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindStatementByChecksum: iter next: %w", err)
	}
	return &row, nil
}
