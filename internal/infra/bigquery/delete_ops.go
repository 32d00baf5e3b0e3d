package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// DeleteStatementWithClient removes a statement and its transactions.
// Transactions go first so a partial failure never leaves orphaned rows.
func DeleteStatementWithClient(ctx context.Context, client *bigquery.Client, datasetID, statementID string) error {
	for _, table := range []string{transactionsTable, statementsTable} {
		if err := deleteByStatementID(ctx, client, datasetID, table, statementID); err != nil {
			return fmt.Errorf("DeleteStatement: deleting from %s: %w", table, err)
		}
	}
	return nil
}

func deleteByStatementID(ctx context.Context, client *bigquery.Client, datasetID, table, statementID string) error {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM `+"`%s.%s.%s`"+`
		WHERE statement_id = @statement_id
	`, client.Project(), datasetID, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: statementID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
