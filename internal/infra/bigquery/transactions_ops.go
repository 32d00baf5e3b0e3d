package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	transactionsTable = "transactions"
	dateFormat        = "2006-01-02"
)

// InsertTransactionsWithClient inserts a batch of TransactionRow.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// QueryTransactionsByDateRangeWithClient returns archived transactions whose
// completion date falls within [startDate, endDate], oldest first.
func QueryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, datasetID string, startDate, endDate time.Time) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.statement_id,
			t.receipt_no,
			t.completion_ts,
			t.transaction_date,
			t.details,
			t.transaction_status,
			t.paid_in,
			t.withdrawn,
			t.balance,
			t.amount,
			t.category,
			t.statement_line_no,
			t.created_ts
		FROM `+"`%[1]s.%[2]s.%[3]s`"+` t
		INNER JOIN `+"`%[1]s.%[2]s.%[4]s`"+` s
		  ON t.statement_id = s.statement_id
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		ORDER BY t.completion_ts, t.statement_line_no
	`, client.Project(), datasetID, transactionsTable, statementsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
