// Package bigquery archives ingested statements and their transactions in a
// BigQuery dataset. The archive is an optional sink: sessions never read
// from it, only the history command does.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
)

// DefaultDatasetID is used when no dataset is configured.
const DefaultDatasetID = "mpesa"

// ArchiveRepository provides the warehouse operations used by the ingestion
// pipeline and the history command.
type ArchiveRepository interface {
	InsertStatement(ctx context.Context, row *StatementRow) error
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error
	FindStatementByChecksum(ctx context.Context, checksum string) (*StatementRow, error)
	DeleteStatement(ctx context.Context, statementID string) error
	QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*TransactionRow, error)
}

// BigQueryArchiveRepository implements ArchiveRepository with a shared client.
type BigQueryArchiveRepository struct {
	client    *bigquery.Client
	datasetID string
}

// NewBigQueryArchiveRepository creates a repository for projectID.datasetID.
func NewBigQueryArchiveRepository(ctx context.Context, projectID, datasetID string) (*BigQueryArchiveRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryArchiveRepository: project ID is required")
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryArchiveRepository: creating client: %w", err)
	}
	return &BigQueryArchiveRepository{client: client, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryArchiveRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryArchiveRepository) InsertStatement(ctx context.Context, row *StatementRow) error {
	return InsertStatementWithClient(ctx, r.client, r.datasetID, row)
}

func (r *BigQueryArchiveRepository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.datasetID, rows)
}

func (r *BigQueryArchiveRepository) FindStatementByChecksum(ctx context.Context, checksum string) (*StatementRow, error) {
	return FindStatementByChecksumWithClient(ctx, r.client, r.datasetID, checksum)
}

func (r *BigQueryArchiveRepository) DeleteStatement(ctx context.Context, statementID string) error {
	return DeleteStatementWithClient(ctx, r.client, r.datasetID, statementID)
}

func (r *BigQueryArchiveRepository) QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*TransactionRow, error) {
	return QueryTransactionsByDateRangeWithClient(ctx, r.client, r.datasetID, startDate, endDate)
}

var _ ArchiveRepository = (*BigQueryArchiveRepository)(nil)
