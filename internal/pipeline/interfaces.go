package pipeline

import (
	"context"

	infra "github.com/dvloznov/mpesa-insights/internal/infra/bigquery"
)

// StorageService is the subset of object storage operations used during ingestion.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (string, error)
}

// ArchiveRepository is the subset of warehouse operations used during ingestion.
type ArchiveRepository interface {
	FindStatementByChecksum(ctx context.Context, checksum string) (*infra.StatementRow, error)
	DeleteStatement(ctx context.Context, statementID string) error
	InsertStatement(ctx context.Context, row *infra.StatementRow) error
	InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error
}
