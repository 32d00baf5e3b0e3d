package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	infra "github.com/dvloznov/mpesa-insights/internal/infra/bigquery"
	"github.com/dvloznov/mpesa-insights/internal/jobs"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/dvloznov/mpesa-insights/internal/pipeline"
	"github.com/dvloznov/mpesa-insights/internal/session"
	"github.com/dvloznov/mpesa-insights/internal/statement"
	"github.com/rs/zerolog"
)

var statementCSV = strings.Join([]string{
	"M-PESA STATEMENT",
	"Customer Name: Jane Doe",
	"Receipt No.,Completion Time,Details,Transaction Status,Paid In,Withdrawn,Balance",
	`RKA1234567,2024-01-05 10:00:00,Buy Goods Store X,Completed,,500.00,"1,500.00"`,
	`RKB7654321,05-01-2024 12:30:00,Received for Art,Completed,"2,000.00",,"3,500.00"`,
}, "\n")

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
	UploadBytesFunc  func(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error)
	Uploaded         []string
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return []byte(statementCSV), nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return uri[strings.LastIndex(uri, "/")+1:]
}

func (m *MockStorageService) UploadBytes(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error) {
	if m.UploadBytesFunc != nil {
		return m.UploadBytesFunc(ctx, bucket, object, data, contentType)
	}
	m.Uploaded = append(m.Uploaded, object)
	return "gs://" + bucket + "/" + object, nil
}

// MockArchiveRepository records warehouse writes.
type MockArchiveRepository struct {
	Existing     *infra.StatementRow
	InsertErr    error
	Deleted      []string
	Statements   []*infra.StatementRow
	Transactions []*infra.TransactionRow
}

func (m *MockArchiveRepository) FindStatementByChecksum(ctx context.Context, checksum string) (*infra.StatementRow, error) {
	return m.Existing, nil
}

func (m *MockArchiveRepository) DeleteStatement(ctx context.Context, statementID string) error {
	m.Deleted = append(m.Deleted, statementID)
	return nil
}

func (m *MockArchiveRepository) InsertStatement(ctx context.Context, row *infra.StatementRow) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Statements = append(m.Statements, row)
	return nil
}

func (m *MockArchiveRepository) InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error {
	m.Transactions = append(m.Transactions, rows...)
	return nil
}

var (
	_ pipeline.StorageService    = (*MockStorageService)(nil)
	_ pipeline.ArchiveRepository = (*MockArchiveRepository)(nil)
)

func testContext() context.Context {
	return logger.WithContext(context.Background(), zerolog.Nop())
}

func newIngestor(identity session.IdentityPolicy) *pipeline.Ingestor {
	return pipeline.NewIngestor(
		statement.NewNormalizer(nil),
		statement.NewCleaner(statement.Options{}, nil),
		session.NewStore(time.Hour, identity, zerolog.Nop()),
	)
}

func TestIngest_CSV(t *testing.T) {
	ing := newIngestor(session.IdentityFilename)

	res, err := ing.Ingest(testContext(), pipeline.Request{Filename: "Statement.CSV", Data: []byte(statementCSV)})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Format != "csv" || res.Ledger.Len() != 2 || res.Checksum == "" {
		t.Errorf("Ingest() = %+v", res)
	}
	if res.ArchiveURI != "" || res.StatementID != "" {
		t.Errorf("sinks should be skipped when not configured: %+v", res)
	}
}

func TestIngest_FatalErrorsAreSurfacedVerbatim(t *testing.T) {
	ing := newIngestor(session.IdentityFilename)

	tests := []struct {
		name     string
		req      pipeline.Request
		wantKind string
	}{
		{"unsupported format", pipeline.Request{Filename: "statement.xlsx", Data: []byte("x")}, "unsupported_format"},
		{"header not found", pipeline.Request{Filename: "statement.csv", Data: []byte("a,b\n1,2\n")}, "header_not_found"},
		{"pdf without extractor", pipeline.Request{Filename: "statement.pdf", Data: []byte("%PDF")}, "parse_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ing.Ingest(testContext(), tt.req)
			var ingestErr *statement.IngestError
			if !errors.As(err, &ingestErr) {
				t.Fatalf("Ingest() error = %v, want *statement.IngestError", err)
			}
			if err.Error() != ingestErr.Error() {
				t.Errorf("error was wrapped: %q", err)
			}
			if got := statement.ClassifyError(err); got != tt.wantKind {
				t.Errorf("ClassifyError() = %q, want %q", got, tt.wantKind)
			}
		})
	}
}

func TestIngest_ArchiveSinks(t *testing.T) {
	storage := &MockStorageService{}
	repo := &MockArchiveRepository{Existing: &infra.StatementRow{StatementID: "old-statement"}}
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	ing := newIngestor(session.IdentityFilename)
	ing.Storage = storage
	ing.Bucket = "statements-bucket"
	ing.Archive = repo
	ing.Now = func() time.Time { return now }

	res, err := ing.Ingest(testContext(), pipeline.Request{SessionID: "sess-1", Filename: "jan.csv", Data: []byte(statementCSV)})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	wantObject := "statements/" + res.Checksum + "/jan.csv"
	if len(storage.Uploaded) != 1 || storage.Uploaded[0] != wantObject {
		t.Errorf("uploaded = %v, want [%s]", storage.Uploaded, wantObject)
	}
	if res.ArchiveURI != "gs://statements-bucket/"+wantObject {
		t.Errorf("ArchiveURI = %q", res.ArchiveURI)
	}

	if len(repo.Deleted) != 1 || repo.Deleted[0] != "old-statement" {
		t.Errorf("deleted = %v, want the earlier statement replaced", repo.Deleted)
	}
	if len(repo.Statements) != 1 || len(repo.Transactions) != 2 {
		t.Fatalf("archived %d statements, %d transactions", len(repo.Statements), len(repo.Transactions))
	}
	row := repo.Statements[0]
	if row.SessionID != "sess-1" || row.GCSURI != res.ArchiveURI || row.RowsKept != 2 || !row.IngestedTS.Equal(now) {
		t.Errorf("statement row = %+v", row)
	}
	if res.StatementID != row.StatementID || repo.Transactions[0].StatementID != row.StatementID {
		t.Errorf("statement linkage broken: %q vs %q", res.StatementID, row.StatementID)
	}
}

func TestIngest_SinkFailuresAreNotFatal(t *testing.T) {
	ing := newIngestor(session.IdentityFilename)
	ing.Storage = &MockStorageService{
		UploadBytesFunc: func(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error) {
			return "", errors.New("permission denied")
		},
	}
	ing.Bucket = "statements-bucket"
	ing.Archive = &MockArchiveRepository{InsertErr: errors.New("quota exceeded")}

	res, err := ing.Ingest(testContext(), pipeline.Request{Filename: "jan.csv", Data: []byte(statementCSV)})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Ledger.Len() != 2 || res.ArchiveURI != "" || res.StatementID != "" {
		t.Errorf("Ingest() = %+v", res)
	}
}

func TestIngestIntoSession(t *testing.T) {
	ing := newIngestor(session.IdentityFilename)
	ctx := testContext()
	sess := ing.Sessions.Create()

	got, ingested, err := ing.IngestIntoSession(ctx, pipeline.Request{SessionID: sess.ID, Filename: "jan.csv", Data: []byte(statementCSV)})
	if err != nil || !ingested {
		t.Fatalf("IngestIntoSession() = %v, %v", ingested, err)
	}
	if got.Ledger.Len() != 2 || got.Source.Filename != "jan.csv" {
		t.Errorf("session = %+v", got)
	}

	// Same filename: the weak identity key treats it as unchanged.
	_, ingested, err = ing.IngestIntoSession(ctx, pipeline.Request{SessionID: sess.ID, Filename: "jan.csv", Data: []byte("garbage")})
	if err != nil || ingested {
		t.Errorf("IngestIntoSession() same filename = %v, %v; want skipped", ingested, err)
	}

	// A failing file leaves the previous ledger in place.
	_, _, err = ing.IngestIntoSession(ctx, pipeline.Request{SessionID: sess.ID, Filename: "feb.csv", Data: []byte("no header here")})
	if !statement.IsHeaderNotFound(err) {
		t.Fatalf("IngestIntoSession() error = %v, want header not found", err)
	}
	current, _ := ing.Sessions.Get(sess.ID)
	if current.Ledger.Len() != 2 || current.Source.Filename != "jan.csv" {
		t.Errorf("ledger changed after failed ingestion: %+v", current.Source)
	}
}

func TestIngestIntoSession_UnknownSession(t *testing.T) {
	ing := newIngestor(session.IdentityFilename)
	_, _, err := ing.IngestIntoSession(testContext(), pipeline.Request{SessionID: "missing", Filename: "jan.csv", Data: []byte(statementCSV)})
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("IngestIntoSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestHandleJob(t *testing.T) {
	ing := newIngestor(session.IdentityChecksum)
	ing.Storage = &MockStorageService{}
	ctx := testContext()
	sess := ing.Sessions.Create()

	job := &jobs.IngestStatementJob{SessionID: sess.ID, GCSURI: "gs://bucket/statements/jan.csv"}
	if err := ing.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob() error = %v", err)
	}
	if job.Transactions != 2 {
		t.Errorf("Transactions = %d, want 2", job.Transactions)
	}
	current, _ := ing.Sessions.Get(sess.ID)
	if current.Source.Filename != "jan.csv" {
		t.Errorf("Source.Filename = %q, want jan.csv", current.Source.Filename)
	}

	bad := &jobs.IngestStatementJob{SessionID: sess.ID, GCSURI: "gs://bucket/statements/jan.docx"}
	err := ing.HandleJob(ctx, bad)
	if !jobs.IsPermanent(err) || bad.ErrorKind != "unsupported_format" {
		t.Errorf("HandleJob() error = %v, kind = %q", err, bad.ErrorKind)
	}

	orphan := &jobs.IngestStatementJob{SessionID: "missing", GCSURI: "gs://bucket/jan.csv"}
	if err := ing.HandleJob(ctx, orphan); !jobs.IsPermanent(err) {
		t.Errorf("HandleJob() for unknown session error = %v, want permanent", err)
	}

	ing.Storage = &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return nil, errors.New("connection reset")
		},
	}
	if err := ing.HandleJob(ctx, job); err == nil || jobs.IsPermanent(err) {
		t.Errorf("HandleJob() transient error = %v, want retryable", err)
	}
}

func TestHandleJob_ArchiveOnly(t *testing.T) {
	ing := newIngestor(session.IdentityFilename)
	ing.Storage = &MockStorageService{}
	repo := &MockArchiveRepository{}
	ing.Archive = repo

	job := &jobs.IngestStatementJob{GCSURI: "gs://bucket/statements/jan.csv"}
	if err := ing.HandleJob(testContext(), job); err != nil {
		t.Fatalf("HandleJob() error = %v", err)
	}
	if job.Transactions != 2 {
		t.Errorf("Transactions = %d, want 2", job.Transactions)
	}
	if len(repo.Statements) != 1 || len(repo.Transactions) != 2 {
		t.Errorf("archive writes = %d statements, %d transactions", len(repo.Statements), len(repo.Transactions))
	}
	if ing.Sessions.Len() != 0 {
		t.Errorf("archive-only job should not create sessions, have %d", ing.Sessions.Len())
	}
}
