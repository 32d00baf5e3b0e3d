package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/dvloznov/mpesa-insights/internal/gcsuploader"
	infra "github.com/dvloznov/mpesa-insights/internal/infra/bigquery"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/dvloznov/mpesa-insights/internal/statement"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	SessionID  string
	GCSURI     string
	Filename   string
	FormatHint string

	Data     []byte
	Format   domain.Format
	Checksum string

	Table  *statement.RawTable
	Ledger domain.Ledger
	Report *statement.Report

	ArchiveURI  string
	StatementID string
}

// FetchStatementStep downloads the statement when only a GCS URI was given.
type FetchStatementStep struct {
	Storage StorageService
}

func (s *FetchStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Data != nil {
		return nil
	}
	if state.GCSURI == "" {
		return fmt.Errorf("fetch statement: no data and no GCS URI")
	}
	if s.Storage == nil {
		return fmt.Errorf("fetch statement: storage is not configured")
	}

	data, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return fmt.Errorf("fetch statement: %w", err)
	}
	state.Data = data
	if state.Filename == "" {
		state.Filename = s.Storage.ExtractFilenameFromGCSURI(state.GCSURI)
	}
	return nil
}

// DetectFormatStep resolves the format tag and fingerprints the raw bytes.
// Unknown tags are passed through so normalization reports them.
type DetectFormatStep struct{}

func (s *DetectFormatStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Filename == "" {
		state.Filename = DefaultFilename
	}

	tag := state.FormatHint
	if tag == "" {
		tag = domain.FormatFromFilename(state.Filename)
	}
	if f, err := domain.ParseFormat(tag); err == nil {
		state.Format = f
	} else {
		state.Format = domain.Format(tag)
	}

	state.Checksum = domain.Checksum(state.Data)
	return nil
}

// NormalizeStep turns the raw bytes into a RawTable.
type NormalizeStep struct {
	Normalizer *statement.Normalizer
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	table, err := s.Normalizer.Normalize(ctx, state.Data, state.Format)
	if err != nil {
		return err
	}
	state.Table = table
	return nil
}

// CleanStep maps, cleans and categorizes the RawTable into a Ledger.
type CleanStep struct {
	Cleaner *statement.Cleaner
}

func (s *CleanStep) Execute(ctx context.Context, state *PipelineState) error {
	ledger, report, err := s.Cleaner.Clean(ctx, state.Table)
	if err != nil {
		return err
	}
	state.Ledger = ledger
	state.Report = report
	return nil
}

// ArchiveRawStep copies the raw statement to object storage. Failures are
// logged and do not fail the ingestion.
type ArchiveRawStep struct {
	Storage StorageService
	Bucket  string
}

func (s *ArchiveRawStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Storage == nil || s.Bucket == "" {
		return nil
	}
	// Already in the bucket it came from.
	if strings.HasPrefix(state.GCSURI, "gs://"+s.Bucket+"/") {
		state.ArchiveURI = state.GCSURI
		return nil
	}

	log := logger.FromContext(ctx)
	object := gcsuploader.StatementObjectName(state.Checksum, state.Filename)
	uri, err := s.Storage.UploadBytes(ctx, s.Bucket, object, state.Data, contentTypeFor(state.Format))
	if err != nil {
		log.Warn().Err(err).Str("bucket", s.Bucket).Str("object", object).Msg("raw statement archive failed")
		return nil
	}
	state.ArchiveURI = uri
	log.Debug().Str("gcs_uri", uri).Msg("raw statement archived")
	return nil
}

// WarehouseStep writes the statement and its ledger to the warehouse archive.
// A statement with the same checksum replaces the earlier copy. Failures are
// logged and do not fail the ingestion.
type WarehouseStep struct {
	Repo ArchiveRepository
	Now  func() time.Time
}

func (s *WarehouseStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Repo == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	statementID, err := s.archive(ctx, state)
	if err != nil {
		log.Warn().Err(err).Str("checksum", state.Checksum).Msg("warehouse archive failed")
		return nil
	}
	state.StatementID = statementID
	log.Info().Str("statement_id", statementID).Int("transactions", state.Ledger.Len()).Msg("statement archived")
	return nil
}

func (s *WarehouseStep) archive(ctx context.Context, state *PipelineState) (string, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}

	prev, err := s.Repo.FindStatementByChecksum(ctx, state.Checksum)
	if err != nil {
		return "", fmt.Errorf("archive: looking up checksum: %w", err)
	}
	if prev != nil {
		if err := s.Repo.DeleteStatement(ctx, prev.StatementID); err != nil {
			return "", fmt.Errorf("archive: replacing statement %s: %w", prev.StatementID, err)
		}
	}

	meta := infra.StatementMeta{
		SessionID:        state.SessionID,
		OriginalFilename: state.Filename,
		Format:           state.Format,
		GCSURI:           state.ArchiveURI,
		ChecksumSHA256:   state.Checksum,
	}
	if state.Report != nil {
		meta.RowsSeen = state.Report.RowsSeen
		meta.RowsDropped = state.Report.RowsDropped
		meta.Warnings = len(state.Report.Warnings)
	}

	row := infra.NewStatementRow(meta, state.Ledger, now)
	if err := s.Repo.InsertStatement(ctx, row); err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}
	if err := s.Repo.InsertTransactions(ctx, infra.NewTransactionRows(row.StatementID, state.Ledger, now)); err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}
	return row.StatementID, nil
}

func contentTypeFor(f domain.Format) string {
	if f == domain.FormatPDF {
		return contentTypePDF
	}
	return contentTypeCSV
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
