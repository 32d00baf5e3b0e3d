// Package pipeline runs statement ingestion: fetch, normalize, clean and
// categorize, then the optional archive sinks. A successful run replaces the
// session's active ledger; a failed run leaves it untouched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/jobs"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/dvloznov/mpesa-insights/internal/session"
	"github.com/dvloznov/mpesa-insights/internal/statement"
)

// Ingestor wires the ingestion steps to their collaborators.
type Ingestor struct {
	Normalizer *statement.Normalizer
	Cleaner    *statement.Cleaner
	Sessions   *session.Store

	// Optional sinks.
	Storage StorageService
	Bucket  string
	Archive ArchiveRepository

	Now func() time.Time
}

// NewIngestor creates an Ingestor without archive sinks.
func NewIngestor(normalizer *statement.Normalizer, cleaner *statement.Cleaner, sessions *session.Store) *Ingestor {
	return &Ingestor{
		Normalizer: normalizer,
		Cleaner:    cleaner,
		Sessions:   sessions,
	}
}

func (i *Ingestor) pipeline() *Pipeline {
	return NewPipeline(
		&FetchStatementStep{Storage: i.Storage},
		&DetectFormatStep{},
		&NormalizeStep{Normalizer: i.Normalizer},
		&CleanStep{Cleaner: i.Cleaner},
		&ArchiveRawStep{Storage: i.Storage, Bucket: i.Bucket},
		&WarehouseStep{Repo: i.Archive, Now: i.Now},
	)
}

// Ingest runs the pipeline for req without touching any session.
// Fatal statement errors are returned as *statement.IngestError.
func (i *Ingestor) Ingest(ctx context.Context, req Request) (*Result, error) {
	state := &PipelineState{
		SessionID:  req.SessionID,
		GCSURI:     req.GCSURI,
		Filename:   req.Filename,
		FormatHint: req.Format,
		Data:       req.Data,
	}

	log := logger.FromContext(ctx)
	start := time.Now()

	if err := i.pipeline().Execute(ctx, state); err != nil {
		var ingestErr *statement.IngestError
		if errors.As(err, &ingestErr) {
			log.Warn().
				Str("filename", state.Filename).
				Str("kind", statement.ClassifyError(err)).
				Err(ingestErr).
				Msg("statement rejected")
			return nil, ingestErr
		}
		return nil, fmt.Errorf("Ingest: %w", err)
	}

	log.Info().
		Str("filename", state.Filename).
		Str("format", string(state.Format)).
		Int("transactions", state.Ledger.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("statement ingested")

	return &Result{
		Filename:    state.Filename,
		Format:      state.Format,
		Checksum:    state.Checksum,
		Ledger:      state.Ledger,
		Report:      state.Report,
		ArchiveURI:  state.ArchiveURI,
		StatementID: state.StatementID,
		Data:        state.Data,
	}, nil
}

// IngestIntoSession ingests req and installs the ledger as the session's
// active ledger. When the file matches the one already loaded, per the
// store's identity policy, the current session is returned unchanged and
// ingested is false.
func (i *Ingestor) IngestIntoSession(ctx context.Context, req Request) (sess *session.Session, ingested bool, err error) {
	if i.Sessions == nil {
		return nil, false, fmt.Errorf("IngestIntoSession: no session store")
	}
	ctx = logger.WithSession(ctx, req.SessionID)

	if req.Data != nil {
		needed, err := i.Sessions.NeedsIngest(req.SessionID, req.Filename, req.Data)
		if err != nil {
			return nil, false, err
		}
		if !needed {
			sess, err := i.Sessions.Get(req.SessionID)
			return sess, false, err
		}
	} else if _, err := i.Sessions.Get(req.SessionID); err != nil {
		return nil, false, err
	}

	res, err := i.Ingest(ctx, req)
	if err != nil {
		return nil, false, err
	}

	src := i.Sessions.NewSource(res.Filename, res.Format, res.Data)
	sess, err = i.Sessions.Replace(req.SessionID, src, res.Ledger, res.Report)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// HandleJob is a jobs.JobHandler that ingests a statement stored in GCS into
// the job's session. A job without a session only feeds the archive sinks.
// Fatal statement errors and unknown sessions are not retried.
func (i *Ingestor) HandleJob(ctx context.Context, job jobs.Job) error {
	ingestJob, ok := job.(*jobs.IngestStatementJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("HandleJob: unexpected job type %s", job.GetType()))
	}

	req := Request{
		SessionID: ingestJob.SessionID,
		GCSURI:    ingestJob.GCSURI,
		Format:    ingestJob.Format,
	}

	var transactions int
	var err error
	if req.SessionID == "" {
		var res *Result
		if res, err = i.Ingest(ctx, req); err == nil {
			transactions = res.Ledger.Len()
		}
	} else {
		var sess *session.Session
		if sess, _, err = i.IngestIntoSession(ctx, req); err == nil {
			transactions = sess.Ledger.Len()
		}
	}
	if err != nil {
		var ingestErr *statement.IngestError
		switch {
		case errors.As(err, &ingestErr):
			ingestJob.ErrorKind = statement.ClassifyError(err)
			return jobs.Permanent(err)
		case errors.Is(err, session.ErrSessionNotFound):
			ingestJob.ErrorKind = "session_not_found"
			return jobs.Permanent(err)
		}
		return err
	}

	ingestJob.Transactions = transactions
	ingestJob.ErrorKind = ""
	return nil
}
