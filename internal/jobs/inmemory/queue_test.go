package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/jobs"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/rs/zerolog"
)

func quietContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), zerolog.Nop()))
	t.Cleanup(cancel)
	return ctx
}

// waitForStatus polls the store until the job reaches want or the deadline passes.
func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.IngestStatementJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state: %+v", jobID, want, job)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx := quietContext(t)
	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		job.(*jobs.IngestStatementJob).Transactions = 7
		return nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.IngestStatementJob{SessionID: "sess-1", GCSURI: "gs://bucket/statement.csv"}
	if err := q.PublishIngestStatement(ctx, job); err != nil {
		t.Fatalf("PublishIngestStatement() error = %v", err)
	}
	if job.JobID == "" || job.MaxRetries != jobs.DefaultMaxRetries {
		t.Errorf("published job defaults not set: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Transactions != 7 || done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("completed job = %+v", done)
	}
}

func TestQueue_RetriesTransientErrors(t *testing.T) {
	ctx := quietContext(t)
	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1), WithRetryBackoff(time.Millisecond))
	defer q.Close()

	var calls atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if calls.Add(1) == 1 {
			return errors.New("storage unavailable")
		}
		return nil
	})

	job := &jobs.IngestStatementJob{SessionID: "sess-1"}
	if err := q.PublishIngestStatement(ctx, job); err != nil {
		t.Fatalf("PublishIngestStatement() error = %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 1 || done.Error != "" {
		t.Errorf("completed job = %+v, want one retry and no error", done)
	}
}

func TestQueue_PermanentErrorsFail(t *testing.T) {
	ctx := quietContext(t)
	store := NewStore()
	q := NewQueue(4, store, WithRetryBackoff(time.Millisecond))
	defer q.Close()

	var calls atomic.Int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return jobs.Permanent(errors.New("header not found"))
	})

	job := &jobs.IngestStatementJob{SessionID: "sess-1"}
	_ = q.PublishIngestStatement(ctx, job)

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 0 || failed.Error != "header not found" {
		t.Errorf("failed job = %+v", failed)
	}
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.PublishIngestStatement(context.Background(), &jobs.IngestStatementJob{}); err == nil {
		t.Error("PublishIngestStatement() after Close expected error")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("Start() after Close expected error")
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("boom")
	if jobs.IsPermanent(base) {
		t.Error("plain error reported as permanent")
	}
	if !jobs.IsPermanent(jobs.Permanent(base)) || !errors.Is(jobs.Permanent(base), base) {
		t.Error("Permanent() should wrap and mark the error")
	}
	if jobs.Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
