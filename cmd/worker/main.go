package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/app"
	"github.com/dvloznov/mpesa-insights/internal/config"
	"github.com/dvloznov/mpesa-insights/internal/gcsuploader"
	"github.com/dvloznov/mpesa-insights/internal/jobs"
	"github.com/dvloznov/mpesa-insights/internal/jobs/inmemory"
	"github.com/dvloznov/mpesa-insights/internal/logger"
)

// The worker archives statements already stored in GCS into BigQuery.
// URIs come from the command line and, with -list, from a file with one
// gs:// URI per line.
func main() {
	var (
		envFile = flag.String("env", ".env", "Optional .env file to load")
		list    = flag.String("list", "", "File with one gs:// URI per line")
		format  = flag.String("format", "", "Force statement format (csv or pdf)")
		workers = flag.Int("workers", 2, "Number of concurrent ingestion workers")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(os.Stdout, cfg.LogLevel)

	uris, err := collectURIs(flag.Args(), *list)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid input")
	}
	if len(uris) == 0 {
		log.Fatal().Msg("No gs:// URIs given")
	}
	if !cfg.ArchiveEnabled() {
		log.Warn().Msg("BIGQUERY_PROJECT not set - statements will be parsed but not archived")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(uris), jobStore, inmemory.WithWorkers(*workers))

	log.Info().Int("statements", len(uris)).Msg("Starting worker service")

	if err := jobQueue.Start(ctx, services.Ingestor.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	for _, uri := range uris {
		job := &jobs.IngestStatementJob{GCSURI: uri, Format: *format}
		if err := jobQueue.PublishIngestStatement(ctx, job); err != nil {
			log.Fatal().Err(err).Str("gcs_uri", uri).Msg("Failed to enqueue statement")
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		waitForJobs(ctx, jobStore, len(uris))
		close(done)
	}()

	select {
	case <-done:
	case <-quit:
		log.Info().Msg("Interrupted, shutting down worker service...")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	failed := report(jobStore)
	log.Info().Int("failed", failed).Msg("Worker service exited")
	if failed > 0 {
		os.Exit(1)
	}
}

// collectURIs merges args and the lines of listFile, validating each URI.
func collectURIs(args []string, listFile string) ([]string, error) {
	uris := append([]string(nil), args...)

	if listFile != "" {
		f, err := os.Open(listFile)
		if err != nil {
			return nil, fmt.Errorf("opening list: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			uris = append(uris, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading list: %w", err)
		}
	}

	for _, uri := range uris {
		if _, _, err := gcsuploader.ParseGCSURI(uri); err != nil {
			return nil, err
		}
	}
	return uris, nil
}

// waitForJobs polls the store until total jobs reached a final status.
func waitForJobs(ctx context.Context, store jobs.JobStore, total int) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		list, err := store.ListJobs(ctx, jobs.JobFilter{})
		if err != nil {
			continue
		}
		finished := 0
		for _, job := range list {
			if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
				finished++
			}
		}
		if finished >= total {
			return
		}
	}
}

// report prints one line per job and returns the number of failures.
func report(store jobs.JobStore) int {
	list, err := store.ListJobs(context.Background(), jobs.JobFilter{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "listing jobs: %v\n", err)
		return 0
	}

	failed := 0
	for _, job := range list {
		switch job.Status {
		case jobs.JobStatusCompleted:
			fmt.Printf("OK     %s (%d transactions)\n", job.GCSURI, job.Transactions)
		case jobs.JobStatusFailed:
			failed++
			fmt.Printf("FAILED %s: %s\n", job.GCSURI, job.Error)
		default:
			failed++
			fmt.Printf("%-6s %s\n", strings.ToUpper(string(job.Status)), job.GCSURI)
		}
	}
	return failed
}
