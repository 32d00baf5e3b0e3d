// Package app assembles the ingestion and analytics services from a Config.
// The API server, the worker and the CLI all start from Build.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/mpesa-insights/internal/categorizer"
	"github.com/dvloznov/mpesa-insights/internal/config"
	"github.com/dvloznov/mpesa-insights/internal/gcsuploader"
	infraBQ "github.com/dvloznov/mpesa-insights/internal/infra/bigquery"
	"github.com/dvloznov/mpesa-insights/internal/insights"
	"github.com/dvloznov/mpesa-insights/internal/pdftables"
	"github.com/dvloznov/mpesa-insights/internal/pipeline"
	"github.com/dvloznov/mpesa-insights/internal/session"
	"github.com/dvloznov/mpesa-insights/internal/statement"
	"github.com/rs/zerolog"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Sessions *session.Store
	Ingestor *pipeline.Ingestor
	Advisor  *insights.GeminiAdvisor

	// Archive is nil unless BIGQUERY_PROJECT is set.
	Archive *infraBQ.BigQueryArchiveRepository
}

// Build creates the services described by cfg. Without a Gemini key PDF
// statements cannot be read and insights report that they are unavailable;
// CSV ingestion and analytics still work.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	var extractor statement.TableExtractor
	if cfg.GeminiAPIKey != "" {
		gemini, err := pdftables.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		extractor = gemini
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set - PDF statements and insights are disabled")
	}

	advisor, err := insights.NewGeminiAdvisor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	sessions := session.NewStore(cfg.SessionTTL, cfg.SessionIdentity, log)
	ingestor := pipeline.NewIngestor(
		statement.NewNormalizer(extractor),
		statement.NewCleaner(cfg.CleanerOptions(), categorizer.New()),
		sessions,
	)

	// Fetching gs:// sources works without a bucket; archiving raw uploads needs one.
	ingestor.Storage = gcsuploader.NewGCSStorageService()
	ingestor.Bucket = cfg.GCSBucket
	if cfg.GCSBucket == "" {
		log.Info().Msg("GCS_BUCKET not set - raw statements will not be archived")
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Sessions: sessions,
		Ingestor: ingestor,
		Advisor:  advisor,
	}

	if cfg.ArchiveEnabled() {
		repo, err := infraBQ.NewBigQueryArchiveRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		a.Archive = repo
		ingestor.Archive = repo
		log.Info().
			Str("project", cfg.BigQueryProject).
			Str("dataset", cfg.BigQueryDataset).
			Msg("BigQuery archive enabled")
	}

	return a, nil
}

// Close releases the cloud clients.
func (a *App) Close() error {
	if a.Archive != nil {
		return a.Archive.Close()
	}
	return nil
}
