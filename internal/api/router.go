// Package api exposes sessions, statement ingestion and ledger analytics over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/api/handlers"
	"github.com/dvloznov/mpesa-insights/internal/api/middleware"
	"github.com/dvloznov/mpesa-insights/internal/insights"
	"github.com/dvloznov/mpesa-insights/internal/jobs"
	"github.com/dvloznov/mpesa-insights/internal/pipeline"
	"github.com/dvloznov/mpesa-insights/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Sessions *session.Store
	Ingestor *pipeline.Ingestor
	Advisor  insights.Advisor

	// Optional; job routes are only mounted when both are set.
	JobStore  jobs.JobStore
	Publisher jobs.Publisher

	MaxUploadBytes   int64
	UploadRatePerMin int

	Log zerolog.Logger
}

// NewRouter builds the HTTP handler with the standard middleware chain.
func NewRouter(deps Deps) http.Handler {
	sessionsHandler := handlers.NewSessionsHandler(deps.Sessions, deps.Ingestor, deps.MaxUploadBytes)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.Sessions)
	insightsHandler := handlers.NewInsightsHandler(deps.Sessions, deps.Advisor)
	uploadLimit := middleware.RateLimit(middleware.NewUploadLimiter(deps.UploadRatePerMin))

	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Log))
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"sessions": deps.Sessions.Len(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionsHandler.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionsHandler.GetSession)
				r.Delete("/", sessionsHandler.DeleteSession)
				r.With(uploadLimit).Post("/statements", sessionsHandler.UploadStatement)

				r.Get("/transactions", analyticsHandler.Transactions)
				r.Get("/export", analyticsHandler.Export)
				r.Get("/kpis", analyticsHandler.KPIs)
				r.Get("/breakdown", analyticsHandler.Breakdown)
				r.Get("/trends", analyticsHandler.Trends)
				r.Get("/counterparties", analyticsHandler.Counterparties)
				r.Get("/activity", analyticsHandler.Activity)

				r.Post("/insights", insightsHandler.Generate)
			})
		})

		if deps.JobStore != nil && deps.Publisher != nil {
			jobsHandler := handlers.NewJobsHandler(deps.JobStore, deps.Publisher, deps.Sessions)
			r.Get("/jobs", jobsHandler.ListJobs)
			r.Post("/jobs", jobsHandler.EnqueueIngestion)
			r.Get("/jobs/{id}", jobsHandler.GetJob)
		}
	})

	return r
}
