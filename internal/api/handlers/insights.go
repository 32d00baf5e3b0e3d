package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/mpesa-insights/internal/analytics"
	"github.com/dvloznov/mpesa-insights/internal/api/middleware"
	"github.com/dvloznov/mpesa-insights/internal/insights"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/dvloznov/mpesa-insights/internal/session"
)

// InsightsHandler generates AI advice for a session's active ledger.
type InsightsHandler struct {
	sessions *session.Store
	advisor  insights.Advisor
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(sessions *session.Store, advisor insights.Advisor) *InsightsHandler {
	return &InsightsHandler{sessions: sessions, advisor: advisor}
}

// Generate handles POST /api/sessions/{id}/insights
func (h *InsightsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sess, ok := loadSession(w, r, h.sessions)
	if !ok {
		return
	}
	if !sess.HasLedger() {
		middleware.WriteError(w, http.StatusConflict, "Upload a statement before requesting insights")
		return
	}

	summary := analytics.BuildInsightSummary(sess.Ledger)
	if h.advisor == nil {
		h.writeFailure(w, r, summary, insights.ErrNotConfigured)
		return
	}

	text, err := h.advisor.GenerateInsights(r.Context(), summary)
	if err != nil {
		h.writeFailure(w, r, summary, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"insights": text,
		"summary":  summary,
	})
}

func (h *InsightsHandler) writeFailure(w http.ResponseWriter, r *http.Request, summary analytics.InsightSummary, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, insights.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, insights.ErrRateLimited):
		status = http.StatusTooManyRequests
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to generate insights")
	}

	middleware.WriteJSON(w, status, map[string]interface{}{
		"error":   insights.Notice(err),
		"summary": summary,
	})
}
