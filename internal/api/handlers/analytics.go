package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/analytics"
	"github.com/dvloznov/mpesa-insights/internal/api/middleware"
	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/dvloznov/mpesa-insights/internal/export"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/dvloznov/mpesa-insights/internal/session"
)

const queryDateLayout = "2006-01-02"

// AnalyticsHandler serves read-only views over a session's active ledger.
// Every view honours the start, end and q filters.
type AnalyticsHandler struct {
	sessions *session.Store
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(sessions *session.Store) *AnalyticsHandler {
	return &AnalyticsHandler{sessions: sessions}
}

// ledger loads the session and applies the request filters.
func (h *AnalyticsHandler) ledger(w http.ResponseWriter, r *http.Request) (*session.Session, domain.Ledger, bool) {
	sess, ok := loadSession(w, r, h.sessions)
	if !ok {
		return nil, nil, false
	}

	query := r.URL.Query()
	start, err := parseQueryDate(query.Get("start"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid start date, expected YYYY-MM-DD")
		return nil, nil, false
	}
	end, err := parseQueryDate(query.Get("end"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid end date, expected YYYY-MM-DD")
		return nil, nil, false
	}

	ledger := analytics.DateRange(sess.Ledger, start, end)
	ledger = analytics.Search(ledger, query.Get("q"))
	return sess, ledger, true
}

func parseQueryDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(queryDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Transactions handles GET /api/sessions/{id}/transactions, newest first.
func (h *AnalyticsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	_, ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	ledger = analytics.NewestFirst(ledger)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": ledger,
		"count":        ledger.Len(),
	})
}

// Export handles GET /api/sessions/{id}/export
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	sess, ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}

	source := ""
	if sess.Source != nil {
		source = sess.Source.Filename
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(source)))
	if err := export.WriteCSV(w, ledger); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to write export")
	}
}

// KPIs handles GET /api/sessions/{id}/kpis
func (h *AnalyticsHandler) KPIs(w http.ResponseWriter, r *http.Request) {
	_, ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, analytics.CalculateKPIs(ledger))
}

// Breakdown handles GET /api/sessions/{id}/breakdown?kind=income|expense
func (h *AnalyticsHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	kindParam := r.URL.Query().Get("kind")
	if kindParam == "" {
		kindParam = string(analytics.Expense)
	}
	kind, err := analytics.ParseKind(kindParam)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "kind must be income or expense")
		return
	}

	_, ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"kind":       kind,
		"categories": nonNil(analytics.CategoryBreakdown(ledger, kind)),
	})
}

// Trends handles GET /api/sessions/{id}/trends
func (h *AnalyticsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	_, ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"months": nonNil(analytics.MonthlyTrends(ledger)),
	})
}

// Counterparties handles GET /api/sessions/{id}/counterparties?n=5
func (h *AnalyticsHandler) Counterparties(w http.ResponseWriter, r *http.Request) {
	n := analytics.DefaultTopCounterparties
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = v
	}

	_, ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"counterparties": nonNil(analytics.TopCounterparties(ledger, n)),
	})
}

// Activity handles GET /api/sessions/{id}/activity
func (h *AnalyticsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	_, ledger, ok := h.ledger(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cells": nonNil(analytics.DailyActivity(ledger)),
	})
}

// nonNil keeps empty results encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
