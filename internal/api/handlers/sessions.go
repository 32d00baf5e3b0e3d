package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/dvloznov/mpesa-insights/internal/api/middleware"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/dvloznov/mpesa-insights/internal/pipeline"
	"github.com/dvloznov/mpesa-insights/internal/session"
	"github.com/dvloznov/mpesa-insights/internal/statement"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxUploadBytes caps statement uploads when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// SessionsHandler handles session lifecycle and statement uploads.
type SessionsHandler struct {
	sessions       *session.Store
	ingestor       *pipeline.Ingestor
	maxUploadBytes int64
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(sessions *session.Store, ingestor *pipeline.Ingestor, maxUploadBytes int64) *SessionsHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &SessionsHandler{
		sessions:       sessions,
		ingestor:       ingestor,
		maxUploadBytes: maxUploadBytes,
	}
}

type sessionResponse struct {
	*session.Session
	Transactions int                    `json:"transactions"`
	Identity     session.IdentityPolicy `json:"identity_policy"`
	Ingested     *bool                  `json:"ingested,omitempty"`
}

func (h *SessionsHandler) respond(w http.ResponseWriter, status int, sess *session.Session, ingested *bool) {
	middleware.WriteJSON(w, status, sessionResponse{
		Session:      sess,
		Transactions: sess.Ledger.Len(),
		Identity:     h.sessions.Identity(),
		Ingested:     ingested,
	})
}

// CreateSession handles POST /api/sessions
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	log := logger.FromContext(r.Context())
	log.Info().Str("session_id", sess.ID).Msg("Session created")
	h.respond(w, http.StatusCreated, sess, nil)
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := loadSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, sess, nil)
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *SessionsHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// UploadStatement handles POST /api/sessions/{id}/statements (multipart field "file").
// A rejected statement leaves the session's current ledger in place.
func (h *SessionsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	sessionID := chi.URLParam(r, "id")

	if r.ContentLength > h.maxUploadBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Statement file is too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Statement file is too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "A statement file is required in the \"file\" field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	sess, ingested, err := h.ingestor.IngestIntoSession(ctx, pipeline.Request{
		SessionID: sessionID,
		Filename:  sanitizeFilename(header.Filename),
		Format:    r.FormValue("format"),
		Data:      data,
	})
	if err != nil {
		var ingestErr *statement.IngestError
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			middleware.WriteError(w, http.StatusNotFound, "Session not found")
		case errors.As(err, &ingestErr):
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Statement rejected")
			body := map[string]string{
				"error": statement.UserMessage(ingestErr),
				"kind":  statement.ClassifyError(ingestErr),
			}
			if ingestErr.Format != "" {
				body["format"] = string(ingestErr.Format)
			}
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, body)
		default:
			log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to ingest statement")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to ingest statement")
		}
		return
	}

	h.respond(w, http.StatusOK, sess, &ingested)
}

// loadSession resolves the {id} URL parameter, writing a 404 when it is unknown.
func loadSession(w http.ResponseWriter, r *http.Request, store *session.Store) (*session.Session, bool) {
	sess, err := store.Get(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return sess, true
}
