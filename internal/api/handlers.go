package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"codepad/internal/config"
	"codepad/internal/job"
	"codepad/internal/monitor"
	"codepad/internal/session"
	"codepad/internal/store"
)

type Handlers struct {
	store        store.Store
	orchestrator *session.Orchestrator
	cfg          *config.Config
	metrics      *monitor.Metrics
	upgrader     websocket.Upgrader
}

func NewHandlers(st store.Store, orch *session.Orchestrator, cfg *config.Config, metrics *monitor.Metrics) *Handlers {
	return &Handlers{
		store:        st,
		orchestrator: orch,
		cfg:          cfg,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin policy belongs to the fronting proxy; the socket is
			// gated by the one-time job token instead.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleCreateJob issues a job record and its one-time access token.
func (h *Handlers) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	if req.Code == "" {
		writeError(w, "code is required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}
	if len(req.Code) > h.cfg.Execution.MaxCodeBytes {
		writeError(w, "code exceeds maximum size", "CODE_TOO_LARGE", http.StatusRequestEntityTooLarge, r)
		return
	}

	lang, err := job.ParseLanguage(req.Language)
	if err != nil {
		writeError(w, err.Error(), "UNSUPPORTED_LANGUAGE", http.StatusBadRequest, r)
		return
	}

	filename := req.Filename
	if filename == "" {
		filename = lang.DefaultFilename()
	}
	if err := job.ValidateFilename(filename); err != nil {
		writeError(w, err.Error(), "INVALID_FILENAME", http.StatusBadRequest, r)
		return
	}

	created, err := h.store.Create(r.Context(), req.Code, lang, filename)
	if err != nil {
		log.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("job creation failed")
		writeError(w, "job creation failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:     created.JobID,
		JobToken:  created.Token,
		ExpiresAt: created.TokenExpiresAt,
	})
}

// HandleGetJob returns a job record; the result is present only in
// terminal states.
func (h *Handlers) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "job ID required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	j, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "job not found", "NOT_FOUND", http.StatusNotFound, r)
			return
		}
		writeError(w, "store unavailable", "INTERNAL", http.StatusInternalServerError, r)
		return
	}

	writeJSON(w, http.StatusOK, j)
}

// HandleExecuteWS upgrades the connection and hands it to the session
// orchestrator. All protocol handling, including auth, happens inside
// the socket per the first-message pattern.
func (h *Handlers) HandleExecuteWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.orchestrator.Handle(conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, msg, code string, status int, r *http.Request) {
	writeJSON(w, status, ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	})
}
