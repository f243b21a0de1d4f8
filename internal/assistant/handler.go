package assistant

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-assistant/internal/auth"
	"github.com/wolfman30/clinic-assistant/internal/observability/metrics"
	"github.com/wolfman30/clinic-assistant/internal/triage"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

// SessionHeader carries the chat session id when it is not in the body.
const SessionHeader = "X-Session-ID"

const maxBodyBytes = 64 << 10

// Handler exposes the assistant over HTTP.
type Handler struct {
	service  *Service
	gatherer prometheus.Gatherer
	debug    bool
	logger   *logging.Logger
}

// NewHandler creates the HTTP handler. debug adds fault detail to 500 responses.
func NewHandler(service *Service, gatherer prometheus.Gatherer, debug bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, gatherer: gatherer, debug: debug, logger: logger}
}

// AnswerData is the data block of an answer envelope.
type AnswerData struct {
	Answer           string   `json:"answer"`
	Type             string   `json:"type"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	Debug            string   `json:"debug,omitempty"`
}

// AnswerEnvelope is the uniform response of POST /ai/ask.
type AnswerEnvelope struct {
	Success   bool             `json:"success"`
	Data      AnswerData       `json:"data"`
	Analysis  *triage.Analysis `json:"analysis,omitempty"`
	SessionID string           `json:"session_id"`
	Timestamp string           `json:"timestamp"`
	Cached    bool             `json:"cached,omitempty"`
}

type errorEnvelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Envelope converts an answer into its response body and status code.
func Envelope(answer *Answer, debug bool) (AnswerEnvelope, int) {
	res := answer.Result
	env := AnswerEnvelope{
		Success:   res.Success,
		SessionID: answer.SessionID,
		Timestamp: answer.Timestamp.UTC().Format(time.RFC3339),
	}
	if !res.Success {
		env.Data = AnswerData{Answer: res.Answer, Type: res.Type}
		if debug {
			env.Data.Debug = res.Debug
		}
		return env, http.StatusInternalServerError
	}
	env.Data = AnswerData{
		Answer:           res.Answer,
		Type:             res.Type,
		SuggestedActions: res.SuggestedActions,
	}
	env.Analysis = res.Analysis
	env.Cached = answer.Cached
	return env, http.StatusOK
}

// Ask answers a query.
// POST /ai/ask
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorEnvelope{
			Success: false,
			Message: "The given data was invalid.",
			Errors:  map[string][]string{"body": {"request body must be a JSON object"}},
		})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = r.Header.Get(SessionHeader)
	}

	user, _ := auth.UserFromContext(r.Context())
	answer, err := h.service.Ask(r.Context(), req, user)
	if err != nil {
		h.writeError(w, err)
		return
	}

	env, status := Envelope(answer, h.debug)
	if answer.SessionID != "" {
		w.Header().Set(SessionHeader, answer.SessionID)
	}
	writeJSON(w, status, env)
}

// History returns the merged transcript.
// GET /ai/history?session_id=...
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}
	user, _ := auth.UserFromContext(r.Context())

	history, err := h.service.History(r.Context(), sessionID, user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": history.SessionID,
		"messages":   history.Messages,
		"stats":      history.Stats,
	})
}

// ClearHistory drops a session transcript.
// DELETE /ai/history?session_id=...
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}
	user, _ := auth.UserFromContext(r.Context())
	if err := h.service.ClearHistory(r.Context(), sessionID, user); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": strings.TrimSpace(sessionID),
	})
}

// SearchDoctors finds doctors by partial name.
// GET /ai/doctors?q=...
func (h *Handler) SearchDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.service.SearchDoctors(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    doctors,
	})
}

// AdminUserHistory returns a user's permanent history.
// GET /admin/ai/users/{userID}/history
func (h *Handler) AdminUserHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	messages, err := h.service.UserHistory(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user_id":  userID,
		"messages": messages,
	})
}

// AdminStats returns a snapshot of the assistant counters.
// GET /admin/ai/stats
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	gatherer := h.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    metrics.TakeSnapshot(gatherer),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorEnvelope{
			Success: false,
			Message: verr.Message(),
			Errors:  verr.Fields,
		})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorEnvelope{
			Success: false,
			Message: "The requested resource was not found.",
		})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorEnvelope{
			Success: false,
			Message: "This conversation belongs to another account.",
		})
	default:
		h.logger.Error("assistant request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{
			Success: false,
			Message: "Sorry, something went wrong. Please try again later.",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
