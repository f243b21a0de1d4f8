package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/clinic-assistant/internal/assistant"
	"github.com/wolfman30/clinic-assistant/internal/auth"
	"github.com/wolfman30/clinic-assistant/internal/chat"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

// Asker runs the assistant pipeline.
type Asker interface {
	Ask(ctx context.Context, req assistant.AskRequest, user *auth.User) (*assistant.Answer, error)
	History(ctx context.Context, sessionID string, user *auth.User) (*assistant.History, error)
}

// Handler manages real-time chat connections.
type Handler struct {
	assistant Asker
	debug     bool
	logger    *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // sessionID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	done chan struct{}
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the client sends.
type InboundMessage struct {
	Type     string `json:"type"` // "message", "ping"
	Text     string `json:"text"`
	UserType string `json:"user_type,omitempty"`
}

// OutboundMessage is what we send to the client.
type OutboundMessage struct {
	Type             string              `json:"type"` // "message", "typing", "history", "session", "error", "pong"
	Text             string              `json:"text,omitempty"`
	Role             string              `json:"role,omitempty"` // "assistant" or "user"
	AnswerType       string              `json:"answer_type,omitempty"`
	SuggestedActions []string            `json:"suggested_actions,omitempty"`
	SessionID        string              `json:"session_id,omitempty"`
	Timestamp        string              `json:"timestamp,omitempty"`
	Messages         []HistoryMessage    `json:"messages,omitempty"`
	Errors           map[string][]string `json:"errors,omitempty"`
}

// HistoryMessage is a simplified message for history frames.
type HistoryMessage struct {
	Role             string   `json:"role"`
	Text             string   `json:"text"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	Timestamp        string   `json:"timestamp"`
}

// NewHandler creates a web chat handler. debug adds fault detail to HTTP fallback responses.
func NewHandler(asker Asker, debug bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		assistant: asker,
		debug:     debug,
		logger:    logger,
		sessions:  make(map[string]*wsConn),
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

func toHistory(msgs []chat.Message) []HistoryMessage {
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		role := "assistant"
		if m.IsUser {
			role = "user"
		}
		history = append(history, HistoryMessage{
			Role:             role,
			Text:             m.Content,
			SuggestedActions: m.SuggestedActions,
			Timestamp:        m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return history
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
// GET /ai/ws?session=...
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.UserFromContext(ctx)

	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	_ = wsc.send(OutboundMessage{
		Type:      "session",
		SessionID: sessionID,
	})

	if history, err := h.assistant.History(ctx, sessionID, user); err == nil && len(history.Messages) > 0 {
		_ = wsc.send(OutboundMessage{Type: "history", SessionID: sessionID, Messages: toHistory(history.Messages)})
	} else if err != nil {
		h.logger.Warn("webchat: failed to load history", "session_id", sessionID, "error", err)
	}

	h.mu.Lock()
	h.sessions[sessionID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[sessionID] == wsc {
			delete(h.sessions, sessionID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = wsc.send(OutboundMessage{Type: "pong"})
			continue
		}

		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		h.processMessage(ctx, sessionID, msg.Text, msg.UserType, user)
	}
}

func (h *Handler) processMessage(ctx context.Context, sessionID, text, userType string, user *auth.User) {
	h.SendToSession(sessionID, OutboundMessage{Type: "typing"})

	answer, err := h.assistant.Ask(ctx, assistant.AskRequest{
		Query:     text,
		UserType:  userType,
		SessionID: sessionID,
	}, user)
	if err != nil {
		out := OutboundMessage{Type: "error", SessionID: sessionID, Text: "Sorry, something went wrong. Please try again."}
		var verr *assistant.ValidationError
		switch {
		case errors.As(err, &verr):
			out.Text = verr.Message()
			out.Errors = verr.Fields
		case errors.Is(err, assistant.ErrForbidden):
			out.Text = "This conversation belongs to another account."
		}
		h.SendToSession(sessionID, out)
		return
	}

	if !answer.Result.Success {
		h.SendToSession(sessionID, OutboundMessage{
			Type:      "error",
			SessionID: sessionID,
			Text:      answer.Result.Answer,
			Timestamp: answer.Timestamp.UTC().Format(time.RFC3339),
		})
		return
	}

	h.SendToSession(sessionID, OutboundMessage{
		Type:             "message",
		Role:             "assistant",
		Text:             answer.Result.Answer,
		AnswerType:       answer.Result.Type,
		SuggestedActions: answer.Result.SuggestedActions,
		SessionID:        sessionID,
		Timestamp:        answer.Timestamp.UTC().Format(time.RFC3339),
	})
	h.logger.Info("webchat: reply sent", "session_id", sessionID, "type", answer.Result.Type, "length", len(answer.Result.Answer))
}

// SendToSession sends a message to an active WebSocket session.
func (h *Handler) SendToSession(sessionID string, msg OutboundMessage) {
	h.mu.RLock()
	wsc, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := wsc.send(msg); err != nil {
		h.logger.Debug("webchat: send failed", "session_id", sessionID, "error", err)
	}
}

// HandleMessage is the HTTP fallback for sending messages. The reply is
// returned in the /ai/ask envelope and also pushed to an open socket for the
// same session.
// POST /ai/chat/message
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
		UserType  string `json:"user_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = generateSessionID()
	}
	user, _ := auth.UserFromContext(r.Context())

	answer, err := h.assistant.Ask(r.Context(), assistant.AskRequest{
		Query:     req.Text,
		UserType:  req.UserType,
		SessionID: req.SessionID,
	}, user)
	if err != nil {
		var verr *assistant.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"success": false,
				"message": verr.Message(),
				"errors":  verr.Fields,
			})
			return
		}
		if errors.Is(err, assistant.ErrForbidden) {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"success": false,
				"message": "This conversation belongs to another account.",
			})
			return
		}
		h.logger.Error("webchat: message failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if answer.Result.Success {
		h.SendToSession(answer.SessionID, OutboundMessage{
			Type:             "message",
			Role:             "assistant",
			Text:             answer.Result.Answer,
			AnswerType:       answer.Result.Type,
			SuggestedActions: answer.Result.SuggestedActions,
			SessionID:        answer.SessionID,
			Timestamp:        answer.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	env, status := assistant.Envelope(answer, h.debug)
	writeJSON(w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
