// Package assistant is the delivery layer of the clinic assistant: it validates
// requests, runs the recommendation pipeline, persists the turn and shapes the
// responses returned over HTTP and the websocket channel.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/clinic-assistant/internal/auth"
	"github.com/wolfman30/clinic-assistant/internal/chat"
	"github.com/wolfman30/clinic-assistant/internal/compliance"
	"github.com/wolfman30/clinic-assistant/internal/directory"
	"github.com/wolfman30/clinic-assistant/internal/knowledge"
	"github.com/wolfman30/clinic-assistant/internal/notify"
	"github.com/wolfman30/clinic-assistant/internal/observability/metrics"
	"github.com/wolfman30/clinic-assistant/internal/recommend"
	"github.com/wolfman30/clinic-assistant/internal/triage"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("assistant: not found")
	// ErrForbidden is returned when a session claimed by one user is used by
	// another caller, anonymous callers included.
	ErrForbidden = errors.New("assistant: session belongs to another user")
)

// DefaultHistoryLimit caps combined session and user history.
const DefaultHistoryLimit = 50

const doctorSearchLimit = 20

// Recommender is the recommendation engine as used by the service.
type Recommender interface {
	Analyze(query string) triage.Analysis
	GetRecommendations(ctx context.Context, query string) recommend.Result
}

// DoctorSearcher finds doctors in the knowledge corpus.
type DoctorSearcher interface {
	SearchDoctors(ctx context.Context, partial string) []knowledge.Entry
}

// Answer is the outcome of one Ask call. Result.Success is false on an
// internal fault; Result.Debug then holds the detail.
type Answer struct {
	SessionID string
	Result    recommend.Result
	Cached    bool
	Timestamp time.Time
}

// History is the merged transcript returned by GET /ai/history.
type History struct {
	SessionID string         `json:"session_id"`
	Messages  []chat.Message `json:"messages"`
	Stats     chat.Stats     `json:"stats"`
}

// DoctorSummary is one doctor search hit.
type DoctorSummary struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
	Email          string `json:"email,omitempty"`
	Source         string `json:"source"`
}

// Config wires the service.
type Config struct {
	Engine       Recommender
	Chat         *chat.Manager
	Knowledge    DoctorSearcher
	Directory    directory.Repository
	Audit        *compliance.AuditService
	Disclaimer   *compliance.DisclaimerService
	Alerter      *notify.Alerter
	Metrics      *metrics.AssistantMetrics
	HistoryLimit int
	Logger       *logging.Logger
}

// Service runs the assistant pipeline for one request at a time.
type Service struct {
	engine       Recommender
	chat         *chat.Manager
	knowledge    DoctorSearcher
	directory    directory.Repository
	audit        *compliance.AuditService
	disclaimer   *compliance.DisclaimerService
	alerter      *notify.Alerter
	metrics      *metrics.AssistantMetrics
	historyLimit int
	validator    *requestValidator
	logger       *logging.Logger
	now          func() time.Time
}

// NewService creates a service. Engine and Chat are required.
func NewService(cfg Config) *Service {
	if cfg.Engine == nil {
		panic("assistant: recommendation engine cannot be nil")
	}
	if cfg.Chat == nil {
		panic("assistant: chat manager cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Service{
		engine:       cfg.Engine,
		chat:         cfg.Chat,
		knowledge:    cfg.Knowledge,
		directory:    cfg.Directory,
		audit:        cfg.Audit,
		disclaimer:   cfg.Disclaimer,
		alerter:      cfg.Alerter,
		metrics:      cfg.Metrics,
		historyLimit: cfg.HistoryLimit,
		validator:    newRequestValidator(),
		logger:       cfg.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Ask validates req, answers it and records the turn. Errors are a
// *ValidationError or ErrForbidden; internal faults come back as an Answer
// whose result has Success=false.
func (s *Service) Ask(ctx context.Context, req AskRequest, user *auth.User) (*Answer, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.UserType = strings.ToLower(strings.TrimSpace(req.UserType))
	req.SessionID = strings.TrimSpace(req.SessionID)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	start := time.Now()
	userID := ""
	if user != nil {
		userID = user.ID
	}

	session, err := s.chat.GetOrCreateSession(ctx, req.SessionID)
	if err != nil {
		return s.fault(ctx, req.SessionID, userID, req.Query, "session", err, nil), nil
	}
	if !ownsSession(session, userID) {
		s.logger.Warn("rejected turn on claimed session", "session_id", session.ID, "user_id", userID)
		return nil, ErrForbidden
	}

	analysis := s.engine.Analyze(req.Query)
	emergency := analysis.Urgency == triage.UrgencyEmergency

	var (
		result recommend.Result
		cached bool
	)
	if !emergency {
		if hit, ok := s.chat.LookupAnswer(session, req.Query, analysis.Topic()); ok {
			result = recommend.Result{
				Success:          true,
				Answer:           hit.Answer,
				Type:             hit.Type,
				SuggestedActions: hit.SuggestedActions,
				Analysis:         &analysis,
			}
			cached = true
			s.metrics.ObserveCacheHit()
		}
	}
	if !cached {
		result = s.engine.GetRecommendations(ctx, req.Query)
		if !result.Success {
			return s.fault(ctx, session.ID, userID, req.Query, "recommend", errors.New(result.Debug), result.Analysis), nil
		}
		result.Answer = s.withDisclaimer(ctx, session.ID, userID, result)
	}
	if result.SuggestedActions == nil {
		result.SuggestedActions = []string{}
	}

	if _, err := s.chat.SaveMessage(ctx, session.ID, chat.Message{Content: req.Query, IsUser: true}); err != nil {
		return s.fault(ctx, session.ID, userID, req.Query, "persist", err, result.Analysis), nil
	}
	if _, err := s.chat.SaveMessage(ctx, session.ID, chat.Message{Content: result.Answer, SuggestedActions: result.SuggestedActions}); err != nil {
		return s.fault(ctx, session.ID, userID, req.Query, "persist", err, result.Analysis), nil
	}

	if !cached && !emergency {
		err := s.chat.RememberAnswer(ctx, session, chat.CachedAnswer{
			Query:            req.Query,
			Topic:            analysis.Topic(),
			Answer:           result.Answer,
			Type:             result.Type,
			SuggestedActions: result.SuggestedActions,
		})
		if err != nil {
			s.logger.Warn("failed to cache answer", "session_id", session.ID, "error", err)
		}
	}

	if userID != "" && !session.Claimed() {
		s.transfer(ctx, session.ID, userID)
	}

	if emergency {
		s.raiseEmergency(ctx, session.ID, userID, analysis)
	}

	s.metrics.ObserveQuery(result.Type, string(analysis.Urgency), time.Since(start).Seconds())
	s.logger.Info("assistant query answered",
		"session_id", session.ID,
		"type", result.Type,
		"urgency", analysis.Urgency,
		"cached", cached,
		"user_type", req.UserType,
	)

	return &Answer{
		SessionID: session.ID,
		Result:    result,
		Cached:    cached,
		Timestamp: s.now(),
	}, nil
}

// ownsSession reports whether userID may read or write the session. Anonymous
// sessions are open to everyone; claimed ones only to their user.
func ownsSession(session *chat.Session, userID string) bool {
	return !session.Claimed() || session.UserID == userID
}

// checkAccess rejects callers other than the owner of a claimed session.
// Unknown sessions pass.
func (s *Service) checkAccess(ctx context.Context, sessionID, userID string) error {
	session, err := s.chat.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("assistant: load session: %w", err)
	}
	if !ownsSession(session, userID) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) withDisclaimer(ctx context.Context, sessionID, userID string, result recommend.Result) string {
	if result.Type != string(triage.TypeSymptomTriage) || !s.disclaimer.ShouldAddDisclaimer(true) {
		return result.Answer
	}
	first := true
	if stats, err := s.chat.GetSessionStats(ctx, sessionID); err == nil {
		first = stats.TotalMessages == 0
	}
	return s.disclaimer.AddDisclaimer(ctx, result.Answer, compliance.DisclaimerOptions{
		SessionID:      sessionID,
		UserID:         userID,
		IsFirstMessage: first,
	})
}

// transfer failures do not fail the turn; the reply is already stored.
func (s *Service) transfer(ctx context.Context, sessionID, userID string) {
	changed, err := s.chat.TransferToUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionClaimed) {
			s.logger.Warn("session already claimed by another user", "session_id", sessionID, "user_id", userID)
			return
		}
		s.logger.Error("session transfer failed", "session_id", sessionID, "user_id", userID, "error", err)
		s.metrics.ObserveFault("transfer")
		return
	}
	if !changed {
		return
	}
	s.metrics.ObserveTransfer()

	copied := 0
	if stats, err := s.chat.GetSessionStats(ctx, sessionID); err == nil {
		copied = stats.TotalMessages
	}
	if err := s.audit.LogSessionTransferred(ctx, sessionID, userID, copied); err != nil {
		s.logger.Error("failed to audit session transfer", "session_id", sessionID, "error", err)
	}
}

func (s *Service) raiseEmergency(ctx context.Context, sessionID, userID string, analysis triage.Analysis) {
	s.logger.Warn("emergency keywords in query", "session_id", sessionID, "terms", analysis.EmergencyTerms)
	if err := s.audit.LogEmergencyDetected(ctx, sessionID, userID, analysis.Query, string(analysis.Type), analysis.EmergencyTerms, analysis.Specializations); err != nil {
		s.logger.Error("failed to audit emergency", "session_id", sessionID, "error", err)
	}
	s.alerter.NotifyAsync(notify.EmergencyAlert{
		SessionID: sessionID,
		UserID:    userID,
		Query:     analysis.Query,
		Terms:     analysis.EmergencyTerms,
		At:        s.now(),
	})
}

func (s *Service) fault(ctx context.Context, sessionID, userID, query, stage string, cause error, analysis *triage.Analysis) *Answer {
	s.logger.Error("assistant request failed", "stage", stage, "session_id", sessionID, "error", cause)
	s.metrics.ObserveFault(stage)
	if err := s.audit.LogFault(ctx, sessionID, userID, query, stage, cause); err != nil {
		s.logger.Error("failed to audit fault", "session_id", sessionID, "error", err)
	}
	return &Answer{
		SessionID: sessionID,
		Result: recommend.Result{
			Success:          false,
			Answer:           recommend.FaultAnswer,
			Type:             recommend.TypeError,
			SuggestedActions: []string{},
			Analysis:         analysis,
			Debug:            fmt.Sprintf("%s: %v", stage, cause),
		},
		Timestamp: s.now(),
	}
}

// History merges the session transcript with the user's permanent history,
// dedupes by message id and returns the newest messages oldest first.
func (s *Service) History(ctx context.Context, sessionID string, user *auth.User) (*History, error) {
	sessionID = strings.TrimSpace(sessionID)
	userID := ""
	if user != nil {
		userID = user.ID
	}
	if sessionID == "" && userID == "" {
		return nil, newValidationError("session_id", "session_id is a required field")
	}
	if sessionID != "" {
		if err := s.validator.Struct(HistoryRequest{SessionID: sessionID}); err != nil {
			return nil, err
		}
	}

	var combined []chat.Message
	if sessionID != "" {
		if err := s.checkAccess(ctx, sessionID, userID); err != nil {
			return nil, err
		}
		msgs, err := s.chat.GetMessages(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("assistant: session history: %w", err)
		}
		combined = append(combined, msgs...)
	}
	if userID != "" {
		msgs, err := s.chat.GetUserHistory(ctx, userID, s.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("assistant: user history: %w", err)
		}
		combined = append(combined, msgs...)
	}

	messages := mergeHistory(combined, s.historyLimit)
	return &History{
		SessionID: sessionID,
		Messages:  messages,
		Stats:     chat.Stats{TotalMessages: len(messages)},
	}, nil
}

// mergeHistory dedupes by id (first occurrence wins), sorts ascending by
// timestamp and keeps the last limit messages.
func mergeHistory(messages []chat.Message, limit int) []chat.Message {
	seen := make(map[string]struct{}, len(messages))
	out := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.ID != "" {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ClearHistory drops the session transcript. Claimed sessions can only be
// cleared by their user.
func (s *Service) ClearHistory(ctx context.Context, sessionID string, user *auth.User) error {
	sessionID = strings.TrimSpace(sessionID)
	if err := s.validator.Struct(HistoryRequest{SessionID: sessionID}); err != nil {
		return err
	}
	userID := ""
	if user != nil {
		userID = user.ID
	}
	if err := s.checkAccess(ctx, sessionID, userID); err != nil {
		return err
	}
	if err := s.chat.ClearSession(ctx, sessionID); err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("assistant: clear history: %w", err)
	}
	return nil
}

// SearchDoctors looks the partial name up in the corpus, then the directory.
func (s *Service) SearchDoctors(ctx context.Context, query string) ([]DoctorSummary, error) {
	query = strings.TrimSpace(query)
	if err := s.validator.Struct(DoctorSearchRequest{Query: query}); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []DoctorSummary
	add := func(d DoctorSummary) {
		key := strings.ToLower(directory.NormalizeName(d.Name))
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}

	if s.knowledge != nil {
		for _, entry := range s.knowledge.SearchDoctors(ctx, query) {
			add(DoctorSummary{
				Name:           entry.Name,
				Specialization: entry.Field("specialization"),
				Email:          entry.Field("email"),
				Source:         "knowledge",
			})
		}
	}
	if s.directory != nil {
		doctors, err := s.directory.SearchDoctors(ctx, query, doctorSearchLimit)
		if err != nil {
			s.logger.Warn("directory search failed", "query", query, "error", err)
		}
		for _, d := range doctors {
			add(DoctorSummary{
				Name:           directory.NormalizeName(d.Name),
				Specialization: d.Specialization,
				Email:          d.Email,
				Source:         "directory",
			})
		}
	}

	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// UserHistory returns a user's permanent history for admins.
func (s *Service) UserHistory(ctx context.Context, userID string) ([]chat.Message, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newValidationError("user_id", "user_id is a required field")
	}
	msgs, err := s.chat.GetUserHistory(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("assistant: user history: %w", err)
	}
	return msgs, nil
}
