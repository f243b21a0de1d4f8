package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

// Manager owns session lifecycle, transcripts and the promotion of a session
// transcript into a user's permanent history.
type Manager struct {
	store   SessionStore
	history HistoryRepository
	cache   *QuestionCache
	logger  *logging.Logger
	now     func() time.Time
}

// NewManager wires a manager. history may be nil when permanent history is not
// kept; cache may be nil to disable near-duplicate detection.
func NewManager(store SessionStore, history HistoryRepository, cache *QuestionCache, logger *logging.Logger) *Manager {
	if store == nil {
		panic("chat: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		store:   store,
		history: history,
		cache:   cache,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateSession returns the session for id, creating an anonymous one
// when id is empty or unknown. Unknown ids are kept so client ids stay stable.
func (m *Manager) GetOrCreateSession(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		session, err := m.store.GetSession(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	} else {
		id = uuid.NewString()
	}

	session := &Session{ID: id, State: StateAnonymous, CreatedAt: m.now()}
	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	m.logger.Debug("chat session created", "session_id", id)
	return session, nil
}

// GetSession returns the stored session without creating one.
func (m *Manager) GetSession(ctx context.Context, id string) (*Session, error) {
	return m.store.GetSession(ctx, strings.TrimSpace(id))
}

// SaveMessage appends msg to the session transcript. Messages of claimed
// sessions are also written to the user's permanent history.
func (m *Manager) SaveMessage(ctx context.Context, sessionID string, msg Message) (Message, error) {
	session, err := m.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return Message{}, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now()
	}
	msg.SessionID = session.ID
	if session.Claimed() {
		msg.UserID = session.UserID
	}

	if err := m.store.AppendMessage(ctx, session.ID, msg); err != nil {
		return Message{}, err
	}
	if session.Claimed() && m.history != nil {
		if _, err := m.history.Insert(ctx, []Message{msg}); err != nil {
			return msg, fmt.Errorf("chat: persist message to user history: %w", err)
		}
	}
	return msg, nil
}

// GetMessages returns the session transcript in append order.
func (m *Manager) GetMessages(ctx context.Context, sessionID string) ([]Message, error) {
	return m.store.ListMessages(ctx, sessionID, 0)
}

// TransferToUser claims the session for userID and copies its transcript into
// permanent history. It reports false when the session was already claimed by
// the same user.
func (m *Manager) TransferToUser(ctx context.Context, sessionID, userID string) (bool, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	changed, err := session.Claim(userID, m.now())
	if err != nil || !changed {
		return false, err
	}

	messages, err := m.store.ListMessages(ctx, sessionID, 0)
	if err != nil {
		return false, err
	}
	if m.history != nil && len(messages) > 0 {
		for i := range messages {
			messages[i].UserID = userID
		}
		inserted, err := m.history.Insert(ctx, messages)
		if err != nil {
			return false, fmt.Errorf("chat: transfer transcript: %w", err)
		}
		m.logger.Info("chat session transferred", "session_id", sessionID, "user_id", userID, "messages", inserted)
	}

	if err := m.store.SaveSession(ctx, session); err != nil {
		return false, err
	}
	return true, nil
}

// GetUserHistory returns the newest limit messages of the user's permanent history, oldest first.
func (m *Manager) GetUserHistory(ctx context.Context, userID string, limit int) ([]Message, error) {
	if m.history == nil || userID == "" {
		return []Message{}, nil
	}
	return m.history.ListByUser(ctx, userID, limit)
}

// GetSessionStats counts the session transcript.
func (m *Manager) GetSessionStats(ctx context.Context, sessionID string) (Stats, error) {
	messages, err := m.store.ListMessages(ctx, sessionID, 0)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalMessages: len(messages)}, nil
}

// ClearSession drops the transcript and cached answers. The claim is kept.
func (m *Manager) ClearSession(ctx context.Context, sessionID string) error {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := m.store.ClearMessages(ctx, sessionID); err != nil {
		return err
	}
	session.RecentAnswers = nil
	return m.store.SaveSession(ctx, session)
}

// LookupAnswer finds a near-duplicate of query on the same topic among the
// session's answered questions.
func (m *Manager) LookupAnswer(session *Session, query, topic string) (CachedAnswer, bool) {
	if m.cache == nil {
		return CachedAnswer{}, false
	}
	answer, score, ok := m.cache.Lookup(session, query, topic)
	if ok {
		m.logger.Debug("near-duplicate question", "session_id", session.ID, "similarity", score)
	}
	return answer, ok
}

// RememberAnswer records an answered question on the session.
func (m *Manager) RememberAnswer(ctx context.Context, session *Session, answer CachedAnswer) error {
	if m.cache == nil || session == nil {
		return nil
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = m.now()
	}
	m.cache.Remember(session, answer)
	return m.store.SaveSession(ctx, session)
}
