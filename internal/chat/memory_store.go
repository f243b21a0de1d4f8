package chat

import (
	"context"
	"errors"
	"sync"
)

// MemorySessionStore keeps sessions in process memory. Used for tests and local runs without Redis.
type MemorySessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]Session
	messages    map[string][]Message
	maxMessages int
}

// NewMemorySessionStore creates an empty store trimming transcripts to maxMessages (<= 0 means 250).
func NewMemorySessionStore(maxMessages int) *MemorySessionStore {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &MemorySessionStore{
		sessions:    make(map[string]Session),
		messages:    make(map[string][]Message),
		maxMessages: maxMessages,
	}
}

func (s *MemorySessionStore) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	session.RecentAnswers = append([]CachedAnswer(nil), session.RecentAnswers...)
	return &session, nil
}

func (s *MemorySessionStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return errors.New("chat: session id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *session
	stored.RecentAnswers = append([]CachedAnswer(nil), session.RecentAnswers...)
	s.sessions[session.ID] = stored
	return nil
}

func (s *MemorySessionStore) AppendMessage(ctx context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return errors.New("chat: session id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.messages[sessionID], msg)
	if len(list) > s.maxMessages {
		list = append([]Message(nil), list[len(list)-s.maxMessages:]...)
	}
	s.messages[sessionID] = list
	return nil
}

func (s *MemorySessionStore) ListMessages(ctx context.Context, sessionID string, limit int64) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.messages[sessionID]
	if limit > 0 && int64(len(list)) > limit {
		list = list[int64(len(list))-limit:]
	}
	return append([]Message{}, list...), nil
}

func (s *MemorySessionStore) ClearMessages(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	return nil
}
