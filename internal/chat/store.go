package chat

import "context"

// SessionStore persists session records and their transcripts.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	AppendMessage(ctx context.Context, sessionID string, msg Message) error
	// ListMessages returns the transcript in append order; limit > 0 keeps the newest limit messages.
	ListMessages(ctx context.Context, sessionID string, limit int64) ([]Message, error)
	ClearMessages(ctx context.Context, sessionID string) error
}

// HistoryRepository is the permanent per-user history.
type HistoryRepository interface {
	// Insert stores messages that are not stored yet and reports how many were new.
	Insert(ctx context.Context, msgs []Message) (int, error)
	// ListByUser returns the newest limit messages of a user in ascending time order.
	ListByUser(ctx context.Context, userID string, limit int) ([]Message, error)
}
