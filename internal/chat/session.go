package chat

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned by stores for unknown session ids.
	ErrSessionNotFound = errors.New("chat: session not found")
	// ErrSessionClaimed is returned when a session already belongs to another user.
	ErrSessionClaimed = errors.New("chat: session claimed by another user")
	// ErrUserRequired is returned when a claim is attempted without a user id.
	ErrUserRequired = errors.New("chat: user id required")
)

// SessionState tracks whether a session has been attached to a user.
type SessionState string

const (
	StateAnonymous SessionState = "anonymous"
	StateClaimed   SessionState = "claimed"
)

// Session is a conversation container keyed by an opaque id.
type Session struct {
	ID            string         `json:"id"`
	State         SessionState   `json:"state"`
	UserID        string         `json:"user_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	ClaimedAt     *time.Time     `json:"claimed_at,omitempty"`
	RecentAnswers []CachedAnswer `json:"recent_answers,omitempty"`
}

// Claimed reports whether the session belongs to a user.
func (s *Session) Claimed() bool {
	return s.State == StateClaimed
}

// Claim moves an anonymous session to claimed. Claiming again for the same
// user reports false with no error.
func (s *Session) Claim(userID string, at time.Time) (bool, error) {
	if userID == "" {
		return false, ErrUserRequired
	}
	if s.Claimed() {
		if s.UserID == userID {
			return false, nil
		}
		return false, ErrSessionClaimed
	}
	claimedAt := at.UTC()
	s.State = StateClaimed
	s.UserID = userID
	s.ClaimedAt = &claimedAt
	return true, nil
}

// Message is one chat turn, either from the user or from the assistant.
type Message struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id,omitempty"`
	Content          string    `json:"content"`
	IsUser           bool      `json:"is_user"`
	SuggestedActions []string  `json:"suggested_actions,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Stats summarizes a session transcript.
type Stats struct {
	TotalMessages int `json:"total_messages"`
}

// CachedAnswer is an answered query kept for near-duplicate detection.
type CachedAnswer struct {
	Query            string    `json:"query"`
	Topic            string    `json:"topic,omitempty"`
	Answer           string    `json:"answer"`
	Type             string    `json:"type"`
	SuggestedActions []string  `json:"suggested_actions,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
