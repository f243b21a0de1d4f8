// Package compliance records the assistant's audit trail.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// EventEmergencyDetected is logged when a query carries emergency terms.
	EventEmergencyDetected AuditEventType = "assistant.emergency_detected"
	// EventSessionTransferred is logged when an anonymous transcript is claimed by a user.
	EventSessionTransferred AuditEventType = "assistant.session_transferred"
	// EventFault is logged when answering a query failed internally.
	EventFault AuditEventType = "assistant.fault"
	// EventDisclaimerSent is logged when a disclaimer is added to an answer.
	EventDisclaimerSent AuditEventType = "compliance.disclaimer_sent"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	SessionID string          `json:"session_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Query     string          `json:"query,omitempty"`
	Terms     []string        `json:"terms,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For emergency detected
	QueryType       string   `json:"query_type,omitempty"`
	Specializations []string `json:"specializations,omitempty"`

	// For session transferred
	MessagesCopied int `json:"messages_copied,omitempty"`

	// For faults
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`

	// For disclaimer sent
	DisclaimerLevel string `json:"disclaimer_level,omitempty"`
	DisclaimerText  string `json:"disclaimer_text,omitempty"`
}

// AuditService handles audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event. A nil service discards the event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Terms == nil {
		event.Terms = []string{}
	}
	event.Query = ScrubPII(event.Query)
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO assistant_audit_events (
			id, event_type, session_id, user_id, query, terms, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		nullString(event.SessionID),
		nullString(event.UserID),
		nullString(event.Query),
		pq.Array(event.Terms),
		[]byte(details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogEmergencyDetected logs a query that matched emergency terms.
func (s *AuditService) LogEmergencyDetected(ctx context.Context, sessionID, userID, query, queryType string, terms, specializations []string) error {
	details := AuditDetails{
		QueryType:       queryType,
		Specializations: specializations,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventEmergencyDetected,
		SessionID: sessionID,
		UserID:    userID,
		Query:     query,
		Terms:     terms,
		Details:   detailsJSON,
	})
}

// LogSessionTransferred logs an anonymous session being claimed by a user.
func (s *AuditService) LogSessionTransferred(ctx context.Context, sessionID, userID string, copied int) error {
	detailsJSON, _ := json.Marshal(AuditDetails{MessagesCopied: copied})

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventSessionTransferred,
		SessionID: sessionID,
		UserID:    userID,
		Details:   detailsJSON,
	})
}

// LogFault logs an internal failure. The query text is kept so the failing input
// can be replayed.
func (s *AuditService) LogFault(ctx context.Context, sessionID, userID, query, stage string, cause error) error {
	details := AuditDetails{Stage: stage}
	if cause != nil {
		details.Error = cause.Error()
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventFault,
		SessionID: sessionID,
		UserID:    userID,
		Query:     query,
		Details:   detailsJSON,
	})
}

// LogDisclaimerSent logs when a disclaimer is added to an answer.
func (s *AuditService) LogDisclaimerSent(ctx context.Context, sessionID, userID, level, disclaimerText string) error {
	details := AuditDetails{
		DisclaimerLevel: level,
		DisclaimerText:  disclaimerText,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventDisclaimerSent,
		SessionID: sessionID,
		UserID:    userID,
		Details:   detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, session_id, user_id, query, terms, details, created_at
		FROM assistant_audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(" AND session_id = $%d", argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, string(filter.EventType))
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var eventType string
		var sessionID, userID, text sql.NullString
		var terms pq.StringArray
		var details []byte
		err := rows.Scan(
			&e.ID, &eventType, &sessionID, &userID, &text, &terms, &details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.EventType = AuditEventType(eventType)
		e.SessionID = sessionID.String
		e.UserID = userID.String
		e.Query = text.String
		e.Terms = []string(terms)
		e.Details = json.RawMessage(details)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to read audit events: %w", err)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	SessionID string
	UserID    string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
