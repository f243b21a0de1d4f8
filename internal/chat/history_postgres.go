package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type historyDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresHistoryRepository stores permanent user history in chat_messages.
type PostgresHistoryRepository struct {
	db historyDB
}

// NewPostgresHistoryRepository creates a repository backed by pool.
func NewPostgresHistoryRepository(pool *pgxpool.Pool) *PostgresHistoryRepository {
	if pool == nil {
		panic("chat: pgx pool required")
	}
	return &PostgresHistoryRepository{db: pool}
}

func newPostgresHistoryRepositoryWithDB(db historyDB) *PostgresHistoryRepository {
	if db == nil {
		panic("chat: db required")
	}
	return &PostgresHistoryRepository{db: db}
}

func (r *PostgresHistoryRepository) Insert(ctx context.Context, msgs []Message) (int, error) {
	query := `
		INSERT INTO chat_messages (id, session_id, user_id, content, is_user, suggested_actions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	inserted := 0
	for _, msg := range msgs {
		actions := msg.SuggestedActions
		if actions == nil {
			actions = []string{}
		}
		tag, err := r.db.Exec(ctx, query, msg.ID, msg.SessionID, msg.UserID, msg.Content, msg.IsUser, actions, msg.CreatedAt)
		if err != nil {
			return inserted, fmt.Errorf("chat: insert history message %s: %w", msg.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *PostgresHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id::text, session_id, user_id, content, is_user, suggested_actions, created_at
		FROM (
			SELECT id, session_id, user_id, content, is_user, suggested_actions, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list user history: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.UserID, &msg.Content, &msg.IsUser, &msg.SuggestedActions, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: scan history message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate user history: %w", err)
	}
	return out, nil
}
