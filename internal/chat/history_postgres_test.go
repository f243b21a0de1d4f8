package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresHistoryRepository_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresHistoryRepositoryWithDB(mock)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "m1", SessionID: "s1", UserID: "u1", Content: "hello", IsUser: true, CreatedAt: at},
		{ID: "m2", SessionID: "s1", UserID: "u1", Content: "hi", SuggestedActions: []string{"Book appointment"}, CreatedAt: at.Add(time.Second)},
	}

	mock.ExpectExec("INSERT INTO chat_messages").
		WithArgs("m1", "s1", "u1", "hello", true, []string{}, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("ON CONFLICT \\(id\\) DO NOTHING").
		WithArgs("m2", "s1", "u1", "hi", false, []string{"Book appointment"}, at.Add(time.Second)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := repo.Insert(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHistoryRepository_InsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresHistoryRepositoryWithDB(mock)
	mock.ExpectExec("INSERT INTO chat_messages").WillReturnError(errors.New("db down"))

	_, err = repo.Insert(context.Background(), []Message{{ID: "m1"}})
	assert.ErrorContains(t, err, "db down")
}

func TestPostgresHistoryRepository_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresHistoryRepositoryWithDB(mock)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM chat_messages").
		WithArgs("u1", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "user_id", "content", "is_user", "suggested_actions", "created_at"}).
			AddRow("m1", "s1", "u1", "hello", true, []string{}, at).
			AddRow("m2", "s1", "u1", "hi", false, []string{"Book appointment"}, at.Add(time.Second)))

	msgs, err := repo.ListByUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, []string{"Book appointment"}, msgs[1].SuggestedActions)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryHistoryRepository_InsertIfAbsent(t *testing.T) {
	repo := NewMemoryHistoryRepository()
	ctx := context.Background()
	at := time.Now().UTC()

	n, err := repo.Insert(ctx, []Message{{ID: "a", UserID: "u", CreatedAt: at}, {ID: "b", UserID: "u", CreatedAt: at.Add(time.Second)}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.Insert(ctx, []Message{{ID: "a", UserID: "u", CreatedAt: at}})
	require.NoError(t, err)
	assert.Zero(t, n)

	msgs, err := repo.ListByUser(ctx, "u", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "b", msgs[0].ID)
}
