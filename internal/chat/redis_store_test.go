package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, maxMessages int) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, time.Hour, maxMessages), mr
}

func TestRedisSessionStore_SessionRoundTrip(t *testing.T) {
	store, mr := newTestRedisStore(t, 0)
	ctx := context.Background()

	_, err := store.GetSession(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	session := &Session{ID: "abc", State: StateAnonymous, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.SaveSession(ctx, session))
	assert.True(t, mr.Exists("assistant:session:abc"))
	assert.Equal(t, time.Hour, mr.TTL("assistant:session:abc"))

	_, err = session.Claim("user-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.SaveSession(ctx, session))

	loaded, err := store.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, StateClaimed, loaded.State)
	assert.Equal(t, "user-1", loaded.UserID)

	assert.Error(t, store.SaveSession(ctx, &Session{}))
}

func TestRedisSessionStore_MessagesTrimmed(t *testing.T) {
	store, mr := newTestRedisStore(t, 5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, store.AppendMessage(ctx, "abc", Message{ID: fmt.Sprintf("m%d", i), Content: fmt.Sprintf("msg %d", i)}))
	}

	messages, err := store.ListMessages(ctx, "abc", 0)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	assert.Equal(t, "m3", messages[0].ID)
	assert.Equal(t, "m7", messages[4].ID)
	assert.Equal(t, time.Hour, mr.TTL("assistant:session:abc:messages"))

	tail, err := store.ListMessages(ctx, "abc", 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "m6", tail[0].ID)

	require.NoError(t, store.ClearMessages(ctx, "abc"))
	messages, err = store.ListMessages(ctx, "abc", 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRedisSessionStore_SkipsCorruptEntries(t *testing.T) {
	store, mr := newTestRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "abc", Message{ID: "ok", Content: "fine"}))
	_, err := mr.RPush("assistant:session:abc:messages", "{not json")
	require.NoError(t, err)

	messages, err := store.ListMessages(ctx, "abc", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "ok", messages[0].ID)
}

func TestRedisSessionStore_ConnectionError(t *testing.T) {
	store, mr := newTestRedisStore(t, 0)
	mr.Close()

	_, err := store.GetSession(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_WithRedisStore(t *testing.T) {
	store, _ := newTestRedisStore(t, 0)
	m := NewManager(store, NewMemoryHistoryRepository(), NewQuestionCache(0, 0), nil)
	ctx := context.Background()

	session, err := m.GetOrCreateSession(ctx, "")
	require.NoError(t, err)
	_, err = m.SaveMessage(ctx, session.ID, Message{Content: "who is dr. ahmed taha", IsUser: true})
	require.NoError(t, err)

	messages, err := m.GetMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "who is dr. ahmed taha", messages[0].Content)
	assert.Equal(t, session.ID, messages[0].SessionID)
}
