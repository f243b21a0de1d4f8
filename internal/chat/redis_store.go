package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	sessionKeyPrefix     = "assistant:session:"
	defaultSessionTTL    = 24 * time.Hour
	defaultMaxMessages   = 250
	redisStoreTracerName = "clinic.internal.chat.redis_store"
)

// RedisSessionStore keeps session records as JSON and transcripts as Redis lists.
type RedisSessionStore struct {
	redis       *redis.Client
	tracer      trace.Tracer
	ttl         time.Duration
	maxMessages int64
}

// NewRedisSessionStore creates a store. ttl <= 0 and maxMessages <= 0 fall back to 24h and 250.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration, maxMessages int) *RedisSessionStore {
	if client == nil {
		panic("chat: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &RedisSessionStore{
		redis:       client,
		tracer:      otel.Tracer(redisStoreTracerName),
		ttl:         ttl,
		maxMessages: int64(maxMessages),
	}
}

func (s *RedisSessionStore) GetSession(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "chat.session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("chat: load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return errors.New("chat: session id required")
	}
	ctx, span := s.tracer.Start(ctx, "chat.session.save")
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) AppendMessage(ctx context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return errors.New("chat: session id required")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat: marshal message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "chat.session.append_message")
	defer span.End()

	key := messagesKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	pipe.Expire(ctx, sessionKey(sessionID), s.ttl)
	pipe.LTrim(ctx, key, -s.maxMessages, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: append message: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) ListMessages(ctx context.Context, sessionID string, limit int64) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "chat.session.list_messages")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, messagesKey(sessionID), start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisSessionStore) ClearMessages(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "chat.session.clear_messages")
	defer span.End()

	if err := s.redis.Del(ctx, messagesKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: clear messages: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func messagesKey(id string) string {
	return sessionKeyPrefix + id + ":messages"
}
