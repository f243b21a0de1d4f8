package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-assistant/internal/chat"
	appconfig "github.com/wolfman30/clinic-assistant/internal/config"
	"github.com/wolfman30/clinic-assistant/internal/directory"
	"github.com/wolfman30/clinic-assistant/internal/notify"
	"github.com/wolfman30/clinic-assistant/internal/triage"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore keeps sessions in Redis when a client is available and in
// process memory otherwise.
func BuildSessionStore(client *redis.Client, cfg *appconfig.Config) chat.SessionStore {
	maxMessages := 0
	if cfg != nil {
		maxMessages = cfg.ChatSessionMaxMessages
	}
	if client == nil {
		return chat.NewMemorySessionStore(maxMessages)
	}
	return chat.NewRedisSessionStore(client, cfg.ChatSessionTTL, maxMessages)
}

// BuildHistoryRepository returns the permanent history store.
func BuildHistoryRepository(pool *pgxpool.Pool) chat.HistoryRepository {
	if pool == nil {
		return chat.NewMemoryHistoryRepository()
	}
	return chat.NewPostgresHistoryRepository(pool)
}

// BuildDirectory reads doctors from Postgres, or serves the vocabulary roster
// when no database is configured.
func BuildDirectory(pool *pgxpool.Pool, vocab *triage.Vocabulary) directory.Repository {
	if pool != nil {
		return directory.NewPostgresRepository(pool)
	}
	var doctors []directory.Doctor
	if vocab != nil {
		doctors = make([]directory.Doctor, 0, len(vocab.Doctors))
		for i, d := range vocab.Doctors {
			doctors = append(doctors, directory.Doctor{
				ID:             fmt.Sprintf("roster-%d", i+1),
				Name:           d.Name,
				Specialization: d.Specialization,
			})
		}
	}
	return directory.NewInMemoryRepository(doctors...)
}

// BuildEmailSender picks SendGrid, then SES, then the logging stub. The second
// return value names the provider for startup logs.
func BuildEmailSender(cfg *appconfig.Config, ses notify.SESAPI, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg != nil && cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "" {
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender, "sendgrid"
		}
	}
	if cfg != nil && cfg.SESFromEmail != "" && ses != nil {
		if sender := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender, "ses"
		}
	}
	return notify.NewStubEmailSender(logger), "stub"
}
