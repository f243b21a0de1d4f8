package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-assistant/internal/assistant"
	"github.com/wolfman30/clinic-assistant/internal/chat"
	"github.com/wolfman30/clinic-assistant/internal/compliance"
	appconfig "github.com/wolfman30/clinic-assistant/internal/config"
	"github.com/wolfman30/clinic-assistant/internal/knowledge"
	"github.com/wolfman30/clinic-assistant/internal/notify"
	"github.com/wolfman30/clinic-assistant/internal/observability/metrics"
	"github.com/wolfman30/clinic-assistant/internal/recommend"
	"github.com/wolfman30/clinic-assistant/internal/triage"
	"github.com/wolfman30/clinic-assistant/internal/webchat"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

// AssistantDeps are the external clients the assistant can use. Every client
// is optional; missing ones fall back to in-process implementations.
type AssistantDeps struct {
	Redis    *redis.Client
	Pool     *pgxpool.Pool
	AuditDB  *sql.DB
	S3       knowledge.S3API
	SES      notify.SESAPI
	Registry *prometheus.Registry
}

// Assistant bundles the wired service and its HTTP surfaces.
type Assistant struct {
	Service   *assistant.Service
	Handler   *assistant.Handler
	WebChat   *webchat.Handler
	Knowledge *knowledge.Store
	Alerter   *notify.Alerter
}

// BuildAssistant wires the analyzer, knowledge store, engine, chat manager and
// delivery controller from config.
func BuildAssistant(ctx context.Context, cfg *appconfig.Config, deps AssistantDeps, logger *logging.Logger) (*Assistant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	vocab, err := triage.LoadVocabulary(cfg.TriageVocabularyPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load vocabulary: %w", err)
	}

	source, err := knowledge.NewSource(cfg.KnowledgeSource, deps.S3)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: knowledge source: %w", err)
	}
	corpus := knowledge.NewStore(source, logger)
	if _, err := corpus.Load(ctx); err != nil {
		logger.Warn("knowledge corpus not readable at startup", "source", cfg.KnowledgeSource, "error", err)
	}

	dir := BuildDirectory(deps.Pool, vocab)
	engine := recommend.NewEngine(triage.NewAnalyzer(vocab), corpus, dir, recommend.Options{
		TieBreak:       cfg.RankingTieBreak,
		MaxSuggestions: cfg.MaxSuggestions,
	}, logger)

	var cache *chat.QuestionCache
	if cfg.AnswerCacheEnabled {
		cache = chat.NewQuestionCache(cfg.AnswerCacheSize, cfg.SimilarityThreshold)
	}
	manager := chat.NewManager(BuildSessionStore(deps.Redis, cfg), BuildHistoryRepository(deps.Pool), cache, logger)

	assistantMetrics := metrics.NewAssistantMetrics(deps.Registry)

	var audit *compliance.AuditService
	if deps.AuditDB != nil {
		audit = compliance.NewAuditService(deps.AuditDB)
	}
	disclaimer := compliance.NewDisclaimerService(audit, compliance.DisclaimerConfig{
		Level:            compliance.ParseDisclaimerLevel(cfg.DisclaimerLevel),
		Enabled:          cfg.DisclaimerEnabled,
		FirstMessageOnly: cfg.DisclaimerFirstMessageOnly,
	})

	sender, provider := BuildEmailSender(cfg, deps.SES, logger)
	alerter := notify.NewAlerter(sender, cfg.EmergencyAlertEmail, assistantMetrics, logger)
	logger.Info("emergency alerts configured", "provider", provider, "enabled", alerter.Enabled())

	service := assistant.NewService(assistant.Config{
		Engine:       engine,
		Chat:         manager,
		Knowledge:    corpus,
		Directory:    dir,
		Audit:        audit,
		Disclaimer:   disclaimer,
		Alerter:      alerter,
		Metrics:      assistantMetrics,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       logger,
	})

	return &Assistant{
		Service:   service,
		Handler:   assistant.NewHandler(service, deps.Registry, cfg.Debug, logger),
		WebChat:   webchat.NewHandler(service, cfg.Debug, logger),
		Knowledge: corpus,
		Alerter:   alerter,
	}, nil
}
