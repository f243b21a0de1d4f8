package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	Debug     bool
	LogLevel  string
	LogFormat string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Chat sessions
	ChatSessionTTL         time.Duration
	ChatSessionMaxMessages int
	HistoryLimit           int

	// Triage and recommendation
	KnowledgeSource      string
	TriageVocabularyPath string
	SimilarityThreshold  float64
	AnswerCacheEnabled   bool
	AnswerCacheSize      int
	RankingTieBreak      string
	MaxSuggestions       int

	// Answer disclaimer
	DisclaimerEnabled          bool
	DisclaimerLevel            string
	DisclaimerFirstMessageOnly bool

	// HTTP
	AuthJWTSecret      string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// AWS (S3 knowledge source, SES email)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	SESFromEmail        string
	EmergencyAlertEmail string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		Debug:     getEnvAsBool("APP_DEBUG", false),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ChatSessionTTL:         getEnvAsDuration("CHAT_SESSION_TTL", 24*time.Hour),
		ChatSessionMaxMessages: getEnvAsInt("CHAT_SESSION_MAX_MESSAGES", 250),
		HistoryLimit:           getEnvAsInt("HISTORY_LIMIT", 50),

		KnowledgeSource:      getEnv("KNOWLEDGE_SOURCE", "configs/knowledge.md"),
		TriageVocabularyPath: getEnv("TRIAGE_VOCABULARY_PATH", ""),
		SimilarityThreshold:  getEnvAsFloat("SIMILARITY_THRESHOLD", 0.70),
		AnswerCacheEnabled:   getEnvAsBool("ANSWER_CACHE_ENABLED", true),
		AnswerCacheSize:      getEnvAsInt("ANSWER_CACHE_SIZE", 10),
		RankingTieBreak:      strings.ToLower(strings.TrimSpace(getEnv("RANKING_TIE_BREAK", "declaration"))),
		MaxSuggestions:       getEnvAsInt("MAX_SUGGESTIONS", 3),

		DisclaimerEnabled:          getEnvAsBool("DISCLAIMER_ENABLED", false),
		DisclaimerLevel:            getEnv("DISCLAIMER_LEVEL", "medium"),
		DisclaimerFirstMessageOnly: getEnvAsBool("DISCLAIMER_FIRST_MESSAGE_ONLY", true),

		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clinic Assistant"),

		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		EmergencyAlertEmail: getEnv("EMERGENCY_ALERT_EMAIL", ""),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
