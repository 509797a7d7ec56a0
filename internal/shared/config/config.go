package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseURL string
	Port        string
	Env         string
	LogLevel    string

	// Realtime
	RealtimePort string
	RedisAddr    string
	RedisChannel string
	AMQPURL      string
	AMQPExchange string
	WSBufferSize int

	// Dashboard token verification
	JWTSecret string

	// Meta Graph API
	GraphAPIBaseURL    string
	GraphAPIVersion    string
	MetaAppSecret      string
	InstagramAppSecret string
	WhatsAppAppSecret  string
	WebhookVerifyToken string

	// Outbound sending
	WhatsAppSessionWindow time.Duration
	OutboundTimeout       time.Duration
	OutboundMaxAttempts   int
	OutboundBaseBackoff   time.Duration
	OutboundMaxBackoff    time.Duration

	TokenSweepCron string

	// Receipts that arrive before their send is recorded
	ReceiptHold      time.Duration
	ReceiptPurgeCron string

	// Reply suggestions
	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string

	AuditRetentionDays int
	AuditCleanupCron   string

	// Reconnect alerts by email
	EmailProvider string
	EmailAPIKey   string
	EmailFrom     string
	EmailFromName string
	AlertEmailTo  []string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️ .env file not found, using system environment variables")
	}

	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Port:               os.Getenv("PORT"),
		Env:                os.Getenv("ENV"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		RealtimePort:       os.Getenv("REALTIME_PORT"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisChannel:       os.Getenv("REDIS_CHANNEL"),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       os.Getenv("AMQP_EXCHANGE"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GraphAPIBaseURL:    os.Getenv("GRAPH_API_BASE_URL"),
		GraphAPIVersion:    os.Getenv("GRAPH_API_VERSION"),
		MetaAppSecret:      os.Getenv("META_APP_SECRET"),
		InstagramAppSecret: os.Getenv("INSTAGRAM_APP_SECRET"),
		WhatsAppAppSecret:  os.Getenv("WHATSAPP_APP_SECRET"),
		WebhookVerifyToken: os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		TokenSweepCron:     os.Getenv("TOKEN_SWEEP_CRON"),
		ReceiptPurgeCron:   os.Getenv("RECEIPT_PURGE_CRON"),
		LLMProvider:        os.Getenv("LLM_PROVIDER"),
		LLMAPIKey:          os.Getenv("LLM_API_KEY"),
		LLMModel:           os.Getenv("LLM_MODEL"),
		LLMBaseURL:         os.Getenv("LLM_BASE_URL"),
		AuditCleanupCron:   os.Getenv("AUDIT_CLEANUP_CRON"),
		EmailProvider:      os.Getenv("EMAIL_PROVIDER"),
		EmailAPIKey:        os.Getenv("EMAIL_API_KEY"),
		EmailFrom:          os.Getenv("EMAIL_FROM"),
		EmailFromName:      os.Getenv("EMAIL_FROM_NAME"),
		AlertEmailTo:       getList("ALERT_EMAIL_TO"),

		WSBufferSize:          getInt("WS_BUFFER_SIZE", 64),
		AuditRetentionDays:    getInt("AUDIT_RETENTION_DAYS", 90),
		WhatsAppSessionWindow: getDuration("WHATSAPP_SESSION_WINDOW", 24*time.Hour),
		OutboundTimeout:       getDuration("OUTBOUND_TIMEOUT", 15*time.Second),
		OutboundMaxAttempts:   getInt("OUTBOUND_MAX_ATTEMPTS", 3),
		OutboundBaseBackoff:   getDuration("OUTBOUND_BASE_BACKOFF", time.Second),
		OutboundMaxBackoff:    getDuration("OUTBOUND_MAX_BACKOFF", 10*time.Second),
		ReceiptHold:           getDuration("RECEIPT_HOLD", 10*time.Minute),
	}

	// Default values
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RealtimePort == "" {
		cfg.RealtimePort = "8081"
	}
	if cfg.RedisChannel == "" {
		cfg.RedisChannel = "inbox:realtime"
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = "inbox.events"
	}
	if cfg.GraphAPIBaseURL == "" {
		cfg.GraphAPIBaseURL = "https://graph.facebook.com"
	}
	if cfg.GraphAPIVersion == "" {
		cfg.GraphAPIVersion = "v21.0"
	}
	if cfg.InstagramAppSecret == "" {
		cfg.InstagramAppSecret = cfg.MetaAppSecret
	}
	if cfg.WhatsAppAppSecret == "" {
		cfg.WhatsAppAppSecret = cfg.MetaAppSecret
	}
	if cfg.TokenSweepCron == "" {
		cfg.TokenSweepCron = "0 */30 * * * *"
	}
	if cfg.ReceiptPurgeCron == "" {
		cfg.ReceiptPurgeCron = "0 */10 * * * *"
	}
	if cfg.AuditCleanupCron == "" {
		cfg.AuditCleanupCron = "0 0 3 * * *"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "openai"
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.EmailProvider == "" {
		cfg.EmailProvider = "resend"
	}
	if cfg.EmailFromName == "" {
		cfg.EmailFromName = "Omnichannel Inbox"
	}

	return cfg
}

// IsProduction reports whether the service runs with production defaults
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid integer, using default")
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid duration, using default")
		return fallback
	}
	return v
}

// getList splits a comma separated value, dropping blanks
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
