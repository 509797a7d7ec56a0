package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/analytics"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/auth"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/email"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/export"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/llm"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/notification"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/realtime"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/scheduler"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/handlers"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/services"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/config"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/database"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/metrics"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/utils"

	_ "github.com/MuhamadAgungGumelar/omnichannel-inbox-be/cmd/inbox-api/docs"
)

const redisRetryInterval = 15 * time.Second

// @title Omnichannel Inbox API
// @version 1.0
// @description Facebook Messenger, Instagram and WhatsApp Cloud API conversations in one inbox
// @contact.name API Support
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg := config.LoadConfig()
	utils.InitLogger(cfg.Env, cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("🚀 Starting inbox-api")

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("❌ JWT_SECRET is required")
	}
	if cfg.MetaAppSecret == "" {
		log.Warn().Msg("⚠️ META_APP_SECRET not set, Messenger webhooks will be rejected")
	}

	db, err := database.NewDB(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect database")
	}
	defer db.Close()

	// Realtime hub: Redis fan-out across instances, AMQP mirror for consumers
	hub := realtime.NewHub(cfg.WSBufferSize)
	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		hub.UseRedis(redisClient, cfg.RedisChannel)
		hub.RunRedisSubscriber(rootCtx, redisRetryInterval)
		defer hub.StopRedisSubscriber()
	}
	if cfg.AMQPURL != "" {
		sink, err := realtime.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			utils.LogError("❌ AMQP sink unavailable", err, map[string]interface{}{"exchange": cfg.AMQPExchange})
		} else {
			hub.AddSink(sink)
			defer sink.Close()
			utils.LogInfo("🐇 Mirroring realtime events to AMQP", map[string]interface{}{"exchange": cfg.AMQPExchange})
		}
	}

	if len(cfg.AlertEmailTo) > 0 {
		provider, err := email.NewProvider(cfg.EmailProvider, cfg.EmailAPIKey, email.Sender{Email: cfg.EmailFrom, Name: cfg.EmailFromName})
		if err != nil {
			utils.LogError("❌ Reconnect alerts disabled", err, map[string]interface{}{"provider": cfg.EmailProvider})
		} else {
			alerts := notification.NewAlertSink(provider, cfg.AlertEmailTo, 32)
			alerts.Start()
			defer alerts.Close()
			hub.AddSink(alerts)
			utils.LogInfo("📧 Reconnect alerts by email", map[string]interface{}{"provider": provider.Name(), "recipients": len(cfg.AlertEmailTo)})
		}
	}

	// Init repositories
	platformRepo := repositories.NewPlatformRepo(db.GORM)
	customerRepo := repositories.NewCustomerRepo(db.GORM)
	conversationRepo := repositories.NewConversationRepo(db.GORM)
	messageRepo := repositories.NewMessageRepo(db.GORM)
	auditService := audit.NewService(db.GORM)

	graph := channel.NewGraphClient(channel.GraphConfig{
		BaseURL:    cfg.GraphAPIBaseURL,
		APIVersion: cfg.GraphAPIVersion,
		Timeout:    cfg.OutboundTimeout,
	})

	// One lock set shared by every writer of a conversation
	locks := services.NewConversationLocks()

	// Init services
	tokens := services.NewTokenManager(platformRepo, graph, auditService, hub)
	identity := services.NewIdentityResolver(customerRepo, conversationRepo)
	policy := services.NewSendPolicy(messageRepo, cfg.WhatsAppSessionWindow)
	dispatcher := services.NewDispatcher(messageRepo, conversationRepo, customerRepo, identity, tokens, policy, graph, hub, locks,
		services.RetryConfig{
			MaxAttempts:    cfg.OutboundMaxAttempts,
			BaseBackoff:    cfg.OutboundBaseBackoff,
			MaxBackoff:     cfg.OutboundMaxBackoff,
			AttemptTimeout: cfg.OutboundTimeout,
		})
	ingest := services.NewIngestService(platformRepo, conversationRepo, messageRepo, identity, services.NewNormalizer(messageRepo), tokens, auditService, hub, locks,
		services.WebhookConfig{
			Secrets: map[channel.Type]string{
				channel.Facebook:  cfg.MetaAppSecret,
				channel.Instagram: cfg.InstagramAppSecret,
				channel.WhatsApp:  cfg.WhatsAppAppSecret,
			},
			VerifyToken: cfg.WebhookVerifyToken,
		})
	conversations := services.NewConversationService(conversationRepo, messageRepo, customerRepo, auditService, hub, locks)
	diagnostics := services.NewDiagnostics(platformRepo, messageRepo, tokens, dispatcher)

	var suggester services.ReplySuggester
	if cfg.LLMAPIKey != "" {
		llmService, err := llm.NewService(&llm.ProviderConfig{
			Type:    llm.ProviderType(cfg.LLMProvider),
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
		})
		if err != nil {
			utils.LogError("❌ Reply suggestions disabled", err, map[string]interface{}{"provider": cfg.LLMProvider})
		} else {
			suggester = llmService
			log.Info().Str("provider", llmService.GetProviderName()).Msg("🤖 Reply suggestions enabled")
		}
	} else {
		log.Warn().Msg("⚠️ LLM_API_KEY not set, reply suggestions disabled")
	}
	suggest := services.NewSuggestService(conversations, platformRepo, suggester)

	// Scheduled jobs
	jobs := scheduler.New()
	if err := jobs.Add("token-sweep", cfg.TokenSweepCron, func(ctx context.Context) error {
		report, err := tokens.Sweep(ctx)
		if err != nil {
			return err
		}
		log.Info().
			Int("checked", report.Checked).
			Int("invalidated", report.Invalidated).
			Int("errors", report.Errors).
			Msg("🔑 Token sweep finished")
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid TOKEN_SWEEP_CRON")
	}
	if err := jobs.Add("receipt-purge", cfg.ReceiptPurgeCron, func(ctx context.Context) error {
		purged, err := messageRepo.PurgeReceipts(ctx, time.Now().Add(-cfg.ReceiptHold))
		if err != nil {
			return err
		}
		if purged > 0 {
			log.Info().Int64("purged", purged).Msg("🧹 Dropped receipts for messages sent outside the inbox")
		}
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid RECEIPT_PURGE_CRON")
	}
	if err := jobs.Add("audit-cleanup", cfg.AuditCleanupCron, func(ctx context.Context) error {
		_, err := auditService.DeleteOldLogs(ctx, cfg.AuditRetentionDays)
		return err
	}); err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid AUDIT_CLEANUP_CRON")
	}
	jobs.Start()

	// Init handlers
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	h := handlers.Handlers{
		Health:       handlers.NewHealthHandler(db.GORM),
		Webhook:      handlers.NewWebhookHandler(ingest),
		Platform:     handlers.NewPlatformHandler(platformRepo, tokens, diagnostics, dispatcher),
		Conversation: handlers.NewConversationHandler(conversations, dispatcher, suggest),
		Audit:        handlers.NewAuditHandler(auditService),
		Report: handlers.NewReportHandler(
			services.NewStatsService(analytics.NewAggregator(db.GORM), messageRepo),
			services.NewTranscriptService(conversations, platformRepo, export.NewService()),
		),
	}

	// Init Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Omnichannel Inbox API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(metrics.NewHTTPMetrics("inbox-api").Middleware())

	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handlers.RegisterRoutes(app, h, auth.AuthMiddleware(jwtService))

	// Realtime WebSocket server
	mux := http.NewServeMux()
	mux.Handle("/ws", realtime.NewHandler(hub, jwtService))
	wsServer := &http.Server{
		Addr:              ":" + cfg.RealtimePort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.RealtimePort).Msg("🔌 Realtime WebSocket listening on /ws")
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Realtime server failed")
		}
	}()

	go func() {
		log.Info().Str("port", cfg.Port).Msg("✅ inbox-api running")
		log.Info().Msgf("📄 Swagger UI: http://localhost:%s/swagger/", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("❌ HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("🛑 Shutting down...")

	jobs.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Realtime shutdown failed")
	}
	log.Info().Msg("👋 inbox-api stopped")
}
