package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/services"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/config"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/database"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/shared/utils"
)

// diagnose checks one platform connection from the command line:
//
//	go run ./cmd/diagnose -platform <uuid> [-probe-to <recipient> -text "ping"]
func main() {
	platformFlag := flag.String("platform", "", "Platform ID to check")
	probeTo := flag.String("probe-to", "", "Optional recipient for a test message")
	probeText := flag.String("text", "Connection test", "Text of the test message")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	cfg := config.LoadConfig()
	utils.InitLogger(cfg.Env, cfg.LogLevel)

	platformID, err := uuid.Parse(*platformFlag)
	if err != nil {
		log.Fatal().Str("platform", *platformFlag).Msg("❌ -platform must be a platform UUID")
	}

	db, err := database.NewDB(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect database")
	}
	defer db.Close()

	platformRepo := repositories.NewPlatformRepo(db.GORM)
	customerRepo := repositories.NewCustomerRepo(db.GORM)
	conversationRepo := repositories.NewConversationRepo(db.GORM)
	messageRepo := repositories.NewMessageRepo(db.GORM)

	graph := channel.NewGraphClient(channel.GraphConfig{
		BaseURL:    cfg.GraphAPIBaseURL,
		APIVersion: cfg.GraphAPIVersion,
		Timeout:    cfg.OutboundTimeout,
	})
	tokens := services.NewTokenManager(platformRepo, graph, audit.NewService(db.GORM), nil)
	identity := services.NewIdentityResolver(customerRepo, conversationRepo)
	dispatcher := services.NewDispatcher(messageRepo, conversationRepo, customerRepo, identity, tokens,
		services.NewSendPolicy(messageRepo, cfg.WhatsAppSessionWindow), graph, nil, nil,
		services.RetryConfig{
			MaxAttempts:    cfg.OutboundMaxAttempts,
			BaseBackoff:    cfg.OutboundBaseBackoff,
			MaxBackoff:     cfg.OutboundMaxBackoff,
			AttemptTimeout: cfg.OutboundTimeout,
		})
	diagnostics := services.NewDiagnostics(platformRepo, messageRepo, tokens, dispatcher)

	var probe *services.ProbeRequest
	if *probeTo != "" {
		probe = &services.ProbeRequest{To: *probeTo, Text: *probeText}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// uuid.Nil skips the tenant check; the operator reads any platform
	report, err := diagnostics.Check(ctx, uuid.Nil, platformID, probe)
	if err != nil {
		log.Fatal().Err(err).Str("platform_id", platformID.String()).Msg("❌ Diagnostics failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to print report")
	}
	if !report.Active {
		os.Exit(2)
	}
}
