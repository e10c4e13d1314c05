package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callops_backend/internal/calls"
	"callops_backend/internal/config"
	"callops_backend/internal/directory"
	"callops_backend/internal/email"
	"callops_backend/internal/enrichment"
	"callops_backend/internal/events"
	"callops_backend/internal/followup"
	apphttp "callops_backend/internal/http"
	"callops_backend/internal/links"
	"callops_backend/internal/quality"
	"callops_backend/internal/scheduler"
	"callops_backend/internal/sms"
	"callops_backend/internal/tickets"
	"callops_backend/internal/webhook"
	"callops_backend/platform/ai/gemini"
	"callops_backend/platform/db"
	"callops_backend/platform/logger"
	"callops_backend/platform/tasks"
	"callops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting api", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	runner := tasks.NewRunner(log)

	aiClient, err := gemini.NewClient(ctx, gemini.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if err != nil {
		log.Error("failed to initialize AI client", "error", err)
		panic("failed to initialize AI client: " + err.Error())
	}

	recordings, closeRecordings := initRecordingScheduler(cfg, log)
	if closeRecordings != nil {
		defer closeRecordings()
	}

	// ========================================================================
	// Domain services
	// ========================================================================

	callsService := calls.NewService(calls.NewRepository(pool), log)
	resolver := directory.NewResolver(directory.NewRepository(pool), log)
	ticketRepo := tickets.NewRepository(pool)

	smsClient := sms.NewClient(cfg, log)
	linksClient := links.NewClient(cfg, log)
	notifier := email.NewNotifier(cfg)

	var linkGen followup.LinkGenerator
	if linksClient != nil {
		linkGen = linksClient
	}

	followupService := followup.NewService(
		followup.NewAIClassifier(aiClient, val),
		smsClient,
		linkGen,
		callsService,
		ticketRepo,
		followup.NewRepository(pool),
		eventBus,
		log,
	)

	var escalations quality.EscalationNotifier
	if notifier != nil {
		escalations = notifier
	}
	qualityService := quality.NewService(
		quality.NewAnalyzer(aiClient, val),
		ticketRepo,
		escalations,
		eventBus,
		log,
	)

	enrichmentService := enrichment.NewService(
		enrichment.NewExtractor(aiClient, val),
		directory.NewRepository(pool),
		log,
	)

	webhookModule := webhook.NewModule(webhook.Deps{
		Calls:      callsService,
		Resolver:   resolver,
		Followup:   followupService,
		Quality:    qualityService,
		Enrichment: enrichmentService,
		Runner:     runner,
		Recordings: recordings,
		Bus:        eventBus,
	}, cfg.WebhookSecret, val, log)

	// ========================================================================
	// HTTP
	// ========================================================================

	limiter := apphttp.NewRateLimiter(cfg.WebhookRateLimit, cfg.WebhookRateBurst, log)
	engine := apphttp.NewRouter(cfg, log, limiter, webhookModule)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRecordingScheduler(cfg *config.Config, log *logger.Logger) (scheduler.RecordingScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; recording archival disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
