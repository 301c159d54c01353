package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/akmatori/alertsieve/internal/alerts/adapters"
	"github.com/akmatori/alertsieve/internal/classifier"
	"github.com/akmatori/alertsieve/internal/config"
	"github.com/akmatori/alertsieve/internal/database"
	"github.com/akmatori/alertsieve/internal/executor"
	"github.com/akmatori/alertsieve/internal/handlers"
	"github.com/akmatori/alertsieve/internal/jobs"
	"github.com/akmatori/alertsieve/internal/metrics"
	"github.com/akmatori/alertsieve/internal/middleware"
	"github.com/akmatori/alertsieve/internal/notify"
	"github.com/akmatori/alertsieve/internal/services"
	"github.com/akmatori/alertsieve/internal/utils"
	"github.com/akmatori/alertsieve/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogJSON)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}

	logger.Info("starting alertsieve", "version", handlers.Version, "settings", cfg.Settings)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		fatal(logger, "failed to register metrics", err)
	}

	if err := database.Connect(cfg.DatabaseURL, database.ParseLogLevel(cfg.LogLevel)); err != nil {
		fatal(logger, "failed to connect to database", err)
	}
	if err := database.AutoMigrate(); err != nil {
		fatal(logger, "failed to run database migrations", err)
	}
	db := database.GetDB()
	alertStore := database.NewAlertStore(db)
	auditStore := database.NewAuditStore(db)

	var clf classifier.Classifier
	if cfg.ClassifierURL != "" {
		clf = classifier.NewHTTPClient(cfg.ClassifierURL, cfg.ClassifierTimeout, cfg.ClassifierCacheTTL, logger)
		logger.Info("classifier enabled", "url", cfg.ClassifierURL)
	} else {
		logger.Info("classifier disabled (CLASSIFIER_URL not set)")
	}

	slackCfg := notify.DefaultSlackConfig()
	slackCfg.WebhookURL = cfg.SlackWebhook
	slackCfg.BotToken = cfg.SlackBotToken
	slackCfg.Channel = cfg.SlackChannel
	notifier := notify.NewSlackNotifier(slackCfg, logger)
	if !notifier.Configured() {
		logger.Warn("no Slack destination configured, forward notifications will be skipped")
	}

	stream := handlers.NewStreamHub(logger)
	exec := executor.NewExecutor(executor.NewAuditLog(), notifier, logger,
		executor.WithAuditSink(auditStore),
		executor.WithHistory(alertStore),
		executor.WithPublisher(stream),
	)
	orchestrator := workflow.NewOrchestrator(alertStore, clf, exec, cfg.Settings, cfg.StoreTimeout, logger)
	pool := jobs.NewPool(orchestrator, cfg.WorkerCount, cfg.QueueSize, logger)

	summaries := services.NewSummaryService(auditStore)
	digest := jobs.NewDigest(summaries, notifier, 24*time.Hour, logger)
	if err := digest.Start(cfg.DigestSchedule); err != nil {
		fatal(logger, "failed to schedule digest", err)
	}

	jwtAuth := newJWTAuth(cfg, logger)

	mux := http.NewServeMux()
	alertHandler := handlers.NewAlertHandler(adapters.All(), cfg.WebhookSecrets, pool, logger)
	handlers.NewHTTPHandler(alertHandler, registry, pool).SetupRoutes(mux)
	handlers.NewAPIHandler(orchestrator, auditStore, summaries, services.NewHistoryService(alertStore), handlers.APIConfig{
		Settings:           orchestrator.Settings(),
		ClassifierEnabled:  clf != nil,
		NotifierConfigured: notifier.Configured(),
	}, logger).SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuth, logger).SetupRoutes(mux)
	stream.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           middleware.RequestIDMiddleware(middleware.AccessLog(logger)(jwtAuth.Wrap(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("alertsieve is running",
		"webhook", fmt.Sprintf("http://localhost:%d/webhook/alert/{source}", cfg.HTTPPort),
		"health", fmt.Sprintf("http://localhost:%d/health", cfg.HTTPPort),
		"api", fmt.Sprintf("http://localhost:%d/api", cfg.HTTPPort),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("HTTP server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop intake first so accepted alerts can drain
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("error shutting down HTTP server", "error", err)
	}
	if err := pool.Shutdown(ctx); err != nil {
		logger.Error("worker pool did not drain", "error", err, "pending", pool.Pending())
	}
	digest.Stop(ctx)
	stream.Close()
	if err := database.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}

	logger.Info("shutdown complete")
}

// newJWTAuth enables API authentication only when an admin password is configured
func newJWTAuth(cfg *config.Config, logger *slog.Logger) *middleware.JWTAuthMiddleware {
	authCfg := &middleware.JWTAuthConfig{
		AdminUsername: cfg.AdminUsername,
		JWTSecret:     cfg.JWTSecret,
		JWTExpiry:     time.Duration(cfg.JWTExpiryHours) * time.Hour,
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/webhook/*",
			"/auth/login",
		},
	}

	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD is not set, API authentication is disabled")
		return middleware.NewJWTAuthMiddleware(authCfg, logger)
	}

	hash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		fatal(logger, "failed to hash admin password", err)
	}
	authCfg.Enabled = true
	authCfg.AdminPasswordHash = hash
	logger.Info("JWT authentication enabled", "user", cfg.AdminUsername)
	return middleware.NewJWTAuthMiddleware(authCfg, logger)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
