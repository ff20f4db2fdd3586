package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"campusdrive/internal/app"
	"campusdrive/internal/config"
	"campusdrive/internal/database"
	apphttp "campusdrive/internal/http"
	"campusdrive/internal/http/handlers"
	httpmw "campusdrive/internal/http/middleware"
	"campusdrive/internal/metrics"
	"campusdrive/internal/observability"
	"campusdrive/internal/repository/postgres"
	"campusdrive/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := observability.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.PostgresConfig{
		Driver:          cfg.DBDriver,
		DSN:             cfg.PostgresDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdle:     cfg.DBConnMaxIdle,
		ConnMaxLifetime: cfg.DBConnMaxLife,
		PingTimeout:     30 * time.Second,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	if cfg.RunMigrations {
		if err := database.Migrate(ctx, db); err != nil {
			logger.WithError(err).Fatal("migrations failed")
		}
		logger.Info("migrations applied")
	}

	st := postgres.NewStore(db, cfg.DBTxRetries, logger)
	collector := metrics.NewCollector()

	stageService := app.NewStageService(st, logger, collector)
	selectionService := app.NewSelectionService(st, logger, collector)
	applicationService := app.NewApplicationService(st, logger, collector)
	invitationService := app.NewInvitationService(st, logger)

	limiter, closeLimiter := newLimiter(cfg.RedisURL, logger)
	defer closeLimiter()

	router := apphttp.NewRouter(apphttp.RouterDependencies{
		StageHandler:       handlers.NewStageHandler(stageService),
		SelectionHandler:   handlers.NewSelectionHandler(selectionService, limiter, cfg.PhaseSubmitPerMin),
		ApplicationHandler: handlers.NewApplicationHandler(applicationService),
		InvitationHandler:  handlers.NewInvitationHandler(invitationService),
		SystemHandler:      handlers.NewSystemHandler(db, collector),
		AuthMiddleware:     httpmw.NewAuthMiddleware(security.NewJWTProvider(cfg.JWTSecret)),
		Limiter:            limiter,
		Metrics:            collector,
		Logger:             logger,
		RequestTimeout:     cfg.RequestTimeout,
	})
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.HTTPPort).Info("API started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	logger.Info("API stopped")
}

// newLimiter shares throttling state through Redis when REDIS_URL is set and falls back to
// a per-process limiter otherwise.
func newLimiter(redisURL string, logger logrus.FieldLogger) (httpmw.Limiter, func()) {
	if redisURL == "" {
		return httpmw.NewMemoryLimiter(), func() {}
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Warn("invalid REDIS_URL, using in-memory rate limiter")
		return httpmw.NewMemoryLimiter(), func() {}
	}
	client := redis.NewClient(opts)
	return httpmw.NewRedisLimiter(client, logger), func() { _ = client.Close() }
}
