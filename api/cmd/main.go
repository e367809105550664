package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/citypulse/event-service/internal/audit"
	"github.com/citypulse/event-service/internal/config"
	"github.com/citypulse/event-service/internal/domain"
	"github.com/citypulse/event-service/internal/infrastructure/postgres"
	"github.com/citypulse/event-service/internal/infrastructure/redis"
	"github.com/citypulse/event-service/internal/infrastructure/stats"
	"github.com/citypulse/event-service/internal/pkg/logger"
	"github.com/citypulse/event-service/internal/security"
	"github.com/citypulse/event-service/internal/service"
	"github.com/citypulse/event-service/internal/transport/rest"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}

	logger.Init()
	log := logger.Logger.With().
		Str("service", "event-service").
		Str("env", cfg.AppEnv).
		Logger()

	// Root ctx with signal cancellation
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer dbPool.Close()

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()

		if err := dbPool.Ping(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")
	}

	repo := postgres.New(dbPool)

	// ---- Redis ----
	cache := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.ViewCacheTTL)

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		defer cancel()

		// Best-effort ping; redis is a soft dependency
		if err := cache.Client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
	}

	// ---- Stats collector ----
	var viewCounter domain.ViewCounter
	if cfg.StatsURL != "" {
		viewCounter = stats.New(cfg.StatsURL, "event-service")
		log.Info().Str("url", cfg.StatsURL).Msg("stats collector configured")
	} else {
		log.Warn().Msg("STATS_URL not set; view counts disabled")
	}

	// ---- Application services ----
	auditLog := audit.New(logger.Logger)
	events := service.NewEventService(repo, repo, auditLog)
	requests := service.NewRequestService(repo, repo, repo, auditLog)
	enricher := service.NewEnricher(repo, repo, repo, viewCounter, cache)

	h := rest.NewHandler(events, requests, enricher)

	// ---- JWT verifier ----
	verifier := security.NewHS256Verifier(cfg.JWTSecret)

	// ---- Router ----
	httpHandler := rest.NewRouter(rest.RouterDeps{
		Cache:           cache,
		Handler:         h,
		Verifier:        verifier,
		JWTIssuer:       cfg.JWTIssuer,
		RateLimit:       cfg.RLLimit,
		RateLimitWindow: cfg.RLWindow,
	})

	// ---- Outbox worker (outbound event.* / request.* messages) ----
	if cfg.OutboxEnabled {
		repo.StartOutboxWorker(rootCtx, cfg.RabbitURL, cfg.RabbitExchange)
		log.Info().Msg("outbox worker started")
	}

	// ---- HTTP server ----
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
