package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/llmgate/llmgate/internal/gateway/auth"
	"github.com/llmgate/llmgate/internal/gateway/cache"
	"github.com/llmgate/llmgate/internal/gateway/handlers"
	"github.com/llmgate/llmgate/internal/gateway/ratelimit"
	"github.com/llmgate/llmgate/internal/gateway/upstream"
	"github.com/llmgate/llmgate/internal/gateway/usage"
	"github.com/llmgate/llmgate/internal/shared/auditlog"
	"github.com/llmgate/llmgate/internal/shared/config"
	"github.com/llmgate/llmgate/internal/shared/keystore"
	"github.com/llmgate/llmgate/internal/shared/metrics"
	"github.com/rs/zerolog"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	if cfg.Env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg)
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting llm gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Key-value store: Redis in production, in-memory when unset.
	var store keystore.Store
	if cfg.RedisURL != "" {
		redisStore, err := keystore.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()
		store = redisStore
		log.Info().Msg("connected to redis")
	} else {
		store = keystore.NewMemory()
		log.Warn().Msg("REDIS_URL empty, using in-memory store (state is lost on restart)")
	}

	// Optional audit trail.
	var audit auditlog.Recorder = auditlog.Nop{}
	if cfg.DatabaseURL != "" {
		pg, err := auditlog.NewPostgres(cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to audit database")
		}
		defer pg.Close()
		audit = pg
		log.Info().Msg("audit log enabled")
	}

	mx := metrics.New()
	authenticator := auth.New(store, cfg.AdminKey, log)
	limiter := ratelimit.New(store, ratelimit.Config{
		Limit:  cfg.RateLimit,
		Period: cfg.RateLimitPeriod,
	}, log)
	meter := usage.New(store, log)
	responseCache := cache.New(store, cfg.CacheTTL, log)
	forwarder := upstream.New(upstream.Config{
		BaseURL:     cfg.UpstreamBaseURL,
		Credentials: cfg.UpstreamKeys,
		Timeout:     cfg.UpstreamTimeout,
	}, log)

	router := handlers.NewRouter(handlers.Deps{
		Middleware:       handlers.NewMiddleware(authenticator, limiter, mx, log),
		Chat:             handlers.NewChatHandler(forwarder, responseCache, meter, mx, audit, cfg.CacheEnabled, cfg.Debug, log),
		Usage:            handlers.NewUsageHandler(meter, log),
		Keys:             handlers.NewKeyHandler(authenticator, log),
		Metrics:          mx,
		RateLimitEnabled: cfg.RateLimitEnabled,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
		// No WriteTimeout: streaming responses stay open as long as the
		// upstream keeps producing.
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	log.Info().Msg("server stopped")
}
