package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"hrportal/internal/apiclient"
	"hrportal/internal/auth"
	"hrportal/internal/config"
	"hrportal/internal/gateway"
	"hrportal/internal/httpmiddleware"
	"hrportal/internal/kv"
	"hrportal/internal/logger"
	"hrportal/internal/metrics"
	"hrportal/internal/notification"
	"hrportal/internal/queue"
	"hrportal/internal/store"
)

const (
	sessionCacheSize = 5000
	sessionTTL       = 12 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.ServiceTokenKey == "" {
		log.Fatal().Msg("SERVICE_TOKEN_KEY is required to verify bearer tokens")
	}

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client := apiclient.New(cfg.APIBaseURL, cfg.APITimeout,
		apiclient.WithTokenSource(auth.NewServiceTokenSource("hrportal-api", cfg.ServiceTokenIssuer, cfg.ServiceTokenKey, cfg.ServiceTokenTTL)),
		apiclient.WithRateLimit(cfg.APIRate, cfg.APIBurst),
		apiclient.WithMetrics(m),
		apiclient.WithLogger(log),
	)

	health := map[string]gateway.HealthCheck{}

	var redisClient *store.Redis
	if cfg.SettingsBackend == "redis" || cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer func() { _ = redisClient.Close() }()
		health["redis"] = redisClient.Healthy
	}

	var settingsKV kv.Store
	switch cfg.SettingsBackend {
	case "redis":
		settingsKV = kv.NewRedis(redisClient.Client, "hrportal:kv:")
	case "postgres":
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		settingsKV = kv.NewPostgres(db.Pool)
		health["db"] = func(ctx context.Context) bool { return db.Pool.Ping(ctx) == nil }
	default:
		settingsKV = kv.NewMemory()
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	} else {
		inMem := queue.NewInMemory(64)
		q = inMem
		// Nobody else can drain an in-process queue.
		go func() {
			if err := notification.RunSync(ctx, inMem, notification.NewAPI(client), log); err != nil {
				log.Error().Err(err).Msg("settings sync stopped")
			}
		}()
	}

	sessions := gateway.NewSessions(gateway.Deps{
		Client:    client,
		KV:        settingsKV,
		Publisher: q,
		PageSize:  cfg.DefaultPageSize,
		Logger:    log,
		Metrics:   m,
	}, sessionCacheSize, sessionTTL)

	router := gateway.NewRouter(gateway.RouterConfig{
		Sessions:    sessions,
		SigningKey:  cfg.ServiceTokenKey,
		Issuer:      cfg.ServiceTokenIssuer,
		RateLimiter: httpmiddleware.NewIPRateLimiter(cfg.GatewayRateLimit, cfg.GatewayBurst),
		Gatherer:    reg,
		Health:      health,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("backend", cfg.APIBaseURL).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}

	log.Info().Msg("server exited")
	return nil
}
