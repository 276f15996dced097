package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hrportal/internal/apiclient"
	"hrportal/internal/auth"
	"hrportal/internal/config"
	"hrportal/internal/logger"
	"hrportal/internal/notification"
	"hrportal/internal/queue"
	"hrportal/internal/store"
)

// Worker drains the settings sync queue and pushes each employee's
// notification settings to the backend.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.Logger.ServiceName = "hrportal-worker"
	log, err := logger.New(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.QueueBackend != "redis" {
		log.Fatal().Str("queue_backend", cfg.QueueBackend).Msg("worker needs QUEUE_BACKEND=redis; the api drains in-memory queues itself")
	}
	if cfg.ServiceTokenKey == "" {
		log.Fatal().Msg("SERVICE_TOKEN_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis not reachable yet; consuming anyway")
	}

	client := apiclient.New(cfg.APIBaseURL, cfg.APITimeout,
		apiclient.WithTokenSource(auth.NewServiceTokenSource("hrportal-worker", cfg.ServiceTokenIssuer, cfg.ServiceTokenKey, cfg.ServiceTokenTTL)),
		apiclient.WithRateLimit(cfg.APIRate, cfg.APIBurst),
		apiclient.WithLogger(log),
	)

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	log.Info().Str("queue_key", q.Key()).Msg("worker consuming settings sync")
	if err := notification.RunSync(ctx, q, notification.NewAPI(client), log); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
	log.Info().Msg("worker stopped")
}
