package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/clinicore/booking-api/internal/repository/postgres"
	"github.com/clinicore/booking-api/pkg/logger"
	redisbroker "github.com/clinicore/booking-api/pkg/messaging/redis"
	"github.com/clinicore/booking-api/pkg/metrics"
	"github.com/clinicore/booking-api/pkg/worker"
)

// Config is read from the environment; the worker runs in containers where a
// config file is more trouble than it is worth.
type Config struct {
	DatabaseURL         string        `envconfig:"DATABASE_URL" required:"true"`
	RedisURL            string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	HealthPort          int           `envconfig:"HEALTH_PORT" default:"8081"`
	OutboxBatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	OutboxPollInterval  time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	OutboxRetryAttempts int           `envconfig:"OUTBOX_RETRY_ATTEMPTS" default:"3"`
	OutboxMaxRetries    int           `envconfig:"OUTBOX_MAX_RETRIES" default:"10"`
	OutboxRetention     time.Duration `envconfig:"OUTBOX_RETENTION" default:"168h"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("worker", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{URL: cfg.RedisURL}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.OutboxBatchSize,
			PollInterval:  cfg.OutboxPollInterval,
			RetryAttempts: cfg.OutboxRetryAttempts,
			MaxRetries:    cfg.OutboxMaxRetries,
			RetentionAge:  cfg.OutboxRetention,
		},
		appLogger,
		metrics.NewMetrics("clinicore", "outbox_worker"),
	)

	startHealthServer(cfg.HealthPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("shutting down...")
		cancel()
	}()

	processor.Start(ctx)
}

func startHealthServer(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			log.Error().Err(err).Msg("health server failed")
			os.Exit(1)
		}
	}()
}
