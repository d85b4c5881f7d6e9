package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	"github.com/clinicore/booking-api/pkg/logger"
	"github.com/clinicore/booking-api/pkg/messaging"
	"github.com/clinicore/booking-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries caps publish failures across polls; a failed event requeues
	// as pending until the cap, then parks as failed.
	MaxRetries int
	// Processed events older than RetentionAge are swept on SweepInterval.
	RetentionAge  time.Duration
	SweepInterval time.Duration
}

// OutboxProcessor drains pending appointment events from the outbox table and
// publishes them to the broker. A failed publish requeues the event for the
// next poll until MaxRetries failures have accumulated; the booking
// transaction never waits on the broker. Processed rows are swept after
// RetentionAge.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 10
	}
	if config.RetentionAge <= 0 {
		config.RetentionAge = 7 * 24 * time.Hour
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Hour
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	sweeper := time.NewTicker(p.config.SweepInterval)
	defer sweeper.Stop()

	p.logger.Info("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "failed to process outbox batch")
			}
		case <-sweeper.C:
			if err := p.sweepProcessed(ctx); err != nil {
				p.logger.Error(err, "failed to sweep processed events")
			}
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "error").Inc()
		return fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "success").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{Type: event.EventType, Payload: json.RawMessage(event.Payload)}

	err := retry(p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, event.EventType, msg)
	})

	if err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		if markErr := p.repo.MarkFailed(ctx, event.ID, err.Error(), p.config.MaxRetries); markErr != nil {
			p.logger.Error(markErr, "failed to requeue event", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error(err, "failed to mark event processed", "event_id", event.ID.String())
		return err
	}

	return nil
}

func (p *OutboxProcessor) sweepProcessed(ctx context.Context) error {
	deleted, err := p.repo.DeleteProcessedBefore(ctx, time.Now().Add(-p.config.RetentionAge))
	if err != nil {
		return fmt.Errorf("failed to delete processed events: %w", err)
	}
	if deleted > 0 {
		p.logger.Info("swept processed outbox events", "deleted", deleted)
	}
	return nil
}

func retry(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
