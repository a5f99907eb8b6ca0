package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/logger"
	"github.com/jwalitptl/nursing-api/pkg/messaging"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts bounds both the immediate publish retries and the
	// number of later polls an event is rescheduled for before it fails.
	RetryAttempts int
	RetryDelay    time.Duration
}

// OutboxProcessor relays pending outbox events to the broker. Each poll
// claims a batch under a row lock and commits the status changes together.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.MessageBroker
	config  OutboxProcessorConfig
	clock   clock.Clock
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.MessageBroker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		clock:   clock.Real(),
		logger:  logger,
		metrics: metrics,
	}
}

// WithClock replaces the clock used to schedule retries.
func (p *OutboxProcessor) WithClock(c clock.Clock) *OutboxProcessor {
	p.clock = c
	return p
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// RunOnce processes one batch and returns how many events were published.
func (p *OutboxProcessor) RunOnce(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	tx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin outbox transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	events, err := p.repo.GetPendingEventsWithLock(ctx, tx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	published := 0
	for _, event := range events {
		status, errMsg, retryAt := p.publish(ctx, event)
		if err := p.repo.UpdateStatusTx(ctx, tx, event.ID, status, errMsg, retryAt); err != nil {
			return published, fmt.Errorf("failed to update event status: %w", err)
		}
		if status == model.OutboxStatusProcessed {
			published++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	if n, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.OutboxQueueSize.Set(float64(n))
	}
	return published, nil
}

func (p *OutboxProcessor) publish(ctx context.Context, event *model.OutboxEvent) (model.OutboxStatus, *string, *time.Time) {
	err := retry(p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, event.EventType, event.Payload)
	})
	if err == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		return model.OutboxStatusProcessed, nil, nil
	}

	errStr := err.Error()
	if event.RetryCount+1 < p.config.RetryAttempts {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		at := p.clock.Now().Add(p.config.RetryDelay << uint(event.RetryCount))
		p.logger.Warn("Rescheduling outbox event",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"retry_at", at)
		return model.OutboxStatusPending, &errStr, &at
	}

	p.metrics.OutboxEventsFailed.Inc()
	p.logger.Error(err, "Outbox event failed permanently",
		"event_id", event.ID.String(),
		"event_type", event.EventType)
	return model.OutboxStatusFailed, &errStr, nil
}

// Helper retry function
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
