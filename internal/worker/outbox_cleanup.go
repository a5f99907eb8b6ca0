// Package worker holds the background jobs run by cmd/worker.
package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/logger"
)

// OutboxCleanupWorker purges relayed outbox events once they are older than
// the retention period. Failed and pending events are kept for inspection.
type OutboxCleanupWorker struct {
	repo            repository.OutboxRepository
	retention       time.Duration
	cleanupInterval time.Duration
	clock           clock.Clock
	logger          *logger.Logger
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, cleanupInterval time.Duration, clk clock.Clock, log *logger.Logger) *OutboxCleanupWorker {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OutboxCleanupWorker{
		repo:            repo,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		clock:           clk,
		logger:          log,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				// Log error but continue
				w.logger.Error(err, "Failed to purge outbox events")
			}
		}
	}
}

// Cleanup runs one purge and returns the number of events removed.
func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.clock.Now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if rows > 0 {
		w.logger.Info("Purged processed outbox events", "count", rows, "cutoff", cutoff)
	}
	return rows, nil
}
