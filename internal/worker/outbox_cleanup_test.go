package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository/memory"
	"github.com/jwalitptl/nursing-api/pkg/clock"
)

func TestCleanupPurgesOnlyOldProcessedEvents(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	repo := store.Outbox()

	seed := func(status model.OutboxStatus, processedAgo time.Duration) {
		e, err := model.NewOutboxEvent(model.EventVitalsRecorded, map[string]string{"k": "v"}, now.Add(-processedAgo))
		require.NoError(t, err)
		e.Status = status
		if status == model.OutboxStatusProcessed {
			at := now.Add(-processedAgo)
			e.ProcessedAt = &at
		}
		require.NoError(t, repo.Create(ctx, e))
	}
	seed(model.OutboxStatusProcessed, 8*24*time.Hour)
	seed(model.OutboxStatusProcessed, time.Hour)
	seed(model.OutboxStatusFailed, 30*24*time.Hour)
	seed(model.OutboxStatusPending, 30*24*time.Hour)

	w := NewOutboxCleanupWorker(repo, 7*24*time.Hour, time.Hour, clock.NewFixed(now), nil)
	n, err := w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left := store.Events()
	require.Len(t, left, 3)
	for _, e := range left {
		if e.Status == model.OutboxStatusProcessed {
			assert.True(t, e.ProcessedAt.After(now.Add(-7*24*time.Hour)))
		}
	}
}

func TestStartStopsWithContext(t *testing.T) {
	w := NewOutboxCleanupWorker(memory.NewStore().Outbox(), time.Hour, time.Millisecond, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
