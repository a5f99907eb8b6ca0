// Package event writes domain events to the transactional outbox.
package event

import (
	"context"
	"fmt"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/logger"
)

type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

type Service struct {
	outboxRepo repository.OutboxRepository
	clock      clock.Clock
	logger     *logger.Logger
}

func NewService(outboxRepo repository.OutboxRepository, clk clock.Clock, log *logger.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{outboxRepo: outboxRepo, clock: clk, logger: log}
}

// Emit stores a pending outbox event; the worker relays it later.
func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	event, err := model.NewOutboxEvent(eventType, payload, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	s.logger.WithContext(ctx).Debug("Queued outbox event", "event_type", eventType, "event_id", event.ID.String())
	return nil
}

// EmitBestEffort is Emit for events raised after the domain write has
// committed; a failure is logged only.
func EmitBestEffort(ctx context.Context, e Emitter, log *logger.Logger, eventType string, payload interface{}) {
	if e == nil {
		return
	}
	if err := e.Emit(ctx, eventType, payload); err != nil {
		log.WithContext(ctx).Error(err, "Failed to queue outbox event", "event_type", eventType)
	}
}
