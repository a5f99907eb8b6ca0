package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/errors"
)

type Service struct {
	repo  repository.AuditRepository
	clock clock.Clock
}

func NewService(repo repository.AuditRepository, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{repo: repo, clock: clk}
}

type LogOptions struct {
	Changes   interface{}
	Metadata  interface{}
	IPAddress string
	UserAgent string
}

type requestInfoKey struct{}

type requestInfo struct {
	ip, userAgent string
}

// WithRequestInfo stores the caller's address and agent for later entries.
func WithRequestInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{ip: ip, userAgent: userAgent})
}

// Log creates an audit log entry
func (s *Service) Log(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, opts *LogOptions) error {
	if opts == nil {
		opts = &LogOptions{}
	}

	var changes, metadata json.RawMessage
	var err error
	if opts.Changes != nil {
		if changes, err = json.Marshal(opts.Changes); err != nil {
			return fmt.Errorf("failed to marshal audit changes: %w", err)
		}
	}
	if opts.Metadata != nil {
		if metadata, err = json.Marshal(opts.Metadata); err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	ipAddress, userAgent := opts.IPAddress, opts.UserAgent
	if info, ok := ctx.Value(requestInfoKey{}).(requestInfo); ok && ipAddress == "" {
		ipAddress, userAgent = info.ip, info.userAgent
	}

	log := &model.AuditLog{
		ID:         uuid.New(),
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		Metadata:   metadata,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		CreatedAt:  s.clock.Now(),
	}

	return s.repo.Create(ctx, log)
}

func (s *Service) List(ctx context.Context, filters repository.AuditFilters) ([]*model.AuditLog, int64, error) {
	logs, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, errors.Internal(err)
	}
	return logs, total, nil
}
