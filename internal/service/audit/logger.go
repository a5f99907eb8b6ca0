package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/pkg/logger"
)

// AuditLogger records access entries on a best-effort basis: a failed
// write is logged and never fails the caller.
type AuditLogger struct {
	service *Service
	logger  *logger.Logger
}

func NewAuditLogger(service *Service, log *logger.Logger) *AuditLogger {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditLogger{
		service: service,
		logger:  log,
	}
}

func (l *AuditLogger) Log(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	if err := l.service.Log(ctx, actor, action, entityType, entityID, opts); err != nil {
		l.logger.WithContext(ctx).Error(err, "Failed to write audit log",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID.String())
	}
}
