package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.CreateAuditLog(ctx, tx, log)
	})
}

func (r *auditRepository) List(ctx context.Context, f repository.AuditFilters) ([]*model.AuditLog, int64, error) {
	var conditions []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.ActorID != nil {
		add("actor_id = $%d", *f.ActorID)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != nil {
		add("entity_id = $%d", *f.EntityID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if !f.Range.From.IsZero() {
		add("created_at >= $%d", f.Range.From)
	}
	if !f.Range.To.IsZero() {
		add("created_at <= $%d", f.Range.To)
	}

	baseQuery := ` FROM audit_logs WHERE 1=1`
	for _, c := range conditions {
		baseQuery += " AND " + c
	}

	var total int64
	if err := r.GetDB().GetContext(ctx, &total, "SELECT COUNT(*)"+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	pageArgs := append(append([]interface{}{}, args...), limit, f.Offset)
	// JSONB NULL cannot scan into json.RawMessage.
	query := "SELECT id, actor_id, actor_role, action, entity_type, entity_id," +
		" COALESCE(changes, 'null'::jsonb) AS changes, COALESCE(metadata, 'null'::jsonb) AS metadata," +
		" ip_address, user_agent, created_at" +
		baseQuery +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	var logs []*model.AuditLog
	if err := r.GetDB().SelectContext(ctx, &logs, strings.TrimSpace(query), pageArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}
