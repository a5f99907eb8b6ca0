package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes fn within a transaction, rolling back on error or panic.
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

const insertAuditLog = `
	INSERT INTO audit_logs (
		id, actor_id, actor_role, action, entity_type, entity_id,
		changes, metadata, ip_address, user_agent, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// CreateAuditLog writes an audit entry inside tx.
func (r *BaseRepository) CreateAuditLog(ctx context.Context, tx *sqlx.Tx, log *model.AuditLog) error {
	_, err := tx.ExecContext(ctx, insertAuditLog, auditArgs(log)...)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func auditArgs(log *model.AuditLog) []interface{} {
	return []interface{}{
		log.ID,
		log.ActorID,
		log.ActorRole,
		log.Action,
		log.EntityType,
		log.EntityID,
		nullJSON(log.Changes),
		nullJSON(log.Metadata),
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	}
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

// notFound maps sql.ErrNoRows onto repository.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
