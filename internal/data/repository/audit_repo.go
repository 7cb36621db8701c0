package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"visitor-booking/internal/data/entity"
	"visitor-booking/pkg/database"

	"go.uber.org/zap"
)

type AuditLogRepository interface {
	Create(ctx context.Context, entry *entity.AuditLog) error
}

type auditLogRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewAuditLogRepository(db database.PgxIface, log *zap.Logger) AuditLogRepository {
	return &auditLogRepository{
		db:  db,
		log: log.With(zap.String("repository", "audit_log")),
	}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *entity.AuditLog) error {
	query := `
		INSERT INTO system_logs (id, action, entity_type, entity_id, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var details []byte
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = raw
	}

	_, err := database.Executor(ctx, r.db).Exec(ctx, query,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.ActorID,
		details,
		entry.CreatedAt,
	)

	if err != nil {
		r.log.Error("Failed to write audit log",
			zap.Error(err),
			zap.String("action", entry.Action),
		)
		return fmt.Errorf("create audit log %s: %w", entry.Action, err)
	}

	return nil
}
