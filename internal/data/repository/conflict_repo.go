package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/pkg/database"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ConflictRepository interface {
	Create(ctx context.Context, conflict *entity.ScheduleConflict) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleConflict, error)
	List(ctx context.Context, status *entity.ConflictStatus) ([]*entity.ScheduleConflict, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.ConflictStatus, resolvedBy *uuid.UUID, resolvedAt *time.Time) error
}

type conflictRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewConflictRepository(db database.PgxIface, log *zap.Logger) ConflictRepository {
	return &conflictRepository{
		db:  db,
		log: log.With(zap.String("repository", "conflict")),
	}
}

const conflictColumns = `id, slot_id, conflicting_slot_id, conflict_type, severity, status,
	description, detected_at, resolved_at, resolved_by`

func scanConflict(row rowScanner) (*entity.ScheduleConflict, error) {
	var c entity.ScheduleConflict
	err := row.Scan(
		&c.ID,
		&c.SlotID,
		&c.ConflictingSlotID,
		&c.ConflictType,
		&c.Severity,
		&c.Status,
		&c.Description,
		&c.DetectedAt,
		&c.ResolvedAt,
		&c.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conflictRepository) Create(ctx context.Context, conflict *entity.ScheduleConflict) error {
	query := `
		INSERT INTO schedule_conflicts (id, slot_id, conflicting_slot_id, conflict_type, severity,
		                                status, description, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := database.Executor(ctx, r.db).Exec(ctx, query,
		conflict.ID,
		conflict.SlotID,
		conflict.ConflictingSlotID,
		conflict.ConflictType,
		conflict.Severity,
		conflict.Status,
		conflict.Description,
		conflict.DetectedAt,
	)

	if err != nil {
		r.log.Error("Failed to record schedule conflict",
			zap.Error(err),
			zap.String("conflict_id", conflict.ID.String()),
		)
		return fmt.Errorf("create schedule conflict %s: %w", conflict.ID.String(), err)
	}

	return nil
}

func (r *conflictRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ScheduleConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM schedule_conflicts WHERE id = $1`

	conflict, err := scanConflict(database.Executor(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find schedule conflict",
			zap.Error(err),
			zap.String("conflict_id", id.String()),
		)
		return nil, fmt.Errorf("find schedule conflict %s: %w", id.String(), err)
	}

	return conflict, nil
}

func (r *conflictRepository) List(ctx context.Context, status *entity.ConflictStatus) ([]*entity.ScheduleConflict, error) {
	builder := psql.Select(conflictColumns).From("schedule_conflicts").OrderBy("detected_at DESC")
	if status != nil {
		builder = builder.Where(sq.Eq{"status": string(*status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build conflict list query: %w", err)
	}

	rows, err := database.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list schedule conflicts", zap.Error(err))
		return nil, fmt.Errorf("list schedule conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []*entity.ScheduleConflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict row: %w", err)
		}
		conflicts = append(conflicts, conflict)
	}

	return conflicts, rows.Err()
}

func (r *conflictRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.ConflictStatus, resolvedBy *uuid.UUID, resolvedAt *time.Time) error {
	query := `UPDATE schedule_conflicts SET status = $2, resolved_by = $3, resolved_at = $4 WHERE id = $1`

	result, err := database.Executor(ctx, r.db).Exec(ctx, query, id, status, resolvedBy, resolvedAt)
	if err != nil {
		r.log.Error("Failed to update schedule conflict",
			zap.Error(err),
			zap.String("conflict_id", id.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update schedule conflict %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("schedule conflict %s not found", id.String())
	}

	return nil
}
