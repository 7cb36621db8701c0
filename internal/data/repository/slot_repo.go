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

type SlotFilter struct {
	From     *time.Time
	To       *time.Time
	Statuses []entity.SlotStatus
}

type SlotRepository interface {
	Create(ctx context.Context, slot *entity.VisitSlot) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.VisitSlot, error)
	// FindByIDForUpdate locks the slot row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.VisitSlot, error)
	FindByDate(ctx context.Context, date time.Time) ([]*entity.VisitSlot, error)
	List(ctx context.Context, filter SlotFilter) ([]*entity.VisitSlot, error)
	Update(ctx context.Context, slot *entity.VisitSlot) error
	UpdateAggregate(ctx context.Context, id uuid.UUID, bookedCount int, status entity.SlotStatus) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Expiry sweep
	FindExpiryCandidates(ctx context.Context, onOrBefore time.Time) ([]*entity.VisitSlot, error)
	MarkExpired(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
}

type slotRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSlotRepository(db database.PgxIface, log *zap.Logger) SlotRepository {
	return &slotRepository{
		db:  db,
		log: log.With(zap.String("repository", "slot")),
	}
}

const slotColumns = `id, date, start_time, end_time, duration_minutes, capacity,
	booked_count, status, description, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*entity.VisitSlot, error) {
	var slot entity.VisitSlot
	err := row.Scan(
		&slot.ID,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.DurationMinutes,
		&slot.Capacity,
		&slot.BookedCount,
		&slot.Status,
		&slot.Description,
		&slot.CreatedBy,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*entity.VisitSlot, error) {
	defer rows.Close()

	var slots []*entity.VisitSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot row: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (r *slotRepository) Create(ctx context.Context, slot *entity.VisitSlot) error {
	query := `
		INSERT INTO visit_slots (id, date, start_time, end_time, duration_minutes, capacity,
		                         booked_count, status, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := database.Executor(ctx, r.db).Exec(ctx, query,
		slot.ID,
		slot.Date,
		slot.StartTime,
		slot.EndTime,
		slot.DurationMinutes,
		slot.Capacity,
		slot.BookedCount,
		slot.Status,
		slot.Description,
		slot.CreatedBy,
		slot.CreatedAt,
		slot.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create slot",
			zap.Error(err),
			zap.String("slot_id", slot.ID.String()),
			zap.Time("date", slot.Date),
		)
		return fmt.Errorf("create slot %s: %w", slot.ID.String(), err)
	}

	return nil
}

func (r *slotRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.VisitSlot, error) {
	return r.findOne(ctx, `SELECT `+slotColumns+` FROM visit_slots WHERE id = $1`, id)
}

func (r *slotRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.VisitSlot, error) {
	if _, ok := database.TxFromContext(ctx); !ok {
		return nil, fmt.Errorf("lock slot %s: no transaction in context", id.String())
	}
	return r.findOne(ctx, `SELECT `+slotColumns+` FROM visit_slots WHERE id = $1 FOR UPDATE`, id)
}

func (r *slotRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*entity.VisitSlot, error) {
	slot, err := scanSlot(database.Executor(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find slot by ID",
			zap.Error(err),
			zap.String("slot_id", id.String()),
		)
		return nil, fmt.Errorf("find slot by ID %s: %w", id.String(), err)
	}
	return slot, nil
}

func (r *slotRepository) FindByDate(ctx context.Context, date time.Time) ([]*entity.VisitSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM visit_slots WHERE date = $1 ORDER BY start_time`

	rows, err := database.Executor(ctx, r.db).Query(ctx, query, date)
	if err != nil {
		r.log.Error("Failed to find slots by date",
			zap.Error(err),
			zap.Time("date", date),
		)
		return nil, fmt.Errorf("find slots by date %s: %w", date.Format("2006-01-02"), err)
	}

	return collectSlots(rows)
}

func (r *slotRepository) List(ctx context.Context, filter SlotFilter) ([]*entity.VisitSlot, error) {
	builder := psql.Select(slotColumns).From("visit_slots").OrderBy("date", "start_time")

	if filter.From != nil {
		builder = builder.Where(sq.GtOrEq{"date": *filter.From})
	}
	if filter.To != nil {
		builder = builder.Where(sq.LtOrEq{"date": *filter.To})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slot list query: %w", err)
	}

	rows, err := database.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list slots", zap.Error(err))
		return nil, fmt.Errorf("list slots: %w", err)
	}

	return collectSlots(rows)
}

func (r *slotRepository) Update(ctx context.Context, slot *entity.VisitSlot) error {
	query := `
		UPDATE visit_slots
		SET date = $2, start_time = $3, end_time = $4, duration_minutes = $5, capacity = $6,
		    booked_count = $7, status = $8, description = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := database.Executor(ctx, r.db).Exec(ctx, query,
		slot.ID,
		slot.Date,
		slot.StartTime,
		slot.EndTime,
		slot.DurationMinutes,
		slot.Capacity,
		slot.BookedCount,
		slot.Status,
		slot.Description,
		slot.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update slot",
			zap.Error(err),
			zap.String("slot_id", slot.ID.String()),
		)
		return fmt.Errorf("update slot %s: %w", slot.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("slot %s not found", slot.ID.String())
	}

	return nil
}

func (r *slotRepository) UpdateAggregate(ctx context.Context, id uuid.UUID, bookedCount int, status entity.SlotStatus) error {
	query := `UPDATE visit_slots SET booked_count = $2, status = $3, updated_at = NOW() WHERE id = $1`

	result, err := database.Executor(ctx, r.db).Exec(ctx, query, id, bookedCount, status)
	if err != nil {
		r.log.Error("Failed to update slot aggregate",
			zap.Error(err),
			zap.String("slot_id", id.String()),
			zap.Int("booked_count", bookedCount),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update slot %s aggregate: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("slot %s not found", id.String())
	}

	return nil
}

func (r *slotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM visit_slots WHERE id = $1`

	result, err := database.Executor(ctx, r.db).Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to delete slot",
			zap.Error(err),
			zap.String("slot_id", id.String()),
		)
		return fmt.Errorf("delete slot %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("slot %s not found", id.String())
	}

	r.log.Info("Slot deleted", zap.String("slot_id", id.String()))
	return nil
}

func (r *slotRepository) FindExpiryCandidates(ctx context.Context, onOrBefore time.Time) ([]*entity.VisitSlot, error) {
	query, args, err := psql.Select(slotColumns).
		From("visit_slots").
		Where(sq.LtOrEq{"date": onOrBefore}).
		Where(sq.NotEq{"status": []string{
			string(entity.SlotStatusCancelled),
			string(entity.SlotStatusMaintenance),
			string(entity.SlotStatusExpired),
		}}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build expiry candidates query: %w", err)
	}

	rows, err := database.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to find expiry candidates", zap.Error(err))
		return nil, fmt.Errorf("find expiry candidates: %w", err)
	}

	return collectSlots(rows)
}

// MarkExpired flips the given slots to expired, skipping any that became
// cancelled or maintenance since they were read, and returns the ids it
// changed.
func (r *slotRepository) MarkExpired(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := psql.Update("visit_slots").
		Set("status", string(entity.SlotStatusExpired)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": ids}).
		Where(sq.NotEq{"status": []string{
			string(entity.SlotStatusCancelled),
			string(entity.SlotStatusMaintenance),
			string(entity.SlotStatusExpired),
		}}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build mark expired query: %w", err)
	}

	rows, err := database.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to mark slots expired",
			zap.Error(err),
			zap.Int("count", len(ids)),
		)
		return nil, fmt.Errorf("mark %d slots expired: %w", len(ids), err)
	}
	defer rows.Close()

	var expired []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired slot id: %w", err)
		}
		expired = append(expired, id)
	}

	return expired, rows.Err()
}
