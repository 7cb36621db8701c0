package repository

import (
	"context"
	"errors"
	"fmt"

	"visitor-booking/internal/data/entity"
	"visitor-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindDetailByID(ctx context.Context, id uuid.UUID) (*entity.BookingDetail, error)
	FindByEmailAndToken(ctx context.Context, email, token string) (*entity.Booking, error)
	TrackingTokenExists(ctx context.Context, token string) (bool, error)
	Update(ctx context.Context, booking *entity.Booking) error

	// Slot aggregate queries
	FindBySlotID(ctx context.Context, slotID uuid.UUID) ([]*entity.Booking, error)
	FindActiveBySlotID(ctx context.Context, slotID uuid.UUID) ([]*entity.Booking, error)
	SumActiveGroupSize(ctx context.Context, slotID uuid.UUID) (int, error)
	CountActiveBySlotID(ctx context.Context, slotID uuid.UUID) (int, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `b.id, b.tracking_token, b.slot_id, b.visitor_id, b.group_size, b.status,
	b.special_requests, b.notes, b.cancellation_reason, b.confirmed_at, b.cancelled_at,
	b.completed_at, b.created_by, b.created_at, b.updated_at`

func bookingScanTargets(b *entity.Booking) []any {
	return []any{
		&b.ID,
		&b.TrackingToken,
		&b.SlotID,
		&b.VisitorID,
		&b.GroupSize,
		&b.Status,
		&b.SpecialRequests,
		&b.Notes,
		&b.CancellationReason,
		&b.ConfirmedAt,
		&b.CancelledAt,
		&b.CompletedAt,
		&b.CreatedBy,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func activeStatusStrings() []string {
	statuses := make([]string, len(entity.ActiveBookingStatuses))
	for i, s := range entity.ActiveBookingStatuses {
		statuses[i] = string(s)
	}
	return statuses
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (id, tracking_token, slot_id, visitor_id, group_size, status,
		                      special_requests, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := database.Executor(ctx, r.db).Exec(ctx, query,
		booking.ID,
		booking.TrackingToken,
		booking.SlotID,
		booking.VisitorID,
		booking.GroupSize,
		booking.Status,
		booking.SpecialRequests,
		booking.Notes,
		booking.CreatedBy,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if database.IsUniqueViolation(err, "bookings_tracking_token_key") {
		return ErrDuplicateTrackingToken
	}
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("slot_id", booking.SlotID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.ID.String(), err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	var booking entity.Booking
	err := database.Executor(ctx, r.db).QueryRow(ctx, query, id).Scan(bookingScanTargets(&booking)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return &booking, nil
}

func (r *bookingRepository) FindDetailByID(ctx context.Context, id uuid.UUID) (*entity.BookingDetail, error) {
	query := `
		SELECT ` + bookingColumns + `, s.date, s.start_time, s.end_time, v.name, v.email
		FROM bookings b
		JOIN visit_slots s ON s.id = b.slot_id
		JOIN visitors v ON v.id = b.visitor_id
		WHERE b.id = $1
	`

	var detail entity.BookingDetail
	targets := append(bookingScanTargets(&detail.Booking),
		&detail.SlotDate,
		&detail.SlotStartTime,
		&detail.SlotEndTime,
		&detail.VisitorName,
		&detail.VisitorEmail,
	)

	err := database.Executor(ctx, r.db).QueryRow(ctx, query, id).Scan(targets...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking detail",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking detail %s: %w", id.String(), err)
	}

	return &detail, nil
}

// FindByEmailAndToken returns the booking only when both the tracking token
// and the owning visitor's email match.
func (r *bookingRepository) FindByEmailAndToken(ctx context.Context, email, token string) (*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		JOIN visitors v ON v.id = b.visitor_id
		WHERE b.tracking_token = $1 AND LOWER(v.email) = LOWER($2)
	`

	var booking entity.Booking
	err := database.Executor(ctx, r.db).QueryRow(ctx, query, token, email).Scan(bookingScanTargets(&booking)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by tracking token", zap.Error(err))
		return nil, fmt.Errorf("find booking by tracking token: %w", err)
	}

	return &booking, nil
}

func (r *bookingRepository) TrackingTokenExists(ctx context.Context, token string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM bookings WHERE tracking_token = $1)`

	var exists bool
	if err := database.Executor(ctx, r.db).QueryRow(ctx, query, token).Scan(&exists); err != nil {
		r.log.Error("Failed to check tracking token", zap.Error(err))
		return false, fmt.Errorf("check tracking token: %w", err)
	}

	return exists, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	query := `
		UPDATE bookings
		SET group_size = $2, status = $3, special_requests = $4, notes = $5,
		    cancellation_reason = $6, confirmed_at = $7, cancelled_at = $8,
		    completed_at = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := database.Executor(ctx, r.db).Exec(ctx, query,
		booking.ID,
		booking.GroupSize,
		booking.Status,
		booking.SpecialRequests,
		booking.Notes,
		booking.CancellationReason,
		booking.ConfirmedAt,
		booking.CancelledAt,
		booking.CompletedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to update booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("status", string(booking.Status)),
		)
		return fmt.Errorf("update booking %s: %w", booking.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking %s not found", booking.ID.String())
	}

	return nil
}

func (r *bookingRepository) FindBySlotID(ctx context.Context, slotID uuid.UUID) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.slot_id = $1 ORDER BY b.created_at`
	return r.queryList(ctx, query, slotID)
}

func (r *bookingRepository) FindActiveBySlotID(ctx context.Context, slotID uuid.UUID) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.slot_id = $1 AND b.status = ANY($2)
		ORDER BY b.created_at
	`
	return r.queryList(ctx, query, slotID, activeStatusStrings())
}

func (r *bookingRepository) queryList(ctx context.Context, query string, slotID uuid.UUID, args ...any) ([]*entity.Booking, error) {
	rows, err := database.Executor(ctx, r.db).Query(ctx, query, append([]any{slotID}, args...)...)
	if err != nil {
		r.log.Error("Failed to find bookings by slot",
			zap.Error(err),
			zap.String("slot_id", slotID.String()),
		)
		return nil, fmt.Errorf("find bookings by slot %s: %w", slotID.String(), err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		var booking entity.Booking
		if err := rows.Scan(bookingScanTargets(&booking)...); err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, &booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) SumActiveGroupSize(ctx context.Context, slotID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(group_size), 0)
		FROM bookings
		WHERE slot_id = $1 AND status = ANY($2)
	`

	var total int
	err := database.Executor(ctx, r.db).QueryRow(ctx, query, slotID, activeStatusStrings()).Scan(&total)
	if err != nil {
		r.log.Error("Failed to sum active group size",
			zap.Error(err),
			zap.String("slot_id", slotID.String()),
		)
		return 0, fmt.Errorf("sum active group size for slot %s: %w", slotID.String(), err)
	}

	return total, nil
}

func (r *bookingRepository) CountActiveBySlotID(ctx context.Context, slotID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE slot_id = $1 AND status = ANY($2)`

	var count int
	err := database.Executor(ctx, r.db).QueryRow(ctx, query, slotID, activeStatusStrings()).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count active bookings",
			zap.Error(err),
			zap.String("slot_id", slotID.String()),
		)
		return 0, fmt.Errorf("count active bookings for slot %s: %w", slotID.String(), err)
	}

	return count, nil
}
