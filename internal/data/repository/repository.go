package repository

import (
	"errors"

	"visitor-booking/pkg/database"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

var ErrDuplicateTrackingToken = errors.New("tracking token already in use")

// psql builds postgres-flavoured queries for the filtered lookups.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Repository struct {
	User     UserRepository
	Session  SessionRepository
	Visitor  VisitorRepository
	Slot     SlotRepository
	Booking  BookingRepository
	Conflict ConflictRepository
	AuditLog AuditLogRepository
	Tx       TxManager
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User:     NewUserRepository(db, log),
		Session:  NewSessionRepository(db, log),
		Visitor:  NewVisitorRepository(db, log),
		Slot:     NewSlotRepository(db, log),
		Booking:  NewBookingRepository(db, log),
		Conflict: NewConflictRepository(db, log),
		AuditLog: NewAuditLogRepository(db, log),
		Tx:       NewTxManager(db),
	}
}
