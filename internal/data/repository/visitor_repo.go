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

type VisitorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Visitor, error)
	FindByEmail(ctx context.Context, email string) (*entity.Visitor, error)
	// FindOrCreateByEmail inserts the visitor or, when the email is already
	// registered, refreshes its name and phone and returns the stored row.
	FindOrCreateByEmail(ctx context.Context, visitor *entity.Visitor) (*entity.Visitor, error)
}

type visitorRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewVisitorRepository(db database.PgxIface, log *zap.Logger) VisitorRepository {
	return &visitorRepository{
		db:  db,
		log: log.With(zap.String("repository", "visitor")),
	}
}

func (r *visitorRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Visitor, error) {
	query := `
		SELECT id, name, email, phone, created_at, updated_at
		FROM visitors
		WHERE id = $1
	`

	var visitor entity.Visitor
	err := database.Executor(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&visitor.ID,
		&visitor.Name,
		&visitor.Email,
		&visitor.Phone,
		&visitor.CreatedAt,
		&visitor.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find visitor by ID",
			zap.Error(err),
			zap.String("visitor_id", id.String()),
		)
		return nil, fmt.Errorf("find visitor by ID %s: %w", id.String(), err)
	}

	return &visitor, nil
}

func (r *visitorRepository) FindByEmail(ctx context.Context, email string) (*entity.Visitor, error) {
	query := `
		SELECT id, name, email, phone, created_at, updated_at
		FROM visitors
		WHERE email = $1
	`

	var visitor entity.Visitor
	err := database.Executor(ctx, r.db).QueryRow(ctx, query, email).Scan(
		&visitor.ID,
		&visitor.Name,
		&visitor.Email,
		&visitor.Phone,
		&visitor.CreatedAt,
		&visitor.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find visitor by email", zap.Error(err))
		return nil, fmt.Errorf("find visitor by email: %w", err)
	}

	return &visitor, nil
}

func (r *visitorRepository) FindOrCreateByEmail(ctx context.Context, visitor *entity.Visitor) (*entity.Visitor, error) {
	query := `
		INSERT INTO visitors (id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT visitors_email_key DO UPDATE
		SET name = EXCLUDED.name,
		    phone = COALESCE(EXCLUDED.phone, visitors.phone),
		    updated_at = EXCLUDED.updated_at
		RETURNING id, name, email, phone, created_at, updated_at
	`

	var stored entity.Visitor
	err := database.Executor(ctx, r.db).QueryRow(ctx, query,
		visitor.ID,
		visitor.Name,
		visitor.Email,
		visitor.Phone,
		visitor.CreatedAt,
		visitor.UpdatedAt,
	).Scan(
		&stored.ID,
		&stored.Name,
		&stored.Email,
		&stored.Phone,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to upsert visitor", zap.Error(err))
		return nil, fmt.Errorf("upsert visitor: %w", err)
	}

	return &stored, nil
}
