package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"visitor-booking/internal/data/entity"
	"visitor-booking/internal/data/repository"
	"visitor-booking/internal/dto/request"
	"visitor-booking/internal/dto/response"
	"visitor-booking/pkg/metrics"
	"visitor-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PublicBookingService serves visitors without an account. Ownership of an
// existing booking is proven by the email and tracking token pair.
type PublicBookingService interface {
	CreatePublicBooking(ctx context.Context, req *request.PublicBookingRequest) (*response.PublicBookingResponse, error)
	GetPublicBooking(ctx context.Context, req *request.PublicLookupRequest) (*response.PublicBookingResponse, error)
	CancelPublicBooking(ctx context.Context, req *request.PublicCancelRequest) (*response.PublicBookingResponse, error)
	UpdatePublicBooking(ctx context.Context, req *request.PublicUpdateRequest) (*response.PublicBookingResponse, error)
}

const maxTrackingTokenAttempts = 10

func NewPublicBookingService(repo *repository.Repository, effects *SideEffects, m *metrics.Metrics, log *zap.Logger, opts ...Option) PublicBookingService {
	return newBookingService(repo, effects, m, log.With(zap.String("service", "public_booking")), opts)
}

func (s *bookingService) CreatePublicBooking(ctx context.Context, req *request.PublicBookingRequest) (*response.PublicBookingResponse, error) {
	slotID, err := parseSlotID(req.SlotID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	visitor, err := s.repo.Visitor.FindOrCreateByEmail(ctx, &entity.Visitor{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:  strings.TrimSpace(req.Name),
		Email: utils.NormalizeEmail(req.Email),
		Phone: req.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve visitor: %w", err)
	}

	var (
		booking *entity.Booking
		slot    *entity.VisitSlot
	)
	// a token can still collide between the existence check and the insert;
	// the unique constraint catches it and one fresh token is tried
	for attempt := 0; attempt < 2; attempt++ {
		token, err := s.generateTrackingToken(ctx)
		if err != nil {
			return nil, err
		}

		booking, slot, err = s.create(ctx, newBooking{
			slotID:          slotID,
			visitorID:       visitor.ID,
			groupSize:       req.GroupSize,
			specialRequests: req.SpecialRequests,
			trackingToken:   &token,
			channel:         channelPublic,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateTrackingToken) || attempt == 1 {
			return nil, err
		}
		s.log.Warn("Tracking token collided on insert, regenerating")
	}

	return response.BookingToPublicResponse(booking, slot), nil
}

// generateTrackingToken draws random tokens until one is unused, falling back
// to a timestamp based token after maxTrackingTokenAttempts collisions.
func (s *bookingService) generateTrackingToken(ctx context.Context) (string, error) {
	for i := 0; i < maxTrackingTokenAttempts; i++ {
		token, err := utils.GenerateTrackingToken()
		if err != nil {
			return "", fmt.Errorf("generate tracking token: %w", err)
		}

		exists, err := s.repo.Booking.TrackingTokenExists(ctx, token)
		if err != nil {
			return "", err
		}
		if !exists {
			return token, nil
		}
	}

	s.log.Warn("Tracking token attempts exhausted, using composite token",
		zap.Int("attempts", maxTrackingTokenAttempts),
	)
	return utils.GenerateCompositeToken(s.now()), nil
}

// findOwned returns ErrBookingNotFound for any mismatch so callers cannot
// tell a wrong email from a wrong token.
func (s *bookingService) findOwned(ctx context.Context, lookup request.PublicLookupRequest) (*entity.Booking, error) {
	email := utils.NormalizeEmail(lookup.Email)
	token := strings.ToUpper(strings.TrimSpace(lookup.TrackingToken))
	if email == "" || token == "" {
		return nil, ErrBookingNotFound
	}

	booking, err := s.repo.Booking.FindByEmailAndToken(ctx, email, token)
	if err != nil {
		return nil, fmt.Errorf("lookup booking: %w", err)
	}
	if booking == nil {
		s.log.Warn("Public booking lookup did not match")
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func (s *bookingService) GetPublicBooking(ctx context.Context, req *request.PublicLookupRequest) (*response.PublicBookingResponse, error) {
	booking, err := s.findOwned(ctx, *req)
	if err != nil {
		return nil, err
	}

	slot, err := s.repo.Slot.FindByID(ctx, booking.SlotID)
	if err != nil {
		return nil, fmt.Errorf("find slot: %w", err)
	}
	if slot == nil {
		return nil, ErrSlotNotFound
	}

	return response.BookingToPublicResponse(booking, slot), nil
}

func (s *bookingService) CancelPublicBooking(ctx context.Context, req *request.PublicCancelRequest) (*response.PublicBookingResponse, error) {
	owned, err := s.findOwned(ctx, req.PublicLookupRequest)
	if err != nil {
		return nil, err
	}

	booking, slot, err := s.cancel(ctx, nil, owned.ID, req.Reason)
	if err != nil {
		return nil, err
	}

	return response.BookingToPublicResponse(booking, slot), nil
}

func (s *bookingService) UpdatePublicBooking(ctx context.Context, req *request.PublicUpdateRequest) (*response.PublicBookingResponse, error) {
	if req.GroupSize == nil && req.SpecialRequests == nil {
		return nil, ErrNoFieldsToUpdate
	}

	owned, err := s.findOwned(ctx, req.PublicLookupRequest)
	if err != nil {
		return nil, err
	}

	booking, slot, err := s.update(ctx, nil, owned.ID, request.UpdateBookingRequest{
		GroupSize:       req.GroupSize,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		return nil, err
	}

	return response.BookingToPublicResponse(booking, slot), nil
}
