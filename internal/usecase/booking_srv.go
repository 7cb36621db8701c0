package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/internal/data/repository"
	"visitor-booking/internal/dto/request"
	"visitor-booking/internal/dto/response"
	"visitor-booking/pkg/events"
	"visitor-booking/pkg/metrics"
	"visitor-booking/pkg/notify"
	"visitor-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	CreateBooking(ctx context.Context, actor *uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, bookingID string) (*response.BookingDetailResponse, error)
	ListSlotBookings(ctx context.Context, slotID string) ([]*response.BookingResponse, error)

	// Lifecycle transitions
	ConfirmBooking(ctx context.Context, actor *uuid.UUID, bookingID string) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, actor *uuid.UUID, bookingID string, req *request.CancelBookingRequest) (*response.BookingResponse, error)
	UpdateBooking(ctx context.Context, actor *uuid.UUID, bookingID string, req *request.UpdateBookingRequest) (*response.BookingResponse, error)
	CompleteBooking(ctx context.Context, actor *uuid.UUID, bookingID string) (*response.BookingResponse, error)
	MarkNoShow(ctx context.Context, actor *uuid.UUID, bookingID string) (*response.BookingResponse, error)
}

const (
	channelStaff  = "staff"
	channelPublic = "public"
)

type bookingService struct {
	repo      *repository.Repository
	effects   *SideEffects
	metrics   *metrics.Metrics
	lifecycle *slotLifecycle
	now       func() time.Time
	log       *zap.Logger
}

func NewBookingService(repo *repository.Repository, effects *SideEffects, m *metrics.Metrics, log *zap.Logger, opts ...Option) BookingService {
	return newBookingService(repo, effects, m, log.With(zap.String("service", "booking")), opts)
}

func newBookingService(repo *repository.Repository, effects *SideEffects, m *metrics.Metrics, log *zap.Logger, opts []Option) *bookingService {
	o := buildOptions(opts)
	return &bookingService{
		repo:      repo,
		effects:   effects,
		metrics:   m,
		lifecycle: &slotLifecycle{repo: repo, loc: o.loc, now: o.now},
		now:       o.now,
		log:       log,
	}
}

func parseBookingID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid booking ID %q: %w", id, ErrBookingNotFound)
	}
	return parsed, nil
}

func parseSlotID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid slot ID %q: %w", id, ErrSlotNotFound)
	}
	return parsed, nil
}

func lockSlot(ctx context.Context, repo *repository.Repository, slotID uuid.UUID) (*entity.VisitSlot, error) {
	slot, err := repo.Slot.FindByIDForUpdate(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, ErrSlotNotFound
	}
	return slot, nil
}

// ==================== CREATE ====================

type newBooking struct {
	slotID          uuid.UUID
	visitorID       uuid.UUID
	groupSize       int
	specialRequests *string
	notes           *string
	trackingToken   *string
	actor           *uuid.UUID
	channel         string
}

func (s *bookingService) CreateBooking(ctx context.Context, actor *uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	slotID, err := parseSlotID(req.SlotID)
	if err != nil {
		return nil, err
	}

	visitorID, err := uuid.Parse(req.VisitorID)
	if err != nil {
		return nil, fmt.Errorf("invalid visitor ID %q: %w", req.VisitorID, ErrVisitorNotFound)
	}

	visitor, err := s.repo.Visitor.FindByID(ctx, visitorID)
	if err != nil {
		return nil, fmt.Errorf("find visitor: %w", err)
	}
	if visitor == nil {
		return nil, ErrVisitorNotFound
	}

	booking, slot, err := s.create(ctx, newBooking{
		slotID:          slotID,
		visitorID:       visitorID,
		groupSize:       req.GroupSize,
		specialRequests: req.SpecialRequests,
		notes:           req.Notes,
		actor:           actor,
		channel:         channelStaff,
	})
	if err != nil {
		return nil, err
	}

	return response.BookingToResponse(booking, slot), nil
}

// create inserts a tentative booking. Capacity is validated against the
// active bookings read under the slot row lock, so two concurrent requests
// for the last places cannot both pass.
func (s *bookingService) create(ctx context.Context, in newBooking) (*entity.Booking, *entity.VisitSlot, error) {
	if in.groupSize < 1 {
		return nil, nil, ErrInvalidGroupSize
	}

	now := s.now()
	booking := &entity.Booking{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		TrackingToken:   in.trackingToken,
		SlotID:          in.slotID,
		VisitorID:       in.visitorID,
		GroupSize:       in.groupSize,
		Status:          entity.BookingStatusTentative,
		SpecialRequests: in.specialRequests,
		Notes:           in.notes,
		CreatedBy:       in.actor,
	}

	var slot *entity.VisitSlot
	err := s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		slot, err = lockSlot(txCtx, s.repo, in.slotID)
		if err != nil {
			return err
		}

		active, view, err := s.lifecycle.refresh(txCtx, slot)
		if err != nil {
			return err
		}

		if err := ValidateBookingCapacity(&view, active, in.groupSize, nil); err != nil {
			return err
		}

		if err := s.repo.Booking.Create(txCtx, booking); err != nil {
			return err
		}

		return s.lifecycle.recompute(txCtx, slot)
	})

	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			s.metrics.CapacityRejections.Inc()
		}
		s.log.Warn("Create booking failed",
			zap.Error(err),
			zap.String("slot_id", in.slotID.String()),
			zap.Int("group_size", in.groupSize),
		)
		return nil, nil, err
	}

	s.metrics.BookingsCreated.WithLabelValues(in.channel).Inc()

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("slot_id", slot.ID.String()),
		zap.Int("group_size", booking.GroupSize),
		zap.Int("booked_count", slot.BookedCount),
		zap.String("slot_status", string(slot.Status)),
		zap.String("channel", in.channel),
	)

	s.effects.Audit(entity.ActionBookingCreated, entity.AuditEntityBooking, &booking.ID, in.actor, map[string]any{
		"slot_id":    slot.ID.String(),
		"group_size": booking.GroupSize,
		"channel":    in.channel,
	})
	s.effects.Publish(events.BookingCreated, s.bookingEvent(booking, in.actor, "", nil))

	return booking, slot, nil
}

// ==================== READ ====================

func (s *bookingService) GetBooking(ctx context.Context, bookingID string) (*response.BookingDetailResponse, error) {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	detail, err := s.repo.Booking.FindDetailByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if detail == nil {
		return nil, ErrBookingNotFound
	}

	return response.BookingDetailToResponse(detail), nil
}

func (s *bookingService) ListSlotBookings(ctx context.Context, slotID string) ([]*response.BookingResponse, error) {
	id, err := parseSlotID(slotID)
	if err != nil {
		return nil, err
	}

	slot, err := s.repo.Slot.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find slot: %w", err)
	}
	if slot == nil {
		return nil, ErrSlotNotFound
	}

	bookings, err := s.repo.Booking.FindBySlotID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list slot bookings: %w", err)
	}

	result := make([]*response.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		result = append(result, response.BookingToResponse(b, nil))
	}
	return result, nil
}

// ==================== TRANSITIONS ====================

// bookingMutation edits booking in place and reports whether anything
// changed. It runs with the booking's slot locked.
type bookingMutation func(txCtx context.Context, slot *entity.VisitSlot, booking *entity.Booking) (bool, error)

// mutate re-reads the booking under its slot lock, applies fn, persists the
// result and recomputes the slot aggregate in the same transaction.
func (s *bookingService) mutate(ctx context.Context, bookingID uuid.UUID, fn bookingMutation) (*entity.Booking, *entity.VisitSlot, bool, error) {
	current, err := s.repo.Booking.FindByID(ctx, bookingID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("find booking: %w", err)
	}
	if current == nil {
		return nil, nil, false, ErrBookingNotFound
	}

	var (
		booking *entity.Booking
		slot    *entity.VisitSlot
		changed bool
	)
	err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		slot, err = lockSlot(txCtx, s.repo, current.SlotID)
		if err != nil {
			return err
		}

		booking, err = s.repo.Booking.FindByID(txCtx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return ErrBookingNotFound
		}

		changed, err = fn(txCtx, slot, booking)
		if err != nil || !changed {
			return err
		}

		booking.UpdatedAt = s.now()
		if err := s.repo.Booking.Update(txCtx, booking); err != nil {
			return err
		}

		return s.lifecycle.recompute(txCtx, slot)
	})

	if err != nil {
		s.log.Warn("Booking mutation failed",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, nil, false, err
	}

	return booking, slot, changed, nil
}

func (s *bookingService) applyStatus(b *entity.Booking, next entity.BookingStatus) {
	now := s.now()
	b.Status = next
	switch next {
	case entity.BookingStatusConfirmed:
		b.ConfirmedAt = &now
	case entity.BookingStatusCancelled:
		b.CancelledAt = &now
	case entity.BookingStatusCompleted:
		b.CompletedAt = &now
	}
}

func (s *bookingService) ConfirmBooking(ctx context.Context, actor *uuid.UUID, bookingID string) (*response.BookingResponse, error) {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	booking, slot, changed, err := s.mutate(ctx, id, func(_ context.Context, _ *entity.VisitSlot, b *entity.Booking) (bool, error) {
		switch {
		case b.Status == entity.BookingStatusConfirmed:
			return false, nil
		case b.Status == entity.BookingStatusCancelled:
			return false, ErrAlreadyCancelled
		case b.Status.Immutable():
			return false, ErrBookingImmutable
		}
		s.applyStatus(b, entity.BookingStatusConfirmed)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.afterTransition(actor, booking, slot, entity.ActionBookingConfirmed, events.BookingConfirmed, nil)
		s.sendConfirmation(ctx, booking, slot)
	}

	return response.BookingToResponse(booking, slot), nil
}

func (s *bookingService) CancelBooking(ctx context.Context, actor *uuid.UUID, bookingID string, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	booking, slot, err := s.cancel(ctx, actor, id, req.Reason)
	if err != nil {
		return nil, err
	}

	return response.BookingToResponse(booking, slot), nil
}

func (s *bookingService) cancel(ctx context.Context, actor *uuid.UUID, id uuid.UUID, reason string) (*entity.Booking, *entity.VisitSlot, error) {
	reason = strings.TrimSpace(reason)

	booking, slot, _, err := s.mutate(ctx, id, func(_ context.Context, _ *entity.VisitSlot, b *entity.Booking) (bool, error) {
		switch {
		case b.Status.Immutable():
			return false, ErrBookingImmutable
		case b.Status == entity.BookingStatusCancelled:
			return false, ErrAlreadyCancelled
		case reason == "":
			return false, ErrCancellationReasonRequired
		}
		s.applyStatus(b, entity.BookingStatusCancelled)
		b.CancellationReason = &reason
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.afterTransition(actor, booking, slot, entity.ActionBookingCancelled, events.BookingCancelled, map[string]any{
		"reason": reason,
	})

	return booking, slot, nil
}

func (s *bookingService) UpdateBooking(ctx context.Context, actor *uuid.UUID, bookingID string, req *request.UpdateBookingRequest) (*response.BookingResponse, error) {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	booking, slot, err := s.update(ctx, actor, id, *req)
	if err != nil {
		return nil, err
	}

	return response.BookingToResponse(booking, slot), nil
}

func (s *bookingService) update(ctx context.Context, actor *uuid.UUID, id uuid.UUID, req request.UpdateBookingRequest) (*entity.Booking, *entity.VisitSlot, error) {
	if req.Empty() {
		return nil, nil, ErrNoFieldsToUpdate
	}

	var (
		changes       []string
		statusChanged bool
	)
	booking, slot, changed, err := s.mutate(ctx, id, func(txCtx context.Context, slot *entity.VisitSlot, b *entity.Booking) (bool, error) {
		changes, statusChanged = nil, false

		if b.Status.Immutable() {
			return false, ErrBookingImmutable
		}
		if b.Status == entity.BookingStatusCancelled {
			return false, ErrAlreadyCancelled
		}

		if req.GroupSize != nil && *req.GroupSize != b.GroupSize {
			if err := s.checkGroupSizeChange(txCtx, slot, b, *req.GroupSize); err != nil {
				return false, err
			}
			b.GroupSize = *req.GroupSize
			changes = append(changes, "group_size")
		}

		if req.SpecialRequests != nil && utils.StringOrEmpty(b.SpecialRequests) != *req.SpecialRequests {
			b.SpecialRequests = req.SpecialRequests
			changes = append(changes, "special_requests")
		}

		if req.Notes != nil && utils.StringOrEmpty(b.Notes) != *req.Notes {
			b.Notes = req.Notes
			changes = append(changes, "notes")
		}

		if req.Status != nil && entity.BookingStatus(*req.Status) != b.Status {
			next := entity.BookingStatus(*req.Status)
			if !next.Valid() {
				return false, ErrInvalidStatus
			}
			// cancellation needs a reason and goes through cancel
			if next == entity.BookingStatusCancelled || !b.Status.CanTransitionTo(next) {
				return false, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, b.Status, next)
			}
			s.applyStatus(b, next)
			changes = append(changes, "status")
			statusChanged = true
		}

		return len(changes) > 0, nil
	})
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			s.metrics.CapacityRejections.Inc()
		}
		return nil, nil, err
	}

	if !changed {
		return booking, slot, nil
	}

	if statusChanged {
		s.metrics.BookingTransitions.WithLabelValues(string(booking.Status)).Inc()
	}

	s.log.Info("Booking updated",
		zap.String("booking_id", booking.ID.String()),
		zap.Strings("changes", changes),
		zap.Int("booked_count", slot.BookedCount),
	)

	s.effects.Audit(entity.ActionBookingUpdated, entity.AuditEntityBooking, &booking.ID, actor, map[string]any{
		"slot_id":    slot.ID.String(),
		"changes":    changes,
		"group_size": booking.GroupSize,
		"status":     string(booking.Status),
	})
	s.effects.Publish(events.BookingUpdated, s.bookingEvent(booking, actor, "", changes))

	if statusChanged && booking.Status == entity.BookingStatusConfirmed {
		s.effects.Publish(events.BookingConfirmed, s.bookingEvent(booking, actor, "", nil))
		s.sendConfirmation(ctx, booking, slot)
	}

	return booking, slot, nil
}

// checkGroupSizeChange allows any reduction. An increase needs the slot to
// still be open and enough room once this booking's own guests are set aside.
func (s *bookingService) checkGroupSizeChange(ctx context.Context, slot *entity.VisitSlot, b *entity.Booking, size int) error {
	if size < 1 {
		return ErrInvalidGroupSize
	}
	if size <= b.GroupSize {
		return nil
	}

	active, view, err := s.lifecycle.refresh(ctx, slot)
	if err != nil {
		return err
	}

	switch view.Status {
	case entity.SlotStatusExpired, entity.SlotStatusCancelled, entity.SlotStatusMaintenance:
		return ErrSlotUnavailable
	}

	available := ComputeAvailableCapacity(&view, active, &b.ID)
	if size > available {
		if available < 0 {
			available = 0
		}
		return &CapacityExceededError{Available: available, Requested: size}
	}
	return nil
}

func (s *bookingService) CompleteBooking(ctx context.Context, actor *uuid.UUID, bookingID string) (*response.BookingResponse, error) {
	return s.finish(ctx, actor, bookingID, entity.BookingStatusCompleted, entity.ActionBookingCompleted)
}

func (s *bookingService) MarkNoShow(ctx context.Context, actor *uuid.UUID, bookingID string) (*response.BookingResponse, error) {
	return s.finish(ctx, actor, bookingID, entity.BookingStatusNoShow, entity.ActionBookingNoShow)
}

// finish moves a confirmed booking to completed or no_show.
func (s *bookingService) finish(ctx context.Context, actor *uuid.UUID, bookingID string, target entity.BookingStatus, action string) (*response.BookingResponse, error) {
	id, err := parseBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	booking, slot, _, err := s.mutate(ctx, id, func(_ context.Context, _ *entity.VisitSlot, b *entity.Booking) (bool, error) {
		switch {
		case b.Status == entity.BookingStatusCancelled:
			return false, ErrAlreadyCancelled
		case b.Status.Immutable():
			return false, ErrBookingImmutable
		case !b.Status.CanTransitionTo(target):
			return false, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, b.Status, target)
		}
		s.applyStatus(b, target)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(actor, booking, slot, action, events.BookingUpdated, nil)

	return response.BookingToResponse(booking, slot), nil
}

// ==================== SIDE EFFECTS ====================

func (s *bookingService) bookingEvent(b *entity.Booking, actor *uuid.UUID, reason string, changes []string) events.BookingEvent {
	evt := events.BookingEvent{
		BookingID: b.ID.String(),
		SlotID:    b.SlotID.String(),
		Status:    string(b.Status),
		GroupSize: b.GroupSize,
		Reason:    reason,
		Changes:   changes,
		At:        b.UpdatedAt,
	}
	if actor != nil {
		evt.Actor = actor.String()
	}
	return evt
}

func (s *bookingService) afterTransition(actor *uuid.UUID, b *entity.Booking, slot *entity.VisitSlot, action, subject string, details map[string]any) {
	s.metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()

	s.log.Info("Booking status changed",
		zap.String("booking_id", b.ID.String()),
		zap.String("status", string(b.Status)),
		zap.String("slot_id", slot.ID.String()),
		zap.Int("booked_count", slot.BookedCount),
		zap.String("slot_status", string(slot.Status)),
	)

	if details == nil {
		details = map[string]any{}
	}
	details["slot_id"] = slot.ID.String()
	details["status"] = string(b.Status)
	details["group_size"] = b.GroupSize

	reason, _ := details["reason"].(string)
	s.effects.Audit(action, entity.AuditEntityBooking, &b.ID, actor, details)
	s.effects.Publish(subject, s.bookingEvent(b, actor, reason, nil))
}

// sendConfirmation queues the confirmation message when the booking has a
// tracking token and the visitor an email address.
func (s *bookingService) sendConfirmation(ctx context.Context, b *entity.Booking, slot *entity.VisitSlot) {
	if b.TrackingToken == nil {
		return
	}

	visitor, err := s.repo.Visitor.FindByID(ctx, b.VisitorID)
	if err != nil || visitor == nil || visitor.Email == "" {
		s.log.Warn("Skipping confirmation notification",
			zap.String("booking_id", b.ID.String()),
			zap.Error(err),
		)
		return
	}

	s.effects.NotifyConfirmation(notify.ConfirmationData{
		VisitorName:     visitor.Name,
		VisitorEmail:    visitor.Email,
		SlotDate:        slot.Date.Format(utils.DateLayout),
		SlotTime:        slot.StartTime.String(),
		SlotEndTime:     slot.EndTime.String(),
		GroupSize:       b.GroupSize,
		TrackingToken:   *b.TrackingToken,
		SpecialRequests: b.SpecialRequests,
	})
}
