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
	"visitor-booking/pkg/metrics"
	"visitor-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SlotService interface {
	CreateSlot(ctx context.Context, actor *uuid.UUID, req *request.CreateSlotRequest) (*response.SlotResponse, error)
	UpdateSlot(ctx context.Context, actor *uuid.UUID, slotID string, req *request.UpdateSlotRequest) (*response.SlotResponse, error)
	DeleteSlot(ctx context.Context, actor *uuid.UUID, slotID string) error
	SetSlotStatus(ctx context.Context, actor *uuid.UUID, slotID string, req *request.SetSlotStatusRequest) (*response.SlotResponse, error)
	RecomputeSlot(ctx context.Context, slotID string) (*response.SlotResponse, error)

	GetSlot(ctx context.Context, slotID string) (*response.SlotResponse, error)
	ListSlots(ctx context.Context, req *request.ListSlotsRequest) ([]*response.SlotResponse, error)
	GetAvailability(ctx context.Context, date string) ([]*response.AvailabilityResponse, error)

	// Schedule conflicts
	ListConflicts(ctx context.Context, status string) ([]*response.ConflictResponse, error)
	ResolveConflict(ctx context.Context, actor *uuid.UUID, conflictID string, req *request.ResolveConflictRequest) (*response.ConflictResponse, error)
}

type slotService struct {
	repo      *repository.Repository
	effects   *SideEffects
	metrics   *metrics.Metrics
	lifecycle *slotLifecycle
	now       func() time.Time
	loc       *time.Location
	log       *zap.Logger
}

func NewSlotService(repo *repository.Repository, effects *SideEffects, m *metrics.Metrics, log *zap.Logger, opts ...Option) SlotService {
	o := buildOptions(opts)
	return &slotService{
		repo:      repo,
		effects:   effects,
		metrics:   m,
		lifecycle: &slotLifecycle{repo: repo, loc: o.loc, now: o.now},
		now:       o.now,
		loc:       o.loc,
		log:       log.With(zap.String("service", "slot")),
	}
}

func parseWindow(start, end string) (utils.TimeOfDay, utils.TimeOfDay, error) {
	s, err := utils.ParseTimeOfDay(start)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: start %q", ErrInvalidTimeRange, start)
	}
	e, err := utils.ParseTimeOfDay(end)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: end %q", ErrInvalidTimeRange, end)
	}
	return s, e, nil
}

func parseSlotDate(input string) (time.Time, error) {
	date, err := utils.ParseCalendarDate(input)
	if err != nil {
		return time.Time{}, err
	}
	return utils.DateOnly(date), nil
}

func windowMinutes(start, end utils.TimeOfDay) int {
	return int((end.Duration() - start.Duration()) / time.Minute)
}

func slotAuditDetails(slot *entity.VisitSlot) map[string]any {
	return map[string]any{
		"date":       slot.Date.Format(utils.DateLayout),
		"start_time": slot.StartTime.String(),
		"end_time":   slot.EndTime.String(),
		"capacity":   slot.Capacity,
		"status":     string(slot.Status),
	}
}

// checkConflicts loads the slots sharing candidate's date and rejects an
// overlapping window.
func (s *slotService) checkConflicts(ctx context.Context, candidate *entity.VisitSlot) error {
	existing, err := s.repo.Slot.FindByDate(ctx, candidate.Date)
	if err != nil {
		return fmt.Errorf("load slots for conflict check: %w", err)
	}
	return DetectTimeConflict(candidate, existing)
}

// recordConflict stores an advisory conflict record. Best effort: the caller
// has already failed the write that triggered it.
func (s *slotService) recordConflict(ctx context.Context, candidate *entity.VisitSlot, isNew bool, err error) {
	var conflict *ScheduleConflictError
	if !errors.As(err, &conflict) {
		return
	}
	s.metrics.ScheduleConflicts.Inc()

	record := &entity.ScheduleConflict{
		ID:                uuid.New(),
		ConflictingSlotID: &conflict.ConflictingSlotID,
		ConflictType:      entity.ConflictTypeOverlap,
		Severity:          entity.ConflictSeverityMedium,
		Status:            entity.ConflictStatusOpen,
		Description: fmt.Sprintf("window %s-%s on %s overlaps slot %s",
			candidate.StartTime, candidate.EndTime, candidate.Date.Format(utils.DateLayout), conflict.ConflictingSlotID),
		DetectedAt: s.now(),
	}
	if !isNew {
		// an edit to a live slot is more urgent than a rejected new one
		record.SlotID = &candidate.ID
		record.Severity = entity.ConflictSeverityHigh
	}

	if err := s.repo.Conflict.Create(ctx, record); err != nil {
		s.log.Warn("Failed to record schedule conflict", zap.Error(err))
	}
}

func (s *slotService) CreateSlot(ctx context.Context, actor *uuid.UUID, req *request.CreateSlotRequest) (*response.SlotResponse, error) {
	date, err := parseSlotDate(req.Date)
	if err != nil {
		return nil, err
	}

	start, end, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := ValidateTimeRange(start, end); err != nil {
		return nil, err
	}

	if req.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	now := s.now()
	slot := &entity.VisitSlot{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Date:            date,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: windowMinutes(start, end),
		Capacity:        req.Capacity,
		Status:          entity.SlotStatusAvailable,
		Description:     req.Description,
		CreatedBy:       actor,
	}
	if req.DurationMinutes != nil {
		slot.DurationMinutes = *req.DurationMinutes
	}

	if !slot.StartsAt(s.loc).After(now) {
		return nil, fmt.Errorf("%w: slot starts in the past", ErrInvalidDate)
	}

	if err := s.checkConflicts(ctx, slot); err != nil {
		s.recordConflict(ctx, slot, true, err)
		s.log.Warn("Create slot rejected", zap.Error(err), zap.String("date", req.Date))
		return nil, err
	}

	if err := s.repo.Slot.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.log.Info("Slot created",
		zap.String("slot_id", slot.ID.String()),
		zap.String("date", slot.Date.Format(utils.DateLayout)),
		zap.Stringer("start_time", slot.StartTime),
		zap.Stringer("end_time", slot.EndTime),
		zap.Int("capacity", slot.Capacity),
	)
	s.effects.Audit(entity.ActionSlotCreated, entity.AuditEntitySlot, &slot.ID, actor, slotAuditDetails(slot))

	return response.SlotToResponse(slot), nil
}

func (s *slotService) UpdateSlot(ctx context.Context, actor *uuid.UUID, slotID string, req *request.UpdateSlotRequest) (*response.SlotResponse, error) {
	id, err := parseSlotID(slotID)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return nil, ErrNoFieldsToUpdate
	}

	var slot *entity.VisitSlot
	err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		slot, err = lockSlot(txCtx, s.repo, id)
		if err != nil {
			return err
		}
		return s.applySlotUpdate(txCtx, slot, req)
	})

	if err != nil {
		if slot != nil {
			s.recordConflict(ctx, slot, false, err)
		}
		s.log.Warn("Update slot failed", zap.Error(err), zap.String("slot_id", slotID))
		return nil, err
	}

	s.log.Info("Slot updated", zap.String("slot_id", slot.ID.String()))
	s.effects.Audit(entity.ActionSlotUpdated, entity.AuditEntitySlot, &slot.ID, actor, slotAuditDetails(slot))

	return response.SlotToResponse(slot), nil
}

// applySlotUpdate edits slot in place and persists it. Runs under the slot lock.
func (s *slotService) applySlotUpdate(ctx context.Context, slot *entity.VisitSlot, req *request.UpdateSlotRequest) error {
	windowChanged := false

	if req.Date != nil {
		date, err := parseSlotDate(*req.Date)
		if err != nil {
			return err
		}
		if !date.Equal(slot.Date) {
			slot.Date = date
			windowChanged = true
		}
	}

	start, end := slot.StartTime.String(), slot.EndTime.String()
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	startTime, endTime, err := parseWindow(start, end)
	if err != nil {
		return err
	}
	if startTime != slot.StartTime || endTime != slot.EndTime {
		if err := ValidateTimeRange(startTime, endTime); err != nil {
			return err
		}
		slot.StartTime, slot.EndTime = startTime, endTime
		slot.DurationMinutes = windowMinutes(startTime, endTime)
		windowChanged = true
	}
	if req.DurationMinutes != nil {
		slot.DurationMinutes = *req.DurationMinutes
	}

	if windowChanged {
		if !slot.StartsAt(s.loc).After(s.now()) {
			return fmt.Errorf("%w: slot starts in the past", ErrInvalidDate)
		}
		if err := s.checkConflicts(ctx, slot); err != nil {
			return err
		}
	}

	if req.Description != nil {
		slot.Description = req.Description
	}

	booked, err := s.repo.Booking.SumActiveGroupSize(ctx, slot.ID)
	if err != nil {
		return err
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 || *req.Capacity < booked {
			return fmt.Errorf("%w: capacity %d is below the %d guests already booked", ErrInvalidCapacity, *req.Capacity, booked)
		}
		slot.Capacity = *req.Capacity
	}

	slot.BookedCount = booked
	slot.Status = DeriveSlotStatus(slot.Status, slot.Capacity, booked, slot.StartsAt(s.loc), s.now())
	slot.UpdatedAt = s.now()

	return s.repo.Slot.Update(ctx, slot)
}

func (s *slotService) DeleteSlot(ctx context.Context, actor *uuid.UUID, slotID string) error {
	id, err := parseSlotID(slotID)
	if err != nil {
		return err
	}

	var slot *entity.VisitSlot
	err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		slot, err = lockSlot(txCtx, s.repo, id)
		if err != nil {
			return err
		}

		active, err := s.repo.Booking.CountActiveBySlotID(txCtx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: %d active", ErrSlotHasActiveBookings, active)
		}

		return s.repo.Slot.Delete(txCtx, id)
	})
	if err != nil {
		s.log.Warn("Delete slot failed", zap.Error(err), zap.String("slot_id", slotID))
		return err
	}

	s.effects.Audit(entity.ActionSlotDeleted, entity.AuditEntitySlot, &slot.ID, actor, slotAuditDetails(slot))
	return nil
}

// SetSlotStatus applies an administrative status. Setting "available" hands
// the slot back to automatic derivation, which may yield booked or expired.
func (s *slotService) SetSlotStatus(ctx context.Context, actor *uuid.UUID, slotID string, req *request.SetSlotStatusRequest) (*response.SlotResponse, error) {
	id, err := parseSlotID(slotID)
	if err != nil {
		return nil, err
	}

	target := entity.SlotStatus(req.Status)
	if !target.Sticky() && target != entity.SlotStatusAvailable {
		return nil, fmt.Errorf("%w: %q cannot be set manually", ErrInvalidStatus, req.Status)
	}

	var (
		slot     *entity.VisitSlot
		previous entity.SlotStatus
	)
	err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		slot, err = lockSlot(txCtx, s.repo, id)
		if err != nil {
			return err
		}
		previous = slot.Status

		booked, err := s.repo.Booking.SumActiveGroupSize(txCtx, id)
		if err != nil {
			return err
		}

		next := target
		if !target.Sticky() {
			next = DeriveSlotStatus(entity.SlotStatusAvailable, slot.Capacity, booked, slot.StartsAt(s.loc), s.now())
		}

		if err := s.repo.Slot.UpdateAggregate(txCtx, id, booked, next); err != nil {
			return err
		}
		slot.BookedCount = booked
		slot.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	details := slotAuditDetails(slot)
	details["previous_status"] = string(previous)
	s.effects.Audit(entity.ActionSlotStatusChanged, entity.AuditEntitySlot, &slot.ID, actor, details)

	s.log.Info("Slot status changed",
		zap.String("slot_id", slot.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(slot.Status)),
	)

	return response.SlotToResponse(slot), nil
}

func (s *slotService) RecomputeSlot(ctx context.Context, slotID string) (*response.SlotResponse, error) {
	id, err := parseSlotID(slotID)
	if err != nil {
		return nil, err
	}

	var slot *entity.VisitSlot
	err = s.repo.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		slot, err = lockSlot(txCtx, s.repo, id)
		if err != nil {
			return err
		}
		return s.lifecycle.recompute(txCtx, slot)
	})
	if err != nil {
		return nil, err
	}

	return response.SlotToResponse(slot), nil
}

func (s *slotService) GetSlot(ctx context.Context, slotID string) (*response.SlotResponse, error) {
	id, err := parseSlotID(slotID)
	if err != nil {
		return nil, err
	}

	slot, err := s.repo.Slot.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, ErrSlotNotFound
	}

	return response.SlotToResponse(slot), nil
}

func (s *slotService) ListSlots(ctx context.Context, req *request.ListSlotsRequest) ([]*response.SlotResponse, error) {
	var filter repository.SlotFilter

	if req.From != "" {
		from, err := parseSlotDate(req.From)
		if err != nil {
			return nil, err
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := parseSlotDate(req.To)
		if err != nil {
			return nil, err
		}
		filter.To = &to
	}
	if req.Status != "" {
		status := entity.SlotStatus(req.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
		}
		filter.Statuses = []entity.SlotStatus{status}
	}

	slots, err := s.repo.Slot.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	result := make([]*response.SlotResponse, 0, len(slots))
	for _, slot := range slots {
		result = append(result, response.SlotToResponse(slot))
	}
	return result, nil
}

// GetAvailability lists the slots of a date that can still take a booking.
// Status is derived on the fly so a stale row never shows a started slot.
func (s *slotService) GetAvailability(ctx context.Context, date string) ([]*response.AvailabilityResponse, error) {
	day, err := parseSlotDate(date)
	if err != nil {
		return nil, err
	}

	slots, err := s.repo.Slot.FindByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}

	now := s.now()
	result := make([]*response.AvailabilityResponse, 0, len(slots))
	for _, slot := range slots {
		status := DeriveSlotStatus(slot.Status, slot.Capacity, slot.BookedCount, slot.StartsAt(s.loc), now)
		if status != entity.SlotStatusAvailable {
			continue
		}
		result = append(result, response.SlotToAvailability(slot))
	}
	return result, nil
}

func (s *slotService) ListConflicts(ctx context.Context, status string) ([]*response.ConflictResponse, error) {
	var filter *entity.ConflictStatus
	if status = strings.TrimSpace(status); status != "" {
		st := entity.ConflictStatus(status)
		switch st {
		case entity.ConflictStatusOpen, entity.ConflictStatusResolved, entity.ConflictStatusIgnored:
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		filter = &st
	}

	conflicts, err := s.repo.Conflict.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}

	result := make([]*response.ConflictResponse, 0, len(conflicts))
	for _, c := range conflicts {
		result = append(result, response.ConflictToResponse(c))
	}
	return result, nil
}

func (s *slotService) ResolveConflict(ctx context.Context, actor *uuid.UUID, conflictID string, req *request.ResolveConflictRequest) (*response.ConflictResponse, error) {
	id, err := uuid.Parse(conflictID)
	if err != nil {
		return nil, fmt.Errorf("invalid conflict ID %q: %w", conflictID, ErrConflictNotFound)
	}

	status := entity.ConflictStatus(req.Status)
	if status != entity.ConflictStatusResolved && status != entity.ConflictStatusIgnored {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	conflict, err := s.repo.Conflict.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find conflict: %w", err)
	}
	if conflict == nil {
		return nil, ErrConflictNotFound
	}

	now := s.now()
	if err := s.repo.Conflict.UpdateStatus(ctx, id, status, actor, &now); err != nil {
		return nil, fmt.Errorf("resolve conflict: %w", err)
	}
	conflict.Status = status
	conflict.ResolvedAt = &now
	conflict.ResolvedBy = actor

	s.effects.Audit(entity.ActionConflictResolved, entity.AuditEntitySystem, &conflict.ID, actor, map[string]any{
		"status": string(status),
	})

	return response.ConflictToResponse(conflict), nil
}
