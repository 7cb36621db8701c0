package usecase

import (
	"context"
	"fmt"
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/internal/data/repository"
)

// DeriveSlotStatus is the automatic status rule. Sticky statuses are returned
// unchanged; otherwise a started slot is expired, a full one booked, and
// anything else available.
func DeriveSlotStatus(current entity.SlotStatus, capacity, bookedCount int, slotStart, now time.Time) entity.SlotStatus {
	if current.Sticky() {
		return current
	}
	if now.After(slotStart) {
		return entity.SlotStatusExpired
	}
	if bookedCount >= capacity {
		return entity.SlotStatusBooked
	}
	return entity.SlotStatusAvailable
}

// slotLifecycle keeps a slot's cached aggregate in step with its bookings.
type slotLifecycle struct {
	repo *repository.Repository
	loc  *time.Location
	now  func() time.Time
}

// refresh returns the active bookings and a copy of slot whose booked count
// and status reflect them and the current time. Nothing is written.
func (l *slotLifecycle) refresh(ctx context.Context, slot *entity.VisitSlot) ([]*entity.Booking, entity.VisitSlot, error) {
	view := *slot
	active, err := l.repo.Booking.FindActiveBySlotID(ctx, slot.ID)
	if err != nil {
		return nil, view, fmt.Errorf("load active bookings for slot %s: %w", slot.ID, err)
	}
	view.BookedCount = activeGroupSize(active, nil)
	view.Status = DeriveSlotStatus(slot.Status, slot.Capacity, view.BookedCount, slot.StartsAt(l.loc), l.now())
	return active, view, nil
}

// recompute re-sums the active bookings and writes the booked count and the
// derived status. The caller must hold the slot row lock.
func (l *slotLifecycle) recompute(ctx context.Context, slot *entity.VisitSlot) error {
	total, err := l.repo.Booking.SumActiveGroupSize(ctx, slot.ID)
	if err != nil {
		return fmt.Errorf("recompute slot %s: %w", slot.ID, err)
	}

	status := DeriveSlotStatus(slot.Status, slot.Capacity, total, slot.StartsAt(l.loc), l.now())
	if total == slot.BookedCount && status == slot.Status {
		return nil
	}

	if err := l.repo.Slot.UpdateAggregate(ctx, slot.ID, total, status); err != nil {
		return err
	}
	slot.BookedCount = total
	slot.Status = status
	return nil
}
