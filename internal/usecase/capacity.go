package usecase

import (
	"visitor-booking/internal/data/entity"
	"visitor-booking/pkg/utils"

	"github.com/google/uuid"
)

// ComputeAvailableCapacity returns the slot capacity minus the group sizes of
// the active bookings, optionally ignoring one booking. The result can be
// negative if the slot was overbooked by an earlier capacity change.
func ComputeAvailableCapacity(slot *entity.VisitSlot, bookings []*entity.Booking, excludeID *uuid.UUID) int {
	return slot.Capacity - activeGroupSize(bookings, excludeID)
}

func activeGroupSize(bookings []*entity.Booking, excludeID *uuid.UUID) int {
	total := 0
	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		total += b.GroupSize
	}
	return total
}

// ValidateBookingCapacity checks that requested guests fit into slot. The slot
// status must already reflect the current time and booking set. A booked slot
// is full, so it fails as a capacity error rather than as unavailable.
func ValidateBookingCapacity(slot *entity.VisitSlot, bookings []*entity.Booking, requested int, excludeID *uuid.UUID) error {
	if requested < 1 {
		return ErrInvalidGroupSize
	}

	available := max(0, ComputeAvailableCapacity(slot, bookings, excludeID))
	switch slot.Status {
	case entity.SlotStatusAvailable:
	case entity.SlotStatusBooked:
		return &CapacityExceededError{Available: available, Requested: requested}
	default:
		return ErrSlotUnavailable
	}

	if requested > available {
		return &CapacityExceededError{Available: available, Requested: requested}
	}
	return nil
}

// ValidateTimeRange rejects empty and inverted windows.
func ValidateTimeRange(start, end utils.TimeOfDay) error {
	if utils.CompareTimes(start, end) >= 0 {
		return ErrInvalidTimeRange
	}
	return nil
}

// Overlaps reports whether [start1,end1) and [start2,end2) intersect.
func Overlaps(start1, end1, start2, end2 utils.TimeOfDay) bool {
	return utils.CompareTimes(start1, end2) < 0 && utils.CompareTimes(start2, end1) < 0
}

// DetectTimeConflict compares candidate against the slots of the same date.
// Cancelled slots and the candidate itself are ignored.
func DetectTimeConflict(candidate *entity.VisitSlot, existing []*entity.VisitSlot) error {
	if err := ValidateTimeRange(candidate.StartTime, candidate.EndTime); err != nil {
		return err
	}

	for _, other := range existing {
		if other.ID == candidate.ID || other.Status == entity.SlotStatusCancelled {
			continue
		}
		if !other.Date.Equal(candidate.Date) {
			continue
		}
		if Overlaps(candidate.StartTime, candidate.EndTime, other.StartTime, other.EndTime) {
			return &ScheduleConflictError{ConflictingSlotID: other.ID}
		}
	}
	return nil
}
