package usecase

import (
	"errors"
	"fmt"

	"visitor-booking/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrInvalidTimeRange           = errors.New("invalid time range")
	ErrInvalidDate                = utils.ErrInvalidDate
	ErrSlotNotFound               = errors.New("slot not found")
	ErrBookingNotFound            = errors.New("booking not found")
	ErrVisitorNotFound            = errors.New("visitor not found")
	ErrConflictNotFound           = errors.New("schedule conflict not found")
	ErrSlotUnavailable            = errors.New("slot is not available for booking")
	ErrCapacityExceeded           = errors.New("capacity exceeded")
	ErrScheduleConflict           = errors.New("slot overlaps an existing slot")
	ErrSlotHasActiveBookings      = errors.New("slot has active bookings")
	ErrBookingImmutable           = errors.New("booking can no longer be modified")
	ErrAlreadyCancelled           = errors.New("booking is already cancelled")
	ErrNoFieldsToUpdate           = errors.New("no fields to update")
	ErrInvalidGroupSize           = errors.New("group size must be at least 1")
	ErrInvalidCapacity            = errors.New("invalid capacity")
	ErrCancellationReasonRequired = errors.New("cancellation reason is required")
	ErrInvalidStatusTransition    = errors.New("invalid status transition")
	ErrInvalidStatus              = errors.New("invalid status")
)

// CapacityExceededError carries the numbers behind a rejected booking.
type CapacityExceededError struct {
	Available int
	Requested int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d available, %d requested", e.Available, e.Requested)
}

func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// ScheduleConflictError names the slot a candidate window overlaps.
type ScheduleConflictError struct {
	ConflictingSlotID uuid.UUID
}

func (e *ScheduleConflictError) Error() string {
	return fmt.Sprintf("slot overlaps existing slot %s", e.ConflictingSlotID)
}

func (e *ScheduleConflictError) Is(target error) bool {
	return target == ErrScheduleConflict
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidTimeRange, "InvalidTimeRange"},
	{utils.ErrInvalidTimeFormat, "InvalidTimeRange"},
	{ErrInvalidDate, "InvalidDate"},
	{ErrSlotNotFound, "SlotNotFound"},
	{ErrBookingNotFound, "BookingNotFound"},
	{ErrVisitorNotFound, "VisitorNotFound"},
	{ErrConflictNotFound, "ConflictNotFound"},
	{ErrSlotUnavailable, "SlotUnavailable"},
	{ErrCapacityExceeded, "CapacityExceeded"},
	{ErrScheduleConflict, "ScheduleConflict"},
	{ErrSlotHasActiveBookings, "SlotHasActiveBookings"},
	{ErrBookingImmutable, "BookingImmutable"},
	{ErrAlreadyCancelled, "AlreadyCancelled"},
	{ErrNoFieldsToUpdate, "NoFieldsToUpdate"},
	{ErrInvalidGroupSize, "InvalidGroupSize"},
	{ErrInvalidCapacity, "InvalidCapacity"},
	{ErrCancellationReasonRequired, "CancellationReasonRequired"},
	{ErrInvalidStatusTransition, "InvalidStatusTransition"},
	{ErrInvalidStatus, "InvalidStatus"},
}

// ErrorKind returns the stable name of an engine error, or "Internal" for
// anything else.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}
