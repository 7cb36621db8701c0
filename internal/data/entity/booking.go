package entity

import (
	"time"

	"visitor-booking/pkg/utils"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusTentative BookingStatus = "tentative"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// ActiveBookingStatuses count against slot capacity.
var ActiveBookingStatuses = []BookingStatus{BookingStatusTentative, BookingStatusConfirmed}

// allowed status transitions
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusTentative: {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusTentative, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow:
		return true
	}
	return false
}

func (s BookingStatus) Active() bool {
	return s == BookingStatusTentative || s == BookingStatusConfirmed
}

// Immutable bookings accept no field edits at all.
func (s BookingStatus) Immutable() bool {
	return s == BookingStatusCompleted || s == BookingStatusNoShow
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Booking struct {
	BaseNoDelete
	TrackingToken      *string       `db:"tracking_token"`
	SlotID             uuid.UUID     `db:"slot_id"`
	VisitorID          uuid.UUID     `db:"visitor_id"`
	GroupSize          int           `db:"group_size"`
	Status             BookingStatus `db:"status"`
	SpecialRequests    *string       `db:"special_requests"`
	Notes              *string       `db:"notes"`
	CancellationReason *string       `db:"cancellation_reason"`
	ConfirmedAt        *time.Time    `db:"confirmed_at"`
	CancelledAt        *time.Time    `db:"cancelled_at"`
	CompletedAt        *time.Time    `db:"completed_at"`
	CreatedBy          *uuid.UUID    `db:"created_by"`
}

// BookingDetail is a booking joined with its slot window and visitor.
type BookingDetail struct {
	Booking
	SlotDate      time.Time
	SlotStartTime utils.TimeOfDay
	SlotEndTime   utils.TimeOfDay
	VisitorName   string
	VisitorEmail  string
}
