package entity

import (
	"time"

	"visitor-booking/pkg/utils"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusAvailable   SlotStatus = "available"
	SlotStatusBooked      SlotStatus = "booked"
	SlotStatusCancelled   SlotStatus = "cancelled"
	SlotStatusMaintenance SlotStatus = "maintenance"
	SlotStatusExpired     SlotStatus = "expired"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusAvailable, SlotStatusBooked, SlotStatusCancelled, SlotStatusMaintenance, SlotStatusExpired:
		return true
	}
	return false
}

// Sticky statuses are set by an administrator and are never overwritten by
// automatic derivation.
func (s SlotStatus) Sticky() bool {
	return s == SlotStatusCancelled || s == SlotStatusMaintenance
}

type VisitSlot struct {
	BaseNoDelete
	Date            time.Time       `db:"date"` // UTC midnight
	StartTime       utils.TimeOfDay `db:"start_time"`
	EndTime         utils.TimeOfDay `db:"end_time"`
	DurationMinutes int             `db:"duration_minutes"`
	Capacity        int             `db:"capacity"`
	BookedCount     int             `db:"booked_count"`
	Status          SlotStatus      `db:"status"`
	Description     *string         `db:"description"`
	CreatedBy       *uuid.UUID      `db:"created_by"`
}

// StartsAt is the instant the slot opens in loc.
func (s *VisitSlot) StartsAt(loc *time.Location) time.Time {
	return utils.CombineDateAndTime(s.Date, s.StartTime, loc)
}
