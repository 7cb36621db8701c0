package response

import (
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/pkg/utils"
)

type SlotResponse struct {
	ID                string            `json:"id"`
	Date              string            `json:"date"`
	StartTime         utils.TimeOfDay   `json:"start_time"`
	EndTime           utils.TimeOfDay   `json:"end_time"`
	DurationMinutes   int               `json:"duration_minutes"`
	Capacity          int               `json:"capacity"`
	BookedCount       int               `json:"booked_count"`
	AvailableCapacity int               `json:"available_capacity"`
	Status            entity.SlotStatus `json:"status"`
	Description       *string           `json:"description,omitempty"`
	CreatedBy         *string           `json:"created_by,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// AvailabilityResponse is the public view of a bookable slot.
type AvailabilityResponse struct {
	ID                string          `json:"id"`
	Date              string          `json:"date"`
	StartTime         utils.TimeOfDay `json:"start_time"`
	EndTime           utils.TimeOfDay `json:"end_time"`
	AvailableCapacity int             `json:"available_capacity"`
	Description       *string         `json:"description,omitempty"`
}

type ConflictResponse struct {
	ID                string                  `json:"id"`
	SlotID            *string                 `json:"slot_id,omitempty"`
	ConflictingSlotID *string                 `json:"conflicting_slot_id,omitempty"`
	ConflictType      entity.ConflictType     `json:"conflict_type"`
	Severity          entity.ConflictSeverity `json:"severity"`
	Status            entity.ConflictStatus   `json:"status"`
	Description       string                  `json:"description"`
	DetectedAt        time.Time               `json:"detected_at"`
	ResolvedAt        *time.Time              `json:"resolved_at,omitempty"`
	ResolvedBy        *string                 `json:"resolved_by,omitempty"`
}

func remaining(slot *entity.VisitSlot) int {
	if free := slot.Capacity - slot.BookedCount; free > 0 {
		return free
	}
	return 0
}

func SlotToResponse(slot *entity.VisitSlot) *SlotResponse {
	return &SlotResponse{
		ID:                slot.ID.String(),
		Date:              slot.Date.Format(utils.DateLayout),
		StartTime:         slot.StartTime,
		EndTime:           slot.EndTime,
		DurationMinutes:   slot.DurationMinutes,
		Capacity:          slot.Capacity,
		BookedCount:       slot.BookedCount,
		AvailableCapacity: remaining(slot),
		Status:            slot.Status,
		Description:       slot.Description,
		CreatedBy:         uuidString(slot.CreatedBy),
		CreatedAt:         slot.CreatedAt,
		UpdatedAt:         slot.UpdatedAt,
	}
}

func SlotToAvailability(slot *entity.VisitSlot) *AvailabilityResponse {
	return &AvailabilityResponse{
		ID:                slot.ID.String(),
		Date:              slot.Date.Format(utils.DateLayout),
		StartTime:         slot.StartTime,
		EndTime:           slot.EndTime,
		AvailableCapacity: remaining(slot),
		Description:       slot.Description,
	}
}

func ConflictToResponse(c *entity.ScheduleConflict) *ConflictResponse {
	return &ConflictResponse{
		ID:                c.ID.String(),
		SlotID:            uuidString(c.SlotID),
		ConflictingSlotID: uuidString(c.ConflictingSlotID),
		ConflictType:      c.ConflictType,
		Severity:          c.Severity,
		Status:            c.Status,
		Description:       c.Description,
		DetectedAt:        c.DetectedAt,
		ResolvedAt:        c.ResolvedAt,
		ResolvedBy:        uuidString(c.ResolvedBy),
	}
}
