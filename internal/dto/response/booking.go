package response

import (
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/pkg/utils"

	"github.com/google/uuid"
)

type BookingResponse struct {
	ID                 string               `json:"id"`
	TrackingToken      *string              `json:"tracking_token,omitempty"`
	SlotID             string               `json:"slot_id"`
	VisitorID          string               `json:"visitor_id"`
	GroupSize          int                  `json:"group_size"`
	Status             entity.BookingStatus `json:"status"`
	SpecialRequests    *string              `json:"special_requests,omitempty"`
	Notes              *string              `json:"notes,omitempty"`
	CancellationReason *string              `json:"cancellation_reason,omitempty"`
	ConfirmedAt        *time.Time           `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time           `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	CreatedBy          *string              `json:"created_by,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	Slot               *SlotResponse        `json:"slot,omitempty"`
}

type BookingDetailResponse struct {
	BookingResponse
	SlotDate      string          `json:"slot_date"`
	SlotStartTime utils.TimeOfDay `json:"slot_start_time"`
	SlotEndTime   utils.TimeOfDay `json:"slot_end_time"`
	VisitorName   string          `json:"visitor_name"`
	VisitorEmail  string          `json:"visitor_email"`
}

// PublicBookingResponse leaves out staff-only fields such as notes.
type PublicBookingResponse struct {
	ID                 string               `json:"id"`
	TrackingToken      string               `json:"tracking_token"`
	Status             entity.BookingStatus `json:"status"`
	GroupSize          int                  `json:"group_size"`
	SpecialRequests    *string              `json:"special_requests,omitempty"`
	CancellationReason *string              `json:"cancellation_reason,omitempty"`
	SlotDate           string               `json:"slot_date"`
	StartTime          utils.TimeOfDay      `json:"start_time"`
	EndTime            utils.TimeOfDay      `json:"end_time"`
	CreatedAt          time.Time            `json:"created_at"`
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// BookingToResponse converts a booking; slot may be nil.
func BookingToResponse(b *entity.Booking, slot *entity.VisitSlot) *BookingResponse {
	resp := &BookingResponse{
		ID:                 b.ID.String(),
		TrackingToken:      b.TrackingToken,
		SlotID:             b.SlotID.String(),
		VisitorID:          b.VisitorID.String(),
		GroupSize:          b.GroupSize,
		Status:             b.Status,
		SpecialRequests:    b.SpecialRequests,
		Notes:              b.Notes,
		CancellationReason: b.CancellationReason,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		CompletedAt:        b.CompletedAt,
		CreatedBy:          uuidString(b.CreatedBy),
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	if slot != nil {
		resp.Slot = SlotToResponse(slot)
	}
	return resp
}

func BookingDetailToResponse(d *entity.BookingDetail) *BookingDetailResponse {
	return &BookingDetailResponse{
		BookingResponse: *BookingToResponse(&d.Booking, nil),
		SlotDate:        d.SlotDate.Format(utils.DateLayout),
		SlotStartTime:   d.SlotStartTime,
		SlotEndTime:     d.SlotEndTime,
		VisitorName:     d.VisitorName,
		VisitorEmail:    d.VisitorEmail,
	}
}

func BookingToPublicResponse(b *entity.Booking, slot *entity.VisitSlot) *PublicBookingResponse {
	return &PublicBookingResponse{
		ID:                 b.ID.String(),
		TrackingToken:      utils.StringOrEmpty(b.TrackingToken),
		Status:             b.Status,
		GroupSize:          b.GroupSize,
		SpecialRequests:    b.SpecialRequests,
		CancellationReason: b.CancellationReason,
		SlotDate:           slot.Date.Format(utils.DateLayout),
		StartTime:          slot.StartTime,
		EndTime:            slot.EndTime,
		CreatedAt:          b.CreatedAt,
	}
}
