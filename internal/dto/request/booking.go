package request

type CreateBookingRequest struct {
	SlotID          string  `json:"slot_id" validate:"required,uuid"`
	VisitorID       string  `json:"visitor_id" validate:"required,uuid"`
	GroupSize       int     `json:"group_size" validate:"required,gte=1,max=500"`
	SpecialRequests *string `json:"special_requests,omitempty" validate:"omitempty,max=1000"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type UpdateBookingRequest struct {
	GroupSize       *int    `json:"group_size,omitempty" validate:"omitempty,gte=1,max=500"`
	SpecialRequests *string `json:"special_requests,omitempty" validate:"omitempty,max=1000"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Status          *string `json:"status,omitempty" validate:"omitempty,oneof=tentative confirmed cancelled completed no_show"`
}

// Empty reports whether the request carries no recognized field.
func (r UpdateBookingRequest) Empty() bool {
	return r.GroupSize == nil && r.SpecialRequests == nil && r.Notes == nil && r.Status == nil
}

// Reason is checked by the booking service so an empty reason surfaces as
// its own error kind.
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
