package request

type PublicBookingRequest struct {
	SlotID          string  `json:"slot_id" validate:"required,uuid"`
	Name            string  `json:"name" validate:"required,min=2,max=255"`
	Email           string  `json:"email" validate:"required,email,max=255"`
	Phone           *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	GroupSize       int     `json:"group_size" validate:"required,gte=1,max=500"`
	SpecialRequests *string `json:"special_requests,omitempty" validate:"omitempty,max=1000"`
}

// PublicLookupRequest proves ownership of a booking without an account.
type PublicLookupRequest struct {
	Email         string `json:"email" validate:"required,email"`
	TrackingToken string `json:"tracking_token" validate:"required,min=6,max=32"`
}

type PublicCancelRequest struct {
	PublicLookupRequest
	Reason string `json:"reason" validate:"max=500"`
}

type PublicUpdateRequest struct {
	PublicLookupRequest
	GroupSize       *int    `json:"group_size,omitempty" validate:"omitempty,gte=1,max=500"`
	SpecialRequests *string `json:"special_requests,omitempty" validate:"omitempty,max=1000"`
}
