package request

type CreateSlotRequest struct {
	Date            string  `json:"date" validate:"required,calendardate"`
	StartTime       string  `json:"start_time" validate:"required,clock"`
	EndTime         string  `json:"end_time" validate:"required,clock"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" validate:"omitempty,gte=1"`
	Capacity        int     `json:"capacity" validate:"required,gte=1"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type UpdateSlotRequest struct {
	Date            *string `json:"date,omitempty" validate:"omitempty,calendardate"`
	StartTime       *string `json:"start_time,omitempty" validate:"omitempty,clock"`
	EndTime         *string `json:"end_time,omitempty" validate:"omitempty,clock"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" validate:"omitempty,gte=1"`
	Capacity        *int    `json:"capacity,omitempty" validate:"omitempty,gte=1"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

func (r UpdateSlotRequest) Empty() bool {
	return r.Date == nil && r.StartTime == nil && r.EndTime == nil &&
		r.DurationMinutes == nil && r.Capacity == nil && r.Description == nil
}

// SetSlotStatusRequest sets an administrative status. "available" hands the
// slot back to automatic derivation.
type SetSlotStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available cancelled maintenance"`
}

type ListSlotsRequest struct {
	From   string `validate:"omitempty,calendardate"`
	To     string `validate:"omitempty,calendardate"`
	Status string `validate:"omitempty,oneof=available booked cancelled maintenance expired"`
}

type ResolveConflictRequest struct {
	Status string `json:"status" validate:"required,oneof=resolved ignored"`
}
