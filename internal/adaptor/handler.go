package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"visitor-booking/internal/usecase"
	"visitor-booking/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Slot          *SlotHandler
	Booking       *BookingHandler
	PublicBooking *PublicBookingHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Slot:          NewSlotHandler(service.Slot, log),
		Booking:       NewBookingHandler(service.Booking, log),
		PublicBooking: NewPublicBookingHandler(service.PublicBooking, log),
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 response itself and reports false when the caller should
// stop.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}

	if validationErrors := utils.ValidateStruct(dst); len(validationErrors) > 0 {
		utils.ResponseError(w, http.StatusBadRequest, "ValidationFailed", "Validation failed", validationErrors)
		return false
	}

	return true
}

// statusFor maps an engine error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "SlotNotFound", "BookingNotFound", "VisitorNotFound", "ConflictNotFound":
		return http.StatusNotFound
	case "CapacityExceeded", "ScheduleConflict", "SlotUnavailable", "SlotHasActiveBookings",
		"AlreadyCancelled", "BookingImmutable", "InvalidStatusTransition":
		return http.StatusConflict
	case "InvalidTimeRange", "InvalidDate", "NoFieldsToUpdate", "InvalidGroupSize",
		"InvalidCapacity", "CancellationReasonRequired", "InvalidStatus":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders a service failure. Internal errors are logged
// with the operation name and never leak their message.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	kind := usecase.ErrorKind(err)
	code := statusFor(kind)

	if code == http.StatusInternalServerError {
		log.Error(operation+" failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, code, kind, "Internal server error", nil)
		return
	}

	log.Warn(operation+" rejected",
		zap.Error(err),
		zap.String("operation", operation),
		zap.String("kind", kind))

	var details any
	var capErr *usecase.CapacityExceededError
	var conflictErr *usecase.ScheduleConflictError
	switch {
	case errors.As(err, &capErr):
		details = map[string]int{
			"available": capErr.Available,
			"requested": capErr.Requested,
		}
	case errors.As(err, &conflictErr):
		details = map[string]string{
			"conflicting_slot_id": conflictErr.ConflictingSlotID.String(),
		}
	}

	utils.ResponseError(w, code, kind, err.Error(), details)
}
