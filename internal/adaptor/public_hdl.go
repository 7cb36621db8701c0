package adaptor

import (
	"net/http"

	"visitor-booking/internal/dto/request"
	"visitor-booking/internal/usecase"
	"visitor-booking/pkg/utils"

	"go.uber.org/zap"
)

// PublicBookingHandler serves visitors without a session.
type PublicBookingHandler struct {
	service usecase.PublicBookingService
	log     *zap.Logger
}

func NewPublicBookingHandler(service usecase.PublicBookingService, log *zap.Logger) *PublicBookingHandler {
	return &PublicBookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "public_booking")),
	}
}

// CreateBooking handles POST /api/public/bookings
func (h *PublicBookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req request.PublicBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	booking, err := h.service.CreatePublicBooking(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "create public booking")
		return
	}

	utils.ResponseCreated(w, "Booking received", booking)
}

// LookupBooking handles POST /api/public/bookings/lookup
func (h *PublicBookingHandler) LookupBooking(w http.ResponseWriter, r *http.Request) {
	var req request.PublicLookupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	booking, err := h.service.GetPublicBooking(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "lookup public booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// UpdateBooking handles PUT /api/public/bookings/update
func (h *PublicBookingHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	var req request.PublicUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	booking, err := h.service.UpdatePublicBooking(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "update public booking")
		return
	}

	utils.ResponseSuccess(w, "Booking updated", booking)
}

// CancelBooking handles POST /api/public/bookings/cancel
func (h *PublicBookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req request.PublicCancelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	booking, err := h.service.CancelPublicBooking(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "cancel public booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", booking)
}
