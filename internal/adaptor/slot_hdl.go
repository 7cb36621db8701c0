package adaptor

import (
	"net/http"

	"visitor-booking/internal/dto/request"
	"visitor-booking/internal/usecase"
	"visitor-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SlotHandler struct {
	service usecase.SlotService
	log     *zap.Logger
}

func NewSlotHandler(service usecase.SlotService, log *zap.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log.With(zap.String("handler", "slot")),
	}
}

// CreateSlot handles POST /api/slots (staff)
func (h *SlotHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSlotRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	slot, err := h.service.CreateSlot(r.Context(), utils.ActorFromContext(r.Context()), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "create slot")
		return
	}

	utils.ResponseCreated(w, "Slot created", slot)
}

// ListSlots handles GET /api/slots?from=&to=&status= (staff)
func (h *SlotHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := request.ListSlotsRequest{
		From:   query.Get("from"),
		To:     query.Get("to"),
		Status: query.Get("status"),
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseError(w, http.StatusBadRequest, "ValidationFailed", "Validation failed", validationErrors)
		return
	}

	slots, err := h.service.ListSlots(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "list slots")
		return
	}

	utils.ResponseSuccess(w, "success", slots)
}

// GetSlot handles GET /api/slots/{id} (staff)
func (h *SlotHandler) GetSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.service.GetSlot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "get slot")
		return
	}

	utils.ResponseSuccess(w, "success", slot)
}

// UpdateSlot handles PUT /api/slots/{id} (staff)
func (h *SlotHandler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateSlotRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	slot, err := h.service.UpdateSlot(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "update slot")
		return
	}

	utils.ResponseSuccess(w, "Slot updated", slot)
}

// RecomputeSlot handles POST /api/slots/{id}/recompute (staff)
func (h *SlotHandler) RecomputeSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.service.RecomputeSlot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "recompute slot")
		return
	}

	utils.ResponseSuccess(w, "success", slot)
}

// DeleteSlot handles DELETE /api/admin/slots/{id} (admin)
func (h *SlotHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSlot(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.log, err, "delete slot")
		return
	}

	utils.ResponseSuccess(w, "Slot deleted", nil)
}

// SetSlotStatus handles PUT /api/admin/slots/{id}/status (admin)
func (h *SlotHandler) SetSlotStatus(w http.ResponseWriter, r *http.Request) {
	var req request.SetSlotStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	slot, err := h.service.SetSlotStatus(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "set slot status")
		return
	}

	utils.ResponseSuccess(w, "Slot status updated", slot)
}

// GetAvailability handles GET /api/availability?date= (public)
func (h *SlotHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		utils.ResponseBadRequest(w, "Query parameter date is required", nil)
		return
	}

	slots, err := h.service.GetAvailability(r.Context(), date)
	if err != nil {
		writeServiceError(w, h.log, err, "get availability")
		return
	}

	utils.ResponseSuccess(w, "success", slots)
}

// ListConflicts handles GET /api/admin/conflicts?status= (admin)
func (h *SlotHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.service.ListConflicts(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, h.log, err, "list conflicts")
		return
	}

	utils.ResponseSuccess(w, "success", conflicts)
}

// ResolveConflict handles PUT /api/admin/conflicts/{id} (admin)
func (h *SlotHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req request.ResolveConflictRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	conflict, err := h.service.ResolveConflict(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "resolve conflict")
		return
	}

	utils.ResponseSuccess(w, "Conflict updated", conflict)
}
