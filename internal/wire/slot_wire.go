package wire

import (
	"visitor-booking/internal/adaptor"
	"visitor-booking/internal/data/repository"
	"visitor-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireSlot(
	r chi.Router,
	slotHandler *adaptor.SlotHandler,
	bookingHandler *adaptor.BookingHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	r.Route("/api/slots", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))

		r.Get("/", slotHandler.ListSlots)
		r.Post("/", slotHandler.CreateSlot)
		r.Get("/{id}", slotHandler.GetSlot)
		r.Put("/{id}", slotHandler.UpdateSlot)
		r.Post("/{id}/recompute", slotHandler.RecomputeSlot)
		r.Get("/{id}/bookings", bookingHandler.ListSlotBookings)
	})
}

func wireAdmin(r chi.Router, slotHandler *adaptor.SlotHandler, repo *repository.Repository, log *zap.Logger) {
	r.Route("/api/admin", func(r chi.Router) {
		// Require both authentication AND admin role
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))
		r.Use(middleware.Admin(log))

		r.Delete("/slots/{id}", slotHandler.DeleteSlot)
		r.Put("/slots/{id}/status", slotHandler.SetSlotStatus)
		r.Get("/conflicts", slotHandler.ListConflicts)
		r.Put("/conflicts/{id}", slotHandler.ResolveConflict)
	})
}
