package wire

import (
	"visitor-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wirePublic(r chi.Router, slotHandler *adaptor.SlotHandler, publicHandler *adaptor.PublicBookingHandler) {
	r.Get("/api/availability", slotHandler.GetAvailability)

	r.Route("/api/public/bookings", func(r chi.Router) {
		r.Post("/", publicHandler.CreateBooking)
		r.Post("/lookup", publicHandler.LookupBooking)
		r.Put("/update", publicHandler.UpdateBooking)
		r.Post("/cancel", publicHandler.CancelBooking)
	})
}
