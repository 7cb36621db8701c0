package wire

import (
	"visitor-booking/internal/adaptor"
	"visitor-booking/internal/data/repository"
	"visitor-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(r chi.Router, bookingHandler *adaptor.BookingHandler, repo *repository.Repository, log *zap.Logger) {
	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, repo.User, log))

		r.Post("/", bookingHandler.CreateBooking)
		r.Get("/{id}", bookingHandler.GetBooking)
		r.Put("/{id}", bookingHandler.UpdateBooking)
		r.Post("/{id}/confirm", bookingHandler.ConfirmBooking)
		r.Post("/{id}/cancel", bookingHandler.CancelBooking)
		r.Post("/{id}/complete", bookingHandler.CompleteBooking)
		r.Post("/{id}/no-show", bookingHandler.MarkNoShow)
	})
}
