package wire

import (
	"net/http"

	"visitor-booking/internal/adaptor"
	"visitor-booking/internal/data/repository"
	"visitor-booking/internal/usecase"
	"visitor-booking/pkg/metrics"
	"visitor-booking/pkg/middleware"
	"visitor-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds the handlers over an already assembled service and mounts
// every route.
func Wiring(
	service *usecase.Service,
	repo *repository.Repository,
	m *metrics.Metrics,
	config *utils.Config,
	logger *zap.Logger,
) *App {
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router:  setupRouter(handler, repo, m, config, logger),
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	repo *repository.Repository,
	m *metrics.Metrics,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recover(logger))
	r.Use(m.Middleware)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(config.App.CORSOrigins))
	r.Use(middleware.Timeout(config.App.RequestTimeout))

	wirePublic(r, handler.Slot, handler.PublicBooking)
	wireSlot(r, handler.Slot, handler.Booking, repo, logger)
	wireBooking(r, handler.Booking, repo, logger)
	wireAdmin(r, handler.Slot, repo, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return r
}
