package usecase

import (
	"time"

	"visitor-booking/internal/data/repository"
	"visitor-booking/pkg/metrics"

	"go.uber.org/zap"
)

type Service struct {
	Slot          SlotService
	Booking       BookingService
	PublicBooking PublicBookingService
	Expiry        *ExpiryScheduler
}

type options struct {
	now            func() time.Time
	loc            *time.Location
	expiryInterval time.Duration
}

type Option func(*options)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the venue timezone used to combine slot dates and times.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func WithExpiryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.expiryInterval = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:            time.Now,
		loc:            time.UTC,
		expiryInterval: time.Hour,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewService(repo *repository.Repository, effects *SideEffects, m *metrics.Metrics, log *zap.Logger, opts ...Option) *Service {
	return &Service{
		Slot:          NewSlotService(repo, effects, m, log, opts...),
		Booking:       NewBookingService(repo, effects, m, log, opts...),
		PublicBooking: NewPublicBookingService(repo, effects, m, log, opts...),
		Expiry:        NewExpiryScheduler(repo, effects, m, log, opts...),
	}
}
