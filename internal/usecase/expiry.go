package usecase

import (
	"context"
	"fmt"
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/internal/data/repository"
	"visitor-booking/pkg/events"
	"visitor-booking/pkg/metrics"
	"visitor-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExpiryScheduler periodically moves slots whose start has passed to expired.
// It never touches booked counts, so it does not take the slot lock; the
// batch update itself skips sticky and already expired slots.
type ExpiryScheduler struct {
	repo     *repository.Repository
	effects  *SideEffects
	metrics  *metrics.Metrics
	interval time.Duration
	now      func() time.Time
	loc      *time.Location
	log      *zap.Logger
}

func NewExpiryScheduler(repo *repository.Repository, effects *SideEffects, m *metrics.Metrics, log *zap.Logger, opts ...Option) *ExpiryScheduler {
	o := buildOptions(opts)
	return &ExpiryScheduler{
		repo:     repo,
		effects:  effects,
		metrics:  m,
		interval: o.expiryInterval,
		now:      o.now,
		loc:      o.loc,
		log:      log.With(zap.String("service", "expiry")),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (e *ExpiryScheduler) Run(ctx context.Context) error {
	e.log.Info("Expiry scheduler started", zap.Duration("interval", e.interval))

	e.safeSweep(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Expiry scheduler stopped")
			return nil
		case <-ticker.C:
			e.safeSweep(ctx)
		}
	}
}

// safeSweep logs and swallows every failure so the next tick still runs.
func (e *ExpiryScheduler) safeSweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		e.metrics.ExpirySweepDuration.Observe(time.Since(start).Seconds())
		if p := recover(); p != nil {
			e.metrics.ExpirySweepFailures.Inc()
			e.log.Error("Expiry sweep panicked", zap.Any("panic", p), zap.Stack("stack"))
		}
	}()

	if _, err := e.Sweep(ctx); err != nil {
		e.metrics.ExpirySweepFailures.Inc()
		e.log.Error("Expiry sweep failed", zap.Error(err))
	}
}

// Sweep expires every non-sticky slot whose start is before now and returns
// how many rows changed.
func (e *ExpiryScheduler) Sweep(ctx context.Context) (int64, error) {
	now := e.now()
	today := utils.DateOnly(now.In(e.loc))

	candidates, err := e.repo.Slot.FindExpiryCandidates(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("load expiry candidates: %w", err)
	}

	var ids []uuid.UUID
	for _, slot := range candidates {
		if slot.Status.Sticky() || slot.Status == entity.SlotStatusExpired {
			continue
		}
		if now.After(slot.StartsAt(e.loc)) {
			ids = append(ids, slot.ID)
		}
	}

	updated, err := e.repo.Slot.MarkExpired(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("mark slots expired: %w", err)
	}
	expired := int64(len(updated))

	e.metrics.SlotsExpired.Add(float64(expired))

	e.log.Info("Expiry sweep finished",
		zap.Int("candidates", len(candidates)),
		zap.Int64("expired", expired),
	)

	e.effects.Audit(entity.ActionSlotsExpired, entity.AuditEntitySystem, nil, nil, map[string]any{
		"count":      expired,
		"candidates": len(candidates),
		"swept_at":   now.Format(time.RFC3339),
	})

	if expired > 0 {
		slotIDs := make([]string, len(updated))
		for i, id := range updated {
			slotIDs[i] = id.String()
		}
		e.effects.Publish(events.SlotExpired, events.SlotsExpiredEvent{
			SlotIDs: slotIDs,
			Count:   expired,
			At:      now,
		})
	}

	return expired, nil
}
