package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/internal/data/repository"
	"visitor-booking/pkg/events"
	"visitor-booking/pkg/metrics"
	"visitor-booking/pkg/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sideEffect struct {
	kind string
	fn   func(ctx context.Context) error
}

// SideEffects runs audit writes, notifications and event publishing after the
// primary operation has committed. Failures are logged and counted, never
// returned. With zero workers every effect runs inline on the caller.
type SideEffects struct {
	audit     repository.AuditLogRepository
	notifier  notify.Notifier
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	timeout   time.Duration
	now       func() time.Time

	queue  chan sideEffect
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type SideEffectsConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

func NewSideEffects(
	cfg SideEffectsConfig,
	audit repository.AuditLogRepository,
	notifier notify.Notifier,
	publisher events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) *SideEffects {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	d := &SideEffects{
		audit:     audit,
		notifier:  notifier,
		publisher: publisher,
		metrics:   m,
		log:       log.With(zap.String("component", "side_effects")),
		timeout:   cfg.Timeout,
		now:       time.Now,
	}

	if cfg.Workers > 0 {
		size := cfg.QueueSize
		if size <= 0 {
			size = cfg.Workers * 64
		}
		d.queue = make(chan sideEffect, size)
		for i := 0; i < cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	}

	return d
}

func (d *SideEffects) worker() {
	defer d.wg.Done()
	for effect := range d.queue {
		d.run(effect)
	}
}

// Close stops accepting work and waits for queued effects to finish.
func (d *SideEffects) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.queue != nil {
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *SideEffects) submit(kind string, fn func(ctx context.Context) error) {
	effect := sideEffect{kind: kind, fn: fn}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("Side effect dropped after shutdown", zap.String("kind", kind))
		d.metrics.SideEffectsDropped.Inc()
		return
	}

	if d.queue == nil {
		d.run(effect)
		return
	}

	select {
	case d.queue <- effect:
	default:
		d.log.Warn("Side effect queue full, dropping", zap.String("kind", kind))
		d.metrics.SideEffectsDropped.Inc()
	}
}

func (d *SideEffects) run(effect sideEffect) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			d.log.Error("Side effect panicked",
				zap.String("kind", effect.kind),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
			d.metrics.SideEffectFailures.WithLabelValues(effect.kind).Inc()
		}
	}()

	if err := effect.fn(ctx); err != nil {
		d.log.Warn("Side effect failed",
			zap.String("kind", effect.kind),
			zap.Error(err),
		)
		d.metrics.SideEffectFailures.WithLabelValues(effect.kind).Inc()
	}
}

// Audit records an action in the system log.
func (d *SideEffects) Audit(action string, entityType entity.AuditEntityType, entityID, actor *uuid.UUID, details map[string]any) {
	entry := &entity.AuditLog{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: d.now(),
		},
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actor,
		Details:    details,
	}

	fields := []zap.Field{
		zap.String("action", action),
		zap.String("entity_type", string(entityType)),
		zap.Any("details", details),
	}
	if entityID != nil {
		fields = append(fields, zap.String("entity_id", entityID.String()))
	}
	if actor != nil {
		fields = append(fields, zap.String("actor", actor.String()))
	}
	d.log.Info("Audit", fields...)

	d.submit("audit", func(ctx context.Context) error {
		if err := d.audit.Create(ctx, entry); err != nil {
			return fmt.Errorf("audit %s: %w", action, err)
		}
		return nil
	})
}

// NotifyConfirmation sends the booking confirmation message.
func (d *SideEffects) NotifyConfirmation(data notify.ConfirmationData) {
	if d.notifier == nil {
		return
	}
	d.submit("notify", func(ctx context.Context) error {
		return d.notifier.SendBookingConfirmation(ctx, data)
	})
}

// Publish emits a domain event.
func (d *SideEffects) Publish(subject string, data any) {
	d.submit("event", func(ctx context.Context) error {
		if err := d.publisher.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
		return nil
	})
}
