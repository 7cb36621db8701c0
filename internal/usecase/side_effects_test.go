package usecase

import (
	"context"
	"testing"
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/pkg/metrics"
	"visitor-booking/pkg/notify"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type blockingPublisher struct {
	release chan struct{}
	started chan struct{}
}

func (p *blockingPublisher) Publish(ctx context.Context, _ string, _ any) error {
	p.started <- struct{}{}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *blockingPublisher) Close() error { return nil }

func TestSideEffects_WorkerPool(t *testing.T) {
	store := newMemStore()
	m := metrics.New("test")
	effects := NewSideEffects(SideEffectsConfig{Workers: 2, QueueSize: 16, Timeout: time.Second},
		&memAuditRepo{store}, &recordingNotifier{}, &recordingPublisher{}, m, zap.NewNop())

	for i := 0; i < 10; i++ {
		id := uuid.New()
		effects.Audit(entity.ActionBookingCreated, entity.AuditEntityBooking, &id, nil, map[string]any{"i": i})
	}
	effects.Close()

	assert.Len(t, store.auditActions(), 10, "Close drains the queue")

	// after Close everything is dropped
	effects.Audit(entity.ActionBookingCreated, entity.AuditEntityBooking, nil, nil, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SideEffectsDropped))
	assert.Len(t, store.auditActions(), 10)

	// closing twice is harmless
	effects.Close()
}

func TestSideEffects_QueueFullDrops(t *testing.T) {
	m := metrics.New("test")
	pub := &blockingPublisher{release: make(chan struct{}), started: make(chan struct{}, 1)}
	effects := NewSideEffects(SideEffectsConfig{Workers: 1, QueueSize: 1, Timeout: time.Second},
		&memAuditRepo{newMemStore()}, nil, pub, m, zap.NewNop())

	effects.Publish("a", nil)
	<-pub.started // the worker is now busy

	effects.Publish("b", nil) // fills the queue
	effects.Publish("c", nil) // dropped

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SideEffectsDropped))

	close(pub.release)
	effects.Close()
}

func TestSideEffects_TimeoutCountsAsFailure(t *testing.T) {
	m := metrics.New("test")
	pub := &blockingPublisher{release: make(chan struct{}), started: make(chan struct{}, 1)}
	effects := NewSideEffects(SideEffectsConfig{Timeout: 20 * time.Millisecond},
		&memAuditRepo{newMemStore()}, nil, pub, m, zap.NewNop())

	start := time.Now()
	effects.Publish("slow", nil)
	require.Less(t, time.Since(start), time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SideEffectFailures.WithLabelValues("event")))
}

func TestSideEffects_NilNotifierIsSkipped(t *testing.T) {
	m := metrics.New("test")
	effects := NewSideEffects(SideEffectsConfig{}, &memAuditRepo{newMemStore()}, nil, nil, m, zap.NewNop())

	assert.NotPanics(t, func() {
		effects.NotifyConfirmation(notify.ConfirmationData{VisitorEmail: "a@example.com"})
		effects.Publish("x", nil)
	})
	assert.Zero(t, testutil.ToFloat64(m.SideEffectsDropped))
}
