package usecase

import (
	"context"
	"testing"
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/pkg/events"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExpirySweep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	yesterday := fixedNow.AddDate(0, 0, -1)

	past := f.addSlotOn(yesterday, 10, "09:00", "10:00")
	pastBooked := f.addSlotOn(yesterday, 10, "11:00", "12:00")
	pastBooked.Status = entity.SlotStatusBooked
	f.store.putSlot(pastBooked)
	started := f.addSlotOn(fixedNow, 10, "07:30", "09:00")
	laterToday := f.addSlotOn(fixedNow, 10, "09:00", "10:00")
	tomorrow := f.addSlot(10, "09:00", "10:00")
	maintenance := f.addSlotOn(yesterday, 10, "13:00", "14:00")
	maintenance.Status = entity.SlotStatusMaintenance
	f.store.putSlot(maintenance)
	cancelled := f.addSlotOn(yesterday, 10, "15:00", "16:00")
	cancelled.Status = entity.SlotStatusCancelled
	f.store.putSlot(cancelled)

	n, err := f.expiry.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.Equal(t, entity.SlotStatusExpired, f.store.slot(past.ID).Status)
	assert.Equal(t, entity.SlotStatusExpired, f.store.slot(pastBooked.ID).Status)
	assert.Equal(t, entity.SlotStatusExpired, f.store.slot(started.ID).Status)
	assert.Equal(t, entity.SlotStatusAvailable, f.store.slot(laterToday.ID).Status)
	assert.Equal(t, entity.SlotStatusAvailable, f.store.slot(tomorrow.ID).Status)
	assert.Equal(t, entity.SlotStatusMaintenance, f.store.slot(maintenance.ID).Status)
	assert.Equal(t, entity.SlotStatusCancelled, f.store.slot(cancelled.ID).Status)

	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.SlotsExpired))
	assert.Equal(t, []string{events.SlotExpired}, f.publisher.published())

	// second run finds nothing, still leaves an audit summary, publishes nothing
	n, err = f.expiry.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{entity.ActionSlotsExpired, entity.ActionSlotsExpired}, f.store.auditActions())
	assert.Len(t, f.publisher.published(), 1)
}

func TestExpirySweep_EventListsOnlyUpdatedSlots(t *testing.T) {
	f := newFixture()
	yesterday := fixedNow.AddDate(0, 0, -1)
	kept := f.addSlotOn(yesterday, 10, "09:00", "10:00")
	raced := f.addSlotOn(yesterday, 10, "11:00", "12:00")

	// an admin puts one slot into maintenance after the candidates were read
	f.store.beforeMarkExpired = func() {
		s := f.store.slot(raced.ID)
		s.Status = entity.SlotStatusMaintenance
		f.store.putSlot(s)
	}

	n, err := f.expiry.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, entity.SlotStatusMaintenance, f.store.slot(raced.ID).Status)

	event, ok := f.publisher.lastPayload().(events.SlotsExpiredEvent)
	require.True(t, ok)
	assert.Equal(t, int64(1), event.Count)
	assert.Equal(t, []string{kept.ID.String()}, event.SlotIDs)
}

func TestExpirySweep_TimezoneAware(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	f := newFixture()
	f.expiry = NewExpiryScheduler(f.repo, f.effects, f.metrics, zap.NewNop(), WithClock(f.clock), WithLocation(loc))

	// fixedNow is 18:00 local on 2030-06-12
	evening := f.addSlotOn(fixedNow, 10, "17:00", "19:00")
	night := f.addSlotOn(fixedNow, 10, "20:00", "21:00")

	n, err := f.expiry.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, entity.SlotStatusExpired, f.store.slot(evening.ID).Status)
	assert.Equal(t, entity.SlotStatusAvailable, f.store.slot(night.ID).Status)
}

func TestExpiryScheduler_RunStopsOnCancel(t *testing.T) {
	f := newFixture()
	f.expiry = NewExpiryScheduler(f.repo, f.effects, f.metrics, zap.NewNop(),
		WithClock(f.clock), WithExpiryInterval(10*time.Millisecond))
	past := f.addSlotOn(fixedNow.AddDate(0, 0, -1), 10, "09:00", "10:00")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.expiry.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.store.slot(past.ID).Status == entity.SlotStatusExpired
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
