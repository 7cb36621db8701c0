package usecase

import (
	"context"
	"testing"

	"visitor-booking/internal/data/entity"
	"visitor-booking/internal/dto/request"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	actor := uuid.New()

	resp, err := f.slots.CreateSlot(ctx, &actor, &request.CreateSlotRequest{
		Date:        "2030-06-13",
		StartTime:   "10:00",
		EndTime:     "11:30",
		Capacity:    20,
		Description: strPtr("Morning tour"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2030-06-13", resp.Date)
	assert.Equal(t, "10:00:00", resp.StartTime.String())
	assert.Equal(t, 90, resp.DurationMinutes)
	assert.Equal(t, 20, resp.AvailableCapacity)
	assert.Equal(t, entity.SlotStatusAvailable, resp.Status)
	require.NotNil(t, resp.CreatedBy)
	assert.Equal(t, actor.String(), *resp.CreatedBy)
	assert.Equal(t, []string{entity.ActionSlotCreated}, f.store.auditActions())

	t.Run("explicit duration wins", func(t *testing.T) {
		resp, err := f.slots.CreateSlot(ctx, nil, &request.CreateSlotRequest{
			Date: "2030-06-13", StartTime: "14:00", EndTime: "15:00", Capacity: 5, DurationMinutes: intPtr(45),
		})
		require.NoError(t, err)
		assert.Equal(t, 45, resp.DurationMinutes)
	})

	t.Run("inverted window", func(t *testing.T) {
		_, err := f.slots.CreateSlot(ctx, nil, &request.CreateSlotRequest{
			Date: "2030-06-13", StartTime: "17:00", EndTime: "16:00", Capacity: 5,
		})
		assert.ErrorIs(t, err, ErrInvalidTimeRange)
	})

	t.Run("in the past", func(t *testing.T) {
		_, err := f.slots.CreateSlot(ctx, nil, &request.CreateSlotRequest{
			Date: "2030-06-12", StartTime: "07:00", EndTime: "09:00", Capacity: 5,
		})
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := f.slots.CreateSlot(ctx, nil, &request.CreateSlotRequest{
			Date: "13/13/2030", StartTime: "07:00", EndTime: "09:00", Capacity: 5,
		})
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("zero capacity", func(t *testing.T) {
		_, err := f.slots.CreateSlot(ctx, nil, &request.CreateSlotRequest{
			Date: "2030-06-14", StartTime: "07:00", EndTime: "09:00", Capacity: 0,
		})
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	})
}

func TestCreateSlot_ConflictRecorded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	existing := f.addSlot(10, "10:00", "11:00")

	_, err := f.slots.CreateSlot(ctx, nil, &request.CreateSlotRequest{
		Date: "2030-06-13", StartTime: "10:30", EndTime: "11:30", Capacity: 5,
	})

	var conflict *ScheduleConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, existing.ID, conflict.ConflictingSlotID)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ScheduleConflicts))

	records, err := f.slots.ListConflicts(ctx, "open")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.ConflictSeverityMedium, records[0].Severity)
	assert.Nil(t, records[0].SlotID)
	require.NotNil(t, records[0].ConflictingSlotID)
	assert.Equal(t, existing.ID.String(), *records[0].ConflictingSlotID)

	actor := uuid.New()
	resolved, err := f.slots.ResolveConflict(ctx, &actor, records[0].ID, &request.ResolveConflictRequest{Status: "resolved"})
	require.NoError(t, err)
	assert.Equal(t, entity.ConflictStatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	open, err := f.slots.ListConflicts(ctx, "open")
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = f.slots.ListConflicts(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.slots.ResolveConflict(ctx, nil, uuid.NewString(), &request.ResolveConflictRequest{Status: "ignored"})
	assert.ErrorIs(t, err, ErrConflictNotFound)
}

func TestUpdateSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	slot := f.addSlot(4, "10:00", "11:00")
	neighbour := f.addSlot(4, "12:00", "13:00")
	visitor := f.addVisitor("Ana", "ana@example.com")
	f.book(t, slot, visitor, 4)
	require.Equal(t, entity.SlotStatusBooked, f.store.slot(slot.ID).Status)

	t.Run("capacity below booked guests", func(t *testing.T) {
		_, err := f.slots.UpdateSlot(ctx, nil, slot.ID.String(), &request.UpdateSlotRequest{Capacity: intPtr(3)})
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.Equal(t, 4, f.store.slot(slot.ID).Capacity)
	})

	t.Run("raising capacity reopens the slot", func(t *testing.T) {
		resp, err := f.slots.UpdateSlot(ctx, nil, slot.ID.String(), &request.UpdateSlotRequest{Capacity: intPtr(6)})
		require.NoError(t, err)
		assert.Equal(t, entity.SlotStatusAvailable, resp.Status)
		assert.Equal(t, 2, resp.AvailableCapacity)
	})

	t.Run("moving onto a neighbour", func(t *testing.T) {
		_, err := f.slots.UpdateSlot(ctx, nil, slot.ID.String(), &request.UpdateSlotRequest{EndTime: strPtr("12:30")})
		require.ErrorIs(t, err, ErrScheduleConflict)
		assert.Equal(t, "11:00:00", f.store.slot(slot.ID).EndTime.String())

		records, err := f.slots.ListConflicts(ctx, "")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, entity.ConflictSeverityHigh, records[0].Severity)
		require.NotNil(t, records[0].SlotID)
		assert.Equal(t, slot.ID.String(), *records[0].SlotID)
		assert.Equal(t, neighbour.ID.String(), *records[0].ConflictingSlotID)
	})

	t.Run("extending its own window is not a conflict", func(t *testing.T) {
		resp, err := f.slots.UpdateSlot(ctx, nil, slot.ID.String(), &request.UpdateSlotRequest{
			StartTime: strPtr("09:30"),
			EndTime:   strPtr("12:00"),
		})
		require.NoError(t, err)
		assert.Equal(t, 150, resp.DurationMinutes)
	})

	t.Run("empty update", func(t *testing.T) {
		_, err := f.slots.UpdateSlot(ctx, nil, slot.ID.String(), &request.UpdateSlotRequest{})
		assert.ErrorIs(t, err, ErrNoFieldsToUpdate)
	})

	t.Run("unknown slot", func(t *testing.T) {
		_, err := f.slots.UpdateSlot(ctx, nil, uuid.NewString(), &request.UpdateSlotRequest{Capacity: intPtr(9)})
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestDeleteSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	slot := f.addSlot(4, "10:00", "11:00")
	visitor := f.addVisitor("Ana", "ana@example.com")
	id := f.book(t, slot, visitor, 2)

	err := f.slots.DeleteSlot(ctx, nil, slot.ID.String())
	require.ErrorIs(t, err, ErrSlotHasActiveBookings)
	assert.NotNil(t, f.store.slot(slot.ID))

	_, err = f.bookings.CancelBooking(ctx, nil, id, &request.CancelBookingRequest{Reason: "x"})
	require.NoError(t, err)

	require.NoError(t, f.slots.DeleteSlot(ctx, nil, slot.ID.String()))
	assert.Nil(t, f.store.slot(slot.ID))

	assert.ErrorIs(t, f.slots.DeleteSlot(ctx, nil, slot.ID.String()), ErrSlotNotFound)
}

func TestSetSlotStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	slot := f.addSlot(2, "10:00", "11:00")
	visitor := f.addVisitor("Ana", "ana@example.com")
	f.book(t, slot, visitor, 2)

	resp, err := f.slots.SetSlotStatus(ctx, nil, slot.ID.String(), &request.SetSlotStatusRequest{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, entity.SlotStatusCancelled, resp.Status)

	// handing back to derivation lands on booked, not available
	resp, err = f.slots.SetSlotStatus(ctx, nil, slot.ID.String(), &request.SetSlotStatusRequest{Status: "available"})
	require.NoError(t, err)
	assert.Equal(t, entity.SlotStatusBooked, resp.Status)
	assert.Equal(t, 2, resp.BookedCount)

	_, err = f.slots.SetSlotStatus(ctx, nil, slot.ID.String(), &request.SetSlotStatusRequest{Status: "expired"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	assert.Contains(t, f.store.auditActions(), entity.ActionSlotStatusChanged)
}

func TestRecomputeSlot_RepairsDrift(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	slot := f.addSlot(3, "10:00", "11:00")
	visitor := f.addVisitor("Ana", "ana@example.com")
	f.book(t, slot, visitor, 1)

	drifted := f.store.slot(slot.ID)
	drifted.BookedCount = 3
	drifted.Status = entity.SlotStatusBooked
	f.store.putSlot(drifted)

	resp, err := f.slots.RecomputeSlot(ctx, slot.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.BookedCount)
	assert.Equal(t, entity.SlotStatusAvailable, resp.Status)
	assert.Equal(t, 1, f.store.slot(slot.ID).BookedCount)
}

func TestGetAvailability(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	visitor := f.addVisitor("Ana", "ana@example.com")

	open := f.addSlotOn(fixedNow, 10, "09:00", "10:00")
	full := f.addSlotOn(fixedNow, 1, "11:00", "12:00")
	f.book(t, full, visitor, 1)
	closed := f.addSlotOn(fixedNow, 10, "13:00", "14:00")
	closed.Status = entity.SlotStatusMaintenance
	f.store.putSlot(closed)
	f.addSlotOn(fixedNow, 10, "07:00", "07:45") // started, row still says available
	f.addSlot(10, "09:00", "10:00")             // other day

	slots, err := f.slots.GetAvailability(ctx, "2030-06-12")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, open.ID.String(), slots[0].ID)
	assert.Equal(t, 10, slots[0].AvailableCapacity)

	_, err = f.slots.GetAvailability(ctx, "not a date")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestListSlots(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addSlot(10, "09:00", "10:00")
	later := f.addSlotOn(fixedNow.AddDate(0, 0, 5), 10, "09:00", "10:00")
	later.Status = entity.SlotStatusMaintenance
	f.store.putSlot(later)

	all, err := f.slots.ListSlots(ctx, &request.ListSlotsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ranged, err := f.slots.ListSlots(ctx, &request.ListSlotsRequest{From: "2030-06-14"})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, later.ID.String(), ranged[0].ID)

	byStatus, err := f.slots.ListSlots(ctx, &request.ListSlotsRequest{Status: "available"})
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	_, err = f.slots.GetSlot(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrSlotNotFound)
}
