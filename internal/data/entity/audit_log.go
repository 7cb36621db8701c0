package entity

import (
	"github.com/google/uuid"
)

type AuditEntityType string

const (
	AuditEntitySlot    AuditEntityType = "slot"
	AuditEntityBooking AuditEntityType = "booking"
	AuditEntitySystem  AuditEntityType = "system"
)

const (
	ActionSlotCreated       = "slot.created"
	ActionSlotUpdated       = "slot.updated"
	ActionSlotDeleted       = "slot.deleted"
	ActionSlotStatusChanged = "slot.status_changed"
	ActionSlotsExpired      = "slots.expired"
	ActionBookingCreated    = "booking.created"
	ActionBookingConfirmed  = "booking.confirmed"
	ActionBookingUpdated    = "booking.updated"
	ActionBookingCancelled  = "booking.cancelled"
	ActionBookingCompleted  = "booking.completed"
	ActionBookingNoShow     = "booking.no_show"
	ActionConflictResolved  = "conflict.resolved"
)

// AuditLog is one row of the system log.
type AuditLog struct {
	BaseSimple
	Action     string          `db:"action"`
	EntityType AuditEntityType `db:"entity_type"`
	EntityID   *uuid.UUID      `db:"entity_id"`
	ActorID    *uuid.UUID      `db:"actor_id"`
	Details    map[string]any  `db:"details"`
}
