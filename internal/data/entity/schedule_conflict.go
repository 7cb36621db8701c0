package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConflictType string

const (
	ConflictTypeOverlap ConflictType = "overlap"
)

type ConflictSeverity string

const (
	ConflictSeverityLow    ConflictSeverity = "low"
	ConflictSeverityMedium ConflictSeverity = "medium"
	ConflictSeverityHigh   ConflictSeverity = "high"
)

type ConflictStatus string

const (
	ConflictStatusOpen     ConflictStatus = "open"
	ConflictStatusResolved ConflictStatus = "resolved"
	ConflictStatusIgnored  ConflictStatus = "ignored"
)

// ScheduleConflict is an advisory record of a detected scheduling issue.
type ScheduleConflict struct {
	ID                uuid.UUID        `db:"id"`
	SlotID            *uuid.UUID       `db:"slot_id"`
	ConflictingSlotID *uuid.UUID       `db:"conflicting_slot_id"`
	ConflictType      ConflictType     `db:"conflict_type"`
	Severity          ConflictSeverity `db:"severity"`
	Status            ConflictStatus   `db:"status"`
	Description       string           `db:"description"`
	DetectedAt        time.Time        `db:"detected_at"`
	ResolvedAt        *time.Time       `db:"resolved_at"`
	ResolvedBy        *uuid.UUID       `db:"resolved_by"`
}
