// Package events provides tier-0 observability for alembic.
//
// Events are simple, synchronous, append-only records of what happened.
// The recorder writes JSON lines to .alembic/events.jsonl; recording is
// best-effort: errors are logged to stderr but never returned to
// callers.
package events

import "time"

// Event type constants. Only types we actually emit today.
const (
	FormulaInstalled = "formula.installed"
	FormulaSaved     = "formula.saved"
	FormulaPushed    = "formula.pushed"
	FormulaDeleted   = "formula.deleted"
	VersionPinned    = "version.pinned"
	ConflictResolved = "conflict.resolved"
	SyncCompleted    = "sync.completed"
)

// Event is a single recorded occurrence in the system.
type Event struct {
	Seq     uint64    `json:"seq"`
	Type    string    `json:"type"`
	Ts      time.Time `json:"ts"`
	Formula string    `json:"formula,omitempty"`
	Version string    `json:"version,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Recorder records events. Safe for concurrent use. Best-effort.
type Recorder interface {
	Record(e Event)
}

// Discard silently drops all events.
var Discard Recorder = discardRecorder{}

type discardRecorder struct{}

func (discardRecorder) Record(Event) {}
