// Package selection implements the authoritative state engine behind the
// whiteboard's collaborative selection mechanism: per-participant selection
// records, conflict detection over contested elements, time-limited
// exclusive ownership locks, and viewport-scoped visibility queries.
//
// None of the types in this package take internal locks. All mutation is
// expected to flow through a single serialized consumer (the hub tick
// loop); read-only queries may run freely between mutations.
package selection

import (
	"time"

	"driftboard/server/internal/geom"
)

// BoundsResolver maps an element id to its current bounding box. Returning
// false marks the element unresolvable (deleted or unknown); callers skip
// such elements rather than failing.
type BoundsResolver func(elementID string) (geom.Box, bool)

// SelectionRecord tracks one participant's current selection on a
// whiteboard. A record with no element ids is never stored.
type SelectionRecord struct {
	UserID        string
	DisplayName   string
	Color         string
	WhiteboardID  string
	SessionID     string
	ElementIDs    []string
	ExplicitBounds *geom.Box
	Timestamp     time.Time
	Priority      int
	IsMultiSelect bool
	IsActive      bool
	LastSeen      time.Time
}

// Contender identifies one participant competing for a contested element.
type Contender struct {
	UserID    string    `json:"userId"`
	Priority  int       `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}

// ResolutionMode labels how a conflict is, or is expected to be, resolved.
type ResolutionMode string

const (
	ModeOwnership ResolutionMode = "ownership"
	ModeShared    ResolutionMode = "shared"
	ModeTimeout   ResolutionMode = "timeout"
	ModeManual    ResolutionMode = "manual"
)

// Resolution names the action applied to a conflict.
type Resolution string

const (
	ResolutionOwnership Resolution = "ownership"
	ResolutionShared    Resolution = "shared"
	ResolutionCancel    Resolution = "cancel"
)

// ConflictRecord describes one contested element. Contenders are ordered by
// priority descending, earlier timestamp breaking ties.
type ConflictRecord struct {
	ID         string
	ElementID  string
	Contenders []Contender
	Mode       ResolutionMode
}

// LockReason labels why an ownership lock was taken.
type LockReason string

const (
	ReasonEditing LockReason = "editing"
	ReasonMoving  LockReason = "moving"
	ReasonStyling LockReason = "styling"
	ReasonManual  LockReason = "manual"
)

// OwnershipRecord is a time-limited exclusive hold on one element. At most
// one non-expired record exists per element.
type OwnershipRecord struct {
	ElementID  string
	OwnerID    string
	AcquiredAt time.Time
	ExpiresAt  time.Time
	Locked     bool
	Reason     LockReason
	Priority   int
}

// Expired reports whether the record's TTL has passed.
func (r OwnershipRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Remaining returns the time left before expiry, floored at zero.
func (r OwnershipRecord) Remaining(now time.Time) time.Duration {
	remaining := r.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
