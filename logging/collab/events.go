package collab

import (
	"context"

	"driftboard/server/logging"
)

const (
	// EventSelectionAdmitted is emitted when a participant's selection is
	// stored or replaced.
	EventSelectionAdmitted logging.EventType = "collab.selection_admitted"
	// EventSelectionExpired is emitted when the liveness sweep removes a
	// stale selection.
	EventSelectionExpired logging.EventType = "collab.selection_expired"
	// EventConflictDetected is emitted the first time an element becomes
	// contested.
	EventConflictDetected logging.EventType = "collab.conflict_detected"
	// EventConflictResolved is emitted when a resolution command is applied.
	EventConflictResolved logging.EventType = "collab.conflict_resolved"
	// EventOwnershipGranted is emitted when a lock is acquired or preempted.
	EventOwnershipGranted logging.EventType = "collab.ownership_granted"
	// EventOwnershipRejected is emitted when acquisition loses to a live lock.
	EventOwnershipRejected logging.EventType = "collab.ownership_rejected"
	// EventOwnershipExpired is emitted when the TTL sweep removes a lock.
	EventOwnershipExpired logging.EventType = "collab.ownership_expired"
)

// SelectionPayload captures details about a selection admission or expiry.
type SelectionPayload struct {
	WhiteboardID string `json:"whiteboardId"`
	ElementCount int    `json:"elementCount"`
	Priority     int    `json:"priority,omitempty"`
}

// ConflictPayload captures details about a conflict transition.
type ConflictPayload struct {
	ConflictID string `json:"conflictId"`
	ElementID  string `json:"elementId"`
	Contenders int    `json:"contenders,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// OwnershipPayload captures details about a lock transition.
type OwnershipPayload struct {
	ElementID string `json:"elementId"`
	Reason    string `json:"reason,omitempty"`
	TTLMillis int64  `json:"ttlMs,omitempty"`
	Locked    bool   `json:"locked,omitempty"`
}

// Selection publishes a selection lifecycle event.
func Selection(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, payload SelectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySelection,
		Payload:  payload,
	})
}

// Conflict publishes a conflict lifecycle event.
func Conflict(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, element logging.EntityRef, payload ConflictPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    element,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySelection,
		Payload:  payload,
	})
}

// Ownership publishes a lock lifecycle event.
func Ownership(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, owner logging.EntityRef, payload OwnershipPayload) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if eventType == EventOwnershipRejected {
		severity = logging.SeverityDebug
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    owner,
		Severity: severity,
		Category: logging.CategoryOwnership,
		Payload:  payload,
	})
}
