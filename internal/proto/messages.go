// Package proto defines the JSON wire messages exchanged with whiteboard
// clients. Every outbound payload carries the protocol revision in Ver.
package proto

import (
	"driftboard/server/internal/geom"
	"driftboard/server/internal/selection"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Client message type identifiers.
const (
	TypeSelection = "selection"
	TypeOwnership = "ownership"
	TypeResolve   = "resolve"
	TypeViewport  = "viewport"
	TypeElements  = "elements"
	TypeHeartbeat = "heartbeat"
)

// Outbound message type identifiers.
const (
	TypeState           = "state"
	TypeOwnershipResult = "ownershipResult"
)

// Ownership actions accepted alongside TypeOwnership.
const (
	ActionAcquire = "acquire"
	ActionRenew   = "renew"
	ActionRelease = "release"
)

// ClientMessage is the envelope for every inbound websocket payload. Only
// the fields relevant to the named type are expected to be set.
type ClientMessage struct {
	Type string `json:"type"`

	// selection
	ElementIDs    []string  `json:"elementIds,omitempty"`
	Bounds        *geom.Box `json:"bounds,omitempty"`
	Priority      int       `json:"priority,omitempty"`
	IsMultiSelect bool      `json:"isMultiSelect,omitempty"`
	IsActive      bool      `json:"isActive,omitempty"`
	Timestamp     int64     `json:"timestamp,omitempty"`

	// ownership
	ElementID string `json:"elementId,omitempty"`
	Action    string `json:"action,omitempty"`
	TTLMillis int64  `json:"ttlMs,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Locked    bool   `json:"locked,omitempty"`

	// resolve
	ConflictID string `json:"conflictId,omitempty"`
	Resolution string `json:"resolution,omitempty"`

	// viewport
	Viewport *geom.Box `json:"viewport,omitempty"`

	// elements
	Elements []ElementPayload `json:"elements,omitempty"`
	Removed  []string         `json:"removed,omitempty"`

	// heartbeat
	SentAt int64 `json:"sentAt,omitempty"`
}

// ElementPayload announces geometry for one canvas element.
type ElementPayload struct {
	ID     string   `json:"id"`
	Bounds geom.Box `json:"bounds"`
}

// Participant identifies one connected user.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

// JoinResponse is returned from POST /join.
type JoinResponse struct {
	Ver             int           `json:"ver"`
	ID              string        `json:"id"`
	SessionID       string        `json:"sessionId"`
	DisplayName     string        `json:"displayName"`
	Color           string        `json:"color"`
	WhiteboardID    string        `json:"whiteboardId"`
	TickRate        int           `json:"tickRate"`
	HeartbeatMillis int64         `json:"heartbeatMillis"`
	Preset          string        `json:"preset"`
	Participants    []Participant `json:"participants"`
}

// StateMessage carries one subscriber's viewport-culled snapshot.
type StateMessage struct {
	Ver        int                          `json:"ver"`
	Type       string                       `json:"type"`
	Selections []selection.VisibleSelection `json:"selections"`
	Conflicts  []selection.VisibleConflict  `json:"conflicts"`
	Ownerships []selection.VisibleOwnership `json:"ownerships"`
	Tick       uint64                       `json:"t"`
	ServerTime int64                        `json:"serverTime"`
}

// OwnershipResultMessage reports the outcome of an ownership command to its
// requester. Rejection is an expected outcome, not an error.
type OwnershipResultMessage struct {
	Ver       int    `json:"ver"`
	Type      string `json:"type"`
	ElementID string `json:"elementId"`
	Granted   bool   `json:"granted"`
	OwnerID   string `json:"ownerId,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// HeartbeatMessage acknowledges a client heartbeat.
type HeartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// DiagnosticsParticipant exposes heartbeat data for the diagnostics
// endpoint.
type DiagnosticsParticipant struct {
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}
