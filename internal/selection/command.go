package selection

import (
	"time"

	"driftboard/server/internal/geom"
)

// CommandType enumerates the supported session commands.
type CommandType string

const (
	CommandSelection CommandType = "Selection"
	CommandOwnership CommandType = "Ownership"
	CommandResolve   CommandType = "Resolve"
	CommandElements  CommandType = "Elements"
)

// SelectionCommand carries one inbound selection-update event.
type SelectionCommand struct {
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	UserColor     string    `json:"userColor"`
	WhiteboardID  string    `json:"whiteboardId"`
	SessionID     string    `json:"sessionId"`
	ElementIDs    []string  `json:"elementIds"`
	Bounds        *geom.Box `json:"bounds,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	IsMultiSelect bool      `json:"isMultiSelect"`
	Priority      int       `json:"priority"`
	IsActive      bool      `json:"isActive"`
	LastSeen      time.Time `json:"lastSeen"`
}

// OwnershipCommand carries one lock acquisition, renewal, or release.
type OwnershipCommand struct {
	ElementID string        `json:"elementId"`
	UserID    string        `json:"userId"`
	TTL       time.Duration `json:"ttl"`
	Reason    LockReason    `json:"reason"`
	Locked    bool          `json:"locked"`
	Priority  int           `json:"priority"`
	Release   bool          `json:"release,omitempty"`
	Renew     bool          `json:"renew,omitempty"`
}

// ResolveCommand applies a resolution action to an open conflict.
type ResolveCommand struct {
	ConflictID string     `json:"conflictId"`
	Resolution Resolution `json:"resolution"`
}

// ElementBounds announces geometry for one element.
type ElementBounds struct {
	ID  string   `json:"id"`
	Box geom.Box `json:"bounds"`
}

// ElementsCommand updates the element geometry registry.
type ElementsCommand struct {
	Upserts []ElementBounds `json:"upserts,omitempty"`
	Removed []string        `json:"removed,omitempty"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	ActorID   string            `json:"actorId"`
	Type      CommandType       `json:"type"`
	IssuedAt  time.Time         `json:"issuedAt"`
	Selection *SelectionCommand `json:"selection,omitempty"`
	Ownership *OwnershipCommand `json:"ownership,omitempty"`
	Resolve   *ResolveCommand   `json:"resolve,omitempty"`
	Elements  *ElementsCommand  `json:"elements,omitempty"`
}
