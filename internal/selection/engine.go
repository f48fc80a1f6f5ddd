package selection

import (
	"context"
	"time"

	"driftboard/server/internal/geom"
	"driftboard/server/logging"
	"driftboard/server/logging/collab"
)

// Engine composes the store, resolver, ownership manager, spatial index,
// and bounds cache for one whiteboard session. It is the single serialized
// mutation path: commands drained from the session's CommandBuffer are
// applied here in arrival order, followed by the maintenance sweep, and
// only then are snapshots taken.
type Engine struct {
	cfg          Config
	whiteboardID string

	store     *SelectionStore
	resolver  *ConflictResolver
	ownership *OwnershipManager
	index     *SpatialIndex
	cache     *BoundsCache
	culler    *ViewportCuller

	geometry map[string]geom.Box
	current  []ConflictRecord
	known    map[string]struct{} // conflict ids already reported
	tick     uint64
}

// OwnershipOutcome reports the result of one ownership command back to its
// requester.
type OwnershipOutcome struct {
	ElementID string
	UserID    string
	Granted   bool
	Record    *OwnershipRecord
}

// CommandResult carries whatever an applied command needs to surface to the
// transport layer. Selection and element commands produce nothing.
type CommandResult struct {
	Ownership *OwnershipOutcome
}

// SweepReport lists what the maintenance sweep reclaimed.
type SweepReport struct {
	ExpiredSelections []string
	ExpiredOwnerships []OwnershipRecord
}

// Snapshot is the viewport-culled state consumed by one subscriber.
type Snapshot struct {
	Selections []VisibleSelection
	Conflicts  []VisibleConflict
	Ownerships []VisibleOwnership
}

// EngineStats summarizes engine occupancy for diagnostics.
type EngineStats struct {
	Selections int          `json:"selections"`
	Conflicts  int          `json:"conflicts"`
	Ownerships int          `json:"ownerships"`
	Elements   int          `json:"elements"`
	Index      SpatialStats `json:"index"`
}

func NewEngine(whiteboardID string, cfg Config) *Engine {
	cfg = cfg.normalized()
	index := NewSpatialIndex(cfg.GridCellSize)
	cache := NewBoundsCache()
	return &Engine{
		cfg:          cfg,
		whiteboardID: whiteboardID,
		store:        NewSelectionStore(),
		resolver:     NewConflictResolver(),
		ownership:    NewOwnershipManager(cfg.DefaultTTL),
		index:        index,
		cache:        cache,
		culler:       NewViewportCuller(index, cache, *cfg.ViewportPadding, HintsFor(cfg.Mode)),
		geometry:     make(map[string]geom.Box),
		known:        make(map[string]struct{}),
	}
}

// Mode returns the normalized performance preset.
func (e *Engine) Mode() PerformanceMode {
	return e.cfg.Mode
}

// Tick returns the number of maintenance sweeps run so far.
func (e *Engine) Tick() uint64 {
	return e.tick
}

// WhiteboardID returns the board this engine is bound to.
func (e *Engine) WhiteboardID() string {
	return e.whiteboardID
}

// ResolveBounds is the engine's bounds resolver: registered geometry first,
// then the caller-supplied fallback.
func (e *Engine) ResolveBounds(elementID string) (geom.Box, bool) {
	if box, ok := e.geometry[elementID]; ok {
		return box, true
	}
	if e.cfg.BoundsResolver != nil {
		return e.cfg.BoundsResolver(elementID)
	}
	return geom.Box{}, false
}

// UpsertElement registers or moves an element's geometry, keeping the
// spatial index and bounds cache consistent.
func (e *Engine) UpsertElement(id string, box geom.Box) {
	if id == "" {
		return
	}
	e.geometry[id] = box
	e.index.Insert(id, box)
	e.cache.Invalidate(id)
}

// RemoveElement drops an element's geometry. Selections referencing it stay
// intact; its bounds simply stop resolving.
func (e *Engine) RemoveElement(id string) {
	if id == "" {
		return
	}
	delete(e.geometry, id)
	e.index.Remove(id)
	e.cache.Invalidate(id)
}

// Apply executes one command against the session state.
func (e *Engine) Apply(cmd Command, now time.Time) CommandResult {
	switch cmd.Type {
	case CommandSelection:
		if cmd.Selection != nil {
			e.applySelection(*cmd.Selection, now)
		}
	case CommandOwnership:
		if cmd.Ownership != nil {
			outcome := e.applyOwnership(*cmd.Ownership, now)
			return CommandResult{Ownership: &outcome}
		}
	case CommandResolve:
		if cmd.Resolve != nil {
			e.applyResolve(*cmd.Resolve, now)
		}
	case CommandElements:
		if cmd.Elements != nil {
			e.applyElements(*cmd.Elements)
		}
	}
	return CommandResult{}
}

func (e *Engine) applySelection(cmd SelectionCommand, now time.Time) {
	whiteboardID := cmd.WhiteboardID
	if whiteboardID == "" {
		whiteboardID = e.whiteboardID
	}
	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}
	lastSeen := cmd.LastSeen
	if lastSeen.IsZero() {
		lastSeen = now
	}
	rec := SelectionRecord{
		UserID:         cmd.UserID,
		DisplayName:    cmd.UserName,
		Color:          cmd.UserColor,
		WhiteboardID:   whiteboardID,
		SessionID:      cmd.SessionID,
		ElementIDs:     cmd.ElementIDs,
		ExplicitBounds: cmd.Bounds,
		Timestamp:      timestamp,
		Priority:       cmd.Priority,
		IsMultiSelect:  cmd.IsMultiSelect,
		IsActive:       cmd.IsActive,
		LastSeen:       lastSeen,
	}
	admitted := e.store.Admit(rec)
	if admitted {
		collab.Selection(context.Background(), e.cfg.Publisher, collab.EventSelectionAdmitted, e.tick,
			logging.EntityRef{ID: cmd.UserID, Kind: logging.EntityKindParticipant},
			collab.SelectionPayload{WhiteboardID: whiteboardID, ElementCount: len(rec.ElementIDs), Priority: rec.Priority})
	}
	e.recompute()
}

func (e *Engine) applyOwnership(cmd OwnershipCommand, now time.Time) OwnershipOutcome {
	outcome := OwnershipOutcome{ElementID: cmd.ElementID, UserID: cmd.UserID}
	switch {
	case cmd.Release:
		outcome.Granted = e.ownership.Release(cmd.ElementID, cmd.UserID)
	case cmd.Renew:
		outcome.Granted = e.ownership.Renew(cmd.ElementID, cmd.UserID, cmd.TTL, now)
		if outcome.Granted {
			if rec, ok := e.ownership.Get(cmd.ElementID, now); ok {
				outcome.Record = &rec
			}
		}
	default:
		rec, granted := e.ownership.Acquire(AcquireRequest{
			ElementID: cmd.ElementID,
			OwnerID:   cmd.UserID,
			TTL:       cmd.TTL,
			Reason:    cmd.Reason,
			Locked:    cmd.Locked,
			Priority:  cmd.Priority,
		}, now)
		outcome.Granted = granted
		if granted {
			outcome.Record = &rec
		}
		eventType := collab.EventOwnershipGranted
		if !granted {
			eventType = collab.EventOwnershipRejected
		}
		collab.Ownership(context.Background(), e.cfg.Publisher, eventType, e.tick,
			logging.EntityRef{ID: cmd.UserID, Kind: logging.EntityKindParticipant},
			collab.OwnershipPayload{ElementID: cmd.ElementID, Reason: string(cmd.Reason), TTLMillis: cmd.TTL.Milliseconds(), Locked: cmd.Locked})
	}
	return outcome
}

func (e *Engine) applyResolve(cmd ResolveCommand, now time.Time) {
	var target *ConflictRecord
	for i := range e.current {
		if e.current[i].ID == cmd.ConflictID {
			target = &e.current[i]
			break
		}
	}
	if target == nil {
		return
	}
	switch cmd.Resolution {
	case ResolutionOwnership:
		winner := target.Contenders[0]
		_, granted := e.ownership.Acquire(AcquireRequest{
			ElementID: target.ElementID,
			OwnerID:   winner.UserID,
			TTL:       e.cfg.DefaultTTL,
			Reason:    ReasonManual,
			Locked:    true,
			Priority:  winner.Priority,
		}, now)
		if !granted {
			// A live lock held by someone outside the conflict blocks
			// the transfer; the contenders keep their selections and
			// the conflict stands.
			return
		}
		e.store.StripElement(e.whiteboardID, target.ElementID, winner.UserID)
		collab.Conflict(context.Background(), e.cfg.Publisher, collab.EventConflictResolved, e.tick,
			logging.EntityRef{ID: target.ElementID, Kind: logging.EntityKindElement},
			collab.ConflictPayload{ConflictID: target.ID, ElementID: target.ElementID, Resolution: string(ResolutionOwnership)})
		e.recompute()
	case ResolutionShared:
		e.resolver.MarkShared(e.current, cmd.ConflictID)
		collab.Conflict(context.Background(), e.cfg.Publisher, collab.EventConflictResolved, e.tick,
			logging.EntityRef{ID: target.ElementID, Kind: logging.EntityKindElement},
			collab.ConflictPayload{ConflictID: target.ID, ElementID: target.ElementID, Resolution: string(ResolutionShared)})
		e.recompute()
	case ResolutionCancel:
		// Conflict persists until the selections change naturally.
	}
}

func (e *Engine) applyElements(cmd ElementsCommand) {
	for _, upsert := range cmd.Upserts {
		e.UpsertElement(upsert.ID, upsert.Box)
	}
	for _, id := range cmd.Removed {
		e.RemoveElement(id)
	}
}

// Sweep runs the bounded maintenance pass: stale selections and expired
// locks are reclaimed regardless of event volume. Call once per tick.
func (e *Engine) Sweep(now time.Time) SweepReport {
	e.tick++
	report := SweepReport{}
	report.ExpiredSelections = e.store.ExpireStale(e.whiteboardID, now, e.cfg.LivenessTimeout)
	if len(report.ExpiredSelections) > 0 {
		for _, userID := range report.ExpiredSelections {
			collab.Selection(context.Background(), e.cfg.Publisher, collab.EventSelectionExpired, e.tick,
				logging.EntityRef{ID: userID, Kind: logging.EntityKindParticipant},
				collab.SelectionPayload{WhiteboardID: e.whiteboardID})
		}
		e.recompute()
	}
	report.ExpiredOwnerships = e.ownership.ExpireAll(now)
	for _, rec := range report.ExpiredOwnerships {
		collab.Ownership(context.Background(), e.cfg.Publisher, collab.EventOwnershipExpired, e.tick,
			logging.EntityRef{ID: rec.OwnerID, Kind: logging.EntityKindParticipant},
			collab.OwnershipPayload{ElementID: rec.ElementID, Reason: string(rec.Reason), Locked: rec.Locked})
	}
	return report
}

// Touch refreshes a participant's selection liveness, typically on
// heartbeat.
func (e *Engine) Touch(userID string, now time.Time) {
	e.store.Touch(e.whiteboardID, userID, now)
}

// RemoveParticipant clears a departed participant's selection. Their locks
// are left to expire through the TTL sweep.
func (e *Engine) RemoveParticipant(userID string) {
	if e.store.Remove(e.whiteboardID, userID) {
		e.recompute()
	}
}

// Conflicts returns the current conflict set.
func (e *Engine) Conflicts() []ConflictRecord {
	return e.current
}

// ActiveSelections returns the board's selections ordered for the viewer.
func (e *Engine) ActiveSelections(viewerID string) []SelectionRecord {
	return e.store.ActiveFor(e.whiteboardID, viewerID)
}

// Ownership exposes the lock manager for query-path reads.
func (e *Engine) Ownership() *OwnershipManager {
	return e.ownership
}

// Snapshot produces the viewport-culled state for one subscriber.
func (e *Engine) Snapshot(viewerID string, viewport geom.Box, now time.Time) Snapshot {
	resolve := e.ResolveBounds
	max := e.cfg.MaxVisible
	return Snapshot{
		Selections: e.culler.VisibleSelections(e.store.ActiveFor(e.whiteboardID, viewerID), viewport, max, resolve),
		Conflicts:  e.culler.VisibleConflicts(e.current, viewport, max, resolve),
		Ownerships: e.culler.VisibleOwnerships(e.ownership.Active(now), viewport, max, resolve, now),
	}
}

// Stats summarizes occupancy for the diagnostics endpoint.
func (e *Engine) Stats(now time.Time) EngineStats {
	return EngineStats{
		Selections: e.store.Count(e.whiteboardID),
		Conflicts:  len(e.current),
		Ownerships: e.ownership.Count(now),
		Elements:   len(e.geometry),
		Index:      e.index.Stats(),
	}
}

func (e *Engine) recompute() {
	e.current = e.resolver.Recompute(e.store.ActiveFor(e.whiteboardID, ""))
	seen := make(map[string]struct{}, len(e.current))
	for _, conflict := range e.current {
		seen[conflict.ID] = struct{}{}
		if _, reported := e.known[conflict.ID]; reported {
			continue
		}
		collab.Conflict(context.Background(), e.cfg.Publisher, collab.EventConflictDetected, e.tick,
			logging.EntityRef{ID: conflict.ElementID, Kind: logging.EntityKindElement},
			collab.ConflictPayload{ConflictID: conflict.ID, ElementID: conflict.ElementID, Contenders: len(conflict.Contenders)})
	}
	e.known = seen
}
