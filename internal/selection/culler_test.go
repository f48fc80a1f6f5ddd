package selection

import (
	"testing"
	"time"

	"driftboard/server/internal/geom"
)

func newTestCuller(padding float64, boxes map[string]geom.Box) (*ViewportCuller, BoundsResolver) {
	index := NewSpatialIndex(100)
	for id, box := range boxes {
		index.Insert(id, box)
	}
	cache := NewBoundsCache()
	culler := NewViewportCuller(index, cache, padding, HintsFor(ModeBalanced))
	return culler, staticResolver(boxes)
}

func TestCullerExcludesOutOfViewport(t *testing.T) {
	boxes := map[string]geom.Box{
		"e2": {X: 300, Y: 300, Width: 50, Height: 50},
	}
	viewport := geom.Box{X: 0, Y: 0, Width: 200, Height: 200}
	records := []SelectionRecord{activeRecord("u1", 100, time.UnixMilli(0), "e2")}

	// Zero padding: the 100px gap excludes e2.
	culler, resolve := newTestCuller(0, boxes)
	if got := culler.VisibleSelections(records, viewport, 0, resolve); len(got) != 0 {
		t.Fatalf("expected e2 excluded with zero padding, got %v", got)
	}

	// A padding margin smaller than the gap still excludes it.
	culler, resolve = newTestCuller(50, boxes)
	if got := culler.VisibleSelections(records, viewport, 0, resolve); len(got) != 0 {
		t.Fatalf("expected e2 excluded when gap exceeds margin, got %v", got)
	}

	// A margin covering the gap includes it.
	culler, resolve = newTestCuller(120, boxes)
	if got := culler.VisibleSelections(records, viewport, 0, resolve); len(got) != 1 {
		t.Fatalf("expected e2 included when margin covers the gap, got %v", got)
	}
}

func TestCullerUsesExplicitBounds(t *testing.T) {
	culler, resolve := newTestCuller(0, nil)
	explicit := geom.Box{X: 10, Y: 10, Width: 20, Height: 20}
	records := []SelectionRecord{{
		UserID:         "u1",
		WhiteboardID:   testBoard,
		ElementIDs:     []string{"unknown"},
		ExplicitBounds: &explicit,
		IsActive:       true,
	}}
	got := culler.VisibleSelections(records, geom.Box{X: 0, Y: 0, Width: 100, Height: 100}, 0, resolve)
	if len(got) != 1 || got[0].Bounds != explicit {
		t.Fatalf("expected explicit bounds to drive visibility, got %v", got)
	}
}

func TestCullerSkipsUnresolvableSelections(t *testing.T) {
	culler, resolve := newTestCuller(0, map[string]geom.Box{})
	records := []SelectionRecord{activeRecord("u1", 100, time.UnixMilli(0), "deleted")}
	got := culler.VisibleSelections(records, geom.Box{Width: 1000, Height: 1000}, 0, resolve)
	if len(got) != 0 {
		t.Fatalf("expected selection over a deleted element to be excluded, got %v", got)
	}
}

func TestCullerMaxVisibleTruncatesDeterministically(t *testing.T) {
	boxes := map[string]geom.Box{
		"e1": {X: 0, Y: 0, Width: 10, Height: 10},
		"e2": {X: 20, Y: 0, Width: 10, Height: 10},
		"e3": {X: 40, Y: 0, Width: 10, Height: 10},
	}
	culler, resolve := newTestCuller(0, boxes)
	base := time.UnixMilli(1000)
	records := []SelectionRecord{
		activeRecord("first", 300, base, "e1"),
		activeRecord("second", 200, base, "e2"),
		activeRecord("third", 100, base, "e3"),
	}
	got := culler.VisibleSelections(records, geom.Box{Width: 500, Height: 500}, 2, resolve)
	if len(got) != 2 {
		t.Fatalf("expected two visible selections, got %d", len(got))
	}
	if got[0].UserID != "first" || got[1].UserID != "second" {
		t.Fatalf("expected truncation to keep input order, got %s, %s", got[0].UserID, got[1].UserID)
	}
}

func TestCullerVisibleConflicts(t *testing.T) {
	boxes := map[string]geom.Box{
		"near": {X: 10, Y: 10, Width: 20, Height: 20},
		"far":  {X: 900, Y: 900, Width: 20, Height: 20},
	}
	culler, resolve := newTestCuller(0, boxes)
	conflicts := []ConflictRecord{
		{ID: "c1", ElementID: "near", Contenders: []Contender{{UserID: "a"}, {UserID: "b"}}, Mode: ModeManual},
		{ID: "c2", ElementID: "far", Contenders: []Contender{{UserID: "a"}, {UserID: "b"}}, Mode: ModeManual},
	}
	got := culler.VisibleConflicts(conflicts, geom.Box{Width: 200, Height: 200}, 0, resolve)
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("expected only the near conflict, got %v", got)
	}
	if got[0].Bounds != boxes["near"] {
		t.Fatalf("expected conflict bounds %+v, got %+v", boxes["near"], got[0].Bounds)
	}
}

func TestCullerVisibleOwnerships(t *testing.T) {
	boxes := map[string]geom.Box{
		"near": {X: 10, Y: 10, Width: 20, Height: 20},
	}
	culler, resolve := newTestCuller(0, boxes)
	now := time.UnixMilli(0)
	records := []OwnershipRecord{
		{ElementID: "near", OwnerID: "a", AcquiredAt: now, ExpiresAt: now.Add(5 * time.Second), Locked: true, Reason: ReasonEditing},
		{ElementID: "gone", OwnerID: "b", AcquiredAt: now, ExpiresAt: now.Add(5 * time.Second)},
	}
	got := culler.VisibleOwnerships(records, geom.Box{Width: 200, Height: 200}, 0, resolve, now)
	if len(got) != 1 || got[0].ElementID != "near" {
		t.Fatalf("expected only the resolvable lock, got %v", got)
	}
	if got[0].RemainingMillis != 5000 {
		t.Fatalf("expected 5000ms remaining, got %d", got[0].RemainingMillis)
	}
}
