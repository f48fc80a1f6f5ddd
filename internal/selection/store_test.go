package selection

import (
	"testing"
	"time"
)

const testBoard = "board-1"

func activeRecord(userID string, priority int, ts time.Time, elements ...string) SelectionRecord {
	return SelectionRecord{
		UserID:       userID,
		WhiteboardID: testBoard,
		ElementIDs:   elements,
		Timestamp:    ts,
		Priority:     priority,
		IsActive:     true,
		LastSeen:     ts,
	}
}

func TestStoreAdmitReplaces(t *testing.T) {
	store := NewSelectionStore()
	base := time.UnixMilli(1000)
	if !store.Admit(activeRecord("u1", 100, base, "e1", "e2")) {
		t.Fatalf("expected admission to store the record")
	}
	if !store.Admit(activeRecord("u1", 100, base.Add(time.Second), "e3")) {
		t.Fatalf("expected replacement to be admitted")
	}
	rec, ok := store.Get(testBoard, "u1")
	if !ok {
		t.Fatalf("expected record to exist")
	}
	if len(rec.ElementIDs) != 1 || rec.ElementIDs[0] != "e3" {
		t.Fatalf("expected replaced element ids, got %v", rec.ElementIDs)
	}
}

func TestStoreAdmitNormalizesIDs(t *testing.T) {
	store := NewSelectionStore()
	store.Admit(activeRecord("u1", 100, time.UnixMilli(1000), "e1", "", "e1", "e2"))
	rec, _ := store.Get(testBoard, "u1")
	if len(rec.ElementIDs) != 2 || rec.ElementIDs[0] != "e1" || rec.ElementIDs[1] != "e2" {
		t.Fatalf("expected deduplicated ids preserving order, got %v", rec.ElementIDs)
	}
}

func TestStoreEmptyAdmitRemoves(t *testing.T) {
	store := NewSelectionStore()
	base := time.UnixMilli(1000)
	store.Admit(activeRecord("u1", 100, base, "e1"))
	if store.Admit(activeRecord("u1", 100, base.Add(time.Second))) {
		t.Fatalf("expected empty admission to not store a record")
	}
	if _, ok := store.Get(testBoard, "u1"); ok {
		t.Fatalf("expected empty admission to remove the prior record")
	}
	if store.Count(testBoard) != 0 {
		t.Fatalf("expected board to be empty")
	}
}

func TestStoreExpireStale(t *testing.T) {
	store := NewSelectionStore()
	base := time.UnixMilli(0)
	store.Admit(activeRecord("fresh", 100, base.Add(9*time.Second), "e1"))
	store.Admit(activeRecord("stale", 100, base, "e2"))

	expired := store.ExpireStale(testBoard, base.Add(10*time.Second), 5*time.Second)
	if len(expired) != 1 || expired[0] != "stale" {
		t.Fatalf("expected only the stale record to expire, got %v", expired)
	}
	if _, ok := store.Get(testBoard, "fresh"); !ok {
		t.Fatalf("expected fresh record to survive")
	}
}

func TestStoreTouchExtendsLiveness(t *testing.T) {
	store := NewSelectionStore()
	base := time.UnixMilli(0)
	store.Admit(activeRecord("u1", 100, base, "e1"))
	if !store.Touch(testBoard, "u1", base.Add(8*time.Second)) {
		t.Fatalf("expected touch to find the record")
	}
	if expired := store.ExpireStale(testBoard, base.Add(10*time.Second), 5*time.Second); len(expired) != 0 {
		t.Fatalf("expected touched record to survive sweep, expired %v", expired)
	}
}

func TestStoreActiveForOrdering(t *testing.T) {
	store := NewSelectionStore()
	base := time.UnixMilli(1000)
	store.Admit(activeRecord("low", 10, base.Add(3*time.Second), "e1"))
	store.Admit(activeRecord("high", 200, base, "e2"))
	store.Admit(activeRecord("mid-old", 50, base, "e3"))
	store.Admit(activeRecord("mid-new", 50, base.Add(2*time.Second), "e4"))

	got := store.ActiveFor(testBoard, "")
	wantOrder := []string{"high", "mid-new", "mid-old", "low"}
	for i, want := range wantOrder {
		if got[i].UserID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].UserID)
		}
	}
}

func TestStoreActiveForSurfacesViewerFirst(t *testing.T) {
	store := NewSelectionStore()
	base := time.UnixMilli(1000)
	store.Admit(activeRecord("remote", 200, base, "e1"))
	store.Admit(activeRecord("me", 10, base, "e2"))

	got := store.ActiveFor(testBoard, "me")
	if got[0].UserID != "me" {
		t.Fatalf("expected viewer record first regardless of priority, got %s", got[0].UserID)
	}
	if got[1].UserID != "remote" {
		t.Fatalf("expected remote record second, got %s", got[1].UserID)
	}
}

func TestStoreStripElement(t *testing.T) {
	store := NewSelectionStore()
	base := time.UnixMilli(1000)
	store.Admit(activeRecord("winner", 100, base, "e1", "e2"))
	store.Admit(activeRecord("loser", 90, base, "e1", "e3"))
	store.Admit(activeRecord("only", 80, base, "e1"))

	affected := store.StripElement(testBoard, "e1", "winner")
	if len(affected) != 2 {
		t.Fatalf("expected two affected users, got %v", affected)
	}
	if rec, _ := store.Get(testBoard, "loser"); len(rec.ElementIDs) != 1 || rec.ElementIDs[0] != "e3" {
		t.Fatalf("expected loser to keep e3 only, got %v", rec.ElementIDs)
	}
	if _, ok := store.Get(testBoard, "only"); ok {
		t.Fatalf("expected emptied record to be removed")
	}
	if rec, _ := store.Get(testBoard, "winner"); len(rec.ElementIDs) != 2 {
		t.Fatalf("expected winner selection untouched, got %v", rec.ElementIDs)
	}
}
