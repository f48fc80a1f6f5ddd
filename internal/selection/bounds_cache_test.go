package selection

import (
	"testing"

	"driftboard/server/internal/geom"
)

func staticResolver(boxes map[string]geom.Box) BoundsResolver {
	return func(id string) (geom.Box, bool) {
		box, ok := boxes[id]
		return box, ok
	}
}

func TestBoundsCacheCombinedUnion(t *testing.T) {
	cache := NewBoundsCache()
	resolve := staticResolver(map[string]geom.Box{
		"e1": {X: 0, Y: 0, Width: 10, Height: 10},
		"e2": {X: 40, Y: 40, Width: 10, Height: 10},
	})
	box, ok := cache.GetCombined([]string{"e1", "e2"}, resolve, false)
	if !ok {
		t.Fatalf("expected combined bounds to resolve")
	}
	want := geom.Box{X: 0, Y: 0, Width: 50, Height: 50}
	if box != want {
		t.Fatalf("expected combined box %+v, got %+v", want, box)
	}
}

func TestBoundsCacheCombinedPermutationInvariant(t *testing.T) {
	cache := NewBoundsCache()
	resolve := staticResolver(map[string]geom.Box{
		"a": {X: 0, Y: 0, Width: 5, Height: 5},
		"b": {X: 10, Y: 0, Width: 5, Height: 5},
		"c": {X: 0, Y: 10, Width: 5, Height: 5},
	})
	first, ok := cache.GetCombined([]string{"c", "a", "b"}, resolve, false)
	if !ok {
		t.Fatalf("expected first combination to resolve")
	}
	second, ok := cache.GetCombined([]string{"b", "c", "a", "a"}, resolve, false)
	if !ok {
		t.Fatalf("expected permuted combination to resolve")
	}
	if first != second {
		t.Fatalf("expected permutation to hit the same entry, got %+v vs %+v", first, second)
	}
	if len(cache.combined) != 1 {
		t.Fatalf("expected a single combined entry, got %d", len(cache.combined))
	}
}

func TestBoundsCacheSkipsUnresolvable(t *testing.T) {
	cache := NewBoundsCache()
	resolve := staticResolver(map[string]geom.Box{
		"e1": {X: 5, Y: 5, Width: 10, Height: 10},
	})
	box, ok := cache.GetCombined([]string{"e1", "deleted"}, resolve, false)
	if !ok {
		t.Fatalf("expected combination to survive an unresolvable id")
	}
	want := geom.Box{X: 5, Y: 5, Width: 10, Height: 10}
	if box != want {
		t.Fatalf("expected box %+v, got %+v", want, box)
	}

	if _, ok := cache.GetCombined([]string{"gone", "missing"}, resolve, false); ok {
		t.Fatalf("expected combination of only unresolvable ids to report no box")
	}
}

func TestBoundsCacheInvalidateDropsCombined(t *testing.T) {
	boxes := map[string]geom.Box{
		"e1": {X: 0, Y: 0, Width: 10, Height: 10},
		"e2": {X: 20, Y: 0, Width: 10, Height: 10},
	}
	cache := NewBoundsCache()
	resolve := staticResolver(boxes)
	if _, ok := cache.GetCombined([]string{"e1", "e2"}, resolve, false); !ok {
		t.Fatalf("expected initial combination to resolve")
	}

	boxes["e1"] = geom.Box{X: 100, Y: 100, Width: 10, Height: 10}
	cache.Invalidate("e1")

	box, ok := cache.GetCombined([]string{"e1", "e2"}, resolve, false)
	if !ok {
		t.Fatalf("expected combination to resolve after invalidation")
	}
	want := geom.Box{X: 20, Y: 0, Width: 90, Height: 110}
	if box != want {
		t.Fatalf("expected refreshed combined box %+v, got %+v", want, box)
	}
}

func TestBoundsCacheForceRefreshRepopulates(t *testing.T) {
	boxes := map[string]geom.Box{
		"e1": {X: 0, Y: 0, Width: 10, Height: 10},
	}
	cache := NewBoundsCache()
	resolve := staticResolver(boxes)
	if _, ok := cache.GetCombined([]string{"e1"}, resolve, false); !ok {
		t.Fatalf("expected initial combination to resolve")
	}

	// The member box changes underneath the cache with no invalidation;
	// a forced refresh must re-resolve rather than serve the memoized
	// single entry.
	boxes["e1"] = geom.Box{X: 50, Y: 50, Width: 10, Height: 10}
	box, ok := cache.GetCombined([]string{"e1"}, resolve, true)
	if !ok {
		t.Fatalf("expected forced refresh to resolve")
	}
	if box != boxes["e1"] {
		t.Fatalf("expected refreshed box %+v, got %+v", boxes["e1"], box)
	}
	if single, ok := cache.Get("e1"); !ok || single != boxes["e1"] {
		t.Fatalf("expected forced refresh to replace the member box, got %+v", single)
	}
	cached, ok := cache.GetCombined([]string{"e1"}, func(string) (geom.Box, bool) {
		t.Fatalf("expected cached read to skip the resolver")
		return geom.Box{}, false
	}, false)
	if !ok || cached != boxes["e1"] {
		t.Fatalf("expected forced refresh to repopulate the cache")
	}
}

func TestBoundsCacheInvalidateAll(t *testing.T) {
	cache := NewBoundsCache()
	resolve := staticResolver(map[string]geom.Box{"e1": {Width: 1, Height: 1}})
	if _, ok := cache.GetCombined([]string{"e1"}, resolve, false); !ok {
		t.Fatalf("expected combination to resolve")
	}
	cache.InvalidateAll()
	if len(cache.single) != 0 || len(cache.combined) != 0 || len(cache.members) != 0 {
		t.Fatalf("expected cache to be empty after InvalidateAll")
	}
}
