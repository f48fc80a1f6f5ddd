package selection

import (
	"sort"
	"strings"

	"driftboard/server/internal/geom"
)

// BoundsCache memoizes per-element boxes and the combined bounding box of
// element sets. Combined entries are keyed by the sorted, deduplicated id
// list, so any permutation of the same set hits the same entry.
type BoundsCache struct {
	single   map[string]geom.Box
	combined map[string]geom.Box
	// members maps an element id to the combined keys that include it, so
	// invalidating one element drops every combined box it contributed to.
	members map[string]map[string]struct{}
}

func NewBoundsCache() *BoundsCache {
	return &BoundsCache{
		single:   make(map[string]geom.Box),
		combined: make(map[string]geom.Box),
		members:  make(map[string]map[string]struct{}),
	}
}

// Get returns the cached box for a single element, if present.
func (c *BoundsCache) Get(id string) (geom.Box, bool) {
	if c == nil || id == "" {
		return geom.Box{}, false
	}
	box, ok := c.single[id]
	return box, ok
}

// Resolve returns the box for a single element, consulting the resolver on
// a cache miss and memoizing the result.
func (c *BoundsCache) Resolve(id string, resolve BoundsResolver) (geom.Box, bool) {
	if c == nil || id == "" {
		return geom.Box{}, false
	}
	if box, ok := c.single[id]; ok {
		return box, true
	}
	if resolve == nil {
		return geom.Box{}, false
	}
	box, ok := resolve(id)
	if !ok {
		return geom.Box{}, false
	}
	c.single[id] = box
	return box, true
}

// GetCombined returns the union bounding box of every resolvable member.
// Unresolvable ids are skipped; only a set with no resolvable members
// reports no box. forceRefresh bypasses the cache but still repopulates it.
func (c *BoundsCache) GetCombined(ids []string, resolve BoundsResolver, forceRefresh bool) (geom.Box, bool) {
	if c == nil || len(ids) == 0 {
		return geom.Box{}, false
	}
	canonical := canonicalIDs(ids)
	key := strings.Join(canonical, "|")
	if !forceRefresh {
		if box, ok := c.combined[key]; ok {
			return box, true
		}
	}

	var union geom.Box
	resolved := false
	for _, id := range canonical {
		var box geom.Box
		var ok bool
		if forceRefresh {
			// A forced refresh must not trust memoized member boxes
			// either; re-resolve and replace them.
			if resolve != nil {
				box, ok = resolve(id)
			}
			if ok {
				c.single[id] = box
			} else {
				delete(c.single, id)
			}
		} else {
			box, ok = c.Resolve(id, resolve)
		}
		if !ok {
			continue
		}
		union = union.Union(box)
		resolved = true
	}
	if !resolved {
		return geom.Box{}, false
	}

	c.combined[key] = union
	for _, id := range canonical {
		set, ok := c.members[id]
		if !ok {
			set = make(map[string]struct{})
			c.members[id] = set
		}
		set[key] = struct{}{}
	}
	return union, true
}

// Invalidate drops the element's cached box and every combined entry it
// contributed to.
func (c *BoundsCache) Invalidate(id string) {
	if c == nil || id == "" {
		return
	}
	delete(c.single, id)
	for key := range c.members[id] {
		delete(c.combined, key)
	}
	delete(c.members, id)
}

// InvalidateAll resets the cache.
func (c *BoundsCache) InvalidateAll() {
	if c == nil {
		return
	}
	c.single = make(map[string]geom.Box)
	c.combined = make(map[string]geom.Box)
	c.members = make(map[string]map[string]struct{})
}

// canonicalIDs sorts and deduplicates ids, dropping empties.
func canonicalIDs(ids []string) []string {
	canonical := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		canonical = append(canonical, id)
	}
	sort.Strings(canonical)
	return canonical
}
