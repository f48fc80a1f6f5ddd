package selection

import (
	"time"

	"driftboard/server/internal/geom"
)

// VisibleSelection is the render-ready projection of a selection whose
// combined bounds intersect the padded viewport.
type VisibleSelection struct {
	UserID      string   `json:"userId"`
	DisplayName string   `json:"displayName"`
	Color       string   `json:"color"`
	ElementIDs  []string `json:"elementIds"`
	Bounds      geom.Box `json:"bounds"`
	Opacity     float64  `json:"opacity"`
	Style       string   `json:"style"`
	Animate     bool     `json:"animate"`
}

// VisibleConflict is the render-ready projection of a contested element
// inside the padded viewport.
type VisibleConflict struct {
	ID         string         `json:"id"`
	ElementID  string         `json:"elementId"`
	Contenders []Contender    `json:"contenders"`
	Mode       ResolutionMode `json:"mode"`
	Bounds     geom.Box       `json:"bounds"`
}

// VisibleOwnership is the render-ready projection of a live lock inside the
// padded viewport.
type VisibleOwnership struct {
	ElementID       string     `json:"elementId"`
	OwnerID         string     `json:"ownerId"`
	Reason          LockReason `json:"reason"`
	Locked          bool       `json:"locked"`
	RemainingMillis int64      `json:"remainingMs"`
	Bounds          geom.Box   `json:"bounds"`
}

// ViewportCuller composes the spatial index and bounds cache to reduce
// selections, conflicts, and ownerships to the subset worth rendering. A
// fixed padding margin keeps elements just outside the viewport indexed so
// fast pans do not pop.
type ViewportCuller struct {
	index   *SpatialIndex
	cache   *BoundsCache
	padding float64
	hints   RenderHints
}

func NewViewportCuller(index *SpatialIndex, cache *BoundsCache, padding float64, hints RenderHints) *ViewportCuller {
	return &ViewportCuller{index: index, cache: cache, padding: padding, hints: hints}
}

// VisibleSelections filters the already priority-sorted input to records
// whose bounds intersect the padded viewport, then truncates to maxVisible.
// Truncation never reorders, so which records drop is deterministic. A
// selection whose bounds cannot be resolved at all is excluded, never an
// error.
func (c *ViewportCuller) VisibleSelections(all []SelectionRecord, viewport geom.Box, maxVisible int, resolve BoundsResolver) []VisibleSelection {
	if c == nil || len(all) == 0 {
		return nil
	}
	padded := viewport.Pad(c.padding)
	visible := make([]VisibleSelection, 0, len(all))
	for _, rec := range all {
		if maxVisible > 0 && len(visible) >= maxVisible {
			break
		}
		var bounds geom.Box
		if rec.ExplicitBounds != nil {
			bounds = *rec.ExplicitBounds
		} else {
			combined, ok := c.cache.GetCombined(rec.ElementIDs, resolve, false)
			if !ok {
				continue
			}
			bounds = combined
		}
		if !bounds.Intersects(padded) {
			continue
		}
		visible = append(visible, VisibleSelection{
			UserID:      rec.UserID,
			DisplayName: rec.DisplayName,
			Color:       rec.Color,
			ElementIDs:  append([]string(nil), rec.ElementIDs...),
			Bounds:      bounds,
			Opacity:     c.hints.Opacity,
			Style:       c.hints.Style,
			Animate:     c.hints.Animate,
		})
	}
	return visible
}

// VisibleConflicts filters conflicts to contested elements inside the
// padded viewport.
func (c *ViewportCuller) VisibleConflicts(conflicts []ConflictRecord, viewport geom.Box, maxVisible int, resolve BoundsResolver) []VisibleConflict {
	if c == nil || len(conflicts) == 0 {
		return nil
	}
	padded := viewport.Pad(c.padding)
	candidates := c.candidateSet(padded)
	visible := make([]VisibleConflict, 0, len(conflicts))
	for _, conflict := range conflicts {
		if maxVisible > 0 && len(visible) >= maxVisible {
			break
		}
		bounds, ok := c.elementVisible(conflict.ElementID, padded, candidates, resolve)
		if !ok {
			continue
		}
		visible = append(visible, VisibleConflict{
			ID:         conflict.ID,
			ElementID:  conflict.ElementID,
			Contenders: append([]Contender(nil), conflict.Contenders...),
			Mode:       conflict.Mode,
			Bounds:     bounds,
		})
	}
	return visible
}

// VisibleOwnerships filters live locks to elements inside the padded
// viewport.
func (c *ViewportCuller) VisibleOwnerships(records []OwnershipRecord, viewport geom.Box, maxVisible int, resolve BoundsResolver, now time.Time) []VisibleOwnership {
	if c == nil || len(records) == 0 {
		return nil
	}
	padded := viewport.Pad(c.padding)
	candidates := c.candidateSet(padded)
	visible := make([]VisibleOwnership, 0, len(records))
	for _, rec := range records {
		if maxVisible > 0 && len(visible) >= maxVisible {
			break
		}
		bounds, ok := c.elementVisible(rec.ElementID, padded, candidates, resolve)
		if !ok {
			continue
		}
		visible = append(visible, VisibleOwnership{
			ElementID:       rec.ElementID,
			OwnerID:         rec.OwnerID,
			Reason:          rec.Reason,
			Locked:          rec.Locked,
			RemainingMillis: rec.Remaining(now).Milliseconds(),
			Bounds:          bounds,
		})
	}
	return visible
}

func (c *ViewportCuller) candidateSet(padded geom.Box) map[string]struct{} {
	ids := c.index.QueryRegion(padded)
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// elementVisible reports whether the element lies inside the padded
// viewport, preferring the grid index and falling back to the resolver for
// unindexed elements. Unresolvable elements are excluded.
func (c *ViewportCuller) elementVisible(elementID string, padded geom.Box, candidates map[string]struct{}, resolve BoundsResolver) (geom.Box, bool) {
	if c.index.Has(elementID) {
		if _, ok := candidates[elementID]; !ok {
			return geom.Box{}, false
		}
		box, ok := c.cache.Resolve(elementID, resolve)
		if !ok {
			return geom.Box{}, false
		}
		return box, true
	}
	box, ok := c.cache.Resolve(elementID, resolve)
	if !ok || !box.Intersects(padded) {
		return geom.Box{}, false
	}
	return box, true
}
