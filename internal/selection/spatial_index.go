package selection

import (
	"math"
	"sort"

	"driftboard/server/internal/geom"
)

type cellKey struct {
	X int
	Y int
}

type spatialEntry struct {
	box   geom.Box
	cells []cellKey
}

// SpatialIndex is a uniform grid over screen-space bounding boxes. Region
// queries cost O(region-area-in-cells + matches), independent of the total
// entry count. Grid membership is a coarse prefilter; every candidate is
// re-checked against the true rectangle intersection.
type SpatialIndex struct {
	cellSize    float64
	invCellSize float64
	cells       map[cellKey][]string
	entries     map[string]*spatialEntry
}

// SpatialStats reports the index occupancy.
type SpatialStats struct {
	EntryCount int `json:"entryCount"`
	CellCount  int `json:"cellCount"`
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = defaultGridCellSize
	}
	return &SpatialIndex{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cells:       make(map[cellKey][]string),
		entries:     make(map[string]*spatialEntry),
	}
}

// Insert registers the box under id, first clearing any previous placement
// so a moved entry never leaves stale cell references behind.
func (idx *SpatialIndex) Insert(id string, box geom.Box) {
	if idx == nil || id == "" {
		return
	}
	if entry, ok := idx.entries[id]; ok {
		idx.removeFromCells(id, entry.cells)
	}
	cells := idx.cellsForBox(box)
	idx.entries[id] = &spatialEntry{box: box, cells: cells}
	for _, cell := range cells {
		idx.cells[cell] = append(idx.cells[cell], id)
	}
}

// Remove clears the entry from every cell recorded at insertion time.
func (idx *SpatialIndex) Remove(id string) {
	if idx == nil || id == "" {
		return
	}
	entry, ok := idx.entries[id]
	if !ok {
		return
	}
	idx.removeFromCells(id, entry.cells)
	delete(idx.entries, id)
}

// Has reports whether the id is currently indexed.
func (idx *SpatialIndex) Has(id string) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.entries[id]
	return ok
}

// QueryRegion returns the ids of all entries whose box intersects the
// region, sorted for deterministic output.
func (idx *SpatialIndex) QueryRegion(region geom.Box) []string {
	if idx == nil || len(idx.entries) == 0 {
		return nil
	}
	minX := idx.coordToCell(region.X)
	minY := idx.coordToCell(region.Y)
	maxX := idx.coordToCell(region.MaxX())
	maxY := idx.coordToCell(region.MaxY())

	// When the region spans more cells than are populated, walking the
	// populated cells is cheaper than walking the region.
	spanned := (maxX - minX + 1) * (maxY - minY + 1)
	if spanned > len(idx.cells) {
		matches := make([]string, 0)
		for id, entry := range idx.entries {
			if entry.box.Intersects(region) {
				matches = append(matches, id)
			}
		}
		sort.Strings(matches)
		return matches
	}

	seen := make(map[string]struct{})
	matches := make([]string, 0)
	for row := minY; row <= maxY; row++ {
		for col := minX; col <= maxX; col++ {
			for _, id := range idx.cells[cellKey{X: col, Y: row}] {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				entry := idx.entries[id]
				if entry == nil || !entry.box.Intersects(region) {
					continue
				}
				matches = append(matches, id)
			}
		}
	}
	sort.Strings(matches)
	return matches
}

// Clear drops every entry and cell.
func (idx *SpatialIndex) Clear() {
	if idx == nil {
		return
	}
	idx.cells = make(map[cellKey][]string)
	idx.entries = make(map[string]*spatialEntry)
}

func (idx *SpatialIndex) Stats() SpatialStats {
	if idx == nil {
		return SpatialStats{}
	}
	return SpatialStats{EntryCount: len(idx.entries), CellCount: len(idx.cells)}
}

func (idx *SpatialIndex) removeFromCells(id string, cells []cellKey) {
	for _, cell := range cells {
		bucket := idx.cells[cell]
		if len(bucket) == 0 {
			continue
		}
		for i := range bucket {
			if bucket[i] != id {
				continue
			}
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			break
		}
		if len(bucket) == 0 {
			delete(idx.cells, cell)
		} else {
			idx.cells[cell] = bucket
		}
	}
}

func (idx *SpatialIndex) cellsForBox(box geom.Box) []cellKey {
	width := box.Width
	if width < 0 {
		width = 0
	}
	height := box.Height
	if height < 0 {
		height = 0
	}
	minX := idx.coordToCell(box.X)
	minY := idx.coordToCell(box.Y)
	maxX := idx.coordToCell(box.X + width)
	maxY := idx.coordToCell(box.Y + height)
	cells := make([]cellKey, 0, (maxX-minX+1)*(maxY-minY+1))
	for row := minY; row <= maxY; row++ {
		for col := minX; col <= maxX; col++ {
			cells = append(cells, cellKey{X: col, Y: row})
		}
	}
	return cells
}

func (idx *SpatialIndex) coordToCell(value float64) int {
	return int(math.Floor(value * idx.invCellSize))
}
