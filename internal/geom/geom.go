// Package geom provides the axis-aligned rectangle math shared by the
// selection engine's spatial structures and the wire protocol.
package geom

// Box describes an axis-aligned bounding box in screen-space units.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MaxX returns the right edge of the box.
func (b Box) MaxX() float64 {
	return b.X + b.Width
}

// MaxY returns the bottom edge of the box.
func (b Box) MaxY() float64 {
	return b.Y + b.Height
}

// Empty reports whether the box has no positive extent.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Intersects reports whether the two boxes overlap. Touching edges count
// as an intersection.
func (b Box) Intersects(o Box) bool {
	return b.X <= o.MaxX() && o.X <= b.MaxX() && b.Y <= o.MaxY() && o.Y <= b.MaxY()
}

// Union returns the smallest box covering both inputs. Empty boxes do not
// contribute.
func (b Box) Union(o Box) Box {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	minX := b.X
	if o.X < minX {
		minX = o.X
	}
	minY := b.Y
	if o.Y < minY {
		minY = o.Y
	}
	maxX := b.MaxX()
	if o.MaxX() > maxX {
		maxX = o.MaxX()
	}
	maxY := b.MaxY()
	if o.MaxY() > maxY {
		maxY = o.MaxY()
	}
	return Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Pad grows the box by margin on every side. A non-positive margin returns
// the box unchanged.
func (b Box) Pad(margin float64) Box {
	if margin <= 0 {
		return b
	}
	return Box{
		X:      b.X - margin,
		Y:      b.Y - margin,
		Width:  b.Width + 2*margin,
		Height: b.Height + 2*margin,
	}
}
