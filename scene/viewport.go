package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/soypat/volview"
	"github.com/soypat/volview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Rect is a region of the window in normalized coordinates with the origin at
// the bottom left corner.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Validate checks 0 ≤ X0 < X1 ≤ 1 and 0 ≤ Y0 < Y1 ≤ 1.
func (r Rect) Validate() error {
	if !(r.X0 >= 0 && r.X0 < r.X1 && r.X1 <= 1) || !(r.Y0 >= 0 && r.Y0 < r.Y1 && r.Y1 <= 1) {
		return fmt.Errorf("invalid viewport rect %v", r)
	}
	return nil
}

// Area returns the normalized area of r.
func (r Rect) Area() float64 { return (r.X1 - r.X0) * (r.Y1 - r.Y0) }

// Overlaps reports whether r and o share a region of positive area.
func (r Rect) Overlaps(o Rect) bool {
	return math.Min(r.X1, o.X1) > math.Max(r.X0, o.X0) &&
		math.Min(r.Y1, o.Y1) > math.Max(r.Y0, o.Y0)
}

// Item is a named surface with its material.
type Item struct {
	Name     string
	Surface  *volview.Surface
	Material Material
}

// Viewport is a window region showing items through a camera.
type Viewport struct {
	Rect       Rect
	Background colorful.Color
	Items      []Item
	// Camera is shared with the other viewports of a scene.
	Camera *Camera
}

// Compose returns a viewport drawing items in rect through cam. The items
// slice is copied; surfaces are shared. Empty surfaces are accepted and draw
// nothing.
func Compose(items []Item, rect Rect, cam *Camera, bg colorful.Color) (*Viewport, error) {
	if cam == nil {
		return nil, errors.New("nil camera")
	}
	if err := rect.Validate(); err != nil {
		return nil, err
	}
	for i, it := range items {
		if it.Surface == nil {
			return nil, fmt.Errorf("item %d %q has nil surface", i, it.Name)
		}
	}
	return &Viewport{
		Rect:       rect,
		Background: bg,
		Items:      append([]Item(nil), items...),
		Camera:     cam,
	}, nil
}

// Quadrants returns the rects of a 2×2 layout ordered top-left, top-right,
// bottom-left, bottom-right.
func Quadrants() [4]Rect {
	return [4]Rect{
		{X0: 0, Y0: 0.5, X1: 0.5, Y1: 1},
		{X0: 0.5, Y0: 0.5, X1: 1, Y1: 1},
		{X0: 0, Y0: 0, X1: 0.5, Y1: 0.5},
		{X0: 0.5, Y0: 0, X1: 1, Y1: 0.5},
	}
}

// CoversUnitSquare reports whether rects tile the unit square exactly: every
// rect is valid, no two overlap and their areas sum to one.
func CoversUnitSquare(rects []Rect) bool {
	const tol = 1e-12
	area := 0.0
	for i, r := range rects {
		if r.Validate() != nil {
			return false
		}
		for _, o := range rects[i+1:] {
			if r.Overlaps(o) {
				return false
			}
		}
		area += r.Area()
	}
	return math.Abs(area-1) < tol
}

// Scene is a set of non overlapping viewports sharing one camera.
type Scene struct {
	Camera    *Camera
	Viewports []*Viewport
}

// NewScene validates that viewports do not overlap and all use cam.
func NewScene(cam *Camera, viewports ...*Viewport) (*Scene, error) {
	if cam == nil {
		return nil, errors.New("nil camera")
	}
	for i, vp := range viewports {
		if vp == nil {
			return nil, fmt.Errorf("viewport %d is nil", i)
		}
		if vp.Camera != cam {
			return nil, fmt.Errorf("viewport %d does not share the scene camera", i)
		}
		for j, o := range viewports[:i] {
			if vp.Rect.Overlaps(o.Rect) {
				return nil, fmt.Errorf("viewports %d and %d overlap", j, i)
			}
		}
	}
	return &Scene{Camera: cam, Viewports: append([]*Viewport(nil), viewports...)}, nil
}

// Rects returns the rects of the scene's viewports.
func (s *Scene) Rects() []Rect {
	rects := make([]Rect, len(s.Viewports))
	for i, vp := range s.Viewports {
		rects[i] = vp.Rect
	}
	return rects
}

// Bounds returns the box enclosing every non empty, visible surface of the
// scene. ok is false when there is none.
func (s *Scene) Bounds() (bb r3.Box, ok bool) {
	for _, vp := range s.Viewports {
		for _, it := range vp.Items {
			if it.Material.Hidden || it.Surface.IsEmpty() {
				continue
			}
			b := it.Surface.Bounds()
			if ok {
				b = r3.Box(d3.Box(b).Extend(d3.Box(bb)))
			}
			bb, ok = b, true
		}
	}
	return bb, ok
}
