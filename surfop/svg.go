package surfop

import (
	"errors"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
	"github.com/soypat/volview"
	"github.com/soypat/volview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// WriteContoursSVG draws contours projected onto the plane as an SVG image of
// size×size pixels. The drawing is scaled to fit the contours' extent.
func WriteContoursSVG(w io.Writer, contours []Contour, plane volview.Plane, size int) error {
	if size <= 0 {
		return errors.New("svg size must be positive")
	}
	u := d3.Orthogonal(plane.Normal)
	v := r3.Cross(plane.Normal, u)
	project := func(p r3.Vec) (float64, float64) {
		d := r3.Sub(p, plane.Origin)
		return r3.Dot(d, u), r3.Dot(d, v)
	}
	minx, miny := math.Inf(1), math.Inf(1)
	maxx, maxy := math.Inf(-1), math.Inf(-1)
	for _, c := range contours {
		for _, p := range c.Points {
			x, y := project(p)
			minx, maxx = math.Min(minx, x), math.Max(maxx, x)
			miny, maxy = math.Min(miny, y), math.Max(maxy, y)
		}
	}
	canvas := svg.New(w)
	canvas.Start(size, size)
	canvas.Rect(0, 0, size, size, "fill:white")
	extent := math.Max(maxx-minx, maxy-miny)
	if extent > 0 && !math.IsInf(extent, 0) {
		const margin = 0.05
		scale := float64(size) * (1 - 2*margin) / extent
		off := float64(size) * margin
		for _, c := range contours {
			xs := make([]int, 0, len(c.Points)+1)
			ys := make([]int, 0, len(c.Points)+1)
			for _, p := range c.Points {
				x, y := project(p)
				xs = append(xs, int(math.Round(off+(x-minx)*scale)))
				// SVG y axis points down.
				ys = append(ys, size-int(math.Round(off+(y-miny)*scale)))
			}
			if c.Closed {
				xs, ys = append(xs, xs[0]), append(ys, ys[0])
			}
			canvas.Polyline(xs, ys, "fill:none;stroke:black;stroke-width:1")
		}
	}
	canvas.End()
	return nil
}
