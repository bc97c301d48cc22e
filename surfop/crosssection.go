// Package surfop implements operators that derive new surfaces from existing
// ones: planar cross sections swept into tubes, implicit function clipping and
// inter-surface distance fields. Operators never modify their input surfaces.
package surfop

import (
	"math"

	"github.com/soypat/volview"
	"github.com/soypat/volview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Contour is a polyline lying on a cutting plane offset by Value along the plane normal.
type Contour struct {
	Value  float64
	Points []r3.Vec
	// Closed is set when the last point connects back to the first.
	Closed bool
}

// TubeParams configures tube sweeping.
type TubeParams struct {
	// Sides is the number of vertices in the tube cross section. Values below 3 use 8.
	Sides int
}

const defaultSides = 8

// ContourValues returns count plane offsets evenly spaced in [rmin, rmax].
// A count of one returns rmin.
func ContourValues(count int, rmin, rmax float64) []float64 {
	if count < 1 {
		return nil
	}
	if count == 1 {
		return []float64{rmin}
	}
	values := make([]float64, count)
	step := (rmax - rmin) / float64(count-1)
	for i := range values {
		values[i] = rmin + float64(i)*step
	}
	values[count-1] = rmax
	return values
}

// CrossSectionTube cuts s with count planes parallel to plane, evenly spaced
// in [rmin, rmax] along the plane normal, and sweeps a tube of the given radius
// along each resulting contour.
func CrossSectionTube(s *volview.Surface, plane volview.Plane, count int, rmin, rmax, radius float64, params TubeParams) *volview.Surface {
	if count < 1 || !(radius > 0) {
		return &volview.Surface{}
	}
	contours := Contours(s, plane, ContourValues(count, rmin, rmax))
	return Tube(contours, radius, params)
}

// Contours intersects s with the planes n·(p-o) = v for every v in values.
// Segments are chained into polylines through the mesh edges they share.
// Vertices lying exactly on a plane are considered to be above it.
func Contours(s *volview.Surface, plane volview.Plane, values []float64) []Contour {
	if s.IsEmpty() {
		return nil
	}
	dist := make([]float64, len(s.Vertices))
	for i, v := range s.Vertices {
		dist[i] = plane.Evaluate(v)
	}
	var contours []Contour
	for _, value := range values {
		contours = append(contours, contoursAt(s, dist, value)...)
	}
	return contours
}

type edgeKey [2]int

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

func contoursAt(s *volview.Surface, dist []float64, value float64) []Contour {
	var segs [][2]edgeKey
	points := make(map[edgeKey]r3.Vec)
	for _, f := range s.Faces {
		var cut [2]edgeKey
		n := 0
		for e := 0; e < 3; e++ {
			a, b := f[e], f[(e+1)%3]
			da, db := dist[a]-value, dist[b]-value
			if (da >= 0) == (db >= 0) {
				continue
			}
			key := newEdgeKey(a, b)
			// A crossing on a mesh vertex is shared by every edge of the vertex.
			switch {
			case da == 0:
				key = edgeKey{a, a}
			case db == 0:
				key = edgeKey{b, b}
			}
			if _, ok := points[key]; !ok {
				points[key] = d3.Lerp(s.Vertices[a], s.Vertices[b], da/(da-db))
			}
			if n < 2 {
				cut[n] = key
			}
			n++
		}
		if n == 2 && cut[0] != cut[1] {
			segs = append(segs, cut)
		}
	}
	if len(segs) == 0 {
		return nil
	}
	adj := make(map[edgeKey][]int, len(points))
	for i, seg := range segs {
		adj[seg[0]] = append(adj[seg[0]], i)
		adj[seg[1]] = append(adj[seg[1]], i)
	}
	used := make([]bool, len(segs))
	var contours []Contour
	walk := func(start int, from edgeKey) {
		chain := []edgeKey{from}
		cur, seg := from, start
		for seg >= 0 {
			used[seg] = true
			next := segs[seg][0]
			if next == cur {
				next = segs[seg][1]
			}
			chain = append(chain, next)
			cur, seg = next, -1
			for _, cand := range adj[cur] {
				if !used[cand] {
					seg = cand
					break
				}
			}
		}
		c := Contour{Value: value}
		if len(chain) > 3 && chain[len(chain)-1] == chain[0] {
			c.Closed = true
			chain = chain[:len(chain)-1]
		}
		for _, key := range chain {
			p := points[key]
			if len(c.Points) > 0 && c.Points[len(c.Points)-1] == p {
				continue
			}
			c.Points = append(c.Points, p)
		}
		if c.Closed && len(c.Points) > 1 && c.Points[0] == c.Points[len(c.Points)-1] {
			c.Points = c.Points[:len(c.Points)-1]
		}
		if len(c.Points) >= 2 {
			contours = append(contours, c)
		}
	}
	// Open chains start at an edge used by a single segment.
	for i, seg := range segs {
		if used[i] {
			continue
		}
		for _, end := range seg {
			if len(adj[end]) == 1 {
				walk(i, end)
				break
			}
		}
	}
	for i, seg := range segs {
		if !used[i] {
			walk(i, seg[0])
		}
	}
	return contours
}

// Tube sweeps a circular profile of the given radius along each contour using
// parallel transport frames. Open contours are not capped. Vertex scalars are
// set to the contour value.
func Tube(contours []Contour, radius float64, params TubeParams) *volview.Surface {
	out := &volview.Surface{}
	if !(radius > 0) {
		return out
	}
	sides := params.Sides
	if sides < 3 {
		sides = defaultSides
	}
	for _, c := range contours {
		if len(c.Points) < 2 {
			continue
		}
		tubeContour(out, c, radius, sides)
	}
	if len(out.Faces) == 0 {
		return &volview.Surface{}
	}
	return out
}

func tubeContour(out *volview.Surface, c Contour, radius float64, sides int) {
	n := len(c.Points)
	closed := c.Closed && n >= 3
	tangents := make([]r3.Vec, n)
	for i := range c.Points {
		prev, next := i-1, i+1
		switch {
		case closed:
			prev, next = (i+n-1)%n, (i+1)%n
		case i == 0:
			prev = 0
		case i == n-1:
			next = n - 1
		}
		t := r3.Sub(c.Points[next], c.Points[prev])
		if r3.Norm2(t) == 0 {
			t = r3.Vec{Z: 1}
			if i > 0 {
				t = tangents[i-1]
			}
		}
		tangents[i] = r3.Unit(t)
	}
	base := len(out.Vertices)
	normal := d3.Orthogonal(tangents[0])
	for i, p := range c.Points {
		t := tangents[i]
		if i > 0 {
			normal = transport(normal, tangents[i-1], t)
		}
		binormal := r3.Cross(t, normal)
		for k := 0; k < sides; k++ {
			theta := 2 * math.Pi * float64(k) / float64(sides)
			dir := r3.Add(r3.Scale(math.Cos(theta), normal), r3.Scale(math.Sin(theta), binormal))
			dir = r3.Unit(dir)
			out.Vertices = append(out.Vertices, r3.Add(p, r3.Scale(radius, dir)))
			out.Normals = append(out.Normals, dir)
			out.Scalars = append(out.Scalars, c.Value)
		}
	}
	rings := n - 1
	if closed {
		rings = n
	}
	for i := 0; i < rings; i++ {
		r0 := base + i*sides
		r1 := base + ((i+1)%n)*sides
		for k := 0; k < sides; k++ {
			k1 := (k + 1) % sides
			out.Faces = append(out.Faces,
				[3]int{r0 + k, r0 + k1, r1 + k1},
				[3]int{r0 + k, r1 + k1, r1 + k},
			)
		}
	}
}

// transport rotates the frame normal n by the rotation taking tangent t0 to t1
// and reorthogonalizes it against t1.
func transport(n, t0, t1 r3.Vec) r3.Vec {
	axis := r3.Cross(t0, t1)
	if s := r3.Norm(axis); s > 1e-12 {
		angle := math.Atan2(s, r3.Dot(t0, t1))
		n = r3.NewRotation(angle, r3.Unit(axis)).Rotate(n)
	}
	n = r3.Sub(n, r3.Scale(r3.Dot(n, t1), t1))
	if r3.Norm2(n) == 0 {
		return d3.Orthogonal(t1)
	}
	return r3.Unit(n)
}
