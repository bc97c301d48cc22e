package surfop

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/soypat/volview"
	"github.com/soypat/volview/internal/d3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// R-tree node occupancy.
const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
)

// DistanceField returns a copy of target whose per-vertex scalars are the
// unsigned minimum distance from each vertex to the triangles of ref, along with
// the range of those distances. If ref has no faces the distance to its vertices
// is used instead. An empty ref or target yields an empty surface and zero range.
func DistanceField(ref, target *volview.Surface) (*volview.Surface, volview.Range) {
	if ref == nil || len(ref.Vertices) == 0 || target.IsEmpty() {
		return &volview.Surface{}, volview.Range{}
	}
	q := newDistanceQuery(ref)
	out := target.Clone()
	out.Scalars = make([]float64, len(out.Vertices))
	for i, p := range out.Vertices {
		out.Scalars[i] = q.distance(p)
	}
	return out, out.ScalarRange()
}

// distanceQuery answers point to surface distance queries. A kd-tree over the
// reference vertices gives an upper bound on the distance which limits the
// R-tree search for candidate triangles.
type distanceQuery struct {
	ref   *volview.Surface
	verts *kdtree.Tree
	tris  *rtreego.Rtree
	pad   float64
}

type triangleBounds struct {
	face int
	rect rtreego.Rect
}

func (t triangleBounds) Bounds() rtreego.Rect { return t.rect }

func newDistanceQuery(ref *volview.Surface) *distanceQuery {
	size := r3.Norm(d3.Box(ref.Bounds()).Size())
	q := &distanceQuery{ref: ref, pad: 1e-9*size + 1e-12}
	// Only vertices referenced by a face can bound the triangle search.
	used := make([]bool, len(ref.Vertices))
	for _, f := range ref.Faces {
		used[f[0]], used[f[1]], used[f[2]] = true, true, true
	}
	var pts kdtree.Points
	for i, v := range ref.Vertices {
		if len(ref.Faces) == 0 || used[i] {
			pts = append(pts, kdtree.Point{v.X, v.Y, v.Z})
		}
	}
	q.verts = kdtree.New(pts, false)
	if len(ref.Faces) == 0 {
		return q
	}
	objs := make([]rtreego.Spatial, len(ref.Faces))
	for i := range ref.Faces {
		bb := ref.Triangle(i).Bounds()
		objs[i] = triangleBounds{face: i, rect: q.rect(bb.Min, bb.Max)}
	}
	q.tris = rtreego.NewTree(3, rtreeMinChildren, rtreeMaxChildren, objs...)
	return q
}

// rect returns the R-tree rectangle spanning min and max padded so it has
// positive volume. Touching rectangles do not intersect in rtreego.
func (q *distanceQuery) rect(min, max r3.Vec) rtreego.Rect {
	p := q.pad
	r, err := rtreego.NewRectFromPoints(
		rtreego.Point{min.X - p, min.Y - p, min.Z - p},
		rtreego.Point{max.X + p, max.Y + p, max.Z + p},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (q *distanceQuery) distance(p r3.Vec) float64 {
	_, d2 := q.verts.Nearest(kdtree.Point{p.X, p.Y, p.Z})
	bound := math.Sqrt(d2)
	if q.tris == nil || bound == 0 {
		return bound
	}
	half := r3.Vec{X: bound, Y: bound, Z: bound}
	best := bound
	for _, obj := range q.tris.SearchIntersect(q.rect(r3.Sub(p, half), r3.Add(p, half))) {
		tri := q.ref.Triangle(obj.(triangleBounds).face)
		if d := r3.Norm(r3.Sub(p, tri.Closest(p))); d < best {
			best = d
		}
	}
	return best
}

// Stats summarizes scalar values of a surface.
type Stats struct {
	N            int
	Min, Max     float64
	Mean, StdDev float64
	Median, P95  float64
}

// ScalarStats returns summary statistics of the surface scalars. A surface
// without scalars returns the zero Stats.
func ScalarStats(s *volview.Surface) Stats {
	if s == nil || len(s.Scalars) == 0 {
		return Stats{}
	}
	x := append([]float64(nil), s.Scalars...)
	sort.Float64s(x)
	mean, std := stat.MeanStdDev(x, nil)
	if len(x) == 1 {
		std = 0
	}
	return Stats{
		N:      len(x),
		Min:    floats.Min(x),
		Max:    floats.Max(x),
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, x, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, x, nil),
	}
}
