// Package render converts scalar fields into triangle meshes and writes
// meshes out as STL files.
package render

import (
	"math"

	"github.com/soypat/volview"
	"github.com/soypat/volview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// cubeCorners are the lattice offsets of a cell's corners.
var cubeCorners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// cubeTetrahedra decomposes a cell into six tetrahedra sharing the 0-6 diagonal.
// Using the same diagonal on every cell makes shared faces conform.
var cubeTetrahedra = [6][4]int{
	{0, 1, 2, 6}, {0, 2, 3, 6}, {0, 3, 7, 6},
	{0, 7, 4, 6}, {0, 4, 5, 6}, {0, 5, 1, 6},
}

// Extract returns the triangulated level set of g where the field equals iso.
// Triangles face towards decreasing field values. An iso value outside of the
// grid's sample range yields an empty surface.
func Extract(g *volview.Grid, iso float64) *volview.Surface {
	if g == nil {
		panic("nil grid")
	}
	lo, hi := g.Range()
	if math.IsNaN(iso) || iso < lo || iso > hi {
		return &volview.Surface{}
	}
	nx, ny, nz := g.Dims()
	ex := extraction{
		g:     g,
		iso:   iso,
		edges: make(map[[2]int]int),
		surf:  &volview.Surface{},
	}
	var (
		ids  [8]int
		vals [8]float64
	)
	for k := 0; k < nz-1; k++ {
		for j := 0; j < ny-1; j++ {
			for i := 0; i < nx-1; i++ {
				above := 0
				for c, off := range cubeCorners {
					ids[c] = g.Index(i+off[0], j+off[1], k+off[2])
					vals[c] = ex.value(ids[c])
					if vals[c] >= iso {
						above++
					}
				}
				if above == 0 || above == 8 {
					continue // Cell does not straddle the level set.
				}
				for _, tet := range cubeTetrahedra {
					ex.tetrahedron([4]int{ids[tet[0]], ids[tet[1]], ids[tet[2]], ids[tet[3]]},
						[4]float64{vals[tet[0]], vals[tet[1]], vals[tet[2]], vals[tet[3]]})
				}
			}
		}
	}
	ex.fixNormals()
	return ex.surf
}

type extraction struct {
	g   *volview.Grid
	iso float64
	// edges maps a lattice edge (lower id first) to the vertex generated on it.
	// Vertices on a lattice corner c are keyed {c, c}.
	edges map[[2]int]int
	surf  *volview.Surface
	// unnormed are vertices whose gradient vanished.
	unnormed []int
}

func (ex *extraction) value(id int) float64 {
	i, j, k := ex.coords(id)
	return ex.g.At(i, j, k)
}

func (ex *extraction) coords(id int) (i, j, k int) {
	nx, ny, _ := ex.g.Dims()
	i = id % nx
	j = (id / nx) % ny
	k = id / (nx * ny)
	return i, j, k
}

func (ex *extraction) position(id int) r3.Vec {
	i, j, k := ex.coords(id)
	return ex.g.Position(i, j, k)
}

func (ex *extraction) gradient(id int) r3.Vec {
	i, j, k := ex.coords(id)
	return ex.g.Gradient(i, j, k)
}

// tetrahedron emits the triangles of the level set within a single tetrahedron.
func (ex *extraction) tetrahedron(ids [4]int, vals [4]float64) {
	var pos, neg [4]int
	np, nn := 0, 0
	for i, v := range vals {
		if v >= ex.iso {
			pos[np] = i
			np++
		} else {
			neg[nn] = i
			nn++
		}
	}
	edge := func(a, b int) int { return ex.edgeVertex(ids[a], ids[b], vals[a], vals[b]) }
	// dir points from the low side to the high side of the field.
	var dir r3.Vec
	for _, p := range pos[:np] {
		dir = r3.Add(dir, r3.Scale(1/float64(np), ex.position(ids[p])))
	}
	for _, n := range neg[:nn] {
		dir = r3.Sub(dir, r3.Scale(1/float64(nn), ex.position(ids[n])))
	}
	switch np {
	case 1:
		a := pos[0]
		ex.triangle(dir, edge(a, neg[0]), edge(a, neg[1]), edge(a, neg[2]))
	case 3:
		a := neg[0]
		ex.triangle(dir, edge(a, pos[0]), edge(a, pos[1]), edge(a, pos[2]))
	case 2:
		a, b := pos[0], pos[1]
		c, d := neg[0], neg[1]
		ac, ad, bd, bc := edge(a, c), edge(a, d), edge(b, d), edge(b, c)
		ex.triangle(dir, ac, ad, bd)
		ex.triangle(dir, ac, bd, bc)
	}
}

// edgeVertex returns the index of the level set vertex on lattice edge (a,b),
// creating it on first use.
func (ex *extraction) edgeVertex(a, b int, va, vb float64) int {
	if a > b {
		a, b = b, a
		va, vb = vb, va
	}
	key := [2]int{a, b}
	t := (ex.iso - va) / (vb - va)
	// A level set vertex on a lattice corner is shared by every edge of the corner.
	switch {
	case va == ex.iso:
		key, t = [2]int{a, a}, 0
	case vb == ex.iso:
		key, t = [2]int{b, b}, 1
	}
	if idx, ok := ex.edges[key]; ok {
		return idx
	}
	p := d3.Lerp(ex.position(a), ex.position(b), t)
	grad := d3.Lerp(ex.gradient(a), ex.gradient(b), t)
	idx := len(ex.surf.Vertices)
	ex.surf.Vertices = append(ex.surf.Vertices, p)
	if r3.Norm2(grad) == 0 {
		ex.unnormed = append(ex.unnormed, idx)
		ex.surf.Normals = append(ex.surf.Normals, r3.Vec{})
	} else {
		ex.surf.Normals = append(ex.surf.Normals, r3.Unit(r3.Scale(-1, grad)))
	}
	ex.edges[key] = idx
	return idx
}

// triangle appends a face oriented so its normal opposes dir. Degenerate faces are dropped.
func (ex *extraction) triangle(dir r3.Vec, a, b, c int) {
	if a == b || b == c || c == a {
		return
	}
	v := ex.surf.Vertices
	n := d3.Triangle{v[a], v[b], v[c]}.AreaNormal()
	if r3.Norm2(n) == 0 {
		return
	}
	if r3.Dot(n, dir) > 0 {
		b, c = c, b
	}
	ex.surf.Faces = append(ex.surf.Faces, [3]int{a, b, c})
}

func (ex *extraction) fixNormals() {
	if len(ex.unnormed) == 0 {
		return
	}
	fallback := ex.surf.FaceNormals()
	for _, idx := range ex.unnormed {
		ex.surf.Normals[idx] = fallback[idx]
	}
}
