package volview

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/volview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// normalTol is the tolerance used when checking normals are unit length.
const normalTol = 1e-6

// Surface is an indexed triangle mesh with optional per-vertex normals and scalars.
// Operators in this module never modify a Surface in place; they always return
// a new one.
type Surface struct {
	Vertices []r3.Vec
	// Normals is nil or has the same length as Vertices.
	Normals []r3.Vec
	// Faces index into Vertices.
	Faces [][3]int
	// Scalars is nil or has the same length as Vertices.
	Scalars []float64
}

// Range is a closed scalar interval [Min, Max].
type Range struct {
	Min, Max float64
}

// IsEmpty returns true if the surface has no faces.
func (s *Surface) IsEmpty() bool {
	return s == nil || len(s.Faces) == 0
}

// Validate checks the surface invariants: face indices in range, attribute
// lengths matching the vertex count and unit length normals.
func (s *Surface) Validate() error {
	if s == nil {
		return errors.New("nil surface")
	}
	nv := len(s.Vertices)
	if s.Normals != nil && len(s.Normals) != nv {
		return fmt.Errorf("got %d normals for %d vertices", len(s.Normals), nv)
	}
	if s.Scalars != nil && len(s.Scalars) != nv {
		return fmt.Errorf("got %d scalars for %d vertices", len(s.Scalars), nv)
	}
	for i, f := range s.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= nv {
				return fmt.Errorf("face %d index %d out of range [0,%d)", i, idx, nv)
			}
		}
	}
	for i, n := range s.Normals {
		if !(math.Abs(r3.Norm(n)-1) <= normalTol) {
			return fmt.Errorf("normal %d not unit length: %v", i, n)
		}
	}
	return nil
}

// Triangle returns the vertex positions of face i.
func (s *Surface) Triangle(i int) d3.Triangle {
	f := s.Faces[i]
	return d3.Triangle{s.Vertices[f[0]], s.Vertices[f[1]], s.Vertices[f[2]]}
}

// Bounds returns the bounding box of the surface vertices. An empty
// surface returns the zero box.
func (s *Surface) Bounds() r3.Box {
	if s == nil || len(s.Vertices) == 0 {
		return r3.Box{}
	}
	return r3.Box{Min: d3.Set(s.Vertices).Min(), Max: d3.Set(s.Vertices).Max()}
}

// ScalarRange returns the range of the per-vertex scalars. Surfaces without
// scalars return the zero range.
func (s *Surface) ScalarRange() Range {
	if s == nil || len(s.Scalars) == 0 {
		return Range{}
	}
	rng := Range{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range s.Scalars {
		rng.Min = math.Min(rng.Min, v)
		rng.Max = math.Max(rng.Max, v)
	}
	return rng
}

// Clone returns a deep copy of s.
func (s *Surface) Clone() *Surface {
	if s == nil {
		return nil
	}
	c := &Surface{
		Vertices: append([]r3.Vec(nil), s.Vertices...),
		Faces:    append([][3]int(nil), s.Faces...),
	}
	if s.Normals != nil {
		c.Normals = append([]r3.Vec(nil), s.Normals...)
	}
	if s.Scalars != nil {
		c.Scalars = append([]float64(nil), s.Scalars...)
	}
	return c
}

// FaceNormals returns area weighted vertex normals computed from the faces.
// Vertices not referenced by any non-degenerate face are given the +Z normal.
func (s *Surface) FaceNormals() []r3.Vec {
	normals := make([]r3.Vec, len(s.Vertices))
	for i := range s.Faces {
		n := s.Triangle(i).AreaNormal()
		for _, idx := range s.Faces[i] {
			normals[idx] = r3.Add(normals[idx], n)
		}
	}
	for i, n := range normals {
		if r3.Norm2(n) == 0 {
			normals[i] = r3.Vec{Z: 1}
			continue
		}
		normals[i] = r3.Unit(n)
	}
	return normals
}
