package surfop

import (
	"errors"

	"github.com/fogleman/simplify"
	"github.com/soypat/volview"
	"gonum.org/v1/gonum/spatial/r3"
)

// Decimate reduces the face count of s to roughly factor times the original
// using quadric error simplification. Scalars are dropped and normals are
// recomputed from the simplified faces. factor must be in (0,1].
func Decimate(s *volview.Surface, factor float64) (*volview.Surface, error) {
	if !(factor > 0 && factor <= 1) {
		return nil, errors.New("decimation factor must be in (0,1]")
	}
	if s.IsEmpty() {
		return &volview.Surface{}, nil
	}
	if factor == 1 {
		out := s.Clone()
		out.Scalars = nil
		return out, nil
	}
	tris := make([]*simplify.Triangle, 0, len(s.Faces))
	for i := range s.Faces {
		t := s.Triangle(i)
		tris = append(tris, simplify.NewTriangle(vector(t[0]), vector(t[1]), vector(t[2])))
	}
	mesh := simplify.NewMesh(tris).Simplify(factor)
	out := &volview.Surface{}
	index := make(map[simplify.Vector]int)
	weld := func(v simplify.Vector) int {
		if idx, ok := index[v]; ok {
			return idx
		}
		idx := len(out.Vertices)
		out.Vertices = append(out.Vertices, r3.Vec{X: v.X, Y: v.Y, Z: v.Z})
		index[v] = idx
		return idx
	}
	for _, t := range mesh.Triangles {
		f := [3]int{weld(t.V1), weld(t.V2), weld(t.V3)}
		if f[0] == f[1] || f[1] == f[2] || f[2] == f[0] {
			continue
		}
		out.Faces = append(out.Faces, f)
	}
	if len(out.Faces) == 0 {
		return &volview.Surface{}, nil
	}
	out.Normals = out.FaceNormals()
	return out, nil
}

func vector(v r3.Vec) simplify.Vector {
	return simplify.Vector{X: v.X, Y: v.Y, Z: v.Z}
}
