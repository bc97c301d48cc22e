package surfop

import (
	"github.com/soypat/volview"
	"github.com/soypat/volview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Clip returns the part of s where fn evaluates below threshold. Triangles
// straddling the threshold are cut along their edges by linear interpolation of
// the function values. Normals and scalars are interpolated on cut vertices.
func Clip(s *volview.Surface, fn volview.ImplicitFunction, threshold float64) *volview.Surface {
	if fn == nil {
		panic("nil implicit function")
	}
	if s.IsEmpty() {
		return &volview.Surface{}
	}
	c := clipper{
		src:   s,
		f:     make([]float64, len(s.Vertices)),
		remap: make(map[int]int),
		cuts:  make(map[edgeKey]int),
		out:   &volview.Surface{},
	}
	for i, v := range s.Vertices {
		c.f[i] = fn.Evaluate(v) - threshold
	}
	for _, face := range s.Faces {
		inside := 0
		for _, idx := range face {
			if c.f[idx] < 0 {
				inside++
			}
		}
		switch inside {
		case 0:
			continue
		case 3:
			c.emit(c.keep(face[0]), c.keep(face[1]), c.keep(face[2]))
			continue
		}
		// Rotate the face so the vertex on the minority side comes first,
		// which preserves winding.
		for rot := 0; rot < 3; rot++ {
			a := face[rot]
			if (inside == 1) == (c.f[a] < 0) {
				face = [3]int{face[rot], face[(rot+1)%3], face[(rot+2)%3]}
				break
			}
		}
		a, b, cc := face[0], face[1], face[2]
		if inside == 1 {
			c.emit(c.keep(a), c.cut(a, b), c.cut(a, cc))
			continue
		}
		// a is outside; quad b, c, ca, ab.
		ab, ca := c.cut(a, b), c.cut(cc, a)
		kb, kc := c.keep(b), c.keep(cc)
		c.emit(kb, kc, ca)
		c.emit(kb, ca, ab)
	}
	if len(c.out.Faces) == 0 {
		return &volview.Surface{}
	}
	return c.out
}

type clipper struct {
	src   *volview.Surface
	f     []float64
	remap map[int]int
	cuts  map[edgeKey]int
	out   *volview.Surface
}

func (c *clipper) keep(i int) int {
	if idx, ok := c.remap[i]; ok {
		return idx
	}
	idx := len(c.out.Vertices)
	c.out.Vertices = append(c.out.Vertices, c.src.Vertices[i])
	if c.src.Normals != nil {
		c.out.Normals = append(c.out.Normals, c.src.Normals[i])
	}
	if c.src.Scalars != nil {
		c.out.Scalars = append(c.out.Scalars, c.src.Scalars[i])
	}
	c.remap[i] = idx
	return idx
}

// cut returns the vertex where the function crosses zero on edge a-b.
func (c *clipper) cut(a, b int) int {
	key := newEdgeKey(a, b)
	if idx, ok := c.cuts[key]; ok {
		return idx
	}
	a, b = key[0], key[1]
	t := c.f[a] / (c.f[a] - c.f[b])
	idx := len(c.out.Vertices)
	c.out.Vertices = append(c.out.Vertices, d3.Lerp(c.src.Vertices[a], c.src.Vertices[b], t))
	if c.src.Normals != nil {
		n := d3.Lerp(c.src.Normals[a], c.src.Normals[b], t)
		if r3.Norm2(n) == 0 {
			n = c.src.Normals[a]
		}
		c.out.Normals = append(c.out.Normals, r3.Unit(n))
	}
	if c.src.Scalars != nil {
		sa, sb := c.src.Scalars[a], c.src.Scalars[b]
		c.out.Scalars = append(c.out.Scalars, sa+t*(sb-sa))
	}
	c.cuts[key] = idx
	return idx
}

func (c *clipper) emit(a, b, cc int) {
	tri := d3.Triangle{c.out.Vertices[a], c.out.Vertices[b], c.out.Vertices[cc]}
	if tri.Area() == 0 {
		return
	}
	c.out.Faces = append(c.out.Faces, [3]int{a, b, cc})
}
