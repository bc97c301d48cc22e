package raster

import (
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/volview/scene"
)

// ambient is the light level of surfaces facing away from the light.
const ambient = 0.2

// shader is a Phong shader that takes the object color from the interpolated
// vertex color so surfaces can be colored by their scalars.
type shader struct {
	matrix   fauxgl.Matrix
	light    fauxgl.Vector
	camera   fauxgl.Vector
	diffuse  float64
	specular float64
	power    float64
}

func newShader(matrix fauxgl.Matrix, light, camera fauxgl.Vector, m scene.Material) *shader {
	return &shader{
		matrix:   matrix,
		light:    light,
		camera:   camera,
		diffuse:  m.Diffuse,
		specular: m.Specular,
		power:    m.SpecularPower,
	}
}

func (s *shader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	return v
}

func (s *shader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	n := v.Normal.Normalize()
	d := n.Dot(s.light)
	if d < 0 {
		// Two sided lighting since back faces are not culled.
		n, d = n.Negate(), -d
	}
	level := ambient + s.diffuse*d
	color := v.Color.MulScalar(level)
	if s.specular > 0 && s.power > 0 {
		view := s.camera.Sub(v.Position).Normalize()
		// Reflection of the light direction about the normal.
		reflected := n.MulScalar(2 * d).Sub(s.light)
		if spec := view.Dot(reflected); spec > 0 {
			spec = s.specular * math.Pow(spec, s.power)
			color = color.Add(fauxgl.Color{R: spec, G: spec, B: spec})
		}
	}
	return color.Min(fauxgl.White).Alpha(v.Color.A)
}
