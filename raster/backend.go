// Package raster draws scenes into images with a software rasterizer.
package raster

import (
	"errors"
	"image"
	"image/draw"
	"math"
	"sort"

	"github.com/fogleman/fauxgl"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	"github.com/soypat/volview"
	"github.com/soypat/volview/internal/d3"
	"github.com/soypat/volview/scene"
	"gonum.org/v1/gonum/spatial/r3"
)

// Backend renders scenes at a fixed window size.
type Backend struct {
	width, height int
	// supersample is the factor by which scenes are rendered larger than the
	// window before being downsampled.
	supersample int
}

// NewBackend returns a backend for windows of width×height pixels.
// A supersample factor above one antialiases the output.
func NewBackend(width, height, supersample int) (*Backend, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("window size must be positive")
	}
	if supersample < 1 {
		supersample = 1
	}
	return &Backend{width: width, height: height, supersample: supersample}, nil
}

// Size returns the window size in pixels.
func (b *Backend) Size() (width, height int) { return b.width, b.height }

// Render draws every viewport of sc into a single image. The camera is read
// once so all viewports show the same view.
func (b *Backend) Render(sc *scene.Scene) image.Image {
	W, H := b.width*b.supersample, b.height*b.supersample
	dst := image.NewNRGBA(image.Rect(0, 0, W, H))
	cam := sc.Camera.Snapshot()
	bounds, ok := sc.Bounds()
	for _, vp := range sc.Viewports {
		// Normalized y grows upwards, image y downwards.
		r := image.Rect(
			int(math.Round(vp.Rect.X0*float64(W))), int(math.Round((1-vp.Rect.Y1)*float64(H))),
			int(math.Round(vp.Rect.X1*float64(W))), int(math.Round((1-vp.Rect.Y0)*float64(H))),
		)
		if r.Empty() {
			continue
		}
		img := drawViewport(vp, cam, bounds, ok, r.Dx(), r.Dy())
		draw.Draw(dst, r, img, image.Point{}, draw.Src)
	}
	if b.supersample == 1 {
		return dst
	}
	return resize.Resize(uint(b.width), uint(b.height), dst, resize.Bilinear)
}

func drawViewport(vp *scene.Viewport, cam scene.CameraState, bounds r3.Box, haveBounds bool, w, h int) image.Image {
	ctx := fauxgl.NewContext(w, h)
	ctx.ClearColorBufferWith(fauxColor(vp.Background, 1))
	ctx.Cull = fauxgl.CullNone
	if !haveBounds {
		return ctx.Image()
	}
	near, far := clipRange(cam, bounds)
	eye, center, up := vec(cam.Position), vec(cam.Focal), vec(cam.Up)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(cam.Fovy, float64(w)/float64(h), near, far)
	// Headlight: the light sits at the camera.
	light := eye.Sub(center).Normalize()

	items := append([]scene.Item(nil), vp.Items...)
	// Opaque surfaces are drawn first so translucent ones blend over them.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Material.Opacity >= 1 && items[j].Material.Opacity < 1
	})
	for _, it := range items {
		if it.Material.Hidden || it.Surface.IsEmpty() || it.Material.Opacity <= 0 {
			continue
		}
		ctx.AlphaBlend = it.Material.Opacity < 1
		ctx.WriteDepth = !ctx.AlphaBlend
		ctx.Shader = newShader(matrix, light, eye, it.Material)
		ctx.DrawTriangles(triangles(it.Surface, it.Material))
	}
	return ctx.Image()
}

// clipRange returns near and far clipping distances enclosing bounds.
func clipRange(cam scene.CameraState, bounds r3.Box) (near, far float64) {
	box := d3.Box(bounds)
	radius := r3.Norm(box.Size())/2 + 1e-9
	dist := r3.Norm(r3.Sub(box.Center(), cam.Position))
	near = math.Max(dist-1.05*radius, 1e-3*(dist+radius))
	far = dist + 1.05*radius
	return near, far
}

func triangles(s *volview.Surface, m scene.Material) []*fauxgl.Triangle {
	normals := s.Normals
	if normals == nil {
		normals = s.FaceNormals()
	}
	colors := vertexColors(s, m)
	tris := make([]*fauxgl.Triangle, 0, len(s.Faces))
	for _, f := range s.Faces {
		var v [3]fauxgl.Vertex
		for i, idx := range f {
			v[i] = fauxgl.Vertex{
				Position: vec(s.Vertices[idx]),
				Normal:   vec(normals[idx]),
				Color:    colors[idx],
			}
		}
		tris = append(tris, fauxgl.NewTriangle(v[0], v[1], v[2]))
	}
	return tris
}

func vertexColors(s *volview.Surface, m scene.Material) []fauxgl.Color {
	colors := make([]fauxgl.Color, len(s.Vertices))
	if !m.ScalarVisible || s.Scalars == nil {
		c := fauxColor(m.Color, m.Opacity)
		for i := range colors {
			colors[i] = c
		}
		return colors
	}
	rng := m.ScalarRange
	if rng == (volview.Range{}) {
		rng = s.ScalarRange()
	}
	for i, v := range s.Scalars {
		colors[i] = fauxColor(Colormap(v, rng), m.Opacity)
	}
	return colors
}

func vec(v r3.Vec) fauxgl.Vector { return fauxgl.V(v.X, v.Y, v.Z) }

func fauxColor(c colorful.Color, alpha float64) fauxgl.Color {
	c = c.Clamped()
	return fauxgl.Color{R: c.R, G: c.G, B: c.B, A: alpha}
}
