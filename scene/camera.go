// Package scene describes what is drawn: viewports laid out on a normalized
// window, the surfaces and materials in each and the camera they share.
package scene

import (
	"errors"
	"math"
	"sync"

	"github.com/soypat/volview/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Camera is a perspective camera orbiting a focal point. A single Camera is
// shared by pointer between viewports. It is safe for concurrent use: mutators
// take a write lock and readers should use Snapshot.
type Camera struct {
	mu    sync.RWMutex
	focal r3.Vec
	// offset is the position relative to the focal point at zero azimuth.
	offset r3.Vec
	up     r3.Vec
	// azimuth is the accumulated rotation about up in degrees, in [0,360).
	azimuth float64
	fovy    float64
}

// CameraState is a consistent copy of a camera's parameters.
type CameraState struct {
	Focal    r3.Vec
	Position r3.Vec
	Up       r3.Vec
	// Azimuth in degrees in [0,360).
	Azimuth float64
	// Fovy is the vertical field of view in degrees.
	Fovy float64
}

// DefaultFovy is the vertical field of view of new cameras in degrees.
const DefaultFovy = 30

// NewCamera returns a camera at position looking at focal with the given up vector.
func NewCamera(position, focal, up r3.Vec) (*Camera, error) {
	offset := r3.Sub(position, focal)
	switch {
	case !d3.IsFinite(position) || !d3.IsFinite(focal) || !d3.IsFinite(up):
		return nil, errors.New("non finite camera parameters")
	case r3.Norm2(offset) == 0:
		return nil, errors.New("camera position equals focal point")
	case r3.Norm2(r3.Cross(offset, up)) == 0:
		return nil, errors.New("camera up vector parallel to view direction")
	}
	return &Camera{focal: focal, offset: offset, up: r3.Unit(up), fovy: DefaultFovy}, nil
}

// Azimuth rotates the camera position about the up vector centered at the
// focal point by deg degrees.
func (c *Camera) Azimuth(deg float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth = wrapDegrees(c.azimuth + deg)
}

// Snapshot returns the camera parameters under a read lock.
func (c *Camera) Snapshot() CameraState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CameraState{
		Focal:    c.focal,
		Position: r3.Add(c.focal, c.rotatedOffset()),
		Up:       c.up,
		Azimuth:  c.azimuth,
		Fovy:     c.fovy,
	}
}

// Frame moves the focal point to the center of bounds and the camera along its
// current view direction so a sphere enclosing bounds fills the view. fovy is
// the vertical field of view in degrees; non positive values keep the current one.
func (c *Camera) Frame(bounds r3.Box, fovy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fovy > 0 && fovy < 180 {
		c.fovy = fovy
	}
	box := d3.Box(bounds)
	radius := r3.Norm(box.Size()) / 2
	if radius == 0 {
		radius = 0.5
	}
	dist := radius / math.Sin(c.fovy*math.Pi/360)
	c.focal = box.Center()
	c.offset = r3.Scale(dist, r3.Unit(c.offset))
}

func (c *Camera) rotatedOffset() r3.Vec {
	if c.azimuth == 0 {
		return c.offset
	}
	return r3.NewRotation(c.azimuth*math.Pi/180, c.up).Rotate(c.offset)
}

// wrapDegrees maps deg to [0,360).
func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// ViewDirection returns the unit vector from the camera position to the focal point.
func (s CameraState) ViewDirection() r3.Vec {
	return r3.Unit(r3.Sub(s.Focal, s.Position))
}

// Distance returns the distance between the camera position and the focal point.
func (s CameraState) Distance() float64 {
	return r3.Norm(r3.Sub(s.Focal, s.Position))
}
