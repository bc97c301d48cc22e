package volview

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ImplicitFunction is an analytic scalar function of 3D space whose zero level
// set defines a surface. Negative values are inside.
type ImplicitFunction interface {
	Evaluate(p r3.Vec) float64
}

var (
	_ ImplicitFunction = Plane{}
	_ ImplicitFunction = Sphere{}
)

// Plane is the signed distance to the plane through Origin with unit Normal.
// Points on the side opposite the normal are inside.
type Plane struct {
	Origin r3.Vec
	Normal r3.Vec
}

// NewPlane returns a Plane with its normal normalized.
func NewPlane(origin, normal r3.Vec) (Plane, error) {
	if r3.Norm2(normal) == 0 {
		return Plane{}, errors.New("zero plane normal")
	}
	return Plane{Origin: origin, Normal: r3.Unit(normal)}, nil
}

// Evaluate returns the signed distance of p along the plane normal.
func (pl Plane) Evaluate(p r3.Vec) float64 {
	return r3.Dot(r3.Sub(p, pl.Origin), pl.Normal)
}

// Sphere is the signed distance to a sphere surface.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// NewSphere returns a sphere of positive radius.
func NewSphere(center r3.Vec, radius float64) (Sphere, error) {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return Sphere{}, errors.New("sphere radius must be positive and finite")
	}
	return Sphere{Center: center, Radius: radius}, nil
}

// Evaluate returns |p-c| - r.
func (s Sphere) Evaluate(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.Center)) - s.Radius
}

// Bounds returns the box enclosing the sphere.
func (s Sphere) Bounds() r3.Box {
	r := r3.Vec{X: s.Radius, Y: s.Radius, Z: s.Radius}
	return r3.Box{Min: r3.Sub(s.Center, r), Max: r3.Add(s.Center, r)}
}
