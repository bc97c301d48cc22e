package volview

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Grid is a scalar field sampled on a regular 3D lattice. Samples are stored
// with x varying fastest: index = x + nx*(y + ny*z).
// A Grid is immutable after construction.
type Grid struct {
	nx, ny, nz int
	spacing    r3.Vec
	origin     r3.Vec
	data       []float64
	min, max   float64
}

// NewGrid returns a Grid of dims (nx,ny,nz) samples with the given voxel spacing and origin.
// The values slice is copied.
func NewGrid(nx, ny, nz int, spacing, origin r3.Vec, values []float64) (*Grid, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%dx%d", nx, ny, nz)
	}
	if spacing.X <= 0 || spacing.Y <= 0 || spacing.Z <= 0 {
		return nil, errors.New("grid spacing must be positive")
	}
	if len(values) != nx*ny*nz {
		return nil, fmt.Errorf("grid of %dx%dx%d requires %d samples, got %d", nx, ny, nz, nx*ny*nz, len(values))
	}
	g := &Grid{
		nx: nx, ny: ny, nz: nz,
		spacing: spacing,
		origin:  origin,
		data:    append([]float64(nil), values...),
		min:     math.Inf(1),
		max:     math.Inf(-1),
	}
	for _, v := range g.data {
		if math.IsNaN(v) {
			return nil, errors.New("NaN grid sample")
		}
		g.min = math.Min(g.min, v)
		g.max = math.Max(g.max, v)
	}
	return g, nil
}

// Dims returns the number of samples along each axis.
func (g *Grid) Dims() (nx, ny, nz int) { return g.nx, g.ny, g.nz }

// Spacing returns the distance between adjacent samples along each axis.
func (g *Grid) Spacing() r3.Vec { return g.spacing }

// Origin returns the position of sample (0,0,0).
func (g *Grid) Origin() r3.Vec { return g.origin }

// Len returns the total number of samples.
func (g *Grid) Len() int { return len(g.data) }

// Index returns the flat index of sample (i,j,k).
func (g *Grid) Index(i, j, k int) int { return i + g.nx*(j+g.ny*k) }

// At returns the sample at (i,j,k). It panics if out of bounds.
func (g *Grid) At(i, j, k int) float64 {
	if i < 0 || j < 0 || k < 0 || i >= g.nx || j >= g.ny || k >= g.nz {
		panic("grid index out of range")
	}
	return g.data[g.Index(i, j, k)]
}

// Position returns the world position of sample (i,j,k).
func (g *Grid) Position(i, j, k int) r3.Vec {
	return r3.Vec{
		X: g.origin.X + float64(i)*g.spacing.X,
		Y: g.origin.Y + float64(j)*g.spacing.Y,
		Z: g.origin.Z + float64(k)*g.spacing.Z,
	}
}

// Range returns the minimum and maximum sample values.
func (g *Grid) Range() (min, max float64) { return g.min, g.max }

// Bounds returns the box spanned by the lattice sample positions.
func (g *Grid) Bounds() r3.Box {
	return r3.Box{Min: g.origin, Max: g.Position(g.nx-1, g.ny-1, g.nz-1)}
}

// Values returns a copy of the flat sample array.
func (g *Grid) Values() []float64 {
	return append([]float64(nil), g.data...)
}

// Gradient returns the central difference gradient of the field at sample (i,j,k).
// One sided differences are used on the lattice boundary and axes with a single
// sample have zero gradient.
func (g *Grid) Gradient(i, j, k int) r3.Vec {
	return r3.Vec{
		X: g.diff(i, g.nx, g.spacing.X, func(a int) float64 { return g.data[g.Index(a, j, k)] }),
		Y: g.diff(j, g.ny, g.spacing.Y, func(a int) float64 { return g.data[g.Index(i, a, k)] }),
		Z: g.diff(k, g.nz, g.spacing.Z, func(a int) float64 { return g.data[g.Index(i, j, a)] }),
	}
}

func (g *Grid) diff(a, n int, h float64, at func(int) float64) float64 {
	switch {
	case n == 1:
		return 0
	case a == 0:
		return (at(1) - at(0)) / h
	case a == n-1:
		return (at(n-1) - at(n-2)) / h
	}
	return (at(a+1) - at(a-1)) / (2 * h)
}

// Subsample returns a new grid keeping every rx, ry, rz'th sample along each axis.
// Spacing is scaled accordingly so the world extent is preserved up to the dropped tail.
func (g *Grid) Subsample(rx, ry, rz int) (*Grid, error) {
	if rx < 1 || ry < 1 || rz < 1 {
		return nil, errors.New("subsample rates must be at least 1")
	}
	if rx == 1 && ry == 1 && rz == 1 {
		return g, nil
	}
	nx := (g.nx-1)/rx + 1
	ny := (g.ny-1)/ry + 1
	nz := (g.nz-1)/rz + 1
	values := make([]float64, 0, nx*ny*nz)
	for k := 0; k < g.nz; k += rz {
		for j := 0; j < g.ny; j += ry {
			for i := 0; i < g.nx; i += rx {
				values = append(values, g.data[g.Index(i, j, k)])
			}
		}
	}
	spacing := r3.Vec{X: g.spacing.X * float64(rx), Y: g.spacing.Y * float64(ry), Z: g.spacing.Z * float64(rz)}
	return NewGrid(nx, ny, nz, spacing, g.origin, values)
}
