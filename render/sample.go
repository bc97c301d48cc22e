package render

import (
	"errors"
	"fmt"

	"github.com/soypat/volview"
	"gonum.org/v1/gonum/spatial/r3"
)

// SampleImplicit evaluates fn on a lattice of dims samples spanning bounds and
// returns the zero level set of the sampled field. It is used to draw an
// implicit function's own boundary. The field is sampled with its sign flipped
// so the interior reads as dense material and faces point outwards.
func SampleImplicit(fn volview.ImplicitFunction, bounds r3.Box, dims [3]int) (*volview.Surface, error) {
	if fn == nil {
		return nil, errors.New("nil implicit function")
	}
	g, err := SampleGrid(negated{fn}, bounds, dims)
	if err != nil {
		return nil, err
	}
	return Extract(g, 0), nil
}

type negated struct{ fn volview.ImplicitFunction }

func (n negated) Evaluate(p r3.Vec) float64 { return -n.fn.Evaluate(p) }

// SampleGrid evaluates fn on a lattice of dims samples spanning bounds.
func SampleGrid(fn volview.ImplicitFunction, bounds r3.Box, dims [3]int) (*volview.Grid, error) {
	if fn == nil {
		return nil, errors.New("nil implicit function")
	}
	if dims[0] < 2 || dims[1] < 2 || dims[2] < 2 {
		return nil, fmt.Errorf("sample dimensions must be at least 2, got %v", dims)
	}
	size := r3.Sub(bounds.Max, bounds.Min)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, errors.New("sample bounds must have positive volume")
	}
	spacing := r3.Vec{
		X: size.X / float64(dims[0]-1),
		Y: size.Y / float64(dims[1]-1),
		Z: size.Z / float64(dims[2]-1),
	}
	values := make([]float64, 0, dims[0]*dims[1]*dims[2])
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				p := r3.Vec{
					X: bounds.Min.X + float64(i)*spacing.X,
					Y: bounds.Min.Y + float64(j)*spacing.Y,
					Z: bounds.Min.Z + float64(k)*spacing.Z,
				}
				values = append(values, fn.Evaluate(p))
			}
		}
	}
	return volview.NewGrid(dims[0], dims[1], dims[2], spacing, bounds.Min, values)
}
