package raster

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/soypat/volview"
)

// Colormap maps v within rng onto a blue to red hue ramp. Values outside rng
// are clamped and a degenerate range maps to blue.
func Colormap(v float64, rng volview.Range) colorful.Color {
	t := 0.0
	if span := rng.Max - rng.Min; span > 0 {
		t = (v - rng.Min) / span
	}
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))
	return colorful.Hsv(240*(1-t), 1, 1)
}
