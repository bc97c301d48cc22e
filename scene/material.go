package scene

import (
	"fmt"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/soypat/volview"
)

// Material describes how a surface is shaded.
type Material struct {
	Color         colorful.Color
	Diffuse       float64
	Specular      float64
	SpecularPower float64
	// Opacity in [0,1]; 1 is opaque.
	Opacity float64
	Hidden  bool
	// ScalarVisible colors the surface by its scalars mapped over ScalarRange
	// instead of Color.
	ScalarVisible bool
	ScalarRange   volview.Range
}

// DefaultMaterial returns an opaque diffuse material of the given color.
func DefaultMaterial(c colorful.Color) Material {
	return Material{Color: c, Diffuse: 0.8, Specular: 0.3, SpecularPower: 20, Opacity: 1}
}

// Palette is an immutable table of named colors.
type Palette struct {
	colors map[string]colorful.Color
}

// NewPalette returns a palette of hex colors keyed by name.
func NewPalette(hexColors map[string]string) (Palette, error) {
	p := Palette{colors: make(map[string]colorful.Color, len(hexColors))}
	for name, hex := range hexColors {
		c, err := colorful.Hex(hex)
		if err != nil {
			return Palette{}, fmt.Errorf("palette color %q: %w", name, err)
		}
		p.colors[name] = c
	}
	return p, nil
}

// Color returns the named color.
func (p Palette) Color(name string) (colorful.Color, error) {
	c, ok := p.colors[name]
	if !ok {
		return colorful.Color{}, fmt.Errorf("unknown color %q", name)
	}
	return c, nil
}

// Names returns the palette's color names in sorted order.
func (p Palette) Names() []string {
	names := make([]string, 0, len(p.colors))
	for name := range p.colors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultColors = map[string]string{
	"Black":          "#000000",
	"White":          "#ffffff",
	"Ivory":          "#fffff0",
	"SlateGray":      "#708090",
	"DarkSlateGray":  "#2f4f4f",
	"LightSlateGray": "#778899",
	"MidnightBlue":   "#191970",
	"LightSteelBlue": "#b0c4de",
	"Wheat":          "#f5deb3",
	"Bisque":         "#ffe4c4",
	"Tomato":         "#ff6347",
	"Gold":           "#ffd700",
	"Banana":         "#e3cf57",
	"Peacock":        "#33a1c9",
}

// DefaultPalette returns the named colors used by the default configuration.
func DefaultPalette() Palette {
	p, err := NewPalette(defaultColors)
	if err != nil {
		panic(err)
	}
	return p
}
