package pipeline

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/soypat/volview/cache"
)

// Default values of the standard pipeline configuration.
const (
	DefaultBoneIso       = 72
	DefaultSkinIso       = 30
	DefaultClipThreshold = 0.5
	DefaultFrames        = 360
	DefaultStep          = 1
	DefaultWidth         = 640
	DefaultHeight        = 512
	DefaultCacheName     = "distance"
)

// Config is the configuration of the standard pipeline. Fields documented as
// derived are computed from the volume when left zero.
type Config struct {
	// Volume is the SLC file to load.
	Volume  string  `toml:"volume"`
	BoneIso float64 `toml:"bone_iso"`
	SkinIso float64 `toml:"skin_iso"`
	// Subsample keeps every n'th voxel along each axis.
	Subsample [3]int `toml:"subsample"`

	Window    WindowConfig              `toml:"window"`
	Clip      ClipConfig                `toml:"clip"`
	Cut       CutConfig                 `toml:"cut"`
	Anim      AnimConfig                `toml:"anim"`
	Cache     CacheConfig               `toml:"cache"`
	Preview   PreviewConfig             `toml:"preview"`
	Materials map[string]MaterialConfig `toml:"materials"`
	// Backgrounds are palette color names of the four viewports in
	// top-left, top-right, bottom-left, bottom-right order.
	Backgrounds [4]string `toml:"backgrounds"`
}

// WindowConfig sets the rendered image size.
type WindowConfig struct {
	Width       int `toml:"width"`
	Height      int `toml:"height"`
	Supersample int `toml:"supersample"`
}

// ClipConfig places the clipping sphere.
type ClipConfig struct {
	// Center is derived as the volume center when empty.
	Center []float64 `toml:"center"`
	// Radius is derived as a quarter of the volume diagonal when zero.
	Radius    float64 `toml:"radius"`
	Threshold float64 `toml:"threshold"`
	// Resolution of the lattice used to draw the sphere boundary.
	Resolution int `toml:"resolution"`
}

// CutConfig places the cross section planes.
type CutConfig struct {
	// Origin is derived as the volume center when empty.
	Origin []float64 `toml:"origin"`
	Normal []float64 `toml:"normal"`
	Count  int       `toml:"count"`
	// Min and Max are plane offsets along the normal. Both zero derives them
	// from the volume extent.
	Min float64 `toml:"min"`
	Max float64 `toml:"max"`
	// TubeRadius is derived from the volume diagonal when zero.
	TubeRadius float64 `toml:"tube_radius"`
	TubeSides  int     `toml:"tube_sides"`
}

// AnimConfig configures the camera orbit.
type AnimConfig struct {
	// Frames is the orbit length. Zero orbits until the render is interrupted.
	Frames int      `toml:"frames"`
	Step   float64  `toml:"step"`
	Delay  Duration `toml:"delay"`
	// Every saves one of every Every frames when writing image sequences.
	Every int `toml:"every"`
}

// CacheConfig selects where the distance field artifact is stored.
type CacheConfig struct {
	// Dir defaults to a volview directory within the user cache directory.
	Dir string `toml:"dir"`
	// RedisAddr selects a Redis store instead of Dir when set.
	RedisAddr string `toml:"redis_addr"`
	Name      string `toml:"name"`
	// ContentKeyed invalidates the artifact when input surfaces change.
	ContentKeyed bool `toml:"content_keyed"`
}

// PreviewConfig configures the decimated overview meshes.
type PreviewConfig struct {
	// Decimate is the fraction of faces kept in overview meshes. 1 disables decimation.
	Decimate float64 `toml:"decimate"`
}

// MaterialConfig is the configuration form of scene.Material.
type MaterialConfig struct {
	Color         string  `toml:"color"`
	Diffuse       float64 `toml:"diffuse"`
	Specular      float64 `toml:"specular"`
	SpecularPower float64 `toml:"specular_power"`
	Opacity       float64 `toml:"opacity"`
	Hidden        bool    `toml:"hidden"`
	ScalarVisible bool    `toml:"scalar_visible"`
}

// Material names used by the standard pipeline.
const (
	MaterialSkin     = "skin"
	MaterialBone     = "bone"
	MaterialSection  = "section"
	MaterialClipped  = "clipped"
	MaterialSphere   = "sphere"
	MaterialDistance = "distance"
)

// Duration is a time.Duration written as a string such as "10ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the configuration of the standard four view scene.
func DefaultConfig() Config {
	return Config{
		BoneIso:   DefaultBoneIso,
		SkinIso:   DefaultSkinIso,
		Subsample: [3]int{1, 1, 1},
		Window:    WindowConfig{Width: DefaultWidth, Height: DefaultHeight, Supersample: 2},
		Clip:      ClipConfig{Threshold: DefaultClipThreshold, Resolution: 32},
		Cut:       CutConfig{Normal: []float64{0, 0, 1}, Count: 5, TubeSides: 8},
		Anim:      AnimConfig{Frames: DefaultFrames, Step: DefaultStep, Every: 1},
		Cache:     CacheConfig{Name: DefaultCacheName, ContentKeyed: true},
		Preview:   PreviewConfig{Decimate: 1},
		Materials: map[string]MaterialConfig{
			MaterialSkin:     {Color: "Bisque", Diffuse: 0.8, Specular: 0.3, SpecularPower: 20, Opacity: 1},
			MaterialBone:     {Color: "Ivory", Diffuse: 0.8, Specular: 0.8, SpecularPower: 120, Opacity: 1},
			MaterialSection:  {Color: "Tomato", Diffuse: 0.8, Specular: 0.3, SpecularPower: 20, Opacity: 1},
			MaterialClipped:  {Color: "Wheat", Diffuse: 0.8, Specular: 0.3, SpecularPower: 20, Opacity: 1},
			MaterialSphere:   {Color: "LightSteelBlue", Diffuse: 0.6, Opacity: 0.3},
			MaterialDistance: {Color: "White", Diffuse: 0.8, Specular: 0.2, SpecularPower: 20, Opacity: 1, ScalarVisible: true},
		},
		Backgrounds: [4]string{"SlateGray", "DarkSlateGray", "MidnightBlue", "LightSlateGray"},
	}
}

// LoadConfig decodes the TOML file at path over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := DecodeConfig(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// DecodeConfig decodes TOML data over cfg and validates the result. Keys not
// known to Config are an error. A material table only replaces the fields it
// sets.
func DecodeConfig(data []byte, cfg *Config) error {
	file := configFile{Config: *cfg}
	md, err := toml.Decode(string(data), &file)
	if err != nil {
		return err
	}
	materials := make(map[string]MaterialConfig, len(cfg.Materials)+len(file.Materials))
	for name, m := range cfg.Materials {
		materials[name] = m
	}
	for name, prim := range file.Materials {
		m := materials[name]
		if err := md.PrimitiveDecode(prim, &m); err != nil {
			return fmt.Errorf("material %q: %w", name, err)
		}
		materials[name] = m
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown configuration key %q", undecoded[0].String())
	}
	*cfg = file.Config
	cfg.Materials = materials
	return cfg.Validate()
}

// configFile defers material decoding so tables merge over the defaults.
type configFile struct {
	Config
	Materials map[string]toml.Primitive `toml:"materials"`
}

// Validate checks the configuration for values no volume could make valid.
func (c Config) Validate() error {
	switch {
	case c.Subsample[0] < 1 || c.Subsample[1] < 1 || c.Subsample[2] < 1:
		return errors.New("subsample rates must be at least 1")
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return errors.New("window size must be positive")
	case c.Window.Supersample < 1:
		return errors.New("supersample must be at least 1")
	case len(c.Clip.Center) != 0 && len(c.Clip.Center) != 3:
		return errors.New("clip center must have 3 components")
	case c.Clip.Radius < 0:
		return errors.New("clip radius must not be negative")
	case c.Clip.Resolution < 2:
		return errors.New("clip sphere resolution must be at least 2")
	case len(c.Cut.Origin) != 0 && len(c.Cut.Origin) != 3:
		return errors.New("cut origin must have 3 components")
	case len(c.Cut.Normal) != 3 || (c.Cut.Normal[0] == 0 && c.Cut.Normal[1] == 0 && c.Cut.Normal[2] == 0):
		return errors.New("cut normal must be a non zero 3 component vector")
	case c.Cut.Count < 0 || c.Cut.TubeRadius < 0:
		return errors.New("cut count and tube radius must not be negative")
	case c.Cut.Min > c.Cut.Max:
		return errors.New("cut min must not exceed max")
	case c.Anim.Frames < 0 || c.Anim.Delay.Duration < 0:
		return errors.New("animation frames and delay must not be negative")
	case !(c.Preview.Decimate > 0 && c.Preview.Decimate <= 1):
		return errors.New("preview decimation must be in (0,1]")
	}
	if err := cache.ValidName(c.Cache.Name); err != nil {
		return fmt.Errorf("cache name: %w", err)
	}
	for _, name := range []string{MaterialSkin, MaterialBone, MaterialSection, MaterialClipped, MaterialSphere, MaterialDistance} {
		m, ok := c.Materials[name]
		if !ok {
			return fmt.Errorf("missing material %q", name)
		}
		if m.Opacity < 0 || m.Opacity > 1 {
			return fmt.Errorf("material %q opacity %g out of [0,1]", name, m.Opacity)
		}
	}
	return nil
}
