package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/soypat/volview"
	"github.com/soypat/volview/cache"
	"github.com/soypat/volview/internal/d3"
	"github.com/soypat/volview/render"
	"github.com/soypat/volview/scene"
	"github.com/soypat/volview/slc"
	"github.com/soypat/volview/surfop"
	"gonum.org/v1/gonum/spatial/r3"
)

// Stage names of the standard graph.
const (
	StageVolume    = "volume"
	StageSubsample = "subsample"
	StageSkin      = "skin"
	StageBone      = "bone"
	StageOverview  = "overview"
	StageContours  = "contours"
	StageSections  = "sections"
	StageSphere    = "sphere"
	StageClipped   = "clipped"
	StageBoundary  = "boundary"
	StageDistance  = "distance"
	StageScene     = "scene"
)

// Loader returns the volume to visualize.
type Loader func(ctx context.Context) (*volview.Grid, error)

// Env holds the collaborators of the standard graph.
type Env struct {
	// Load defaults to reading the configured SLC volume.
	Load Loader
	// Cache persists the distance field. Nil computes it on every run.
	Cache   *cache.DistanceCache
	Palette *scene.Palette
	Logger  *log.Logger
}

// Distance is the output of the distance stage.
type Distance struct {
	Surface *volview.Surface
	Range   volview.Range
}

// Contours is the output of the contours stage.
type Contours struct {
	Plane    volview.Plane
	Contours []surfop.Contour
	// Radius is the tube radius used by the sections stage.
	Radius float64
}

// Overview is the output of the overview stage.
type Overview struct {
	Skin, Bone *volview.Surface
}

// Build returns the standard graph for cfg.
func Build(cfg Config, env Env) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if env.Load == nil {
		if cfg.Volume == "" {
			return nil, errors.New("no volume configured")
		}
		path := cfg.Volume
		env.Load = func(context.Context) (*volview.Grid, error) { return slc.ReadFile(path) }
	}
	palette := scene.DefaultPalette()
	if env.Palette != nil {
		palette = *env.Palette
	}
	// Materials and backgrounds are resolved up front so bad color names fail
	// before any stage runs.
	materials := make(map[string]scene.Material, len(cfg.Materials))
	for name, mc := range cfg.Materials {
		m, err := material(palette, mc)
		if err != nil {
			return nil, fmt.Errorf("material %q: %w", name, err)
		}
		materials[name] = m
	}
	var backgrounds [4]colorful.Color
	for i, name := range cfg.Backgrounds {
		c, err := palette.Color(name)
		if err != nil {
			return nil, fmt.Errorf("background %d: %w", i, err)
		}
		backgrounds[i] = c
	}

	g := NewGraph(env.Logger)
	logger := g.logger
	surface := func(res *Results, name string) (*volview.Surface, error) {
		return Get[*volview.Surface](res, name)
	}
	grid := func(res *Results) (*volview.Grid, error) {
		return Get[*volview.Grid](res, StageSubsample)
	}
	add := func(name string, fn StageFunc, deps ...string) {
		if err := g.Add(name, fn, deps...); err != nil {
			panic(err) // Stage names are constants.
		}
	}

	add(StageVolume, func(ctx context.Context, _ *Results) (any, error) {
		v, err := env.Load(ctx)
		if err != nil {
			return nil, err
		}
		nx, ny, nz := v.Dims()
		lo, hi := v.Range()
		logger.Info("volume loaded", "dims", fmt.Sprintf("%dx%dx%d", nx, ny, nz), "min", lo, "max", hi)
		return v, nil
	})
	add(StageSubsample, func(_ context.Context, res *Results) (any, error) {
		v, err := Get[*volview.Grid](res, StageVolume)
		if err != nil {
			return nil, err
		}
		return v.Subsample(cfg.Subsample[0], cfg.Subsample[1], cfg.Subsample[2])
	}, StageVolume)
	extract := func(iso float64) StageFunc {
		return func(_ context.Context, res *Results) (any, error) {
			v, err := grid(res)
			if err != nil {
				return nil, err
			}
			s := render.Extract(v, iso)
			if s.IsEmpty() {
				logger.Warn("empty iso-surface", "iso", iso)
			}
			return s, nil
		}
	}
	add(StageSkin, extract(cfg.SkinIso), StageSubsample)
	add(StageBone, extract(cfg.BoneIso), StageSubsample)

	add(StageOverview, func(_ context.Context, res *Results) (any, error) {
		skin, err := surface(res, StageSkin)
		if err != nil {
			return nil, err
		}
		bone, err := surface(res, StageBone)
		if err != nil {
			return nil, err
		}
		if cfg.Preview.Decimate == 1 {
			return Overview{Skin: skin, Bone: bone}, nil
		}
		ov := Overview{}
		if ov.Skin, err = decimate(skin, cfg.Preview.Decimate); err != nil {
			return nil, err
		}
		if ov.Bone, err = decimate(bone, cfg.Preview.Decimate); err != nil {
			return nil, err
		}
		return ov, nil
	}, StageSkin, StageBone)

	add(StageContours, func(_ context.Context, res *Results) (any, error) {
		skin, err := surface(res, StageSkin)
		if err != nil {
			return nil, err
		}
		v, err := grid(res)
		if err != nil {
			return nil, err
		}
		plane, rmin, rmax, radius, err := cutPlanes(cfg.Cut, v.Bounds())
		if err != nil {
			return nil, err
		}
		values := surfop.ContourValues(cfg.Cut.Count, rmin, rmax)
		c := Contours{Plane: plane, Contours: surfop.Contours(skin, plane, values), Radius: radius}
		logger.Debug("cross sections", "planes", len(values), "contours", len(c.Contours))
		return c, nil
	}, StageSkin, StageSubsample)
	add(StageSections, func(_ context.Context, res *Results) (any, error) {
		c, err := Get[Contours](res, StageContours)
		if err != nil {
			return nil, err
		}
		return surfop.Tube(c.Contours, c.Radius, surfop.TubeParams{Sides: cfg.Cut.TubeSides}), nil
	}, StageContours)

	add(StageSphere, func(_ context.Context, res *Results) (any, error) {
		v, err := grid(res)
		if err != nil {
			return nil, err
		}
		return clipSphere(cfg.Clip, v.Bounds())
	}, StageSubsample)
	add(StageClipped, func(_ context.Context, res *Results) (any, error) {
		skin, err := surface(res, StageSkin)
		if err != nil {
			return nil, err
		}
		sp, err := Get[volview.Sphere](res, StageSphere)
		if err != nil {
			return nil, err
		}
		return surfop.Clip(skin, sp, cfg.Clip.Threshold), nil
	}, StageSkin, StageSphere)
	add(StageBoundary, func(_ context.Context, res *Results) (any, error) {
		sp, err := Get[volview.Sphere](res, StageSphere)
		if err != nil {
			return nil, err
		}
		n := cfg.Clip.Resolution
		bb := d3.Box(sp.Bounds()).ScaleAboutCenter(1.1)
		return render.SampleImplicit(sp, r3.Box(bb), [3]int{n, n, n})
	}, StageSphere)

	add(StageDistance, func(ctx context.Context, res *Results) (any, error) {
		bone, err := surface(res, StageBone)
		if err != nil {
			return nil, err
		}
		skin, err := surface(res, StageSkin)
		if err != nil {
			return nil, err
		}
		if env.Cache == nil {
			s, rng := surfop.DistanceField(bone, skin)
			return Distance{Surface: s, Range: rng}, nil
		}
		key := cache.LogicalKey(cfg.Cache.Name)
		if cfg.Cache.ContentKeyed {
			key = cache.ContentKey(cfg.Cache.Name, bone, skin)
		}
		s, rng, err := env.Cache.GetOrCompute(ctx, key, bone, skin)
		if err != nil {
			return nil, err
		}
		logger.Info("distance field", "key", key, "min", rng.Min, "max", rng.Max)
		return Distance{Surface: s, Range: rng}, nil
	}, StageBone, StageSkin)

	add(StageScene, func(_ context.Context, res *Results) (any, error) {
		return composeScene(res, materials, backgrounds)
	}, StageOverview, StageBone, StageSections, StageClipped, StageBoundary, StageDistance)
	return g, nil
}

func composeScene(res *Results, materials map[string]scene.Material, backgrounds [4]colorful.Color) (*scene.Scene, error) {
	ov, err := Get[Overview](res, StageOverview)
	if err != nil {
		return nil, err
	}
	var surf [4]*volview.Surface
	for i, name := range []string{StageBone, StageSections, StageClipped, StageBoundary} {
		if surf[i], err = Get[*volview.Surface](res, name); err != nil {
			return nil, err
		}
	}
	bone, sections, clipped, boundary := surf[0], surf[1], surf[2], surf[3]
	dist, err := Get[Distance](res, StageDistance)
	if err != nil {
		return nil, err
	}
	distMat := materials[MaterialDistance]
	distMat.ScalarRange = dist.Range

	// Look along +Y with -Z up, then rotate a quarter turn.
	cam, err := scene.NewCamera(r3.Vec{Y: -1}, r3.Vec{}, r3.Vec{Z: -1})
	if err != nil {
		return nil, err
	}
	cam.Azimuth(-90)
	layout := [4][]scene.Item{
		{
			{Name: "skin", Surface: ov.Skin, Material: materials[MaterialSkin]},
			{Name: "bone", Surface: ov.Bone, Material: materials[MaterialBone]},
		},
		{
			{Name: "bone", Surface: bone, Material: materials[MaterialBone]},
			{Name: "sections", Surface: sections, Material: materials[MaterialSection]},
		},
		{
			{Name: "clipped", Surface: clipped, Material: materials[MaterialClipped]},
			{Name: "bone", Surface: bone, Material: materials[MaterialBone]},
			{Name: "sphere", Surface: boundary, Material: materials[MaterialSphere]},
		},
		{
			{Name: "distance", Surface: dist.Surface, Material: distMat},
		},
	}
	var vps []*scene.Viewport
	for i, r := range scene.Quadrants() {
		vp, err := scene.Compose(layout[i], r, cam, backgrounds[i])
		if err != nil {
			return nil, err
		}
		vps = append(vps, vp)
	}
	sc, err := scene.NewScene(cam, vps...)
	if err != nil {
		return nil, err
	}
	if bb, ok := sc.Bounds(); ok {
		cam.Frame(bb, scene.DefaultFovy)
	}
	return sc, nil
}

func material(p scene.Palette, mc MaterialConfig) (scene.Material, error) {
	c, err := p.Color(mc.Color)
	if err != nil {
		return scene.Material{}, err
	}
	return scene.Material{
		Color:         c,
		Diffuse:       mc.Diffuse,
		Specular:      mc.Specular,
		SpecularPower: mc.SpecularPower,
		Opacity:       mc.Opacity,
		Hidden:        mc.Hidden,
		ScalarVisible: mc.ScalarVisible,
	}, nil
}

func decimate(s *volview.Surface, factor float64) (*volview.Surface, error) {
	if s.IsEmpty() {
		return s, nil
	}
	return surfop.Decimate(s, factor)
}

func vecOr(v []float64, def r3.Vec) r3.Vec {
	if len(v) != 3 {
		return def
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// cutPlanes resolves the cross section configuration against the volume bounds.
func cutPlanes(cut CutConfig, bounds r3.Box) (plane volview.Plane, rmin, rmax, radius float64, err error) {
	box := d3.Box(bounds)
	plane, err = volview.NewPlane(vecOr(cut.Origin, box.Center()), vecOr(cut.Normal, r3.Vec{Z: 1}))
	if err != nil {
		return plane, 0, 0, 0, err
	}
	rmin, rmax = cut.Min, cut.Max
	if rmin == 0 && rmax == 0 {
		// Span 80% of the volume extent along the normal.
		var lo, hi = math.Inf(1), math.Inf(-1)
		for _, c := range boxCorners(bounds) {
			d := plane.Evaluate(c)
			lo, hi = math.Min(lo, d), math.Max(hi, d)
		}
		mid, half := (lo+hi)/2, 0.4*(hi-lo)
		rmin, rmax = mid-half, mid+half
	}
	radius = cut.TubeRadius
	if radius == 0 {
		radius = 0.004 * r3.Norm(box.Size())
	}
	return plane, rmin, rmax, radius, nil
}

// clipSphere resolves the clip sphere configuration against the volume bounds.
func clipSphere(clip ClipConfig, bounds r3.Box) (volview.Sphere, error) {
	box := d3.Box(bounds)
	radius := clip.Radius
	if radius == 0 {
		radius = r3.Norm(box.Size()) / 4
	}
	return volview.NewSphere(vecOr(clip.Center, box.Center()), radius)
}

func boxCorners(b r3.Box) [8]r3.Vec {
	return [8]r3.Vec{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z}, {X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z}, {X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z}, {X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z}, {X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}
