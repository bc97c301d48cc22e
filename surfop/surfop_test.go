package surfop_test

import (
	"bytes"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/soypat/volview"
	"github.com/soypat/volview/internal/d3"
	"github.com/soypat/volview/render"
	"github.com/soypat/volview/surfop"
	"gonum.org/v1/gonum/spatial/r3"
)

func sampleSphere(t testing.TB, center r3.Vec, radius float64, n int) *volview.Surface {
	t.Helper()
	sphere, err := volview.NewSphere(center, radius)
	if err != nil {
		t.Fatal(err)
	}
	bb := d3.Box(sphere.Bounds()).ScaleAboutCenter(1.3)
	s, err := render.SampleImplicit(sphere, r3.Box(bb), [3]int{n, n, n})
	if err != nil {
		t.Fatal(err)
	}
	if s.IsEmpty() {
		t.Fatal("empty sphere surface")
	}
	return s
}

func zPlane(t testing.TB) volview.Plane {
	pl, err := volview.NewPlane(r3.Vec{}, r3.Vec{Z: 1})
	if err != nil {
		t.Fatal(err)
	}
	return pl
}

func TestContourValues(t *testing.T) {
	for _, test := range []struct {
		count      int
		rmin, rmax float64
		want       []float64
	}{
		{count: 0, rmin: 0, rmax: 1, want: nil},
		{count: 1, rmin: 2, rmax: 5, want: []float64{2}},
		{count: 3, rmin: -1, rmax: 1, want: []float64{-1, 0, 1}},
		{count: 5, rmin: 0, rmax: 1, want: []float64{0, .25, .5, .75, 1}},
	} {
		got := surfop.ContourValues(test.count, test.rmin, test.rmax)
		if len(got) != len(test.want) {
			t.Fatalf("count %d: got %v want %v", test.count, got, test.want)
		}
		for i := range got {
			if math.Abs(got[i]-test.want[i]) > 1e-15 {
				t.Errorf("count %d: got %v want %v", test.count, got, test.want)
			}
		}
	}
}

func TestContoursSphere(t *testing.T) {
	s := sampleSphere(t, r3.Vec{}, 1, 23)
	values := surfop.ContourValues(3, -0.4, 0.6)
	contours := surfop.Contours(s, zPlane(t), values)
	if len(contours) != len(values) {
		t.Fatalf("got %d contours, want %d", len(contours), len(values))
	}
	const h = 1.3 * 2 / 22
	for i, c := range contours {
		if !c.Closed {
			t.Errorf("contour %d is not closed", i)
		}
		if c.Value != values[i] {
			t.Errorf("contour %d value %g, want %g", i, c.Value, values[i])
		}
		want := math.Sqrt(1 - c.Value*c.Value)
		for _, p := range c.Points {
			if math.Abs(p.Z-c.Value) > 1e-9 {
				t.Fatalf("contour point %v off plane %g", p, c.Value)
			}
			if r := math.Hypot(p.X, p.Y); math.Abs(r-want) > math.Sqrt(3)*h {
				t.Fatalf("contour point radius %g, want %g", r, want)
			}
		}
	}
}

func TestContoursIntegerVolume(t *testing.T) {
	// Rounded radial density: many samples equal the iso value and many
	// surface vertices lie exactly on the integer cut planes.
	const n = 41
	var values []float64
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				p := r3.Vec{X: float64(i - n/2), Y: float64(j - n/2), Z: float64(k - n/2)}
				values = append(values, math.Round(math.Max(0, 100*(1-r3.Norm(p)/20))))
			}
		}
	}
	g, err := volview.NewGrid(n, n, n, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{X: -n / 2, Y: -n / 2, Z: -n / 2}, values)
	if err != nil {
		t.Fatal(err)
	}
	s := render.Extract(g, 30)
	contours := surfop.Contours(s, zPlane(t), surfop.ContourValues(5, -10, 10))
	perPlane := make(map[float64]int)
	for _, c := range contours {
		perPlane[c.Value]++
		if !c.Closed {
			t.Errorf("contour at z=%v is open with %d points", c.Value, len(c.Points))
		}
	}
	for _, z := range surfop.ContourValues(5, -10, 10) {
		if perPlane[z] != 1 {
			t.Errorf("plane z=%v: got %d contours, want 1", z, perPlane[z])
		}
	}
}

func TestTube(t *testing.T) {
	square := surfop.Contour{
		Value:  2,
		Points: []r3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}},
		Closed: true,
	}
	open := square
	open.Closed = false
	const radius = 0.1
	for _, test := range []struct {
		name      string
		contour   surfop.Contour
		sides     int
		wantFaces int
	}{
		{name: "closed", contour: square, sides: 6, wantFaces: 4 * 6 * 2},
		{name: "open", contour: open, sides: 6, wantFaces: 3 * 6 * 2},
		{name: "default sides", contour: square, sides: 0, wantFaces: 4 * 8 * 2},
	} {
		tube := surfop.Tube([]surfop.Contour{test.contour}, radius, surfop.TubeParams{Sides: test.sides})
		if err := tube.Validate(); err != nil {
			t.Fatalf("%s: %v", test.name, err)
		}
		if len(tube.Faces) != test.wantFaces {
			t.Errorf("%s: got %d faces, want %d", test.name, len(tube.Faces), test.wantFaces)
		}
		sides := len(tube.Vertices) / len(test.contour.Points)
		for i, v := range tube.Vertices {
			center := test.contour.Points[i/sides]
			off := r3.Sub(v, center)
			if math.Abs(r3.Norm(off)-radius) > 1e-12 {
				t.Fatalf("%s: vertex %d at distance %g from ring center", test.name, i, r3.Norm(off))
			}
			if r3.Dot(off, tube.Normals[i]) <= 0 {
				t.Fatalf("%s: vertex %d normal points inward", test.name, i)
			}
			if tube.Scalars[i] != test.contour.Value {
				t.Fatalf("%s: scalar %g, want contour value", test.name, tube.Scalars[i])
			}
		}
	}
}

func TestCrossSectionTube(t *testing.T) {
	s := sampleSphere(t, r3.Vec{}, 1, 17)
	pl := zPlane(t)
	tube := surfop.CrossSectionTube(s, pl, 4, -0.5, 0.5, 0.02, surfop.TubeParams{})
	if tube.IsEmpty() {
		t.Fatal("empty cross section tube")
	}
	if err := tube.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name          string
		count         int
		rmin, rmax, r float64
	}{
		{name: "no planes", count: 0, rmin: -1, rmax: 1, r: 0.1},
		{name: "zero radius", count: 3, rmin: -1, rmax: 1, r: 0},
		{name: "planes miss", count: 3, rmin: 5, rmax: 6, r: 0.1},
	} {
		if got := surfop.CrossSectionTube(s, pl, test.count, test.rmin, test.rmax, test.r, surfop.TubeParams{}); !got.IsEmpty() {
			t.Errorf("%s: expected empty surface, got %d faces", test.name, len(got.Faces))
		}
	}
	if got := surfop.CrossSectionTube(&volview.Surface{}, pl, 3, -1, 1, 0.1, surfop.TubeParams{}); !got.IsEmpty() {
		t.Error("expected empty tube for empty surface")
	}
}

func TestClip(t *testing.T) {
	s := sampleSphere(t, r3.Vec{}, 1, 15)
	s.Scalars = make([]float64, len(s.Vertices))
	for i, v := range s.Vertices {
		s.Scalars[i] = v.Z
	}
	pl := zPlane(t)
	const threshold = 0.2
	clipped := surfop.Clip(s, pl, threshold)
	if clipped.IsEmpty() {
		t.Fatal("clip removed everything")
	}
	if err := clipped.Validate(); err != nil {
		t.Fatal(err)
	}
	for i, v := range clipped.Vertices {
		if z := pl.Evaluate(v); z > threshold+1e-9 {
			t.Fatalf("vertex %d fn=%g above threshold", i, z)
		}
		// Scalars are linear in z so interpolation reproduces them.
		if math.Abs(clipped.Scalars[i]-v.Z) > 1e-9 {
			t.Fatalf("vertex %d scalar %g, want %g", i, clipped.Scalars[i], v.Z)
		}
	}
	if len(clipped.Faces) >= len(s.Faces) {
		t.Errorf("clip kept %d of %d faces", len(clipped.Faces), len(s.Faces))
	}
	if got := surfop.Clip(s, pl, -10); !got.IsEmpty() {
		t.Error("threshold below surface should remove everything")
	}
	if got := surfop.Clip(s, pl, 10); len(got.Faces) != len(s.Faces) {
		t.Errorf("threshold above surface kept %d of %d faces", len(got.Faces), len(s.Faces))
	}
	// Input is not modified.
	if s.Scalars[0] != s.Vertices[0].Z {
		t.Error("clip modified its input")
	}
}

func TestClipSphereFunction(t *testing.T) {
	s := sampleSphere(t, r3.Vec{}, 1, 15)
	ball, _ := volview.NewSphere(r3.Vec{X: 1}, 0.8)
	clipped := surfop.Clip(s, ball, 0)
	if err := clipped.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, v := range clipped.Vertices {
		// Interpolated cut vertices lie slightly off the curved boundary.
		if ball.Evaluate(v) > 0.05 {
			t.Fatalf("vertex %v outside clip sphere", v)
		}
	}
}

func TestDistanceFieldIdentical(t *testing.T) {
	a := sampleSphere(t, r3.Vec{}, 1, 11)
	b := a.Clone()
	field, rng := surfop.DistanceField(a, b)
	if rng != (volview.Range{}) {
		t.Errorf("identical surfaces range %v, want [0,0]", rng)
	}
	for i, d := range field.Scalars {
		if d != 0 {
			t.Fatalf("scalar %d = %g, want 0", i, d)
		}
	}
	if len(field.Faces) != len(b.Faces) {
		t.Error("distance field changed target topology")
	}
	if b.Scalars != nil {
		t.Error("distance field modified target")
	}
}

func bruteDistance(ref *volview.Surface, p r3.Vec) float64 {
	best := math.Inf(1)
	for i := range ref.Faces {
		best = math.Min(best, r3.Norm(r3.Sub(p, ref.Triangle(i).Closest(p))))
	}
	return best
}

func TestDistanceFieldBruteForce(t *testing.T) {
	ref := sampleSphere(t, r3.Vec{}, 1, 12)
	target := sampleSphere(t, r3.Vec{X: 0.3, Y: -0.2}, 1.6, 9)
	field, rng := surfop.DistanceField(ref, target)
	if err := field.Validate(); err != nil {
		t.Fatal(err)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, p := range target.Vertices {
		want := bruteDistance(ref, p)
		if math.Abs(field.Scalars[i]-want) > 1e-12 {
			t.Fatalf("vertex %d: got %g want %g", i, field.Scalars[i], want)
		}
		lo, hi = math.Min(lo, want), math.Max(hi, want)
	}
	if math.Abs(rng.Min-lo) > 1e-12 || math.Abs(rng.Max-hi) > 1e-12 {
		t.Errorf("range got %v want [%g,%g]", rng, lo, hi)
	}
}

func TestDistanceFieldRandomPoints(t *testing.T) {
	ref := sampleSphere(t, r3.Vec{}, 1, 10)
	rng := rand.New(rand.NewSource(1))
	target := &volview.Surface{}
	for i := 0; i < 60; i++ {
		p := r3.Vec{X: 4*rng.Float64() - 2, Y: 4*rng.Float64() - 2, Z: 4*rng.Float64() - 2}
		target.Vertices = append(target.Vertices, p)
		if i%3 == 2 {
			target.Faces = append(target.Faces, [3]int{i - 2, i - 1, i})
		}
	}
	field, _ := surfop.DistanceField(ref, target)
	for i, p := range target.Vertices {
		if want := bruteDistance(ref, p); math.Abs(field.Scalars[i]-want) > 1e-12 {
			t.Fatalf("point %v: got %g want %g", p, field.Scalars[i], want)
		}
	}
}

func TestDistanceFieldPointCloud(t *testing.T) {
	ref := &volview.Surface{Vertices: []r3.Vec{{}, {X: 2}}}
	target := &volview.Surface{
		Vertices: []r3.Vec{{Y: 1}, {X: 2, Z: 3}, {X: 1}},
		Faces:    [][3]int{{0, 1, 2}},
	}
	field, rng := surfop.DistanceField(ref, target)
	want := []float64{1, 3, 1}
	for i := range want {
		if math.Abs(field.Scalars[i]-want[i]) > 1e-12 {
			t.Errorf("vertex %d: got %g want %g", i, field.Scalars[i], want[i])
		}
	}
	if rng != (volview.Range{Min: 1, Max: 3}) {
		t.Errorf("range got %v", rng)
	}
}

func TestDistanceFieldEmpty(t *testing.T) {
	a := sampleSphere(t, r3.Vec{}, 1, 8)
	for _, test := range []struct {
		name        string
		ref, target *volview.Surface
	}{
		{name: "empty ref", ref: &volview.Surface{}, target: a},
		{name: "empty target", ref: a, target: &volview.Surface{}},
		{name: "nil ref", ref: nil, target: a},
	} {
		s, rng := surfop.DistanceField(test.ref, test.target)
		if !s.IsEmpty() || rng != (volview.Range{}) {
			t.Errorf("%s: expected empty result", test.name)
		}
	}
}

func TestScalarStats(t *testing.T) {
	s := &volview.Surface{Vertices: make([]r3.Vec, 5), Scalars: []float64{4, 1, 3, 2, 5}}
	st := surfop.ScalarStats(s)
	if st.N != 5 || st.Min != 1 || st.Max != 5 || st.Mean != 3 || st.Median != 3 {
		t.Errorf("unexpected stats %+v", st)
	}
	if math.Abs(st.StdDev-math.Sqrt(2.5)) > 1e-12 {
		t.Errorf("stddev got %g", st.StdDev)
	}
	if (surfop.ScalarStats(&volview.Surface{}) != surfop.Stats{}) {
		t.Error("expected zero stats without scalars")
	}
}

func TestDecimate(t *testing.T) {
	s := sampleSphere(t, r3.Vec{}, 1, 20)
	dec, err := surfop.Decimate(s, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	if err := dec.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(dec.Faces) == 0 || len(dec.Faces) >= len(s.Faces) {
		t.Errorf("decimated %d faces to %d", len(s.Faces), len(dec.Faces))
	}
	for _, bad := range []float64{0, -1, 1.5, math.NaN()} {
		if _, err := surfop.Decimate(s, bad); err == nil {
			t.Errorf("factor %g: expected error", bad)
		}
	}
}

func TestWriteContoursSVG(t *testing.T) {
	s := sampleSphere(t, r3.Vec{}, 1, 15)
	pl := zPlane(t)
	contours := surfop.Contours(s, pl, surfop.ContourValues(3, -0.5, 0.5))
	var buf bytes.Buffer
	if err := surfop.WriteContoursSVG(&buf, contours, pl, 200); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(out), "<?xml") || !strings.Contains(out, "</svg>") {
		t.Fatal("output is not an svg document")
	}
	if got := strings.Count(out, "<polyline"); got != len(contours) {
		t.Errorf("got %d polylines, want %d", got, len(contours))
	}
	if err := surfop.WriteContoursSVG(&buf, contours, pl, 0); err == nil {
		t.Error("expected error for zero size")
	}
}
