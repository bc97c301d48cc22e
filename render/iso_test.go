package render

import (
	"math"
	"reflect"
	"testing"

	"github.com/soypat/volview"
	"gonum.org/v1/gonum/spatial/r3"
)

func uniformGrid(t testing.TB, n int, value float64) *volview.Grid {
	values := make([]float64, n*n*n)
	for i := range values {
		values[i] = value
	}
	g, err := volview.NewGrid(n, n, n, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}, values)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestExtractOutOfRange(t *testing.T) {
	g := uniformGrid(t, 4, 0)
	for _, iso := range []float64{5, -1, math.NaN(), math.Inf(1)} {
		s := Extract(g, iso)
		if len(s.Faces) != 0 || len(s.Vertices) != 0 {
			t.Errorf("iso %g: expected empty surface, got %d faces", iso, len(s.Faces))
		}
	}
	// Inside the range but on a constant field there is no crossing either.
	if s := Extract(g, 0); !s.IsEmpty() {
		t.Errorf("constant field produced %d faces", len(s.Faces))
	}
}

func TestExtractPlane(t *testing.T) {
	const n = 3
	var values []float64
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				values = append(values, float64(k))
			}
		}
	}
	g, err := volview.NewGrid(n, n, n, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}, values)
	if err != nil {
		t.Fatal(err)
	}
	s := Extract(g, 0.5)
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	area := 0.0
	for i := range s.Faces {
		tri := s.Triangle(i)
		area += tri.Area()
		if n := tri.Normal(); math.Abs(n.Z+1) > 1e-12 {
			t.Errorf("face %d normal %v does not point towards decreasing values", i, n)
		}
		for _, v := range tri {
			if v.Z != 0.5 {
				t.Fatalf("vertex %v off the level set", v)
			}
		}
	}
	if math.Abs(area-4) > 1e-9 {
		t.Errorf("level set area got %g, want 4", area)
	}
	for i, nrm := range s.Normals {
		if math.Abs(nrm.Z+1) > 1e-12 {
			t.Errorf("vertex normal %d got %v", i, nrm)
		}
	}
}

func TestExtractOnSamples(t *testing.T) {
	const n = 3
	var values []float64
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				values = append(values, float64(k))
			}
		}
	}
	g, err := volview.NewGrid(n, n, n, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}, values)
	if err != nil {
		t.Fatal(err)
	}
	// The level set is the k=1 layer of samples itself.
	s := Extract(g, 1)
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(s.Vertices) != n*n {
		t.Errorf("got %d vertices, want one per sample of the layer (%d)", len(s.Vertices), n*n)
	}
	area := 0.0
	for i := range s.Faces {
		tri := s.Triangle(i)
		area += tri.Area()
		for _, v := range tri {
			if v.Z != 1 {
				t.Fatalf("vertex %v off the level set", v)
			}
		}
	}
	if math.Abs(area-4) > 1e-9 {
		t.Errorf("level set area got %g, want 4", area)
	}
}

func TestExtractIntegerSamples(t *testing.T) {
	const n = 21
	var values []float64
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				p := r3.Vec{X: float64(i - n/2), Y: float64(j - n/2), Z: float64(k - n/2)}
				values = append(values, math.Round(math.Max(0, 100*(1-r3.Norm(p)/10))))
			}
		}
	}
	g, err := volview.NewGrid(n, n, n, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}, values)
	if err != nil {
		t.Fatal(err)
	}
	s := Extract(g, 30)
	if s.IsEmpty() {
		t.Fatal("empty surface")
	}
	seen := make(map[r3.Vec]int)
	for i, v := range s.Vertices {
		if j, ok := seen[v]; ok {
			t.Fatalf("vertices %d and %d share position %v", j, i, v)
		}
		seen[v] = i
	}
}

func TestExtractSphere(t *testing.T) {
	const radius = 1.
	sphere, _ := volview.NewSphere(r3.Vec{}, radius)
	bounds := r3.Box{Min: r3.Vec{X: -1.5, Y: -1.5, Z: -1.5}, Max: r3.Vec{X: 1.5, Y: 1.5, Z: 1.5}}
	const dims = 21
	// Crossings lie on lattice edges, the longest being the cell diagonal.
	h := math.Sqrt(3) * 3. / (dims - 1)
	s, err := SampleImplicit(sphere, bounds, [3]int{dims, dims, dims})
	if err != nil {
		t.Fatal(err)
	}
	if s.IsEmpty() {
		t.Fatal("empty sphere")
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, v := range s.Vertices {
		if d := math.Abs(r3.Norm(v) - radius); d > h {
			t.Fatalf("vertex %v is %g away from sphere", v, d)
		}
	}
	for i := range s.Faces {
		tri := s.Triangle(i)
		if r3.Dot(tri.Normal(), tri.Centroid()) <= 0 {
			t.Fatalf("face %d points inwards", i)
		}
	}
	again, _ := SampleImplicit(sphere, bounds, [3]int{dims, dims, dims})
	if !reflect.DeepEqual(s, again) {
		t.Error("extraction is not deterministic")
	}
}

func TestSampleGridErrors(t *testing.T) {
	sphere, _ := volview.NewSphere(r3.Vec{}, 1)
	box := sphere.Bounds()
	if _, err := SampleGrid(sphere, box, [3]int{1, 4, 4}); err == nil {
		t.Error("expected error for single sample axis")
	}
	if _, err := SampleGrid(sphere, r3.Box{}, [3]int{4, 4, 4}); err == nil {
		t.Error("expected error for empty bounds")
	}
	if _, err := SampleImplicit(nil, box, [3]int{4, 4, 4}); err == nil {
		t.Error("expected error for nil function")
	}
}
