package render_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/deadsy/sdfx/obj"
	sdfxrender "github.com/deadsy/sdfx/render"
	"github.com/hschendel/stl"
	"github.com/soypat/volview"
	"github.com/soypat/volview/internal/d3"
	"github.com/soypat/volview/render"
	"gonum.org/v1/gonum/spatial/r3"
)

func sphereSurface(t testing.TB) *volview.Surface {
	sphere, _ := volview.NewSphere(r3.Vec{X: 1, Y: 2, Z: 3}, 2)
	bb := d3.Box(sphere.Bounds()).ScaleAboutCenter(1.2)
	s, err := render.SampleImplicit(sphere, r3.Box(bb), [3]int{16, 16, 16})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSTLWriteReadback(t *testing.T) {
	const tol = 1e-5
	input := sphereSurface(t)
	var b bytes.Buffer
	err := render.WriteSTL(&b, input)
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != 84+50*len(input.Faces) {
		t.Fatalf("unexpected STL size %d for %d faces", b.Len(), len(input.Faces))
	}
	output, err := render.ReadSTL(&b)
	if err != nil {
		t.Fatal(err)
	}
	if len(output.Faces) != len(input.Faces) {
		t.Fatal("length of triangles written/read not equal")
	}
	if err := output.Validate(); err != nil {
		t.Fatal(err)
	}
	mismatches := 0
	for iface := range input.Faces {
		expect := input.Triangle(iface)
		got := output.Triangle(iface)
		for i := range expect {
			if !d3.EqualWithin(got[i], expect[i], tol) {
				mismatches++
				t.Errorf("%dth triangle equality out of tolerance. got vertex %0.5g, want %0.5g", iface, got[i], expect[i])
			}
		}
		if mismatches > 10 {
			t.Fatal("too many mismatches")
		}
	}
}

func TestSTLEmpty(t *testing.T) {
	var b bytes.Buffer
	if err := render.WriteSTL(&b, &volview.Surface{}); err == nil {
		t.Error("expected error writing empty surface")
	}
	if _, err := render.ReadSTL(bytes.NewReader(make([]byte, 84))); err == nil {
		t.Error("expected error reading zero triangle STL")
	}
	if _, err := render.ReadSTL(bytes.NewReader(make([]byte, 10))); err == nil {
		t.Error("expected error reading short STL")
	}
}

// TestSTLCrossRead checks CreateSTL output against an independent STL decoder.
func TestSTLCrossRead(t *testing.T) {
	input := sphereSurface(t)
	path := filepath.Join(t.TempDir(), "sphere.stl")
	if err := render.CreateSTL(path, input); err != nil {
		t.Fatal(err)
	}
	solid, err := stl.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(solid.Triangles) != len(input.Faces) {
		t.Fatalf("stl package read %d triangles, wrote %d", len(solid.Triangles), len(input.Faces))
	}
}

// TestSTLReadSDFX reads a model written by the sdfx renderer.
func TestSTLReadSDFX(t *testing.T) {
	stdout := os.Stdout
	defer func() {
		os.Stdout = stdout // pesky sdfx prints out stuff
	}()
	os.Stdout, _ = os.Open(os.DevNull)
	path := filepath.Join(t.TempDir(), "sdfx_bolt.stl")
	object, err := obj.Bolt(&obj.BoltParms{
		Thread:      "npt_1/2",
		Style:       "hex",
		Tolerance:   0.1,
		TotalLength: 20,
		ShankLength: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	sdfxrender.ToSTL(object, 50, path, &sdfxrender.MarchingCubesOctree{})
	os.Stdout = stdout
	model, err := render.ReadSTLFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if model.IsEmpty() {
		t.Fatal("no faces read")
	}
	if err := model.Validate(); err != nil {
		t.Fatal(err)
	}
	// Welding shared vertices should leave far fewer vertices than 3 per face.
	if len(model.Vertices) >= 3*len(model.Faces) {
		t.Errorf("vertices were not merged: %d vertices for %d faces", len(model.Vertices), len(model.Faces))
	}
}
