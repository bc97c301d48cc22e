package d3

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestTriangleClosest(t *testing.T) {
	tri := Triangle{{X: 0}, {X: 1}, {Y: 1}}
	for _, test := range []struct {
		p, want r3.Vec
	}{
		{p: tri[0], want: tri[0]},
		{p: tri[1], want: tri[1]},
		{p: tri[2], want: tri[2]},
		{p: r3.Vec{X: 0.25, Y: 0.25, Z: 3}, want: r3.Vec{X: 0.25, Y: 0.25}},
		{p: r3.Vec{X: 0.5, Y: -2}, want: r3.Vec{X: 0.5}},
		{p: r3.Vec{X: -1, Y: 0.5, Z: 1}, want: r3.Vec{Y: 0.5}},
		{p: r3.Vec{X: 2, Y: 2}, want: r3.Vec{X: 0.5, Y: 0.5}},
		{p: r3.Vec{X: -1, Y: -1, Z: -1}, want: tri[0]},
	} {
		got := tri.Closest(test.p)
		if !EqualWithin(got, test.want, 1e-12) {
			t.Errorf("closest to %v: got %v, want %v", test.p, got, test.want)
		}
	}
}

func TestTriangleClosestIsMinimum(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	rnd := func() r3.Vec {
		return r3.Vec{X: rng.Float64()*4 - 2, Y: rng.Float64()*4 - 2, Z: rng.Float64()*4 - 2}
	}
	for i := 0; i < 200; i++ {
		tri := Triangle{rnd(), rnd(), rnd()}
		p := rnd()
		closest := tri.Closest(p)
		dbest := r3.Norm(r3.Sub(closest, p))
		// Sample barycentric points, none should be closer.
		for j := 0; j < 100; j++ {
			u, v := rng.Float64(), rng.Float64()
			if u+v > 1 {
				u, v = 1-u, 1-v
			}
			q := r3.Add(tri[0], r3.Add(r3.Scale(u, r3.Sub(tri[1], tri[0])), r3.Scale(v, r3.Sub(tri[2], tri[0]))))
			if d := r3.Norm(r3.Sub(q, p)); d < dbest-1e-9 {
				t.Fatalf("found closer point %v (%g) than Closest %v (%g)", q, d, closest, dbest)
			}
		}
	}
}

func TestClosestOnSegment(t *testing.T) {
	a, b := r3.Vec{}, r3.Vec{X: 2}
	if got := ClosestOnSegment(r3.Vec{X: 1, Y: 5}, a, b); got != (r3.Vec{X: 1}) {
		t.Error("mid segment", got)
	}
	if got := ClosestOnSegment(r3.Vec{X: -3}, a, b); got != a {
		t.Error("before segment", got)
	}
	if got := ClosestOnSegment(r3.Vec{X: 3}, a, a); got != a {
		t.Error("degenerate segment", got)
	}
}
