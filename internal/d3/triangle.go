package d3

import "gonum.org/v1/gonum/spatial/r3"

// Triangle is a 3D triangle defined by its three vertices.
type Triangle [3]r3.Vec

// AreaNormal returns the triangle normal scaled by twice its area,
// following the right-hand rule on vertex order.
func (t Triangle) AreaNormal() r3.Vec {
	return r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
}

// Normal returns the unit normal of the triangle. Degenerate triangles return the zero vector.
func (t Triangle) Normal() r3.Vec {
	n := t.AreaNormal()
	if r3.Norm2(n) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(n)
}

// Area returns the area of the triangle.
func (t Triangle) Area() float64 {
	return 0.5 * r3.Norm(t.AreaNormal())
}

// Centroid returns the mean of the triangle vertices.
func (t Triangle) Centroid() r3.Vec {
	return r3.Scale(1./3, r3.Add(t[0], r3.Add(t[1], t[2])))
}

// Bounds returns the axis aligned box enclosing the triangle.
func (t Triangle) Bounds() Box {
	return Box{
		Min: MinElem(t[0], MinElem(t[1], t[2])),
		Max: MaxElem(t[0], MaxElem(t[1], t[2])),
	}
}

// Closest returns closest point on the triangle to argument point p.
// Vertices are returned exactly when they are the closest feature.
// See Ericson, Real-Time Collision Detection, section 5.1.5.
func (t Triangle) Closest(p r3.Vec) r3.Vec {
	a, b, c := t[0], t[1], t[2]
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)
	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a // Vertex region A.
	}
	bp := r3.Sub(p, b)
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b // Vertex region B.
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return r3.Add(a, r3.Scale(v, ab)) // Edge AB.
	}
	cp := r3.Sub(p, c)
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c // Vertex region C.
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return r3.Add(a, r3.Scale(w, ac)) // Edge AC.
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b))) // Edge BC.
	}
	denom := va + vb + vc
	if denom == 0 {
		// Degenerate triangle with collinear vertices, fall back to the nearest edge.
		return closestOnSegments(p, a, b, c)
	}
	v := vb / denom
	w := vc / denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}

func closestOnSegments(p, a, b, c r3.Vec) r3.Vec {
	best := ClosestOnSegment(p, a, b)
	for _, q := range [2]r3.Vec{ClosestOnSegment(p, b, c), ClosestOnSegment(p, c, a)} {
		if r3.Norm2(r3.Sub(q, p)) < r3.Norm2(r3.Sub(best, p)) {
			best = q
		}
	}
	return best
}

// ClosestOnSegment returns the point on segment ab closest to p.
func ClosestOnSegment(p, a, b r3.Vec) r3.Vec {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 == 0 {
		return a
	}
	t := r3.Dot(r3.Sub(p, a), ab) / l2
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	return r3.Add(a, r3.Scale(t, ab))
}
