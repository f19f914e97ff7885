// Package curve provides parametric curve evaluators over the [0,1] parameter
// domain: a linear polyline and a uniform Catmull-Rom spline, open or cyclic.
package curve

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Curve is a parametric curve evaluated in local coordinates. The parameter
// u always spans [0,1] whatever the number of control points.
type Curve interface {
	PositionAt(u float64) v3.Vec
	TangentAt(u float64) v3.Vec
	ControlPointCount() int
	ControlPointAt(i int) v3.Vec
	IsCyclic() bool
}

// span maps u to a span index and a local parameter in [0,1]. spans must be
// at least 1.
func span(u float64, spans int) (int, float64) {
	if u <= 0 {
		return 0, 0
	}
	if u >= 1 {
		return spans - 1, 1
	}
	s := u * float64(spans)
	i := int(math.Floor(s))
	if i >= spans {
		i = spans - 1
	}
	return i, s - float64(i)
}

func spanCount(n int, cyclic bool) int {
	if cyclic {
		return n
	}
	return n - 1
}

// ---------------------------------------------------------------------------
// Polyline
// ---------------------------------------------------------------------------

// Polyline joins its control points with straight spans, each covering an
// equal share of the parameter domain. A cyclic polyline adds the span from
// the last point back to the first.
type Polyline struct {
	points []v3.Vec
	cyclic bool
}

// NewPolyline copies points into a new polyline.
func NewPolyline(points []v3.Vec, cyclic bool) *Polyline {
	return &Polyline{points: append([]v3.Vec(nil), points...), cyclic: cyclic}
}

func (p *Polyline) ControlPointCount() int      { return len(p.points) }
func (p *Polyline) ControlPointAt(i int) v3.Vec { return p.points[i] }
func (p *Polyline) IsCyclic() bool              { return p.cyclic }

func (p *Polyline) ends(i int) (v3.Vec, v3.Vec) {
	n := len(p.points)
	return p.points[i], p.points[(i+1)%n]
}

// PositionAt returns the point at parameter u.
func (p *Polyline) PositionAt(u float64) v3.Vec {
	switch len(p.points) {
	case 0:
		return v3.Vec{}
	case 1:
		return p.points[0]
	}
	i, t := span(u, spanCount(len(p.points), p.cyclic))
	a, b := p.ends(i)
	return a.Add(b.Sub(a).MulScalar(t))
}

// TangentAt returns dP/du, constant along each span.
func (p *Polyline) TangentAt(u float64) v3.Vec {
	if len(p.points) < 2 {
		return v3.Vec{}
	}
	spans := spanCount(len(p.points), p.cyclic)
	i, _ := span(u, spans)
	a, b := p.ends(i)
	return b.Sub(a).MulScalar(float64(spans))
}

// ---------------------------------------------------------------------------
// CatmullRom
// ---------------------------------------------------------------------------

// CatmullRom is a uniform Catmull-Rom spline passing through every control
// point. Open splines use one-sided tangents at both ends.
type CatmullRom struct {
	points []v3.Vec
	cyclic bool
}

// NewCatmullRom copies points into a new spline.
func NewCatmullRom(points []v3.Vec, cyclic bool) *CatmullRom {
	return &CatmullRom{points: append([]v3.Vec(nil), points...), cyclic: cyclic}
}

func (c *CatmullRom) ControlPointCount() int      { return len(c.points) }
func (c *CatmullRom) ControlPointAt(i int) v3.Vec { return c.points[i] }
func (c *CatmullRom) IsCyclic() bool              { return c.cyclic }

// knotTangent returns the Hermite tangent at control point i.
func (c *CatmullRom) knotTangent(i int) v3.Vec {
	n := len(c.points)
	if c.cyclic {
		prev := c.points[(i-1+n)%n]
		next := c.points[(i+1)%n]
		return next.Sub(prev).MulScalar(0.5)
	}
	switch i {
	case 0:
		return c.points[1].Sub(c.points[0])
	case n - 1:
		return c.points[n-1].Sub(c.points[n-2])
	}
	return c.points[i+1].Sub(c.points[i-1]).MulScalar(0.5)
}

// hermite returns the local parameter and the Hermite data of the span at u.
func (c *CatmullRom) hermite(u float64) (t float64, p0, p1, m0, m1 v3.Vec) {
	n := len(c.points)
	i, t := span(u, spanCount(n, c.cyclic))
	j := (i + 1) % n
	return t, c.points[i], c.points[j], c.knotTangent(i), c.knotTangent(j)
}

// PositionAt returns the point at parameter u.
func (c *CatmullRom) PositionAt(u float64) v3.Vec {
	switch len(c.points) {
	case 0:
		return v3.Vec{}
	case 1:
		return c.points[0]
	}
	t, p0, p1, m0, m1 := c.hermite(u)
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return p0.MulScalar(h00).Add(m0.MulScalar(h10)).Add(p1.MulScalar(h01)).Add(m1.MulScalar(h11))
}

// TangentAt returns the analytic derivative dP/du.
func (c *CatmullRom) TangentAt(u float64) v3.Vec {
	if len(c.points) < 2 {
		return v3.Vec{}
	}
	t, p0, p1, m0, m1 := c.hermite(u)
	t2 := t * t
	d00 := 6*t2 - 6*t
	d10 := 3*t2 - 4*t + 1
	d01 := -6*t2 + 6*t
	d11 := 3*t2 - 2*t
	dt := p0.MulScalar(d00).Add(m0.MulScalar(d10)).Add(p1.MulScalar(d01)).Add(m1.MulScalar(d11))
	return dt.MulScalar(float64(spanCount(len(c.points), c.cyclic)))
}
