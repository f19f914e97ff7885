package spline

import (
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/strew/pkg/geom"
)

// Sample is one point of an adaptively sampled polyline.
type Sample struct {
	U      float64 // curve parameter
	Pos    v3.Vec  // world position
	Normal v2.Vec  // projected 2D normal, set by Compute2DNormals
}

// Sampler subdivides a curve into a polyline whose world-space chords stay
// close to a target length.
type Sampler struct {
	Points []Sample
}

func dist2(a, b v3.Vec) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

// Sample fills s.Points and returns their count. du is the nominal parameter
// step and must lie in (0,1); curveLength*du is the target chord length.
// The first point is at u=0 and the last exactly at u=1.
func (s *Sampler) Sample(h *Helper, t geom.Transform, du, curveLength float64) int {
	if !(du > 0 && du < 1) {
		panic(fmt.Sprintf("spline: sampling step %v outside (0,1)", du))
	}
	s.Points = s.Points[:0]

	minLen := curveLength * du
	minLen2 := minLen * minLen
	tol2 := 0.0025 * minLen2 // +/- 5% on the length
	minUStep := 0.1 * du

	prev := h.WorldPosition(0, t)
	s.Points = append(s.Points, Sample{U: 0, Pos: prev})

	u := 0.0
	for u < 1 {
		uMin := u
		uMax := math.Min(u+du, 1)

		next := h.WorldPosition(uMax, t)
		if d2 := dist2(next, prev); d2 <= minLen2+tol2 || uMax >= 1 {
			s.Points = append(s.Points, Sample{U: uMax, Pos: next})
			u, prev = uMax, next
			continue
		}

		// chord too long: bisect on the parameter
		for {
			mid := 0.5 * (uMin + uMax)
			p := h.WorldPosition(mid, t)
			d2 := dist2(p, prev)
			if math.Abs(d2-minLen2) < tol2 || uMax-uMin < minUStep {
				s.Points = append(s.Points, Sample{U: mid, Pos: p})
				u, prev = mid, p
				break
			}
			if d2 > minLen2 {
				uMax = mid
			} else {
				uMin = mid
			}
		}
	}
	return len(s.Points)
}

// Compute2DNormals sets the projected normal of every point. Each point but
// the last uses a forward difference at u+delta; the last uses a backward
// difference from 1-delta.
func (s *Sampler) Compute2DNormals(pr geom.Projector, delta float64, h *Helper, t geom.Transform) {
	last := len(s.Points) - 1
	for i := 0; i < last; i++ {
		p := &s.Points[i]
		next := h.WorldPosition(math.Min(p.U+delta, 1), t)
		p.Normal = geom.Normal2D(pr.To2D(p.Pos), pr.To2D(next))
	}
	if last > 0 {
		p := &s.Points[last]
		prev := h.WorldPosition(math.Min(1-delta, 1), t)
		p.Normal = geom.Normal2D(pr.To2D(prev), pr.To2D(p.Pos))
	}
}
