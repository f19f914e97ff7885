// Package spline turns parametric curves into projected 2D segments and
// evenly spaced samples, and estimates their length and parameter velocity.
package spline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/strew/pkg/curve"
	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/logging"
)

var (
	ErrDegenerateCurve = errors.New("degenerate curve")
	ErrInvalidSpacing  = errors.New("spacing must be positive")
	ErrMissingCount    = errors.New("sample count must be positive")
)

// Helper wraps a curve with a segment cache and length estimators. Its cache
// is safe for concurrent use; SetCurve is not.
type Helper struct {
	curve curve.Curve
	cache SegmentCache
}

// NewHelper returns a helper over c.
func NewHelper(c curve.Curve) *Helper {
	return &Helper{curve: c}
}

// Curve returns the wrapped curve.
func (h *Helper) Curve() curve.Curve { return h.curve }

// SetCurve replaces the wrapped curve, clearing the cache when it changes.
func (h *Helper) SetCurve(c curve.Curve) {
	if h.curve != c {
		h.InvalidateCache()
	}
	h.curve = c
}

// InvalidateCache drops every cached segment set. Call it after mutating the
// wrapped curve.
func (h *Helper) InvalidateCache() { h.cache.Clear() }

// Cache exposes the segment cache.
func (h *Helper) Cache() *SegmentCache { return &h.cache }

func (h *Helper) Position(u float64) v3.Vec { return h.curve.PositionAt(u) }
func (h *Helper) Tangent(u float64) v3.Vec  { return h.curve.TangentAt(u) }

func (h *Helper) WorldPosition(u float64, t geom.Transform) v3.Vec {
	return t.Apply(h.Position(u))
}

// ControlPointCount returns 0 when no curve is set.
func (h *Helper) ControlPointCount() int {
	if h.curve == nil {
		return 0
	}
	return h.curve.ControlPointCount()
}

func (h *Helper) ControlPoint(i int) v3.Vec { return h.curve.ControlPointAt(i) }

func (h *Helper) WorldControlPoint(i int, t geom.Transform) v3.Vec {
	return t.Apply(h.ControlPoint(i))
}

// ---------------------------------------------------------------------------
// Regular samples
// ---------------------------------------------------------------------------

// PathMode selects how RegularSamples spaces its output.
type PathMode int

const (
	FixedSpacing PathMode = iota
	FixedCount
)

func (m PathMode) String() string {
	switch m {
	case FixedSpacing:
		return "fixed-spacing"
	case FixedCount:
		return "fixed-count"
	}
	return fmt.Sprintf("PathMode(%d)", int(m))
}

// PathSampling configures RegularSamples. Spacing is read in FixedSpacing
// mode, Count in FixedCount mode.
type PathSampling struct {
	Mode    PathMode
	Spacing float64
	Count   int
}

// regularPreStep is the parameter step used to measure the curve before
// placing regular samples.
const regularPreStep = 0.01

// RegularSamples returns world positions spaced evenly by arc length, with
// lengths measured in the plane of proj. The first sample is always the curve
// start.
func (h *Helper) RegularSamples(ps PathSampling, t geom.Transform, proj geom.Projection) ([]v3.Vec, error) {
	length, _ := h.EvalLength(t, regularPreStep, proj)
	if length <= 0 {
		logging.Issue("degenerate curve", "length", length)
		return nil, ErrDegenerateCurve
	}

	var spacing float64
	var count int
	switch ps.Mode {
	case FixedSpacing:
		if ps.Spacing <= 0 {
			logging.Issue("missing or invalid spacing for fixed-spacing mode", "spacing", ps.Spacing)
			return nil, fmt.Errorf("%w: %v", ErrInvalidSpacing, ps.Spacing)
		}
		spacing = ps.Spacing
		count = 1 + int(math.Floor(length/spacing))
	case FixedCount:
		if ps.Count <= 0 {
			logging.Issue("missing sample count for fixed-count mode", "count", ps.Count)
			return nil, fmt.Errorf("%w: %d", ErrMissingCount, ps.Count)
		}
		count = ps.Count
		spacing = length
		if count >= 2 {
			spacing = length / float64(count-1)
		}
	default:
		return nil, fmt.Errorf("unknown path mode %v", ps.Mode)
	}

	pr := geom.NewProjector(proj)
	n := max(100, 10*count)
	world := make([]v3.Vec, n)
	cum := make([]float64, n)
	world[0] = h.WorldPosition(0, t)
	prev := pr.ToPlane(world[0])
	for i := 1; i < n; i++ {
		world[i] = h.WorldPosition(float64(i)/float64(n-1), t)
		cur := pr.ToPlane(world[i])
		cum[i] = cum[i-1] + cur.Sub(prev).Length()
		prev = cur
	}

	if ps.Mode == FixedCount && count > 1 {
		spacing = cum[n-1] / float64(count-1)
	}

	out := make([]v3.Vec, 0, count)
	out = append(out, world[0])
	lo := 0
	for i := 1; i < count; i++ {
		k := lo + sort.SearchFloat64s(cum[lo:], spacing*float64(i))
		if k >= n {
			if ps.Mode != FixedCount {
				break
			}
			// rounding pushed the last target past the measured total
			k = n - 1
		}
		out = append(out, world[k])
		lo = k
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Segments
// ---------------------------------------------------------------------------

// ComputeSegments returns the curve as projected segments sampled at step du
// for a curve of about curveLength, and the world box of the samples.
// An open curve gets a closing segment from its last sample to its first,
// with MidParam geom.ClosingParam. Results are cached per (proj, du); the
// returned slice is the caller's to modify.
func (h *Helper) ComputeSegments(du, curveLength float64, t geom.Transform, proj geom.Projection) ([]geom.Segment2D, geom.Box) {
	if !proj.Is2D() {
		logging.Issue("segments need a 2D projection", "projection", proj)
		return nil, geom.EmptyBox()
	}
	if segs, box, ok := h.cache.Retrieve(proj, du); ok {
		logging.Logger().Debug("segment cache hit", "projection", proj, "du", du, "segments", len(segs))
		return segs, box
	}
	if h.ControlPointCount() < 2 {
		return nil, geom.EmptyBox()
	}

	pr := geom.NewProjector(proj)
	var s Sampler
	n := s.Sample(h, t, du, curveLength)

	box := geom.BoxOf(s.Points[0].Pos)
	first := pr.To2D(s.Points[0].Pos)
	prev, prevU := first, s.Points[0].U

	segs := make([]geom.Segment2D, 0, n)
	for _, p := range s.Points[1:] {
		box = box.Extend(p.Pos)
		cur := pr.To2D(p.Pos)
		segs = append(segs, geom.Segment2D{Start: prev, End: cur, MidParam: 0.5 * (prevU + p.U)})
		prev, prevU = cur, p.U
	}
	if !h.curve.IsCyclic() && n > 1 {
		segs = append(segs, geom.Segment2D{Start: prev, End: first, MidParam: geom.ClosingParam})
	}

	h.cache.Record(segs, box, proj, du)
	logging.Logger().Debug("segments computed", "projection", proj, "du", du, "segments", len(segs))
	return segs, box
}

// ---------------------------------------------------------------------------
// Estimators
// ---------------------------------------------------------------------------

// ControlPointsPathLength returns the length of the control polygon in the
// plane of proj. It underestimates curved spans.
func (h *Helper) ControlPointsPathLength(t geom.Transform, proj geom.Projection) float64 {
	n := h.ControlPointCount()
	if n < 2 {
		return 0
	}
	pr := geom.NewProjector(proj)
	total := 0.0
	prev := pr.ToPlane(h.WorldControlPoint(0, t))
	for i := 1; i < n; i++ {
		cur := pr.ToPlane(h.WorldControlPoint(i, t))
		total += cur.Sub(prev).Length()
		prev = cur
	}
	return total
}

// EvalLength integrates the chord length of the curve in the plane of proj
// with parameter step du. It also returns the largest chord/du seen.
func (h *Helper) EvalLength(t geom.Transform, du float64, proj geom.Projection) (length, maxVelocity float64) {
	if h.ControlPointCount() < 2 || du <= 0 {
		return 0, 0
	}
	pr := geom.NewProjector(proj)
	prev := pr.ToPlane(h.WorldPosition(0, t))
	prevU := 0.0
	steps := int(math.Floor(1/du + 1e-9))
	for i := 1; i <= steps+1; i++ {
		u := math.Min(float64(i)*du, 1)
		step := u - prevU
		if step <= 1e-12 {
			break
		}
		cur := pr.ToPlane(h.WorldPosition(u, t))
		d := cur.Sub(prev).Length()
		maxVelocity = math.Max(maxVelocity, d/step)
		length += d
		prev, prevU = cur, u
	}
	return length, maxVelocity
}

// MeanVelocity is the control polygon length over the unit parameter range.
func (h *Helper) MeanVelocity(t geom.Transform, proj geom.Projection) float64 {
	return h.ControlPointsPathLength(t, proj)
}

// EvalMeanVelocity is the integrated length over the unit parameter range,
// along with the maximum velocity.
func (h *Helper) EvalMeanVelocity(t geom.Transform, du float64, proj geom.Projection) (mean, maxVelocity float64) {
	return h.EvalLength(t, du, proj)
}

// EvalMaxVelocity estimates the maximum parameter velocity with a step
// derived from the control point count. It also returns the length estimate.
func (h *Helper) EvalMaxVelocity(t geom.Transform, proj geom.Projection) (maxVelocity, length float64) {
	du := 1 / float64(3*h.ControlPointCount()+1)
	length, maxVelocity = h.EvalLength(t, du, proj)
	return maxVelocity, length
}
