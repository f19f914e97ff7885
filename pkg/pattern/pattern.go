// Package pattern wraps a curve with the settings the occlusion grid builder
// needs: projection axis, sampling quality and occlusion semantics.
package pattern

import (
	"fmt"

	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/spline"
)

// Kind tells the grid builder how to rasterize a pattern.
type Kind int

const (
	// Enclosure patterns fill the interior of a closed curve.
	Enclosure Kind = iota
	// Ribbon patterns would follow an open curve with a width. Not supported.
	Ribbon
)

func (k Kind) String() string {
	switch k {
	case Enclosure:
		return "enclosure"
	case Ribbon:
		return "ribbon"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pattern is a 2D shape source for occlusion grids.
type Pattern interface {
	Kind() Kind

	Projection() geom.Projection
	SetProjection(p geom.Projection)
	// SamplingQuality divides the rasterization step when > 0.
	SamplingQuality() float64
	SetSamplingQuality(q float64)
	// IsOcclusion selects occlusion (inside is blocked) over inclusion
	// (inside is available).
	IsOcclusion() bool
	SetOcclusion(on bool)
	// OcclusionInfluence blends the inside value. It is clamped to [0,1] by
	// the grid builder, not here.
	OcclusionInfluence() float64
	SetOcclusionInfluence(v float64)

	MeanVelocity() float64
	MaxVelocity() (velocity, length float64)
	Bake2DSegments(dS, length float64, proj geom.Projection) ([]geom.Segment2D, geom.Box)
}

// settings carries the state shared by every pattern kind.
type settings struct {
	transform geom.Transform
	proj      geom.Projection
	quality   float64
	occlusion bool
	influence float64
}

func newSettings(t geom.Transform) settings {
	return settings{
		transform: t,
		proj:      geom.ProjectZ,
		quality:   1,
		occlusion: true,
		influence: 1,
	}
}

func (s *settings) Projection() geom.Projection     { return s.proj }
func (s *settings) SetProjection(p geom.Projection) { s.proj = p }
func (s *settings) SamplingQuality() float64        { return s.quality }
func (s *settings) SetSamplingQuality(q float64)    { s.quality = q }
func (s *settings) IsOcclusion() bool               { return s.occlusion }
func (s *settings) SetOcclusion(on bool)            { s.occlusion = on }
func (s *settings) OcclusionInfluence() float64     { return s.influence }
func (s *settings) SetOcclusionInfluence(v float64) { s.influence = v }
func (s *settings) Transform() geom.Transform       { return s.transform }
func (s *settings) SetTransform(t geom.Transform)   { s.transform = t }

// ---------------------------------------------------------------------------
// SplinePattern
// ---------------------------------------------------------------------------

// SplinePattern is an enclosure bounded by a curve. Open curves are closed
// by a straight segment when baked.
type SplinePattern struct {
	settings
	helper *spline.Helper
}

var _ Pattern = (*SplinePattern)(nil)

// NewSplinePattern returns an enclosure over h placed by t, projected along
// Z, with quality 1, occlusion on and full influence.
func NewSplinePattern(t geom.Transform, h *spline.Helper) *SplinePattern {
	return &SplinePattern{settings: newSettings(t), helper: h}
}

func (p *SplinePattern) Kind() Kind { return Enclosure }

// Helper returns the wrapped curve helper.
func (p *SplinePattern) Helper() *spline.Helper { return p.helper }

// MeanVelocity is the unprojected control polygon length.
func (p *SplinePattern) MeanVelocity() float64 {
	return p.helper.MeanVelocity(p.transform, geom.ProjectNone)
}

// MaxVelocity estimates the maximum parameter velocity in the pattern's
// projection plane, and the curve length.
func (p *SplinePattern) MaxVelocity() (velocity, length float64) {
	return p.helper.EvalMaxVelocity(p.transform, p.proj)
}

func (p *SplinePattern) Bake2DSegments(dS, length float64, proj geom.Projection) ([]geom.Segment2D, geom.Box) {
	return p.helper.ComputeSegments(dS, length, p.transform, proj)
}

// ---------------------------------------------------------------------------
// RibbonPattern
// ---------------------------------------------------------------------------

// RibbonPattern is a placeholder for open-curve bands. It reports no
// velocity and bakes no segments.
type RibbonPattern struct {
	settings
	helper *spline.Helper
	width  float64
}

var _ Pattern = (*RibbonPattern)(nil)

// NewRibbonPattern returns a ribbon of the given width along h.
func NewRibbonPattern(t geom.Transform, h *spline.Helper, width float64) *RibbonPattern {
	return &RibbonPattern{settings: newSettings(t), helper: h, width: width}
}

func (p *RibbonPattern) Kind() Kind                      { return Ribbon }
func (p *RibbonPattern) Width() float64                  { return p.width }
func (p *RibbonPattern) MeanVelocity() float64           { return 0 }
func (p *RibbonPattern) MaxVelocity() (float64, float64) { return 0, 0 }

func (p *RibbonPattern) Bake2DSegments(float64, float64, geom.Projection) ([]geom.Segment2D, geom.Box) {
	return nil, geom.EmptyBox()
}
