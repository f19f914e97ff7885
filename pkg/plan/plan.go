// Package plan defines the population plan: the named curves of a scene and
// the scatter jobs that place instances over or along them. A plan is produced
// by the script engine or a TOML job file and consumed by package populate.
package plan

import (
	"fmt"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/strew/pkg/curve"
	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/sampling"
	"github.com/chazu/strew/pkg/shape"
)

// CurveSpec describes a curve by its control points.
type CurveSpec struct {
	Name   string   `json:"name"`
	Points []v3.Vec `json:"points"`
	Closed bool     `json:"closed"`
	Smooth bool     `json:"smooth"` // Catmull-Rom instead of straight spans
	Offset v3.Vec   `json:"offset"` // world translation of the local points
	Line   int      `json:"line,omitempty"`

	// Usage picks the sampling mode of jobs that do not set one.
	Usage sampling.Usage `json:"usage"`
}

// Build returns the curve evaluator for c.
func (c *CurveSpec) Build() curve.Curve {
	if c.Smooth {
		return curve.NewCatmullRom(c.Points, c.Closed)
	}
	return curve.NewPolyline(c.Points, c.Closed)
}

// Transform returns the local-to-world transform of c.
func (c *CurveSpec) Transform() geom.Transform {
	if c.Offset == (v3.Vec{}) {
		return geom.Identity()
	}
	return geom.Translation(c.Offset)
}

// WorldBounds returns the box of the world-space control points.
func (c *CurveSpec) WorldBounds() geom.Box {
	t := c.Transform()
	b := geom.EmptyBox()
	for _, p := range c.Points {
		b = b.Extend(t.Apply(p))
	}
	return b
}

// ExclusionKind distinguishes exclusion zone shapes.
type ExclusionKind int

const (
	ExcludeCircle ExclusionKind = iota
	ExcludePolygon
)

func (k ExclusionKind) String() string {
	switch k {
	case ExcludeCircle:
		return "circle"
	case ExcludePolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// Exclusion is a world-space zone whose interior drops sampled positions.
type Exclusion struct {
	Kind   ExclusionKind `json:"kind"`
	Center v2.Vec        `json:"center,omitempty"` // circle
	Radius float64       `json:"radius,omitempty"` // circle
	Points []v2.Vec      `json:"points,omitempty"` // polygon
}

// Shape builds the exclusion zone.
func (e Exclusion) Shape() (shape.Shape, error) {
	switch e.Kind {
	case ExcludeCircle:
		return shape.Circle(e.Center, e.Radius)
	case ExcludePolygon:
		return shape.Polygon(e.Points)
	}
	return nil, fmt.Errorf("unknown exclusion kind %v", e.Kind)
}

// Job scatters instances over or along one curve.
type Job struct {
	Name      string              `json:"name"`
	Curve     string              `json:"curve"`
	Params    sampling.Parameters `json:"params"`
	Footprint v3.Vec              `json:"footprint"`
	// Box is the sampling region. Nil uses the curve's world bounds.
	Box        *geom.Box   `json:"box,omitempty"`
	Exclusions []Exclusion `json:"exclusions,omitempty"`
	Line       int         `json:"line,omitempty"`
}

// Plan is the set of curves and jobs of one scene. Jobs run in insertion
// order.
type Plan struct {
	Curves []*CurveSpec `json:"curves"`
	Jobs   []*Job       `json:"jobs"`

	curveIndex map[string]*CurveSpec
	jobIndex   map[string]*Job
}

// New creates an empty Plan.
func New() *Plan {
	return &Plan{
		curveIndex: make(map[string]*CurveSpec),
		jobIndex:   make(map[string]*Job),
	}
}

// AddCurve appends c. It does not check for duplicate names; Validate
// reports them.
func (p *Plan) AddCurve(c *CurveSpec) {
	p.Curves = append(p.Curves, c)
	if c.Name != "" {
		p.curveIndex[c.Name] = c
	}
}

// AddJob appends j. Duplicate names are reported by Validate.
func (p *Plan) AddJob(j *Job) {
	p.Jobs = append(p.Jobs, j)
	if j.Name != "" {
		p.jobIndex[j.Name] = j
	}
}

// Curve returns the curve with the given name, or nil.
func (p *Plan) Curve(name string) *CurveSpec {
	return p.curveIndex[name]
}

// Job returns the job with the given name, or nil.
func (p *Plan) Job(name string) *Job {
	return p.jobIndex[name]
}

// DefaultMode returns the sampling mode implied by the usage of the named
// curve. Unknown curves yield Interior.
func (p *Plan) DefaultMode(curve string) sampling.Mode {
	if c := p.Curve(curve); c != nil {
		return sampling.ModeForUsage(c.Usage)
	}
	return sampling.Interior
}

// MustJob returns the job with the given name, or panics.
func (p *Plan) MustJob(name string) *Job {
	j := p.Job(name)
	if j == nil {
		panic(fmt.Sprintf("plan: no job named %q", name))
	}
	return j
}
