// Package config reads TOML job files and converts them to population plans.
//
// A job file lists curves and the scatter jobs that run over them:
//
//	[[curve]]
//	name   = "lawn"
//	points = [[0, 0], [10, 0], [10, 10], [0, 10]]
//
//	[[job]]
//	name      = "trees"
//	curve     = "lawn"
//	footprint = [2, 2, 6]
//	density   = 0.5
//
//	[[job.exclude]]
//	circle = [5, 5]
//	radius = 2
//
// Vectors are arrays of two or three numbers; a missing Z is zero.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pelletier/go-toml/v2"

	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/plan"
	"github.com/chazu/strew/pkg/sampling"
)

// ErrBadVector is returned for vector arrays of the wrong length.
var ErrBadVector = errors.New("vector must have 2 or 3 components")

// File is the decoded form of a job file.
type File struct {
	Curves []Curve `toml:"curve"`
	Jobs   []Job   `toml:"job"`
}

// Curve is one [[curve]] table.
type Curve struct {
	Name   string      `toml:"name"`
	Points [][]float64 `toml:"points"`
	Closed *bool       `toml:"closed"` // default true
	Smooth bool        `toml:"smooth"`
	Offset []float64   `toml:"offset"`
	Usage  string      `toml:"usage"` // zone or path
}

// Job is one [[job]] table. Unset optional fields keep the sampling
// defaults.
type Job struct {
	Name      string      `toml:"name"`
	Curve     string      `toml:"curve"`
	Mode      string      `toml:"mode"`
	Density   *float64    `toml:"density"`
	Aligned   bool        `toml:"aligned"`
	NoOverlap bool        `toml:"no_overlap"`
	Spacing   []float64   `toml:"spacing"` // one value applies to both axes
	Count     *int        `toml:"count"`
	Seed      *uint32     `toml:"seed"`
	Workers   int         `toml:"workers"`
	Footprint []float64   `toml:"footprint"`
	Box       [][]float64 `toml:"box"`
	Exclude   []Exclude   `toml:"exclude"`
}

// Exclude is one [[job.exclude]] table: either a circle with a radius or a
// polygon.
type Exclude struct {
	Circle  []float64   `toml:"circle"`
	Radius  float64     `toml:"radius"`
	Polygon [][]float64 `toml:"polygon"`
}

// Load decodes a job file from r. Unknown keys are rejected.
func Load(r io.Reader) (*File, error) {
	var f File
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("config: line %d column %d: %w", row, col, err)
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	return &f, nil
}

// LoadFile decodes the job file at path.
func LoadFile(path string) (*File, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer fp.Close()
	return Load(fp)
}

// Plan converts f to a plan. Only the shape of values is checked here;
// plan.ValidateAll reports the rest.
func (f *File) Plan() (*plan.Plan, error) {
	p := plan.New()
	for i, c := range f.Curves {
		spec, err := c.spec()
		if err != nil {
			return nil, fmt.Errorf("config: curve %d (%s): %w", i, c.Name, err)
		}
		p.AddCurve(spec)
	}
	for i, j := range f.Jobs {
		job, err := j.job()
		if err != nil {
			return nil, fmt.Errorf("config: job %d (%s): %w", i, j.Name, err)
		}
		if j.Mode == "" {
			job.Params.Mode = p.DefaultMode(j.Curve)
		}
		p.AddJob(job)
	}
	return p, nil
}

func (c Curve) spec() (*plan.CurveSpec, error) {
	s := &plan.CurveSpec{Name: c.Name, Closed: true, Smooth: c.Smooth}
	if c.Closed != nil {
		s.Closed = *c.Closed
	}
	pts, err := toVec3List(c.Points)
	if err != nil {
		return nil, fmt.Errorf("points: %w", err)
	}
	s.Points = pts
	if s.Usage, err = sampling.ParseUsage(c.Usage); err != nil {
		return nil, err
	}
	if c.Offset != nil {
		if s.Offset, err = toVec3(c.Offset); err != nil {
			return nil, fmt.Errorf("offset: %w", err)
		}
	}
	return s, nil
}

func (j Job) job() (*plan.Job, error) {
	out := &plan.Job{Name: j.Name, Curve: j.Curve, Params: sampling.DefaultParameters()}
	params := &out.Params
	var err error

	if j.Mode != "" {
		if params.Mode, err = sampling.ParseMode(j.Mode); err != nil {
			return nil, err
		}
	}
	if j.Density != nil {
		params.Density = *j.Density
	}
	params.ForceAligned = j.Aligned
	params.ForbidOverlap = j.NoOverlap
	params.Workers = j.Workers
	if j.Seed != nil {
		params.RandSeed = *j.Seed
	}
	if j.Count != nil {
		n := *j.Count
		params.FixedCount = &n
	}
	switch len(j.Spacing) {
	case 0:
	case 1:
		params.FixedSpacing = &v2.Vec{X: j.Spacing[0], Y: j.Spacing[0]}
	case 2:
		params.FixedSpacing = &v2.Vec{X: j.Spacing[0], Y: j.Spacing[1]}
	default:
		return nil, fmt.Errorf("spacing: expected 1 or 2 values, got %d", len(j.Spacing))
	}

	if j.Footprint != nil {
		if out.Footprint, err = toVec3(j.Footprint); err != nil {
			return nil, fmt.Errorf("footprint: %w", err)
		}
	}
	if j.Box != nil {
		corners, err := toVec3List(j.Box)
		if err != nil {
			return nil, fmt.Errorf("box: %w", err)
		}
		if len(corners) != 2 {
			return nil, fmt.Errorf("box: expected 2 corners, got %d", len(corners))
		}
		b := geom.BoxOf(corners...)
		out.Box = &b
	}

	for i, e := range j.Exclude {
		ex, err := e.exclusion()
		if err != nil {
			return nil, fmt.Errorf("exclude %d: %w", i, err)
		}
		out.Exclusions = append(out.Exclusions, ex)
	}
	return out, nil
}

func (e Exclude) exclusion() (plan.Exclusion, error) {
	switch {
	case e.Circle != nil && e.Polygon != nil:
		return plan.Exclusion{}, errors.New("set either circle or polygon")
	case e.Circle != nil:
		c, err := toVec3(e.Circle)
		if err != nil {
			return plan.Exclusion{}, fmt.Errorf("circle: %w", err)
		}
		return plan.Exclusion{Kind: plan.ExcludeCircle, Center: v2.Vec{X: c.X, Y: c.Y}, Radius: e.Radius}, nil
	case e.Polygon != nil:
		pts, err := toVec3List(e.Polygon)
		if err != nil {
			return plan.Exclusion{}, fmt.Errorf("polygon: %w", err)
		}
		poly := make([]v2.Vec, len(pts))
		for i, p := range pts {
			poly[i] = v2.Vec{X: p.X, Y: p.Y}
		}
		return plan.Exclusion{Kind: plan.ExcludePolygon, Points: poly}, nil
	}
	return plan.Exclusion{}, errors.New("needs a circle or a polygon")
}

func toVec3(a []float64) (v3.Vec, error) {
	switch len(a) {
	case 2:
		return v3.Vec{X: a[0], Y: a[1]}, nil
	case 3:
		return v3.Vec{X: a[0], Y: a[1], Z: a[2]}, nil
	}
	return v3.Vec{}, fmt.Errorf("%w, got %d", ErrBadVector, len(a))
}

func toVec3List(list [][]float64) ([]v3.Vec, error) {
	out := make([]v3.Vec, 0, len(list))
	for i, a := range list {
		v, err := toVec3(a)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
