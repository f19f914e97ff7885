// Package populate runs the jobs of a plan and produces one instance set per
// job. It is read-only with respect to the plan.
package populate

import (
	"context"
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/logging"
	"github.com/chazu/strew/pkg/occlusion"
	"github.com/chazu/strew/pkg/plan"
	"github.com/chazu/strew/pkg/sampling"
	"github.com/chazu/strew/pkg/shape"
)

// InstanceSet is the output of one job.
type InstanceSet struct {
	Job       string   `json:"job"`
	Curve     string   `json:"curve"`
	Mode      string   `json:"mode"`
	Positions []v3.Vec `json:"positions"`
	Excluded  int      `json:"excluded,omitempty"` // positions dropped by exclusion zones
}

// Count returns the number of positions.
func (s *InstanceSet) Count() int { return len(s.Positions) }

// ErrInvalidPlan is returned when validation finds blocking errors.
var ErrInvalidPlan = errors.New("invalid plan")

// Populate validates p and runs every job in order. Warnings are logged.
// A nil plan yields no sets.
func Populate(ctx context.Context, p *plan.Plan) ([]*InstanceSet, error) {
	if p == nil {
		return nil, nil
	}
	r := plan.ValidateAll(p)
	for _, w := range r.Warnings {
		logging.Logger().Warn("plan warning", "finding", w.Error())
	}
	if !r.OK() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, errors.Join(asErrors(r.Errors)...))
	}

	sets := make([]*InstanceSet, 0, len(p.Jobs))
	for _, j := range p.Jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set, err := RunJob(ctx, p, j)
		if err != nil {
			return nil, fmt.Errorf("populate: job %q: %w", j.Name, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func asErrors(findings []plan.ValidationError) []error {
	errs := make([]error, len(findings))
	for i, f := range findings {
		errs[i] = f
	}
	return errs
}

// RunJob samples one job of p without validating the plan.
func RunJob(ctx context.Context, p *plan.Plan, j *plan.Job) (*InstanceSet, error) {
	c := p.Curve(j.Curve)
	if c == nil {
		return nil, fmt.Errorf("unknown curve %q", j.Curve)
	}

	pts, err := sampling.SampleSpline(ctx, c.Build(), c.Transform(), samplingBox(c, j), j.Footprint, j.Params)
	if err != nil {
		return nil, err
	}

	zones, err := exclusionShapes(j)
	if err != nil {
		return nil, err
	}
	kept := shape.Exclude(pts, zones...)

	logging.Logger().Info("job done",
		"job", j.Name, "mode", j.Params.Mode, "positions", len(kept), "excluded", len(pts)-len(kept))

	return &InstanceSet{
		Job:       j.Name,
		Curve:     c.Name,
		Mode:      j.Params.Mode.String(),
		Positions: kept,
		Excluded:  len(pts) - len(kept),
	}, nil
}

// InteriorGrid returns the filled inclusion grid of an interior job, for
// inspection.
func InteriorGrid(ctx context.Context, p *plan.Plan, j *plan.Job) (*occlusion.Grid, error) {
	if j.Params.Mode != sampling.Interior {
		return nil, fmt.Errorf("job %q samples along its path and has no grid", j.Name)
	}
	c := p.Curve(j.Curve)
	if c == nil {
		return nil, fmt.Errorf("unknown curve %q", j.Curve)
	}
	return sampling.InteriorGrid(ctx, c.Build(), c.Transform(), samplingBox(c, j), j.Footprint, j.Params)
}

// samplingBox returns the job's box, or the curve's world bounds flattened
// to the Z=0 plane.
func samplingBox(c *plan.CurveSpec, j *plan.Job) geom.Box {
	if j.Box != nil {
		return *j.Box
	}
	b := c.WorldBounds()
	if b.IsInitialized() {
		b.Min.Z, b.Max.Z = 0, 0
	}
	return b
}

func exclusionShapes(j *plan.Job) ([]shape.Shape, error) {
	zones := make([]shape.Shape, 0, len(j.Exclusions))
	for i, e := range j.Exclusions {
		s, err := e.Shape()
		if err != nil {
			return nil, fmt.Errorf("exclusion %d: %w", i, err)
		}
		zones = append(zones, s)
	}
	return zones, nil
}
