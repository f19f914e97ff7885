package plan

import (
	"errors"
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/sampling"
)

// ValidationSeverity indicates whether a validation finding blocks a run or
// is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks the run
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Subject  string             // "curve NAME" or "job NAME", empty if plan-level
	Line     int                // source line, 0 if unknown
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	var at string
	if e.Line > 0 {
		at = fmt.Sprintf("line %d: ", e.Line)
	}
	if e.Subject == "" {
		return fmt.Sprintf("[%s] %s%s", e.Severity, at, e.Message)
	}
	return fmt.Sprintf("[%s] %s%s: %s", e.Severity, at, e.Subject, e.Message)
}

// ValidationResult bundles errors (blocking) and warnings (advisory) from all
// validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether there are no blocking errors.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate runs the structural checks: names and curve references. An empty
// slice means the plan is structurally valid. It never mutates the plan.
func Validate(p *Plan) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateNames(p)...)
	errs = append(errs, validateReferences(p)...)
	return errs
}

// ValidateAll runs every tier (structural, geometric, sampling) and
// separates errors from warnings.
func ValidateAll(p *Plan) ValidationResult {
	var all []ValidationError
	all = append(all, Validate(p)...)
	all = append(all, validateGeometry(p)...)
	all = append(all, validateSampling(p)...)

	var result ValidationResult
	for _, e := range all {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, e)
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	return result
}

func curveErr(c *CurveSpec, sev ValidationSeverity, format string, args ...any) ValidationError {
	return ValidationError{
		Subject:  "curve " + c.Name,
		Line:     c.Line,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
	}
}

func jobErr(j *Job, sev ValidationSeverity, format string, args ...any) ValidationError {
	return ValidationError{
		Subject:  "job " + j.Name,
		Line:     j.Line,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
	}
}

// ---------------------------------------------------------------------------
// Tier 1: structure
// ---------------------------------------------------------------------------

// validateNames checks that every curve and job is named and that names are
// unique within their kind.
func validateNames(p *Plan) []ValidationError {
	var errs []ValidationError

	curves := make(map[string]bool)
	for _, c := range p.Curves {
		if c.Name == "" {
			errs = append(errs, curveErr(c, SeverityError, "curve has no name"))
			continue
		}
		if curves[c.Name] {
			errs = append(errs, curveErr(c, SeverityError, "duplicate curve name %q", c.Name))
		}
		curves[c.Name] = true
	}

	jobs := make(map[string]bool)
	for _, j := range p.Jobs {
		if j.Name == "" {
			errs = append(errs, jobErr(j, SeverityError, "job has no name"))
			continue
		}
		if jobs[j.Name] {
			errs = append(errs, jobErr(j, SeverityError, "duplicate job name %q", j.Name))
		}
		jobs[j.Name] = true
	}
	return errs
}

// validateReferences checks that every job names an existing curve.
func validateReferences(p *Plan) []ValidationError {
	var errs []ValidationError
	for _, j := range p.Jobs {
		if j.Curve == "" {
			errs = append(errs, jobErr(j, SeverityError, "job does not reference a curve"))
			continue
		}
		if p.Curve(j.Curve) == nil {
			errs = append(errs, jobErr(j, SeverityError, "references unknown curve %q", j.Curve))
		}
	}
	return errs
}

// ---------------------------------------------------------------------------
// Tier 2: geometry
// ---------------------------------------------------------------------------

func finite(v v3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}

func validateGeometry(p *Plan) []ValidationError {
	var errs []ValidationError

	for _, c := range p.Curves {
		if len(c.Points) < 2 {
			errs = append(errs, curveErr(c, SeverityError, "needs at least 2 points, has %d", len(c.Points)))
		}
		for i, pt := range c.Points {
			if !finite(pt) {
				errs = append(errs, curveErr(c, SeverityError, "point %d is not finite: %v", i, pt))
			}
		}
	}

	for _, j := range p.Jobs {
		if j.Params.Mode == sampling.Interior {
			if j.Footprint.X <= 0 || j.Footprint.Y <= 0 {
				errs = append(errs, jobErr(j, SeverityError,
					"interior sampling needs a positive footprint, got %v", j.Footprint))
			}
			if j.Box != nil {
				if !j.Box.IsInitialized() {
					errs = append(errs, jobErr(j, SeverityError, "sampling box is not initialized"))
				} else if d := j.Box.Dimensions(); d.X <= 0 || d.Y <= 0 {
					errs = append(errs, jobErr(j, SeverityError, "sampling box has no area: %v", d))
				}
			}
		}
		for i, e := range j.Exclusions {
			switch e.Kind {
			case ExcludeCircle:
				if e.Radius <= 0 {
					errs = append(errs, jobErr(j, SeverityError, "exclusion %d: radius must be positive, got %v", i, e.Radius))
				}
			case ExcludePolygon:
				if len(e.Points) < 3 {
					errs = append(errs, jobErr(j, SeverityError, "exclusion %d: polygon needs at least 3 points, has %d", i, len(e.Points)))
				}
			}
		}
	}
	return errs
}

// ---------------------------------------------------------------------------
// Tier 3: sampling parameters
// ---------------------------------------------------------------------------

func validateSampling(p *Plan) []ValidationError {
	var errs []ValidationError
	for _, j := range p.Jobs {
		params := j.Params
		switch params.Mode {
		case sampling.Interior:
			if params.Density < 0 || params.Density > 1 {
				errs = append(errs, jobErr(j, SeverityWarning, "density %v is outside [0,1]", params.Density))
			}
			if params.Density == 0 && !params.ForceAligned {
				errs = append(errs, jobErr(j, SeverityError, "density 0 places nothing unless aligned"))
			}
			if params.FixedSpacing != nil && !params.ForceAligned {
				errs = append(errs, jobErr(j, SeverityWarning, "spacing is ignored for jittered interior sampling"))
			}
			if params.FixedSpacing != nil && params.ForceAligned &&
				(params.FixedSpacing.X <= 0 || params.FixedSpacing.Y <= 0) {
				errs = append(errs, jobErr(j, SeverityError, "aligned spacing must be positive, got %v", *params.FixedSpacing))
			}
			if c := p.Curve(j.Curve); c != nil && !c.Closed {
				errs = append(errs, jobErr(j, SeverityWarning, "interior of open curve %q is closed by a straight segment", c.Name))
			}
			if err := gridSizeErr(p, j); err != nil {
				errs = append(errs, jobErr(j, SeverityError, "%v", err))
			}
		case sampling.AlongPath:
			switch {
			case params.FixedSpacing != nil:
				if params.FixedSpacing.X <= 0 {
					errs = append(errs, jobErr(j, SeverityError, "path spacing must be positive, got %v", params.FixedSpacing.X))
				}
			case params.FixedCount != nil:
				if *params.FixedCount <= 0 {
					errs = append(errs, jobErr(j, SeverityError, "path count must be positive, got %d", *params.FixedCount))
				}
			default:
				errs = append(errs, jobErr(j, SeverityError, "path sampling needs a spacing or a count"))
			}
		}
		if params.ForbidOverlap {
			errs = append(errs, jobErr(j, SeverityWarning, "forbid overlap is not implemented"))
		}
	}
	return errs
}

// gridSizeErr mirrors the cell ceiling InteriorGrid enforces. Other sizing
// failures are reported by the tiers above.
func gridSizeErr(p *Plan, j *Job) error {
	b := geom.EmptyBox()
	if j.Box != nil {
		b = *j.Box
	} else if c := p.Curve(j.Curve); c != nil {
		b = c.WorldBounds()
	}
	if !b.IsInitialized() {
		return nil
	}
	_, _, err := sampling.GridSize(b.Dimensions(), j.Footprint, j.Params)
	if errors.Is(err, sampling.ErrTooManyCells) {
		return err
	}
	return nil
}
