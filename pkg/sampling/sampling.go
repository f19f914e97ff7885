// Package sampling is the entry point for scattering positions over or along
// a curve.
package sampling

import (
	"context"
	"errors"
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/strew/pkg/curve"
	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/logging"
	"github.com/chazu/strew/pkg/occlusion"
	"github.com/chazu/strew/pkg/pattern"
	"github.com/chazu/strew/pkg/spline"
)

// DefaultRandSeed is the jitter seed set by DefaultParameters.
const DefaultRandSeed uint32 = 1234

// MaxCells caps the number of cells an interior sampling grid may allocate.
const MaxCells = 1 << 24

var (
	ErrInvalidBox        = errors.New("invalid sampling box")
	ErrInvalidFootprint  = errors.New("invalid mean instance footprint")
	ErrZeroDensity       = errors.New("density yields no instances")
	ErrMissingPathTarget = errors.New("path sampling needs a spacing or a count")
	ErrCancelled         = errors.New("occlusion fill cancelled")
	ErrTooManyCells      = errors.New("sampling grid too large")
)

// Mode selects how SampleSpline places positions.
type Mode int

const (
	// Interior fills the area enclosed by the curve.
	Interior Mode = iota
	// AlongPath places positions on the curve itself.
	AlongPath
)

func (m Mode) String() string {
	switch m {
	case Interior:
		return "interior"
	case AlongPath:
		return "path"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "interior" and "path".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "interior", "fill":
		return Interior, nil
	case "path", "along-path", "stroke":
		return AlongPath, nil
	}
	return 0, fmt.Errorf("unknown sampling mode %q", s)
}

// Usage is the role a curve plays in a scene.
type Usage int

const (
	UsageUndefined Usage = iota
	PopulationZone
	PopulationPath
)

func (u Usage) String() string {
	switch u {
	case UsageUndefined:
		return "undefined"
	case PopulationZone:
		return "zone"
	case PopulationPath:
		return "path"
	}
	return fmt.Sprintf("Usage(%d)", int(u))
}

// ParseUsage accepts "zone", "path" and "undefined".
func ParseUsage(s string) (Usage, error) {
	switch s {
	case "", "undefined":
		return UsageUndefined, nil
	case "zone", "population-zone":
		return PopulationZone, nil
	case "path", "population-path":
		return PopulationPath, nil
	}
	return 0, fmt.Errorf("unknown curve usage %q", s)
}

// ModeForUsage maps a curve usage to the sampling mode it implies. Undefined
// usages fall back to Interior.
func ModeForUsage(u Usage) Mode {
	if u == PopulationPath {
		return AlongPath
	}
	return Interior
}

// Parameters configures SampleSpline.
type Parameters struct {
	Mode Mode
	// Density is the target areal coverage, a fraction in [0,1].
	Density float64
	// ForceAligned emits cell centers instead of jittered positions.
	ForceAligned bool
	// ForbidOverlap is accepted but not implemented.
	ForbidOverlap bool
	// FixedSpacing: X is the path spacing; in interior mode with
	// ForceAligned both components are the cell size.
	FixedSpacing *v2.Vec
	// FixedCount is the number of path samples.
	FixedCount *int
	RandSeed   uint32
	// Workers bounds the occlusion fill parallelism. 0 uses GOMAXPROCS.
	Workers int
}

// DefaultParameters returns interior sampling at full density with the
// default seed.
func DefaultParameters() Parameters {
	return Parameters{Mode: Interior, Density: 1, RandSeed: DefaultRandSeed}
}

// SampleSpline returns world positions for c placed with t. Interior mode
// fills box, a world-space region, with cells sized from footprint and
// Density; positions lie in the Z=0 plane. AlongPath mode resamples the curve
// at regular arc-length intervals and keeps full 3D positions.
func SampleSpline(ctx context.Context, c curve.Curve, t geom.Transform, box geom.Box, footprint v3.Vec, p Parameters) ([]v3.Vec, error) {
	if p.ForbidOverlap {
		logging.Logger().Debug("forbid overlap is not implemented, ignoring")
	}
	switch p.Mode {
	case Interior:
		return sampleInterior(ctx, c, t, box, footprint, p)
	case AlongPath:
		return samplePath(c, t, p)
	}
	return nil, fmt.Errorf("unknown sampling mode %v", p.Mode)
}

// CellSize returns the interior cell size for a region of dims populated
// with footprint at p.Density, and the instance count it was derived from.
func CellSize(dims, footprint v3.Vec, p Parameters) (size v2.Vec, instances int, err error) {
	if footprint.X <= 0 || footprint.Y <= 0 {
		return v2.Vec{}, 0, fmt.Errorf("%w: %v", ErrInvalidFootprint, footprint)
	}
	area := dims.X * dims.Y
	objArea := footprint.X * footprint.Y
	ratio := footprint.Y / footprint.X

	d := 100 * p.Density
	n := math.Floor(math.Ceil(area/objArea) * math.Floor(d*d) / (100 * 100))
	instances = int(math.Min(n, math.MaxInt32))

	if p.ForceAligned {
		if p.FixedSpacing != nil {
			return *p.FixedSpacing, instances, nil
		}
		return v2.Vec{X: footprint.X, Y: footprint.Y}, instances, nil
	}
	if instances <= 0 {
		return v2.Vec{}, 0, fmt.Errorf("%w: density %v", ErrZeroDensity, p.Density)
	}
	x := math.Sqrt(area / n)
	return v2.Vec{X: x, Y: x * ratio}, instances, nil
}

// GridSize returns the interior grid resolution for a region of dims. It
// fails with ErrTooManyCells when the grid would exceed MaxCells.
func GridSize(dims, footprint v3.Vec, p Parameters) (nx, ny int, err error) {
	cell, _, err := CellSize(dims, footprint, p)
	if err != nil {
		return 0, 0, err
	}
	if !(cell.X > 0 && cell.Y > 0) {
		return 0, 0, fmt.Errorf("%w: cell size %v", ErrInvalidFootprint, cell)
	}
	// float math so huge regions cannot overflow int before the check
	fx := math.Max(math.Ceil(dims.X/cell.X), 1)
	fy := math.Max(math.Ceil(dims.Y/cell.Y), 1)
	if !(fx*fy <= MaxCells) {
		return 0, 0, fmt.Errorf("%w: %.0f x %.0f cells, limit %d", ErrTooManyCells, fx, fy, MaxCells)
	}
	return int(fx), int(fy), nil
}

func sampleInterior(ctx context.Context, c curve.Curve, t geom.Transform, box geom.Box, footprint v3.Vec, p Parameters) ([]v3.Vec, error) {
	g, err := InteriorGrid(ctx, c, t, box, footprint, p)
	if err != nil {
		return nil, err
	}
	return g.GetSampledPositions(p.ForceAligned, p.RandSeed), nil
}

// InteriorGrid builds and fills the inclusion grid Interior mode harvests
// positions from. Cells inside the curve hold 1, cells outside hold 0.
func InteriorGrid(ctx context.Context, c curve.Curve, t geom.Transform, box geom.Box, footprint v3.Vec, p Parameters) (*occlusion.Grid, error) {
	if !box.IsInitialized() {
		logging.Issue("invalid sampling box")
		return nil, ErrInvalidBox
	}
	dims := box.Dimensions()
	cell, n, err := CellSize(dims, footprint, p)
	if err != nil {
		logging.Issue("cannot size sampling cells", "err", err)
		return nil, err
	}
	nx, ny, err := GridSize(dims, footprint, p)
	if err != nil {
		logging.Issue("cannot size sampling grid", "err", err)
		return nil, err
	}
	logging.Logger().Debug("interior sampling",
		"instances", n, "cellX", cell.X, "cellY", cell.Y, "nx", nx, "ny", ny)

	g := occlusion.New(box, nx, ny)
	pat := pattern.NewSplinePattern(t, spline.NewHelper(c))
	pat.SetOcclusion(false)
	if !g.BuildFromPattern(ctx, pat, occlusion.WithWorkers(p.Workers)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrCancelled
	}
	return g, nil
}

func samplePath(c curve.Curve, t geom.Transform, p Parameters) ([]v3.Vec, error) {
	var ps spline.PathSampling
	switch {
	case p.FixedSpacing != nil:
		ps = spline.PathSampling{Mode: spline.FixedSpacing, Spacing: p.FixedSpacing.X}
	case p.FixedCount != nil:
		ps = spline.PathSampling{Mode: spline.FixedCount, Count: *p.FixedCount}
	default:
		logging.Issue("invalid sampling parameters")
		return nil, ErrMissingPathTarget
	}
	return spline.NewHelper(c).RegularSamples(ps, t, geom.ProjectZ)
}
