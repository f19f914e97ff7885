// Package occlusion rasterizes closed 2D curves into occupancy grids with an
// even-odd scan-line fill, and harvests placement positions from the filled
// cells.
package occlusion

import (
	"cmp"
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"
	"slices"
	"sync"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/grid"
	"github.com/chazu/strew/pkg/logging"
	"github.com/chazu/strew/pkg/pattern"
)

const (
	// constantTolerance is the largest cell difference IsConstant ignores.
	constantTolerance = 1e-4
	// intersectionTolerance lets a row just below a segment's lowest point
	// still hit it.
	intersectionTolerance = 1e-12

	defaultStep = 1.0 / 16
	// maxStep keeps at least four samples along the curve when cells are
	// large compared to it.
	maxStep = 0.25
)

// Grid is an occupancy grid. Cells hold 1 where placement is fully allowed
// and 0 where it is blocked.
type Grid struct {
	*grid.Grid[float64]
}

// New returns an unfilled occlusion grid over box.
func New(box geom.Box, nx, ny int, opts ...grid.Option) *Grid {
	return &Grid{Grid: grid.New[float64](box, nx, ny, opts...)}
}

// IsConstant reports whether every cell is within 1e-4 of the first. An
// empty grid is constant.
func (g *Grid) IsConstant() bool {
	data := g.Data()
	if len(data) == 0 {
		return true
	}
	ref := data[0]
	for _, v := range data[1:] {
		if math.Abs(v-ref) > constantTolerance {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

// BuildOption configures BuildFromPattern.
type BuildOption func(*buildConfig)

type buildConfig struct {
	workers        int
	shouldContinue func() bool
}

// WithWorkers bounds the number of rows filled concurrently. n <= 0 uses
// GOMAXPROCS.
func WithWorkers(n int) BuildOption {
	return func(c *buildConfig) { c.workers = n }
}

// WithShouldContinue installs a predicate consulted after every row. The
// fill stops when it returns false. It may be called from several
// goroutines at once.
func WithShouldContinue(f func() bool) BuildOption {
	return func(c *buildConfig) { c.shouldContinue = f }
}

var errCancelled = errors.New("occlusion fill cancelled")

// BuildFromPattern resets every cell to 1 and rasterizes p into the grid.
// It returns false only when the fill was cancelled, in which case the grid
// contents are partial. Degenerate curves and unsupported pattern kinds
// leave the grid at 1 and return true.
func (g *Grid) BuildFromPattern(ctx context.Context, p pattern.Pattern, opts ...BuildOption) bool {
	cfg := buildConfig{shouldContinue: func() bool { return true }}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers <= 0 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}

	g.Allocate(1)

	dS := defaultStep
	velocity, length := p.MaxVelocity()
	if velocity > 0 {
		res := math.Max(g.CellWidth(), g.CellHeight())
		best := 0.5 * res / velocity
		dS = 2 * res / velocity
		if q := p.SamplingQuality(); q > 0 {
			dS /= q
		}
		dS = math.Max(dS, best)
	}
	if !(dS > 0) {
		dS = defaultStep
	}
	dS = math.Min(dS, maxStep)

	if p.Kind() != pattern.Enclosure {
		logging.Issue("pattern kind not supported", "kind", p.Kind())
		return true
	}

	segs, _ := p.Bake2DSegments(dS, length, p.Projection())
	slices.SortStableFunc(segs, func(a, b geom.Segment2D) int {
		return cmp.Compare(a.MinY(), b.MinY())
	})
	if len(segs) < 3 {
		logging.Logger().Debug("curve too small to rasterize", "segments", len(segs))
		return true
	}

	influence := math.Min(math.Max(p.OcclusionInfluence(), 0), 1)
	inside, outside := 1-influence, 1.0
	if !p.IsOcclusion() {
		inside, outside = influence, 0
	}

	logging.Logger().Debug("filling occlusion grid",
		"width", g.Width(), "height", g.Height(), "step", dS, "segments", len(segs), "workers", cfg.workers)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.workers)
	for j := 0; j < g.Height(); j++ {
		if ectx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			g.fillRow(j, segs, inside, outside)
			if !cfg.shouldContinue() {
				return errCancelled
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logging.Logger().Debug("occlusion fill stopped", "err", err)
		return false
	}
	return ctx.Err() == nil
}

var scratchPool = sync.Pool{
	New: func() any {
		s := make([]Intersection, 0, 16)
		return &s
	},
}

// fillRow writes row j. It only touches that row's cells.
func (g *Grid) fillRow(j int, segs []geom.Segment2D, inside, outside float64) {
	scratch := scratchPool.Get().(*[]Intersection)
	defer scratchPool.Put(scratch)

	y := g.StartY() + float64(j)*g.CellHeight()
	hits := FindIntersectionsMatchingY((*scratch)[:0], segs, y)
	slices.SortFunc(hits, func(a, b Intersection) int {
		return cmp.Compare(a.Point.X, b.Point.X)
	})
	*scratch = hits

	w := g.Width()
	row := g.Data()[j*w : (j+1)*w]
	in := false
	k := 0
	x := g.StartX()
	for i := range row {
		for k < len(hits) && hits[k].Point.X <= x {
			in = !in
			k++
		}
		if in {
			row[i] = inside
		} else {
			row[i] = outside
		}
		x += g.CellWidth()
	}
}

// Intersection is a crossing between a scan line and a segment. Normal is
// the unnormalized left-hand normal of the segment.
type Intersection struct {
	Point  v2.Vec
	Normal v2.Vec
}

// FindIntersectionsMatchingY appends to dst the crossings of the horizontal
// line at y with segs, which must be sorted by ascending MinY. Other
// segments are half-open and cover MinY <= y < MaxY, so a vertex on the line
// is counted once. Horizontal segments on the line contribute both endpoints.
func FindIntersectionsMatchingY(dst []Intersection, segs []geom.Segment2D, y float64) []Intersection {
	for _, s := range segs {
		if s.MaxY() < y {
			continue
		}
		if s.MinY() > y+intersectionTolerance {
			break
		}
		dx := s.End.X - s.Start.X
		dy := s.End.Y - s.Start.Y
		if dy != 0 && s.MaxY() <= y {
			continue
		}
		n := v2.Vec{X: -dy, Y: dx}
		if dy == 0 {
			dst = append(dst,
				Intersection{Point: v2.Vec{X: s.Start.X, Y: y}, Normal: n},
				Intersection{Point: v2.Vec{X: s.End.X, Y: y}, Normal: n})
			continue
		}
		x := s.Start.X + (y-s.Start.Y)*dx/dy
		dst = append(dst, Intersection{Point: v2.Vec{X: x, Y: y}, Normal: n})
	}
	return dst
}

// ---------------------------------------------------------------------------
// Sampling
// ---------------------------------------------------------------------------

// GetSampledPositions returns one position per cell with a value > 0. With
// forceAligned the position is the cell center; otherwise it is jittered
// within the cell and kept with a probability following the local value,
// so some cells may yield nothing. Output is deterministic for a seed.
func (g *Grid) GetSampledPositions(forceAligned bool, seed uint32) []v3.Vec {
	data := g.Data()
	if len(data) < g.Width()*g.Height() {
		logging.Issue("sampling an unfilled occlusion grid")
		return nil
	}
	rng := rand.New(rand.NewSource(int64(seed)))

	var out []v3.Vec
	idx := 0
	y := g.StartY()
	for j := 0; j < g.Height(); j++ {
		x := g.StartX()
		for i := 0; i < g.Width(); i++ {
			if data[idx] > 0 {
				if forceAligned {
					out = append(out, v3.Vec{X: x, Y: y})
				} else if p, ok := g.findRandLocation(x, y, idx, rng); ok {
					out = append(out, p)
				}
			}
			x += g.CellWidth()
			idx++
		}
		y += g.CellHeight()
	}
	return out
}

// findRandLocation tries jittered candidates from one Poisson pattern and
// keeps the first whose field value beats a uniform draw.
func (g *Grid) findRandLocation(cx, cy float64, cellIndex int, rng *rand.Rand) (v3.Vec, bool) {
	pg := int(rng.Int31()) % NumPoissonGrids
	w, h := g.CellWidth(), g.CellHeight()
	x0, y0 := cx-0.5*w, cy-0.5*h
	for k := 0; k < maxPoissonTries; k++ {
		off := PoissonPoint(pg, poissonFirst+k)
		x := x0 + w*off.X
		y := y0 + h*off.Y
		if g.EvaluateValueAt(x, y, cellIndex) >= rng.Float64() {
			return v3.Vec{X: x, Y: y}, true
		}
	}
	return v3.Vec{}, false
}
