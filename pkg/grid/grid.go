// Package grid implements a uniform 2D grid of scalar cells laid over the X/Y
// extent of a bounding box, with bilinear interpolation, discard filters and
// neighborhood means.
package grid

import (
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"golang.org/x/exp/constraints"

	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/logging"
)

// Option adjusts how Init derives the cell layout.
type Option func(*options)

type options struct {
	superSampling int
	quality       float64
	customCells   int
}

func defaultOptions() options {
	return options{superSampling: 1, quality: 1, customCells: -1}
}

// WithSuperSampling multiplies both cell counts by f when f > 1.
func WithSuperSampling(f int) Option {
	return func(o *options) { o.superSampling = f }
}

// WithDistributionQuality scales both cell counts down by q when q < 1 and no
// super-sampling is requested.
func WithDistributionQuality(q float64) Option {
	return func(o *options) { o.quality = q }
}

// WithCustomCellCount overrides the number of cells when n > 0 and differs
// from the requested width*height. Used when a cell stands for something
// other than a raster tile.
func WithCustomCellCount(n int) Option {
	return func(o *options) { o.customCells = n }
}

// Grid is a uniform grid of T values. Cell (i, j) lives at index i + j*Width.
type Grid[T constraints.Float] struct {
	origX, origY   float64
	boxW, boxH     float64
	startX, startY float64
	cellW, cellH   float64
	worldToX       float64
	worldToY       float64

	superSampling int
	width, height int
	nCells        int
	interpolate   bool

	data []T
}

// New returns a grid over box with nx by ny cells. Data is not allocated.
func New[T constraints.Float](box geom.Box, nx, ny int, opts ...Option) *Grid[T] {
	g := &Grid[T]{interpolate: true}
	g.Init(box, nx, ny, opts...)
	return g
}

// Init recomputes the grid geometry and discards existing data. Callers must
// Allocate before reading cells.
func (g *Grid[T]) Init(box geom.Box, nx, ny int, opts ...Option) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	g.width = max(nx, 1)
	g.height = max(ny, 1)
	g.superSampling = o.superSampling
	unboosted := g.width * g.height

	switch {
	case o.superSampling > 1:
		g.width *= o.superSampling
		g.height *= o.superSampling
	case o.quality < 1:
		g.width = max(int(math.Ceil(o.quality*float64(g.width))), 1)
		g.height = max(int(math.Ceil(o.quality*float64(g.height))), 1)
	}

	g.nCells = g.width * g.height
	if o.customCells > 0 && o.customCells != unboosted {
		g.nCells = o.customCells
	}

	g.origX, g.origY = box.Min.X, box.Min.Y
	g.boxW = box.Max.X - box.Min.X
	g.boxH = box.Max.Y - box.Min.Y
	g.cellW = g.boxW / float64(g.width)
	g.cellH = g.boxH / float64(g.height)

	g.worldToX, g.worldToY = 0, 0
	if g.boxW > 0 && g.boxH > 0 {
		g.worldToX = float64(g.width) / g.boxW
		g.worldToY = float64(g.height) / g.boxH
	}

	g.startX = g.origX + 0.5*g.cellW
	g.startY = g.origY + 0.5*g.cellH
	g.data = nil
}

// Allocate (re)allocates the backing slice and fills it with v.
func (g *Grid[T]) Allocate(v T) {
	g.data = nil
	if g.nCells > 0 {
		g.data = make([]T, g.nCells)
		g.Fill(v)
	}
}

// Fill overwrites every allocated cell with v.
func (g *Grid[T]) Fill(v T) {
	for i := range g.data {
		g.data[i] = v
	}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (g *Grid[T]) Width() int          { return g.width }
func (g *Grid[T]) Height() int         { return g.height }
func (g *Grid[T]) CellCount() int      { return g.nCells }
func (g *Grid[T]) CellWidth() float64  { return g.cellW }
func (g *Grid[T]) CellHeight() float64 { return g.cellH }
func (g *Grid[T]) StartX() float64     { return g.startX }
func (g *Grid[T]) StartY() float64     { return g.startY }
func (g *Grid[T]) SuperSampling() int  { return g.superSampling }

// Resolution returns the cell counts as a vector.
func (g *Grid[T]) Resolution() v2.Vec {
	return v2.Vec{X: float64(g.width), Y: float64(g.height)}
}

// Bounds2D returns the X/Y extent the grid covers.
func (g *Grid[T]) Bounds2D() (minX, maxX, minY, maxY float64) {
	return g.origX, g.origX + g.boxW, g.origY, g.origY + g.boxH
}

// EnableInterpolation switches bilinear blending in EvaluateValueAt.
func (g *Grid[T]) EnableInterpolation(on bool) { g.interpolate = on }

// Data returns the backing slice. Rows are contiguous.
func (g *Grid[T]) Data() []T { return g.data }

func (g *Grid[T]) ValueAtCell(i int) T       { return g.data[i] }
func (g *Grid[T]) SetValueAtCell(i int, v T) { g.data[i] = v }

// RawValueAt returns the value of the cell containing world (x, y), clamped
// to the grid, without blending.
func (g *Grid[T]) RawValueAt(x, y float64) T {
	ix := clampIndex(int(math.Floor((x-g.origX)*g.worldToX)), g.width)
	iy := clampIndex(int(math.Floor((y-g.origY)*g.worldToY)), g.height)
	return g.data[ix+iy*g.width]
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

// Filter decides which cells take part in interpolation and means.
type Filter[T constraints.Float] interface {
	Discard(v T) bool
	DiscardedValue() T
}

// NullFilter never discards.
type NullFilter[T constraints.Float] struct{}

func (NullFilter[T]) Discard(T) bool    { return false }
func (NullFilter[T]) DiscardedValue() T { return 0 }

// DiscardHigh discards values >= Max and reports Max as the discarded value.
type DiscardHigh[T constraints.Float] struct {
	Max T
}

func (f DiscardHigh[T]) Discard(v T) bool  { return v >= f.Max }
func (f DiscardHigh[T]) DiscardedValue() T { return f.Max }

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// EvaluateValueAt returns the bilinear blend at world (x, y) when
// interpolation is enabled, else the value of cell cellIndex. A negative
// index on a non-interpolating grid panics.
func (g *Grid[T]) EvaluateValueAt(x, y float64, cellIndex int) T {
	if g.interpolate {
		return interpolate[T](g, NullFilter[T]{}, x, y)
	}
	if cellIndex < 0 {
		panic(fmt.Sprintf("grid: EvaluateValueAt needs a cell index without interpolation, got %d", cellIndex))
	}
	return g.data[cellIndex]
}

// InterpolateValidValueAt blends the four cells around (x, y), returning
// discarded if any of them is >= discarded.
func (g *Grid[T]) InterpolateValidValueAt(x, y float64, discarded T) T {
	return interpolate[T](g, DiscardHigh[T]{Max: discarded}, x, y)
}

// InterpolateWithFilter blends the four cells around (x, y) through f.
func (g *Grid[T]) InterpolateWithFilter(f Filter[T], x, y float64) T {
	return interpolate(g, f, x, y)
}

func interpolate[T constraints.Float](g *Grid[T], f Filter[T], x, y float64) T {
	x = g.worldToX * (x - g.startX)
	y = g.worldToY * (y - g.startY)

	x = math.Min(math.Max(x, 0), float64(g.width))
	y = math.Min(math.Max(y, 0), float64(g.height))

	x0 := min(int(math.Floor(x)), g.width-1)
	y0 := min(int(math.Floor(y)), g.height-1)
	x1 := min(x0+1, g.width-1)
	y1 := min(y0+1, g.height-1)

	c00 := g.data[x0+y0*g.width]
	c10 := g.data[x1+y0*g.width]
	c01 := g.data[x0+y1*g.width]
	c11 := g.data[x1+y1*g.width]

	if f.Discard(c00) || f.Discard(c01) || f.Discard(c10) || f.Discard(c11) {
		return f.DiscardedValue()
	}

	fx := x - float64(x0)
	fy := y - float64(y0)
	fx1 := 1 - fx
	fy1 := 1 - fy

	return T(float64(c00)*fx1*fy1 + float64(c01)*fx1*fy + float64(c10)*fx*fy1 + float64(c11)*fx*fy)
}

// ComputeMeanValue returns the mean of every cell. An empty grid logs an
// issue and returns 0.
func (g *Grid[T]) ComputeMeanValue() T {
	if len(g.data) == 0 {
		logging.Issue("mean of an empty grid")
		return 0
	}
	var acc T
	for _, v := range g.data {
		acc += v
	}
	return acc / T(len(g.data))
}

// neighborhood returns the 3x3 window around (x, y), clamped to the grid.
func (g *Grid[T]) neighborhood(x, y int) (minX, maxX, minY, maxY int) {
	return max(x-1, 0), min(x+1, g.width-1), max(y-1, 0), min(y+1, g.height-1)
}

// ComputeMean returns the mean of buf over the clamped 3x3 window around cell
// (x, y). buf must have the grid's layout.
func (g *Grid[T]) ComputeMean(buf []T, x, y int) T {
	minX, maxX, minY, maxY := g.neighborhood(x, y)
	var sum T
	for j := minY; j <= maxY; j++ {
		row := buf[j*g.width:]
		for i := minX; i <= maxX; i++ {
			sum += row[i]
		}
	}
	return sum / T((maxX-minX+1)*(maxY-minY+1))
}

// ComputeMeanWithFilter is ComputeMean skipping cells f discards. When every
// cell is discarded the value of (x, y) itself is returned.
func (g *Grid[T]) ComputeMeanWithFilter(f Filter[T], buf []T, x, y int) T {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		panic(fmt.Sprintf("grid: cell (%d, %d) outside %dx%d", x, y, g.width, g.height))
	}
	minX, maxX, minY, maxY := g.neighborhood(x, y)
	var sum T
	n := 0
	for j := minY; j <= maxY; j++ {
		row := buf[j*g.width:]
		for i := minX; i <= maxX; i++ {
			if f.Discard(row[i]) {
				continue
			}
			sum += row[i]
			n++
		}
	}
	if n == 0 {
		return buf[x+y*g.width]
	}
	return sum / T(n)
}
