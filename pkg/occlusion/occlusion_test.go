package occlusion

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/go-cmp/cmp"

	"github.com/chazu/strew/pkg/curve"
	"github.com/chazu/strew/pkg/geom"
	"github.com/chazu/strew/pkg/pattern"
	"github.com/chazu/strew/pkg/spline"
)

func box(minX, minY, maxX, maxY float64) geom.Box {
	return geom.NewBox(v3.Vec{X: minX, Y: minY}, v3.Vec{X: maxX, Y: maxY})
}

func squarePattern(minC, maxC float64, cyclic bool) *pattern.SplinePattern {
	c := curve.NewPolyline([]v3.Vec{
		{X: minC, Y: minC}, {X: maxC, Y: minC}, {X: maxC, Y: maxC}, {X: minC, Y: maxC},
	}, cyclic)
	return pattern.NewSplinePattern(geom.Identity(), spline.NewHelper(c))
}

// render draws the grid as rows of '#' (value > 0.5) and '.', row 0 first.
func render(g *Grid) []string {
	rows := make([]string, g.Height())
	for j := range rows {
		b := make([]byte, g.Width())
		for i := range b {
			b[i] = '.'
			if g.ValueAtCell(i+j*g.Width()) > 0.5 {
				b[i] = '#'
			}
		}
		rows[j] = string(b)
	}
	return rows
}

func TestUnitSquareFillsEveryCell(t *testing.T) {
	for _, cyclic := range []bool{true, false} {
		g := New(box(0, 0, 1, 1), 4, 4)
		p := squarePattern(0, 1, cyclic)
		p.SetOcclusion(false)
		if !g.BuildFromPattern(context.Background(), p) {
			t.Fatalf("cyclic=%v: BuildFromPattern returned false", cyclic)
		}
		for i, v := range g.Data() {
			if v != 1 {
				t.Errorf("cyclic=%v: cell %d = %v, want inside value 1", cyclic, i, v)
			}
		}
	}
}

func TestOcclusionInsideValue(t *testing.T) {
	g := New(box(0, 0, 1, 1), 4, 4)
	if !g.BuildFromPattern(context.Background(), squarePattern(0, 1, true)) {
		t.Fatal("BuildFromPattern returned false")
	}
	// occlusion with full influence blocks the whole interior
	if !g.IsConstant() || g.ValueAtCell(0) != 0 {
		t.Errorf("expected a constant 0 grid, got %v", g.Data())
	}
}

func TestScanLineParity(t *testing.T) {
	g := New(box(0, 0, 4, 4), 8, 8)
	p := squarePattern(1, 3, true)
	p.SetOcclusion(false)
	if !g.BuildFromPattern(context.Background(), p) {
		t.Fatal("BuildFromPattern returned false")
	}
	want := []string{
		"........",
		"........",
		"..####..",
		"..####..",
		"..####..",
		"..####..",
		"........",
		"........",
	}
	if diff := cmp.Diff(want, render(g)); diff != "" {
		t.Errorf("fill mismatch (-want +got):\n%s", diff)
	}
}

func TestDiamondVertexOnRowCenter(t *testing.T) {
	c := curve.NewPolyline([]v3.Vec{
		{X: 0, Y: 1.5}, {X: 1.5, Y: 0}, {X: 3, Y: 1.5}, {X: 1.5, Y: 3},
	}, true)
	p := pattern.NewSplinePattern(geom.Identity(), spline.NewHelper(c))
	p.SetOcclusion(false)

	g := New(box(0, 0, 3, 3), 3, 3)
	if !g.BuildFromPattern(context.Background(), p) {
		t.Fatal("BuildFromPattern returned false")
	}
	want := []string{
		".#.",
		"###",
		".#.",
	}
	if diff := cmp.Diff(want, render(g)); diff != "" {
		t.Errorf("fill mismatch (-want +got):\n%s", diff)
	}
}

func TestCircleFillIsSymmetric(t *testing.T) {
	pts := make([]v3.Vec, 24)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / 24
		pts[i] = v3.Vec{X: 5 + 3*math.Cos(a), Y: 5 + 3*math.Sin(a)}
	}
	p := pattern.NewSplinePattern(geom.Identity(), spline.NewHelper(curve.NewPolyline(pts, true)))
	p.SetOcclusion(false)
	p.SetSamplingQuality(4)

	g := New(box(0, 0, 10, 10), 10, 10)
	g.BuildFromPattern(context.Background(), p)
	rows := render(g)
	for _, corner := range []int{0, 9, 90, 99} {
		if g.ValueAtCell(corner) != 0 {
			t.Errorf("corner cell %d inside the circle", corner)
		}
	}
	if g.ValueAtCell(5+5*10) != 1 || g.ValueAtCell(4+4*10) != 1 {
		t.Errorf("center cells outside the circle:\n%v", rows)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	p := squarePattern(0.3, 2.7, false)
	g := New(box(0, 0, 3, 3), 17, 13)
	g.BuildFromPattern(context.Background(), p)
	first := append([]float64(nil), g.Data()...)
	g.BuildFromPattern(context.Background(), p)
	if diff := cmp.Diff(first, g.Data()); diff != "" {
		t.Errorf("second build differs:\n%s", diff)
	}
}

func TestWorkersDoNotChangeResult(t *testing.T) {
	p := squarePattern(0.3, 2.7, true)
	one := New(box(0, 0, 3, 3), 20, 20)
	one.BuildFromPattern(context.Background(), p, WithWorkers(1))
	many := New(box(0, 0, 3, 3), 20, 20)
	many.BuildFromPattern(context.Background(), p, WithWorkers(8))
	if diff := cmp.Diff(one.Data(), many.Data()); diff != "" {
		t.Errorf("parallel fill differs:\n%s", diff)
	}
}

func TestInfluenceBlend(t *testing.T) {
	tests := []struct {
		name        string
		occlusion   bool
		influence   float64
		wantInside  float64
		wantOutside float64
	}{
		{"occlusion quarter", true, 0.25, 0.75, 1},
		{"inclusion quarter", false, 0.25, 0.25, 0},
		{"occlusion clamped high", true, 2, 0, 1},
		{"inclusion clamped low", false, -1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := squarePattern(1, 3, true)
			p.SetOcclusion(tt.occlusion)
			p.SetOcclusionInfluence(tt.influence)
			g := New(box(0, 0, 4, 4), 8, 8)
			g.BuildFromPattern(context.Background(), p)
			if got := g.ValueAtCell(3 + 3*8); got != tt.wantInside {
				t.Errorf("inside = %v, want %v", got, tt.wantInside)
			}
			if got := g.ValueAtCell(0); got != tt.wantOutside {
				t.Errorf("outside = %v, want %v", got, tt.wantOutside)
			}
		})
	}
}

func TestDegenerateCurveLeavesGridIncluded(t *testing.T) {
	c := curve.NewPolyline([]v3.Vec{{X: 1, Y: 1}}, true)
	p := pattern.NewSplinePattern(geom.Identity(), spline.NewHelper(c))
	g := New(box(0, 0, 2, 2), 4, 4)
	if !g.BuildFromPattern(context.Background(), p) {
		t.Fatal("degenerate curve should not report cancellation")
	}
	for i, v := range g.Data() {
		if v != 1 {
			t.Fatalf("cell %d = %v, want 1", i, v)
		}
	}
}

func TestRibbonLeavesGridIncluded(t *testing.T) {
	c := curve.NewPolyline([]v3.Vec{{X: 0}, {X: 2, Y: 2}}, false)
	p := pattern.NewRibbonPattern(geom.Identity(), spline.NewHelper(c), 0.5)
	g := New(box(0, 0, 2, 2), 4, 4)
	if !g.BuildFromPattern(context.Background(), p) {
		t.Fatal("ribbon should not report cancellation")
	}
	if !g.IsConstant() || g.ValueAtCell(0) != 1 {
		t.Errorf("ribbon modified the grid: %v", g.Data())
	}
}

func TestCancellation(t *testing.T) {
	p := squarePattern(0.5, 9.5, true)

	var rows atomic.Int32
	g := New(box(0, 0, 10, 10), 50, 50)
	ok := g.BuildFromPattern(context.Background(), p,
		WithWorkers(1),
		WithShouldContinue(func() bool { return rows.Add(1) < 3 }))
	if ok {
		t.Error("BuildFromPattern ignored ShouldContinue")
	}
	if n := rows.Load(); n >= 50 {
		t.Errorf("fill did not stop early: %d rows", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if New(box(0, 0, 10, 10), 50, 50).BuildFromPattern(ctx, p) {
		t.Error("BuildFromPattern ignored a cancelled context")
	}
}

func TestIsConstant(t *testing.T) {
	g := New(box(0, 0, 1, 1), 3, 3)
	if !g.IsConstant() {
		t.Error("unallocated grid should be constant")
	}
	g.Allocate(0.5)
	g.SetValueAtCell(4, 0.5+5e-5)
	if !g.IsConstant() {
		t.Error("difference below tolerance should be constant")
	}
	g.SetValueAtCell(8, 0.6)
	if g.IsConstant() {
		t.Error("0.5 vs 0.6 reported constant")
	}
}

// ---------------------------------------------------------------------------
// Intersections
// ---------------------------------------------------------------------------

func TestFindIntersectionsMatchingY(t *testing.T) {
	segs := []geom.Segment2D{
		{Start: v2.Vec{X: 0, Y: 0}, End: v2.Vec{X: 2, Y: 0}}, // horizontal
		{Start: v2.Vec{X: 2, Y: 0}, End: v2.Vec{X: 4, Y: 2}}, // diagonal
		{Start: v2.Vec{X: 0, Y: 1}, End: v2.Vec{X: 0, Y: 3}}, // vertical
		{Start: v2.Vec{X: 5, Y: 4}, End: v2.Vec{X: 6, Y: 5}}, // never reached
	}

	got := FindIntersectionsMatchingY(nil, segs, 1)
	want := []Intersection{
		{Point: v2.Vec{X: 3, Y: 1}, Normal: v2.Vec{X: -2, Y: 2}},
		{Point: v2.Vec{X: 0, Y: 1}, Normal: v2.Vec{X: -2, Y: 0}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("y=1 (-want +got):\n%s", diff)
	}

	got = FindIntersectionsMatchingY(nil, segs, 0)
	if len(got) != 3 {
		t.Fatalf("y=0 gave %d hits, want 3 (two for the horizontal edge)", len(got))
	}
	if got[0].Point.X != 0 || got[1].Point.X != 2 || got[0].Normal != got[1].Normal {
		t.Errorf("horizontal hits = %v", got[:2])
	}

	// The diagonal ends at y=2 and the vertical at y=3; both are half-open.
	got = FindIntersectionsMatchingY(nil, segs, 2)
	if len(got) != 1 || got[0].Point != (v2.Vec{X: 0, Y: 2}) {
		t.Errorf("y=2 gave %v, want only the vertical edge", got)
	}
	if got := FindIntersectionsMatchingY(nil, segs, 3); len(got) != 0 {
		t.Errorf("y=3 gave %v", got)
	}

	if got := FindIntersectionsMatchingY(nil, segs, 10); len(got) != 0 {
		t.Errorf("y=10 gave %v", got)
	}
}

func TestSharedVertexCountedOnce(t *testing.T) {
	segs := []geom.Segment2D{
		{Start: v2.Vec{X: 1, Y: 0}, End: v2.Vec{X: 0, Y: 1}},
		{Start: v2.Vec{X: 0, Y: 1}, End: v2.Vec{X: 1, Y: 2}},
	}
	got := FindIntersectionsMatchingY(nil, segs, 1)
	if len(got) != 1 || got[0].Point != (v2.Vec{X: 0, Y: 1}) {
		t.Errorf("got %v, want one hit at the shared vertex", got)
	}
}

func TestFindIntersectionsReusesBuffer(t *testing.T) {
	segs := []geom.Segment2D{{Start: v2.Vec{X: 1, Y: 0}, End: v2.Vec{X: 1, Y: 2}}}
	buf := make([]Intersection, 0, 4)
	got := FindIntersectionsMatchingY(buf, segs, 1)
	if len(got) != 1 || &got[0] != &buf[:1][0] {
		t.Error("expected results appended into the provided buffer")
	}
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

func filledSquare(t *testing.T) *Grid {
	t.Helper()
	g := New(box(0, 0, 4, 4), 8, 8)
	p := squarePattern(1, 3, true)
	p.SetOcclusion(false)
	if !g.BuildFromPattern(context.Background(), p) {
		t.Fatal("BuildFromPattern returned false")
	}
	return g
}

func TestAlignedPositions(t *testing.T) {
	g := filledSquare(t)
	got := g.GetSampledPositions(true, 7)
	if len(got) != 16 {
		t.Fatalf("got %d positions, want 16", len(got))
	}
	if got[0] != (v3.Vec{X: 1.25, Y: 1.25}) {
		t.Errorf("first position = %v, want (1.25,1.25,0)", got[0])
	}
	for _, p := range got {
		if p.Z != 0 || p.X < 1 || p.X > 3 || p.Y < 1 || p.Y > 3 {
			t.Errorf("aligned position %v outside the square", p)
		}
	}
}

func TestJitteredPositionsDeterministic(t *testing.T) {
	g := filledSquare(t)
	a := g.GetSampledPositions(false, 1234)
	b := g.GetSampledPositions(false, 1234)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed differs:\n%s", diff)
	}
	c := g.GetSampledPositions(false, 99)
	if cmp.Equal(a, c) {
		t.Error("different seeds gave identical jitter")
	}
	if len(a) == 0 || len(a) > 16 {
		t.Errorf("got %d jittered positions, want 1..16", len(a))
	}
}

func TestJitteredPositionsStayInCells(t *testing.T) {
	// A grid of ones accepts the first candidate of every cell.
	g := New(box(0, 0, 3, 2), 3, 2)
	g.Allocate(1)
	got := g.GetSampledPositions(false, 5)
	if len(got) != 6 {
		t.Fatalf("got %d positions, want 6", len(got))
	}
	for k, p := range got {
		i, j := k%3, k/3
		if p.X < float64(i) || p.X > float64(i+1) || p.Y < float64(j) || p.Y > float64(j+1) {
			t.Errorf("position %d = %v outside cell (%d,%d)", k, p, i, j)
		}
	}
}

func TestSampledPositionsSkipBlockedCells(t *testing.T) {
	g := New(box(0, 0, 2, 1), 2, 1)
	g.Allocate(0)
	g.SetValueAtCell(1, 1)
	got := g.GetSampledPositions(true, 1)
	if len(got) != 1 || got[0].X != 1.5 {
		t.Errorf("got %v, want only the second cell center", got)
	}
	if got := New(box(0, 0, 1, 1), 2, 2).GetSampledPositions(true, 1); got != nil {
		t.Errorf("unfilled grid gave %v", got)
	}
}

func TestPoissonTables(t *testing.T) {
	for g := 0; g < NumPoissonGrids; g++ {
		for k := 0; k < PoissonGridSize; k++ {
			p := PoissonPoint(g, k)
			if p.X < 0 || p.X >= 1 || p.Y < 0 || p.Y >= 1 {
				t.Fatalf("grid %d point %d = %v outside unit square", g, k, p)
			}
		}
		best := math.Inf(1)
		for i := 0; i < PoissonGridSize; i++ {
			for j := i + 1; j < PoissonGridSize; j++ {
				best = math.Min(best, PoissonPoint(g, i).Sub(PoissonPoint(g, j)).Length())
			}
		}
		if best < 0.05 {
			t.Errorf("grid %d has points %v apart", g, best)
		}
	}
	if PoissonPoint(0, 4) == PoissonPoint(1, 4) {
		t.Error("patterns 0 and 1 share a point")
	}
}
