package geom

import (
	"math"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestProjectorTo2D(t *testing.T) {
	p := v3.Vec{X: 1, Y: 2, Z: 3}
	tests := []struct {
		proj Projection
		want v2.Vec
	}{
		{ProjectX, v2.Vec{X: 2, Y: 3}},
		{ProjectY, v2.Vec{X: 3, Y: 1}},
		{ProjectZ, v2.Vec{X: 1, Y: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.proj.String(), func(t *testing.T) {
			if got := NewProjector(tt.proj).To2D(p); got != tt.want {
				t.Errorf("To2D = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProjectorTo2DNonePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for ProjectNone")
		}
	}()
	NewProjector(ProjectNone).To2D(v3.Vec{X: 1})
}

func TestProjectorToPlane(t *testing.T) {
	p := v3.Vec{X: 1, Y: 2, Z: 3}
	tests := []struct {
		proj Projection
		want v3.Vec
	}{
		{ProjectNone, p},
		{ProjectX, v3.Vec{X: 0, Y: 2, Z: 3}},
		{ProjectY, v3.Vec{X: 1, Y: 0, Z: 3}},
		{ProjectZ, v3.Vec{X: 1, Y: 2, Z: 0}},
	}
	for _, tt := range tests {
		if got := NewProjector(tt.proj).ToPlane(p); got != tt.want {
			t.Errorf("%s: ToPlane = %v, want %v", tt.proj, got, tt.want)
		}
	}
}

func TestParseProjection(t *testing.T) {
	for _, s := range []string{"none", "x", "y", "z"} {
		p, err := ParseProjection(s)
		if err != nil {
			t.Fatalf("ParseProjection(%q): %v", s, err)
		}
		if p.String() != s {
			t.Errorf("round trip %q -> %q", s, p.String())
		}
	}
	if _, err := ParseProjection("w"); err == nil {
		t.Error("expected error for unknown projection")
	}
}

func TestTransformZeroValueIsIdentity(t *testing.T) {
	var tr Transform
	p := v3.Vec{X: 4, Y: -2, Z: 7}
	if got := tr.Apply(p); got != p {
		t.Errorf("zero Transform moved %v to %v", p, got)
	}
}

func TestTransformTranslateThenScale(t *testing.T) {
	tr := Translation(v3.Vec{X: 1, Y: 0, Z: 0}).Then(Scaling(v3.Vec{X: 2, Y: 2, Z: 2}))
	got := tr.Apply(v3.Vec{X: 1, Y: 1, Z: 1})
	want := v3.Vec{X: 4, Y: 2, Z: 2}
	if got.Sub(want).Length() > 1e-12 {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}

func TestTransformRotationZ(t *testing.T) {
	got := RotationZ(math.Pi / 2).Apply(v3.Vec{X: 1, Y: 0, Z: 5})
	want := v3.Vec{X: 0, Y: 1, Z: 5}
	if got.Sub(want).Length() > 1e-9 {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}

func TestBoxInitialization(t *testing.T) {
	b := EmptyBox()
	if b.IsInitialized() {
		t.Fatal("EmptyBox should not be initialized")
	}
	b = b.Extend(v3.Vec{X: 1, Y: 2, Z: 3})
	if !b.IsInitialized() {
		t.Fatal("box with one point should be initialized")
	}
	b = b.Extend(v3.Vec{X: -1, Y: 5, Z: 0})
	want := v3.Vec{X: 2, Y: 3, Z: 3}
	if got := b.Dimensions(); got != want {
		t.Errorf("Dimensions = %v, want %v", got, want)
	}
	if BoxOf().IsInitialized() {
		t.Error("BoxOf() with no points should be uninitialized")
	}
}

func TestSegmentBounds(t *testing.T) {
	s := Segment2D{Start: v2.Vec{X: 0, Y: 3}, End: v2.Vec{X: 1, Y: -1}}
	if s.MinY() != -1 || s.MaxY() != 3 {
		t.Errorf("MinY/MaxY = %v/%v, want -1/3", s.MinY(), s.MaxY())
	}
}

func TestNormal2D(t *testing.T) {
	n := Normal2D(v2.Vec{X: 0, Y: 0}, v2.Vec{X: 2, Y: 0})
	if n != (v2.Vec{X: 0, Y: 1}) {
		t.Errorf("Normal2D of +X = %v, want (0,1)", n)
	}
	n = Normal2D(v2.Vec{X: 0, Y: 0}, v2.Vec{X: 0, Y: 3})
	if n.Sub(v2.Vec{X: -1, Y: 0}).Length() > 1e-12 {
		t.Errorf("Normal2D of +Y = %v, want (-1,0)", n)
	}
	n = Normal2D(v2.Vec{X: 1, Y: 1}, v2.Vec{X: 1, Y: 1})
	if n != (v2.Vec{X: 0, Y: 1}) {
		t.Errorf("degenerate Normal2D = %v, want (0,1) fallback", n)
	}
}
