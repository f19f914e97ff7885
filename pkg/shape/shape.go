// Package shape provides 2D exclusion zones backed by sdfx signed distance
// fields. A point is inside a shape when its distance is negative.
package shape

import (
	"errors"
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Shape is a closed 2D region in the X/Y plane.
type Shape interface {
	// Contains reports whether p lies strictly inside.
	Contains(p v2.Vec) bool
	// Distance is the signed distance from p to the boundary.
	Distance(p v2.Vec) float64
	// Bounds returns the axis-aligned bounding box.
	Bounds() sdf.Box2
}

// sdfShape wraps an sdf.SDF2 to implement Shape.
type sdfShape struct {
	s sdf.SDF2
}

func (s *sdfShape) Distance(p v2.Vec) float64 { return s.s.Evaluate(p) }
func (s *sdfShape) Contains(p v2.Vec) bool    { return s.s.Evaluate(p) < 0 }
func (s *sdfShape) Bounds() sdf.Box2          { return s.s.BoundingBox() }

func unwrap(s Shape) sdf.SDF2 {
	return s.(*sdfShape).s
}

// Circle returns a disc of radius r centered at c.
func Circle(c v2.Vec, r float64) (Shape, error) {
	if r <= 0 {
		return nil, fmt.Errorf("circle radius must be positive, got %v", r)
	}
	s, err := sdf.Circle2D(r)
	if err != nil {
		return nil, fmt.Errorf("sdf.Circle2D: %w", err)
	}
	return &sdfShape{s: sdf.Transform2D(s, sdf.Translate2d(c))}, nil
}

// Polygon returns the region enclosed by pts, closed implicitly.
func Polygon(pts []v2.Vec) (Shape, error) {
	if len(pts) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 points, got %d", len(pts))
	}
	s, err := sdf.Polygon2D(pts)
	if err != nil {
		return nil, fmt.Errorf("sdf.Polygon2D: %w", err)
	}
	return &sdfShape{s: s}, nil
}

// Union returns the region covered by any of shapes.
func Union(shapes ...Shape) (Shape, error) {
	switch len(shapes) {
	case 0:
		return nil, errors.New("union of no shapes")
	case 1:
		return shapes[0], nil
	}
	parts := make([]sdf.SDF2, len(shapes))
	for i, s := range shapes {
		parts[i] = unwrap(s)
	}
	return &sdfShape{s: sdf.Union2D(parts...)}, nil
}

// Translate moves s by d.
func Translate(s Shape, d v2.Vec) Shape {
	return &sdfShape{s: sdf.Transform2D(unwrap(s), sdf.Translate2d(d))}
}

// Exclude returns the points whose X/Y projection is outside every shape.
// The input slice is not modified.
func Exclude(pts []v3.Vec, shapes ...Shape) []v3.Vec {
	if len(shapes) == 0 {
		return pts
	}
	out := make([]v3.Vec, 0, len(pts))
	for _, p := range pts {
		q := v2.Vec{X: p.X, Y: p.Y}
		blocked := false
		for _, s := range shapes {
			if s.Contains(q) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, p)
		}
	}
	return out
}
