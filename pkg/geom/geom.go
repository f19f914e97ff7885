// Package geom holds the small geometric vocabulary shared by the sampling
// packages: axis projections, affine transforms to world, bounding boxes and
// 2D segments. Vector, box and matrix types come from sdfx.
package geom

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Projection
// ---------------------------------------------------------------------------

// Projection selects the axis dropped when flattening 3D points.
type Projection int

const (
	ProjectNone Projection = iota // keep all three components
	ProjectX                      // drop X, keep (Y, Z)
	ProjectY                      // drop Y, keep (Z, X)
	ProjectZ                      // drop Z, keep (X, Y)
)

func (p Projection) String() string {
	switch p {
	case ProjectNone:
		return "none"
	case ProjectX:
		return "x"
	case ProjectY:
		return "y"
	case ProjectZ:
		return "z"
	default:
		return fmt.Sprintf("Projection(%d)", int(p))
	}
}

// Is2D reports whether p can map a 3D point onto a 2D plane.
func (p Projection) Is2D() bool {
	return p == ProjectX || p == ProjectY || p == ProjectZ
}

// ParseProjection converts "none", "x", "y" or "z".
func ParseProjection(s string) (Projection, error) {
	switch s {
	case "none", "":
		return ProjectNone, nil
	case "x":
		return ProjectX, nil
	case "y":
		return ProjectY, nil
	case "z":
		return ProjectZ, nil
	}
	return ProjectNone, fmt.Errorf("invalid projection %q, expected none, x, y or z", s)
}

// Projector maps 3D points through a Projection.
type Projector struct {
	proj Projection
}

// NewProjector returns a projector for p.
func NewProjector(p Projection) Projector {
	return Projector{proj: p}
}

// Projection returns the projection used by the projector.
func (pr Projector) Projection() Projection {
	return pr.proj
}

// To2D drops the projected axis. ProjectNone has no 2D image; asking for one
// is a caller bug and panics.
func (pr Projector) To2D(p v3.Vec) v2.Vec {
	switch pr.proj {
	case ProjectX:
		return v2.Vec{X: p.Y, Y: p.Z}
	case ProjectY:
		return v2.Vec{X: p.Z, Y: p.X}
	case ProjectZ:
		return v2.Vec{X: p.X, Y: p.Y}
	}
	panic(fmt.Sprintf("geom: projection %s has no 2D image", pr.proj))
}

// ToPlane zeroes the projected axis. ProjectNone returns p unchanged.
func (pr Projector) ToPlane(p v3.Vec) v3.Vec {
	switch pr.proj {
	case ProjectX:
		return v3.Vec{X: 0, Y: p.Y, Z: p.Z}
	case ProjectY:
		return v3.Vec{X: p.X, Y: 0, Z: p.Z}
	case ProjectZ:
		return v3.Vec{X: p.X, Y: p.Y, Z: 0}
	}
	return p
}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// Transform is an affine map to world coordinates: world = M*local + T.
// The zero value is the identity.
type Transform struct {
	m   sdf.M44
	set bool
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{}
}

// NewTransform wraps an sdfx 4x4 affine matrix.
func NewTransform(m sdf.M44) Transform {
	return Transform{m: m, set: true}
}

// Translation returns a pure translation by v.
func Translation(v v3.Vec) Transform {
	return NewTransform(sdf.Translate3d(v))
}

// Scaling returns a per-axis scale.
func Scaling(v v3.Vec) Transform {
	return NewTransform(sdf.Scale3d(v))
}

// RotationZ returns a rotation of a radians around the Z axis.
func RotationZ(a float64) Transform {
	return NewTransform(sdf.RotateZ(a))
}

// Matrix returns the underlying matrix.
func (t Transform) Matrix() sdf.M44 {
	if !t.set {
		return sdf.Identity3d()
	}
	return t.m
}

// Apply maps a local position to world.
func (t Transform) Apply(p v3.Vec) v3.Vec {
	if !t.set {
		return p
	}
	return t.m.MulPosition(p)
}

// Then returns the transform applying t first, then next.
func (t Transform) Then(next Transform) Transform {
	switch {
	case !t.set:
		return next
	case !next.set:
		return t
	}
	return NewTransform(next.m.Mul(t.m))
}

// ---------------------------------------------------------------------------
// Box
// ---------------------------------------------------------------------------

// Box is an axis-aligned 3D box. Boxes built with EmptyBox carry inverted
// bounds until a point is added and must be checked with IsInitialized.
type Box struct {
	sdf.Box3
}

// EmptyBox returns an uninitialized box.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{sdf.Box3{
		Min: v3.Vec{X: inf, Y: inf, Z: inf},
		Max: v3.Vec{X: -inf, Y: -inf, Z: -inf},
	}}
}

// NewBox returns the box spanning min and max.
func NewBox(min, max v3.Vec) Box {
	return Box{sdf.Box3{Min: min, Max: max}}
}

// BoxOf returns the smallest box enclosing pts, uninitialized if pts is empty.
func BoxOf(pts ...v3.Vec) Box {
	b := EmptyBox()
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}

// IsInitialized reports whether min <= max on every axis.
func (b Box) IsInitialized() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Extend returns b grown to include p.
func (b Box) Extend(p v3.Vec) Box {
	return Box{sdf.Box3{
		Min: v3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: v3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}}
}

// Dimensions returns max - min.
func (b Box) Dimensions() v3.Vec {
	return b.Max.Sub(b.Min)
}

// ---------------------------------------------------------------------------
// Segment2D
// ---------------------------------------------------------------------------

// ClosingParam is the mid parameter carried by the synthetic segment that
// closes an open curve.
const ClosingParam = 0.0

// Segment2D is a projected curve chord annotated with the mean curve
// parameter of its endpoints.
type Segment2D struct {
	Start    v2.Vec
	End      v2.Vec
	MidParam float64
}

// MinY returns the lowest Y of the two endpoints.
func (s Segment2D) MinY() float64 {
	return math.Min(s.Start.Y, s.End.Y)
}

// MaxY returns the highest Y of the two endpoints.
func (s Segment2D) MaxY() float64 {
	return math.Max(s.Start.Y, s.End.Y)
}

// Normal2D returns the left-hand unit normal of the direction from a to b,
// or (0, 1) when the two points are too close for a stable direction.
func Normal2D(a, b v2.Vec) v2.Vec {
	d := b.Sub(a)
	n := v2.Vec{X: -d.Y, Y: d.X}
	l2 := n.X*n.X + n.Y*n.Y
	if l2 < 1e-8 {
		return v2.Vec{X: 0, Y: 1}
	}
	return n.MulScalar(1 / math.Sqrt(l2))
}
