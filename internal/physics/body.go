// internal/physics/body.go
//
// Body definitions for the rigid-body world.
// Two shapes exist:
//   - Circle: dynamic letter balls.
//   - Rect:   axis-aligned static walls.
//
// Static bodies have zero inverse mass and are never integrated.

package physics

import "math"

// Handle identifies a body inside one World. Handles are never reused.
type Handle uint32

// Shape is the collision shape of a body.
type Shape uint8

const (
	ShapeCircle Shape = iota
	ShapeRect
)

func (s Shape) String() string {
	switch s {
	case ShapeCircle:
		return "circle"
	case ShapeRect:
		return "rect"
	}
	return "unknown"
}

// density converts circle area into mass (same order as the client engine).
const density = 0.001

// Body is a read-only view of a simulated body.
type Body struct {
	Handle      Handle
	Shape       Shape
	Static      bool
	Pos         Vec
	Vel         Vec
	Radius      float64 // circles only
	Width       float64 // rects only
	Height      float64 // rects only
	Restitution float64
}

// body is the mutable internal record behind a Handle.
type body struct {
	Body
	invMass float64
}

func newCircle(h Handle, pos Vec, radius, restitution float64) *body {
	mass := math.Pi * radius * radius * density
	return &body{
		Body: Body{
			Handle:      h,
			Shape:       ShapeCircle,
			Pos:         pos,
			Radius:      radius,
			Restitution: restitution,
		},
		invMass: 1 / mass,
	}
}

func newStaticRect(h Handle, center Vec, w, hgt float64) *body {
	return &body{
		Body: Body{
			Handle: h,
			Shape:  ShapeRect,
			Static: true,
			Pos:    center,
			Width:  w,
			Height: hgt,
		},
	}
}
