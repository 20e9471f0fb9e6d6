// internal/physics/world.go
//
// Rigid-body world for the letter arena.
// Responsibilities:
//   - Own every body (dynamic circles, static wall rectangles) keyed by Handle.
//   - Advance the simulation under constant gravity on Step(dt).
//   - Resolve circle/circle and circle/rect contacts with restitution.
//   - Expose positions for the game layer to read once per tick.
//
// Notes:
//   - The world knows nothing about letters or words.
//   - Not safe for concurrent use; the session loop is the only caller.
//   - Iteration order follows insertion order so runs are reproducible.

package physics

import (
	"errors"
	"fmt"
	"math"
)

// WallThickness is the thickness of each boundary rectangle.
const WallThickness = 20.0

// DefaultGravity is the downward acceleration in px/s².
var DefaultGravity = Vec{X: 0, Y: 1000}

const (
	maxSubstep       = 1.0 / 120 // largest integration slice in seconds
	solverIterations = 4
	correctPercent   = 0.4
	correctSlop      = 0.01
)

// ErrUnknownBody is returned when a handle does not refer to a live body.
var ErrUnknownBody = errors.New("physics: unknown body")

// World is a set of bodies advanced together.
type World struct {
	gravity Vec
	bodies  map[Handle]*body
	order   []Handle
	next    Handle
}

// NewWorld constructs an empty world with the given gravity vector.
func NewWorld(gravity Vec) *World {
	return &World{
		gravity: gravity,
		bodies:  make(map[Handle]*body),
	}
}

// Gravity returns the world's gravity vector.
func (w *World) Gravity() Vec { return w.gravity }

// CreateBoundary adds the four static walls (floor, ceiling, left, right)
// enclosing a width×height arena and returns their handles in that order.
func (w *World) CreateBoundary(width, height float64) []Handle {
	half := WallThickness / 2
	return []Handle{
		w.AddStaticRect(Vec{X: width / 2, Y: height - half}, width, WallThickness),
		w.AddStaticRect(Vec{X: width / 2, Y: half}, width, WallThickness),
		w.AddStaticRect(Vec{X: half, Y: height / 2}, WallThickness, height),
		w.AddStaticRect(Vec{X: width - half, Y: height / 2}, WallThickness, height),
	}
}

// AddStaticRect adds an immovable axis-aligned rectangle centred at center.
func (w *World) AddStaticRect(center Vec, width, height float64) Handle {
	h := w.allocate()
	w.insert(newStaticRect(h, center, width, height))
	return h
}

// SpawnCircle adds a dynamic circle at rest and returns its handle.
// The body takes part in the next Step.
func (w *World) SpawnCircle(pos Vec, radius, restitution float64) Handle {
	h := w.allocate()
	w.insert(newCircle(h, pos, radius, restitution))
	return h
}

// Remove deletes a body from the world.
func (w *World) Remove(h Handle) error {
	if _, ok := w.bodies[h]; !ok {
		return fmt.Errorf("remove %d: %w", h, ErrUnknownBody)
	}
	delete(w.bodies, h)
	for i, x := range w.order {
		if x == h {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return nil
}

// PositionOf returns the centre of a body.
func (w *World) PositionOf(h Handle) (Vec, bool) {
	b, ok := w.bodies[h]
	if !ok {
		return Vec{}, false
	}
	return b.Pos, true
}

// Body returns a copy of a body's state.
func (w *World) Body(h Handle) (Body, bool) {
	b, ok := w.bodies[h]
	if !ok {
		return Body{}, false
	}
	return b.Body, true
}

// Has reports whether h refers to a live body.
func (w *World) Has(h Handle) bool {
	_, ok := w.bodies[h]
	return ok
}

// Len returns the number of live bodies, static ones included.
func (w *World) Len() int { return len(w.order) }

// Step advances the simulation by dt seconds. Large steps are split into
// substeps so fast bodies cannot tunnel through the walls.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	n := int(math.Ceil(dt / maxSubstep))
	slice := dt / float64(n)
	for i := 0; i < n; i++ {
		w.integrate(slice)
		for it := 0; it < solverIterations; it++ {
			w.solve()
		}
	}
}

func (w *World) allocate() Handle {
	w.next++
	return w.next
}

func (w *World) insert(b *body) {
	w.bodies[b.Handle] = b
	w.order = append(w.order, b.Handle)
}

// integrate applies gravity and moves every dynamic body (semi-implicit Euler).
func (w *World) integrate(dt float64) {
	for _, h := range w.order {
		b := w.bodies[h]
		if b.Static {
			continue
		}
		b.Vel = b.Vel.Add(w.gravity.Scale(dt))
		b.Pos = b.Pos.Add(b.Vel.Scale(dt))
	}
}

// solve runs one pass of pairwise contact resolution.
func (w *World) solve() {
	for i := 0; i < len(w.order); i++ {
		a := w.bodies[w.order[i]]
		for j := i + 1; j < len(w.order); j++ {
			b := w.bodies[w.order[j]]
			if a.Static && b.Static {
				continue
			}
			if m, ok := detect(a, b); ok {
				resolve(m)
			}
		}
	}
}
