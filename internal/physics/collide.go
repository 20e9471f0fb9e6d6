// internal/physics/collide.go
//
// Narrow-phase contact detection and impulse resolution.
//
// A manifold's normal always points from A towards B. Restitution for a pair
// is the larger of the two coefficients, so a bouncy ball keeps its bounce
// against a dead wall.

package physics

import "math"

type manifold struct {
	a, b        *body
	normal      Vec
	penetration float64
	restitution float64
}

// detect dispatches on the shape pair. Static/static pairs never reach here.
func detect(a, b *body) (manifold, bool) {
	switch {
	case a.Shape == ShapeCircle && b.Shape == ShapeCircle:
		return circleCircle(a, b)
	case a.Shape == ShapeCircle && b.Shape == ShapeRect:
		return circleRect(a, b)
	case a.Shape == ShapeRect && b.Shape == ShapeCircle:
		m, ok := circleRect(b, a)
		if ok {
			m.a, m.b = m.b, m.a
			m.normal = m.normal.Scale(-1)
		}
		return m, ok
	}
	return manifold{}, false
}

func circleCircle(a, b *body) (manifold, bool) {
	delta := b.Pos.Sub(a.Pos)
	total := a.Radius + b.Radius
	distSq := delta.LenSq()
	if distSq >= total*total {
		return manifold{}, false
	}
	dist := math.Sqrt(distSq)
	normal := Vec{X: 1}
	if dist > 0 {
		normal = delta.Scale(1 / dist)
	}
	return manifold{
		a:           a,
		b:           b,
		normal:      normal,
		penetration: total - dist,
		restitution: math.Max(a.Restitution, b.Restitution),
	}, true
}

// circleRect treats c as A and r as B.
func circleRect(c, r *body) (manifold, bool) {
	halfW, halfH := r.Width/2, r.Height/2
	closest := Vec{
		X: clamp(c.Pos.X, r.Pos.X-halfW, r.Pos.X+halfW),
		Y: clamp(c.Pos.Y, r.Pos.Y-halfH, r.Pos.Y+halfH),
	}
	delta := c.Pos.Sub(closest)
	distSq := delta.LenSq()
	if distSq >= c.Radius*c.Radius {
		return manifold{}, false
	}

	var normal Vec
	var penetration float64
	if distSq > 0 {
		dist := math.Sqrt(distSq)
		// delta points from the rect surface to the circle; A→B is the reverse.
		normal = delta.Scale(-1 / dist)
		penetration = c.Radius - dist
	} else {
		// Centre inside the rect: push out along the shallowest axis.
		left := c.Pos.X - (r.Pos.X - halfW)
		right := (r.Pos.X + halfW) - c.Pos.X
		top := c.Pos.Y - (r.Pos.Y - halfH)
		bottom := (r.Pos.Y + halfH) - c.Pos.Y
		depth := math.Min(math.Min(left, right), math.Min(top, bottom))
		switch depth {
		case left:
			normal = Vec{X: 1}
		case right:
			normal = Vec{X: -1}
		case top:
			normal = Vec{Y: 1}
		default:
			normal = Vec{Y: -1}
		}
		penetration = depth + c.Radius
	}
	return manifold{
		a:           c,
		b:           r,
		normal:      normal,
		penetration: penetration,
		restitution: math.Max(c.Restitution, r.Restitution),
	}, true
}

// resolve applies the normal impulse and a positional correction.
func resolve(m manifold) {
	a, b := m.a, m.b
	invSum := a.invMass + b.invMass
	if invSum == 0 {
		return
	}

	rel := b.Vel.Sub(a.Vel)
	along := rel.Dot(m.normal)
	if along < 0 {
		j := -(1 + m.restitution) * along / invSum
		impulse := m.normal.Scale(j)
		a.Vel = a.Vel.Sub(impulse.Scale(a.invMass))
		b.Vel = b.Vel.Add(impulse.Scale(b.invMass))
	}

	if m.penetration > correctSlop {
		corr := m.normal.Scale((m.penetration - correctSlop) / invSum * correctPercent)
		a.Pos = a.Pos.Sub(corr.Scale(a.invMass))
		b.Pos = b.Pos.Add(corr.Scale(b.invMass))
	}
}
