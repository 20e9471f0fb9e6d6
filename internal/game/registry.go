// internal/game/registry.go
//
// Registry of letter entities currently in play.
//
// Characteristics:
//   - Ordered by spawn order so snapshots and syncs are stable.
//   - Indexed by entity ID and by body handle; both must be unique.
//   - Owned by a Session; not safe for concurrent use.

package game

import (
	"fmt"

	"github.com/robalobadob/wordeko/internal/physics"
)

type Registry struct {
	order  []int
	byID   map[int]*LetterEntity
	bodies map[physics.Handle]int
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[int]*LetterEntity),
		bodies: make(map[physics.Handle]int),
	}
}

// Add registers e. A duplicate ID or body handle is a programming error.
func (r *Registry) Add(e LetterEntity) {
	if _, dup := r.byID[e.ID]; dup {
		panic(fmt.Sprintf("registry: duplicate entity id %d", e.ID))
	}
	if owner, dup := r.bodies[e.Body]; dup {
		panic(fmt.Sprintf("registry: body %d already owned by entity %d", e.Body, owner))
	}
	ent := e
	r.byID[e.ID] = &ent
	r.bodies[e.Body] = e.ID
	r.order = append(r.order, e.ID)
}

// Get returns the live entity with the given ID.
func (r *Registry) Get(id int) (*LetterEntity, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// Each calls fn for every entity in spawn order.
func (r *Registry) Each(fn func(e *LetterEntity)) {
	for _, id := range r.order {
		fn(r.byID[id])
	}
}

// All returns copies of every entity in spawn order.
func (r *Registry) All() []LetterEntity {
	out := make([]LetterEntity, 0, len(r.order))
	r.Each(func(e *LetterEntity) { out = append(out, *e) })
	return out
}

// Clear empties the registry and returns what it held.
func (r *Registry) Clear() []LetterEntity {
	out := r.All()
	r.order = r.order[:0]
	r.byID = make(map[int]*LetterEntity)
	r.bodies = make(map[physics.Handle]int)
	return out
}

func (r *Registry) Len() int { return len(r.order) }
