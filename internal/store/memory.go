// internal/store/memory.go
//
// In-memory registry of live game sessions.
//
// Characteristics:
//   - Stores running sessions keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Sessions idle longer than a cutoff are stopped and evicted by Sweep.

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("store: session not found")

// Session is the part of a running game the store needs to manage it.
type Session interface {
	ID() string
	Stop()
	LastActive() time.Time
}

// Store defines the registry interface for live sessions.
type Store interface {
	// Save adds or replaces a session. A replaced session is stopped.
	Save(ctx context.Context, s Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (Session, error)

	// Delete stops and removes a session.
	Delete(ctx context.Context, id string) error

	// Sweep stops and removes sessions idle since before now-idle and
	// returns their IDs.
	Sweep(ctx context.Context, idle time.Duration) []string

	// Len reports how many sessions are live.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]Session), now: time.Now}
}

func (m *memory) Save(ctx context.Context, s Session) error {
	m.mu.Lock()
	old, ok := m.sessions[s.ID()]
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	if ok && old != s {
		old.Stop()
	}
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Stop()
	return nil
}

func (m *memory) Sweep(ctx context.Context, idle time.Duration) []string {
	cutoff := m.now().Add(-idle)
	var stale []Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, s := range stale {
		s.Stop()
		ids = append(ids, s.ID())
	}
	return ids
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Janitor sweeps st every interval until ctx is done.
func Janitor(ctx context.Context, st Store, idle, interval time.Duration) {
	if idle <= 0 || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if ids := st.Sweep(ctx, idle); len(ids) > 0 {
				log.Info().Strs("sessions", ids).Msg("evicted idle sessions")
			}
		}
	}
}
