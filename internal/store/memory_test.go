package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/wordeko/internal/game"
)

type fakeSession struct {
	id      string
	last    time.Time
	stopped atomic.Int32
}

func (f *fakeSession) ID() string            { return f.id }
func (f *fakeSession) Stop()                 { f.stopped.Add(1) }
func (f *fakeSession) LastActive() time.Time { return f.last }

func TestMemory_SaveGetDelete(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	s := &fakeSession{id: "a", last: time.Now()}

	require.NoError(t, st.Save(ctx, s))
	got, err := st.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, st.Len())

	require.NoError(t, st.Delete(ctx, "a"))
	assert.EqualValues(t, 1, s.stopped.Load())
	_, err = st.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.Delete(ctx, "a"), ErrNotFound)
}

func TestMemory_SaveReplacesAndStopsOld(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	old := &fakeSession{id: "a"}
	fresh := &fakeSession{id: "a"}

	require.NoError(t, st.Save(ctx, old))
	require.NoError(t, st.Save(ctx, old))
	assert.Zero(t, old.stopped.Load())

	require.NoError(t, st.Save(ctx, fresh))
	assert.EqualValues(t, 1, old.stopped.Load())
	assert.Zero(t, fresh.stopped.Load())
}

func TestMemory_SweepEvictsIdle(t *testing.T) {
	now := time.Unix(10_000, 0)
	st := &memory{sessions: map[string]Session{}, now: func() time.Time { return now }}
	ctx := context.Background()
	idle := &fakeSession{id: "idle", last: now.Add(-time.Hour)}
	busy := &fakeSession{id: "busy", last: now.Add(-time.Minute)}
	require.NoError(t, st.Save(ctx, idle))
	require.NoError(t, st.Save(ctx, busy))

	assert.Equal(t, []string{"idle"}, st.Sweep(ctx, 30*time.Minute))
	assert.EqualValues(t, 1, idle.stopped.Load())
	assert.Zero(t, busy.stopped.Load())
	assert.Equal(t, 1, st.Len())
}

func TestMemory_HoldsGameLoops(t *testing.T) {
	cfg := game.DefaultConfig()
	cfg.Seed = 3
	l := game.NewLoop("loop-1", cfg, game.CheckerFunc(func(context.Context, string) (bool, error) {
		return true, nil
	}), nil, game.Hooks{})
	l.Start()

	st := NewMemoryStore()
	require.NoError(t, st.Save(context.Background(), l))
	require.NoError(t, st.Delete(context.Background(), "loop-1"))

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop not stopped")
	}
}
