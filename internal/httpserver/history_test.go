package httpserver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_WritesRunInOrder(t *testing.T) {
	h := newHistory(nil)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 10; i++ {
		i := i
		h.enqueue(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	require.NoError(t, h.flush(context.Background()))

	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	mu.Unlock()
	h.close()
}

func TestHistory_CloseDrainsAndRejectsLaterWrites(t *testing.T) {
	h := newHistory(nil)
	release := make(chan struct{})
	ran := make(chan struct{}, 2)
	h.enqueue(func(context.Context) { <-release; ran <- struct{}{} })
	h.enqueue(func(context.Context) { ran <- struct{}{} })

	close(release)
	h.close()
	assert.Len(t, ran, 2)

	h.enqueue(func(context.Context) { t.Error("write after close ran") })
	assert.NoError(t, h.flush(context.Background()))
	h.close()
}

func TestHistory_FlushHonorsContext(t *testing.T) {
	h := newHistory(nil)
	release := make(chan struct{})
	h.enqueue(func(context.Context) { <-release })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.flush(ctx), context.Canceled)

	close(release)
	h.close()
}
