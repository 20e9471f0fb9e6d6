package game

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/robalobadob/wordeko/internal/physics"
)

// --- Checker ---

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Check(ctx context.Context, word string) (bool, error) {
	args := m.Called(ctx, word)
	return args.Bool(0), args.Error(1)
}

// --- Presenter ---

// recorder is a Presenter that remembers what it was told.
type recorder struct {
	mu       sync.Mutex
	added    map[int]physics.Vec
	moved    map[int]physics.Vec
	removed  []int
	marked   map[int]bool
	word     string
	score    int
	notices  []Notice
	gameOver int
	music    MusicState
	moves    int
	flushes  int
}

func newRecorder() *recorder {
	return &recorder{
		added:  map[int]physics.Vec{},
		moved:  map[int]physics.Vec{},
		marked: map[int]bool{},
	}
}

func (r *recorder) TokenAdded(e LetterEntity, pos physics.Vec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added[e.ID] = pos
}

func (r *recorder) TokenRemoved(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

func (r *recorder) TokenMoved(id int, pos physics.Vec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moved[id] = pos
	r.moves++
}

func (r *recorder) TokenMarked(id int, selected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked[id] = selected
}

func (r *recorder) WordChanged(word string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.word = word
}

func (r *recorder) ScoreChanged(score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.score = score
}

func (r *recorder) MusicChanged(m MusicState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.music = m
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) GameOver(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gameOver++
}

func (r *recorder) Flush(uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

func (r *recorder) moveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moves
}
