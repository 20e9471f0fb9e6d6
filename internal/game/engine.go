// internal/game/engine.go
//
// Round controller for a single Wordeko session.
// Responsibilities:
//   - Own the physics world, its boundary walls and the letter registry.
//   - Spawn batches of letter balls with random size, position and letter.
//   - Step the world and copy body positions to the presenter every tick.
//   - Apply letter toggles to the word buffer.
//   - Drive submissions: Active → AwaitingValidation → Active/Resolved.
//   - Keep score and end the game at the win threshold.
//
// Notes:
//   - A Session is not safe for concurrent use. Loop serialises every call
//     onto one goroutine; tests call it directly.
//   - Ticks never touch selection, the word buffer or the score.

package game

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/robalobadob/wordeko/internal/physics"
)

const (
	defaultWidth       = 480
	defaultHeight      = 800
	defaultBatchSize   = 30
	defaultReward      = 20
	defaultWinScore    = 100
	defaultMinRadius   = 20
	defaultMaxRadius   = 50
	defaultRestitution = 0.5
	spawnMargin        = 50
)

// Config holds the tunables of a session.
type Config struct {
	Width, Height        float64
	BatchSize            int
	Reward               int
	WinScore             int
	MinRadius, MaxRadius float64
	Restitution          float64
	TickRate             int
	Seed                 uint64 // 0 picks a random seed
}

// DefaultConfig returns the stock 480×800 arena with 30 letters per round.
func DefaultConfig() Config {
	return Config{
		Width:       defaultWidth,
		Height:      defaultHeight,
		BatchSize:   defaultBatchSize,
		Reward:      defaultReward,
		WinScore:    defaultWinScore,
		MinRadius:   defaultMinRadius,
		MaxRadius:   defaultMaxRadius,
		Restitution: defaultRestitution,
		TickRate:    physics.DefaultTickRate,
	}
}

// Validate rejects arenas that cannot hold a max-radius ball between the walls.
func (c Config) Validate() error {
	inner := 2*physics.WallThickness + 2*c.MaxRadius
	switch {
	case c.MinRadius <= 0 || c.MaxRadius < c.MinRadius:
		return fmt.Errorf("game: bad radius range [%v,%v]", c.MinRadius, c.MaxRadius)
	case c.Width < inner || c.Height < inner:
		return fmt.Errorf("game: arena %vx%v too small for radius %v", c.Width, c.Height, c.MaxRadius)
	case c.BatchSize <= 0:
		return fmt.Errorf("game: batch size must be positive, got %d", c.BatchSize)
	case c.WinScore <= 0 || c.Reward <= 0:
		return fmt.Errorf("game: reward and win score must be positive")
	}
	return nil
}

// Session is one player's game: world, letters, word, score.
type Session struct {
	cfg       Config
	world     *physics.World
	runner    *physics.Runner
	walls     []physics.Handle
	registry  *Registry
	buffer    WordBuffer
	state     RoundState
	score     Score
	music     Soundtrack
	ended     bool
	rng       *rand.Rand
	presenter Presenter
	nextID    int
	submitSeq uint64
	tick      uint64
	accepted  []string
}

// NewSession builds the arena and spawns the first batch. The fixed-update
// driver is left stopped until Start.
func NewSession(cfg Config, p Presenter) *Session {
	if p == nil {
		p = NopPresenter{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	s := &Session{
		cfg:       cfg,
		world:     physics.NewWorld(physics.DefaultGravity),
		runner:    physics.NewRunner(cfg.TickRate),
		registry:  NewRegistry(),
		music:     newSoundtrack(),
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		presenter: p,
	}
	s.walls = s.world.CreateBoundary(cfg.Width, cfg.Height)
	s.SpawnBatch(cfg.BatchSize)
	p.ScoreChanged(0)
	p.WordChanged("")
	p.MusicChanged(s.music.State())
	return s
}

// Start starts the fixed-update driver.
func (s *Session) Start() {
	if !s.ended {
		s.runner.Start()
	}
}

// Ticks returns the driver's tick channel (nil once stopped).
func (s *Session) Ticks() <-chan time.Time { return s.runner.C() }

// Delta is the fixed step length in seconds.
func (s *Session) Delta() float64 { return s.runner.Delta() }

// SpawnBatch adds n letter entities and returns them.
func (s *Session) SpawnBatch(n int) []LetterEntity {
	out := make([]LetterEntity, 0, n)
	wall := physics.WallThickness
	for i := 0; i < n; i++ {
		r := s.cfg.MinRadius + s.rng.Float64()*(s.cfg.MaxRadius-s.cfg.MinRadius)
		x := spawnMargin + s.rng.Float64()*(s.cfg.Width-2*spawnMargin)
		y := spawnMargin + s.rng.Float64()*(s.cfg.Height/4)
		pos := physics.Vec{
			X: clamp(x, wall+r, s.cfg.Width-wall-r),
			Y: clamp(y, wall+r, s.cfg.Height-wall-r),
		}
		letter := byte('A' + s.rng.IntN(26))
		e := s.spawn(letter, pos, r)
		out = append(out, e)
	}
	return out
}

// spawn creates one entity and its body.
func (s *Session) spawn(letter byte, pos physics.Vec, radius float64) LetterEntity {
	s.nextID++
	e := LetterEntity{
		ID:     s.nextID,
		Letter: letter,
		Body:   s.world.SpawnCircle(pos, radius, s.cfg.Restitution),
		Radius: radius,
	}
	s.registry.Add(e)
	s.presenter.TokenAdded(e, pos)
	return e
}

// SyncPositions copies every letter body's position to its visual token.
func (s *Session) SyncPositions() {
	s.registry.Each(func(e *LetterEntity) {
		if pos, ok := s.world.PositionOf(e.Body); ok {
			s.presenter.TokenMoved(e.ID, pos)
		}
	})
}

// Tick advances the world by dt and syncs positions. It reports false and
// does nothing once the game has ended.
func (s *Session) Tick(dt float64) bool {
	if s.ended {
		return false
	}
	s.world.Step(dt)
	s.SyncPositions()
	s.tick++
	return true
}

// Toggle flips the selection of an entity and updates the word.
func (s *Session) Toggle(id int) (LetterEntity, error) {
	if s.ended {
		return LetterEntity{}, ErrGameOver
	}
	e, ok := s.registry.Get(id)
	if !ok {
		return LetterEntity{}, fmt.Errorf("toggle %d: %w", id, ErrUnknownEntity)
	}
	if !e.Selected {
		e.Selected = true
		s.buffer.Append(e.Letter)
	} else {
		e.Selected = false
		s.buffer.RemoveAll(e.Letter)
	}
	s.presenter.TokenMarked(e.ID, e.Selected)
	s.presenter.WordChanged(s.buffer.String())
	return *e, nil
}

// BeginSubmit hands the current word to validation. A newer submission
// supersedes any still in flight. An empty word is looked up like any other
// and comes back invalid.
func (s *Session) BeginSubmit() (Submission, error) {
	if s.ended {
		return Submission{}, ErrGameOver
	}
	s.submitSeq++
	s.state = StateAwaitingValidation
	return Submission{Seq: s.submitSeq, Word: s.buffer.String()}, nil
}

// ResolveValidation applies a dictionary verdict for submission seq.
// A non-nil lookupErr means the dictionary could not be consulted.
func (s *Session) ResolveValidation(sub Submission, valid bool, lookupErr error) (Result, error) {
	if s.ended {
		return Result{}, ErrGameOver
	}
	if sub.Seq != s.submitSeq || s.state != StateAwaitingValidation {
		return Result{}, ErrSuperseded
	}

	res := Result{Word: sub.Word}
	switch {
	case lookupErr != nil:
		res.Outcome, res.Message = OutcomeError, msgError
		s.state = StateActive
	case valid:
		res.Outcome, res.Message = OutcomeValid, msgValid
		s.state = StateResolved
		s.accepted = append(s.accepted, strings.ToLower(sub.Word))
		s.clearEntities()
		s.buffer.Clear()
		s.presenter.WordChanged("")
		s.SpawnBatch(s.cfg.BatchSize)
		s.award(s.cfg.Reward)
		if !s.ended {
			s.state = StateActive
		}
	default:
		res.Outcome, res.Message = OutcomeInvalid, msgInvalid
		s.score.Reset()
		s.presenter.ScoreChanged(0)
		s.state = StateActive
	}
	s.presenter.Notify(Notice{Outcome: res.Outcome, Message: res.Message})
	res.Score, res.Ended = s.score.Value(), s.ended
	return res, nil
}

func (s *Session) award(points int) {
	total := s.score.Award(points)
	s.presenter.ScoreChanged(total)
	if total >= s.cfg.WinScore {
		s.EndGame()
	}
}

// EndGame stops the driver and the music. It runs at most once.
func (s *Session) EndGame() {
	if s.ended {
		return
	}
	s.ended = true
	s.state = StateResolved
	s.runner.Stop()
	s.music.Pause()
	s.presenter.MusicChanged(s.music.State())
	s.presenter.GameOver(s.score.Value())
}

// SetMusic updates the soundtrack. Nil fields are left unchanged.
func (s *Session) SetMusic(playing *bool, volume *float64) MusicState {
	if playing != nil {
		if *playing {
			s.music.Play()
		} else {
			s.music.Pause()
		}
	}
	if volume != nil {
		s.music.SetVolume(*volume)
	}
	st := s.music.State()
	s.presenter.MusicChanged(st)
	return st
}

// ToggleMusic flips play/pause.
func (s *Session) ToggleMusic() MusicState {
	playing := !s.music.State().Playing
	return s.SetMusic(&playing, nil)
}

// Teardown stops the driver and removes every body, walls included.
func (s *Session) Teardown() {
	s.runner.Stop()
	s.clearEntities()
	for _, h := range s.walls {
		_ = s.world.Remove(h)
	}
	s.walls = nil
}

func (s *Session) clearEntities() {
	for _, e := range s.registry.Clear() {
		_ = s.world.Remove(e.Body)
		s.presenter.TokenRemoved(e.ID)
	}
}

// Snapshot copies the session's visible state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:    s.tick,
		State:   s.state.String(),
		Score:   s.score.Value(),
		Word:    s.buffer.String(),
		Ended:   s.ended,
		Width:   s.cfg.Width,
		Height:  s.cfg.Height,
		Letters: make([]LetterView, 0, s.registry.Len()),
		Music:   s.music.State(),
	}
	s.registry.Each(func(e *LetterEntity) {
		pos, _ := s.world.PositionOf(e.Body)
		snap.Letters = append(snap.Letters, LetterView{
			ID:       e.ID,
			Letter:   string(e.Letter),
			X:        pos.X,
			Y:        pos.Y,
			Radius:   e.Radius,
			Selected: e.Selected,
		})
	})
	return snap
}

// Accessors used by the loop, persistence hooks and tests.
func (s *Session) State() RoundState { return s.state }
func (s *Session) Score() int { return s.score.Value() }
func (s *Session) Word() string { return s.buffer.String() }
func (s *Session) Ended() bool { return s.ended }
func (s *Session) Running() bool { return s.runner.Running() }
func (s *Session) Entities() []LetterEntity { return s.registry.All() }
func (s *Session) Walls() []physics.Handle { return append([]physics.Handle(nil), s.walls...) }
func (s *Session) World() *physics.World { return s.world }
func (s *Session) Accepted() []string { return append([]string(nil), s.accepted...) }

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
