// internal/game/loop.go
//
// Loop drives one Session on a single goroutine.
//
// Every state change happens inside Run: fixed-update ticks from the
// session's runner, commands posted by HTTP handlers, and the continuation
// of a dictionary lookup. The lookup itself is the only thing that runs on
// another goroutine; it posts its verdict back into the inbox, so the world
// keeps stepping while a word is being checked.

package game

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Checker is the dictionary collaborator used by the validation pipeline.
type Checker interface {
	Check(ctx context.Context, word string) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, word string) (bool, error)

func (f CheckerFunc) Check(ctx context.Context, word string) (bool, error) { return f(ctx, word) }

// Hooks observe a loop from its own goroutine. They must not block.
type Hooks struct {
	AfterTick  func(tick uint64)
	OnResolved func(res Result)
	OnGameOver func(score int, accepted []string)
	OnAbandon  func(score int, accepted []string) // unfinished session restarted or stopped
	OnRestart  func()
}

type submitReply struct {
	res Result
	err error
}

// Loop owns a Session and serialises access to it.
type Loop struct {
	id        string
	cfg       Config
	checker   Checker
	presenter Presenter
	hooks     Hooks

	session *Session
	waiters map[uint64]chan submitReply

	inbox    chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc

	lastActive atomic.Int64
}

// NewLoop creates a session for cfg. Call Start to begin ticking.
func NewLoop(id string, cfg Config, checker Checker, p Presenter, hooks Hooks) *Loop {
	if p == nil {
		p = NopPresenter{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		id:        id,
		cfg:       cfg,
		checker:   checker,
		presenter: p,
		hooks:     hooks,
		session:   NewSession(cfg, p),
		waiters:   make(map[uint64]chan submitReply),
		inbox:     make(chan func(), 64),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	l.touch()
	return l
}

// ID returns the loop's session identifier.
func (l *Loop) ID() string { return l.id }

// Start runs the loop on a new goroutine.
func (l *Loop) Start() { go l.run() }

// Stop ends the loop, tears down the session and waits for it to exit.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.cancel()
		close(l.stop)
	})
	<-l.done
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

// LastActive is the time of the most recent command.
func (l *Loop) LastActive() time.Time { return time.Unix(0, l.lastActive.Load()) }

func (l *Loop) touch() { l.lastActive.Store(time.Now().UnixNano()) }

func (l *Loop) run() {
	defer close(l.done)
	l.session.Start()
	log.Debug().Str("session", l.id).Msg("loop started")
	for {
		select {
		case <-l.stop:
			l.abandon(l.session)
			l.session.Teardown()
			l.flush()
			log.Debug().Str("session", l.id).Msg("loop stopped")
			return
		case <-l.session.Ticks():
			if l.session.Tick(l.session.Delta()) {
				l.flush()
				if l.hooks.AfterTick != nil {
					l.hooks.AfterTick(l.session.tick)
				}
			}
		case fn := <-l.inbox:
			fn()
			l.flush()
		}
	}
}

func (l *Loop) abandon(s *Session) {
	if !s.Ended() && l.hooks.OnAbandon != nil {
		l.hooks.OnAbandon(s.Score(), s.Accepted())
	}
}

func (l *Loop) flush() {
	if f, ok := l.presenter.(Flusher); ok {
		f.Flush(l.session.tick)
	}
}

// post queues fn onto the loop goroutine without waiting for it.
func (l *Loop) post(fn func()) bool {
	select {
	case l.inbox <- fn:
		return true
	case <-l.done:
		return false
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) do(ctx context.Context, fn func(s *Session)) error {
	l.touch()
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn(l.session)
	}
	select {
	case l.inbox <- job:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Snapshot returns the current session state.
func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := l.do(ctx, func(s *Session) { snap = s.Snapshot() })
	return snap, err
}

// View runs fn on the loop goroutine with the current snapshot. Nothing else
// happens to the session while fn runs.
func (l *Loop) View(ctx context.Context, fn func(Snapshot)) error {
	return l.do(ctx, func(s *Session) { fn(s.Snapshot()) })
}

// Toggle flips an entity's selection.
func (l *Loop) Toggle(ctx context.Context, entityID int) (Snapshot, error) {
	var (
		snap Snapshot
		terr error
	)
	err := l.do(ctx, func(s *Session) {
		if _, terr = s.Toggle(entityID); terr == nil {
			snap = s.Snapshot()
		}
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, terr
}

// Submit validates the current word and waits for the verdict. Ticks keep
// running while the dictionary is consulted. If ctx ends first the verdict
// is still applied when it arrives.
func (l *Loop) Submit(ctx context.Context) (Result, error) {
	reply := make(chan submitReply, 1)
	err := l.do(ctx, func(s *Session) {
		sub, err := s.BeginSubmit()
		if err != nil {
			reply <- submitReply{err: err}
			return
		}
		// A newer submission supersedes older waiters.
		for seq, w := range l.waiters {
			w <- submitReply{err: ErrSuperseded}
			delete(l.waiters, seq)
		}
		l.waiters[sub.Seq] = reply
		go l.validate(s, sub)
	})
	if err != nil {
		return Result{}, err
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-l.done:
		return Result{}, ErrLoopStopped
	}
}

// validate runs off the loop goroutine and posts the verdict back.
func (l *Loop) validate(s *Session, sub Submission) {
	valid, lookupErr := l.checker.Check(l.ctx, sub.Word)
	if lookupErr != nil {
		log.Warn().Err(lookupErr).Str("session", l.id).Str("word", sub.Word).Msg("word validation failed")
	}
	l.post(func() {
		if l.session != s {
			return // session was restarted meanwhile
		}
		res, err := s.ResolveValidation(sub, valid, lookupErr)
		if w, ok := l.waiters[sub.Seq]; ok {
			delete(l.waiters, sub.Seq)
			w <- submitReply{res: res, err: err}
		}
		if err != nil {
			return
		}
		if l.hooks.OnResolved != nil {
			l.hooks.OnResolved(res)
		}
		if res.Ended && l.hooks.OnGameOver != nil {
			l.hooks.OnGameOver(res.Score, s.Accepted())
		}
	})
}

// SetMusic updates the soundtrack; nil fields are left alone.
func (l *Loop) SetMusic(ctx context.Context, playing *bool, volume *float64) (Snapshot, error) {
	var snap Snapshot
	err := l.do(ctx, func(s *Session) {
		s.SetMusic(playing, volume)
		snap = s.Snapshot()
	})
	return snap, err
}

// ToggleMusic flips play/pause.
func (l *Loop) ToggleMusic(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := l.do(ctx, func(s *Session) {
		s.ToggleMusic()
		snap = s.Snapshot()
	})
	return snap, err
}

// Restart replaces the session with a fresh one: new world, new letters,
// score zero, music playing at the previous volume. Pending submissions are
// superseded.
func (l *Loop) Restart(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := l.do(ctx, func(old *Session) {
		l.abandon(old)
		old.Teardown()
		for seq, w := range l.waiters {
			w <- submitReply{err: ErrSuperseded}
			delete(l.waiters, seq)
		}
		volume := old.music.State().Volume
		l.session = NewSession(l.cfg, l.presenter)
		l.session.SetMusic(nil, &volume)
		l.session.Start()
		if l.hooks.OnRestart != nil {
			l.hooks.OnRestart()
		}
		snap = l.session.Snapshot()
	})
	return snap, err
}
