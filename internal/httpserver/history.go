// internal/httpserver/history.go
//
// Best-effort game history in SQLite.
//
// Each session gets a record; each round played in it (the first one and one
// per restart) is a row in games. Signed-in players also get their stats
// bumped when a round finishes.
//
// Notes:
//   - Record methods run on the session's loop goroutine. They only queue
//     writes; a single writer goroutine runs them in order, so a busy or
//     locked database never stalls a tick.
//   - Failures are logged and never surface to the player. When the queue is
//     full the write is dropped.
//   - Readers call flush first so they see every write queued before them.

package httpserver

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordeko/internal/game"
)

const (
	historyTimeout = 2 * time.Second
	historyQueue   = 256
)

type history struct {
	db   *sql.DB
	jobs chan func(ctx context.Context)
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newHistory(db *sql.DB) *history {
	h := &history{
		db:   db,
		jobs: make(chan func(ctx context.Context), historyQueue),
		done: make(chan struct{}),
	}
	go h.run()
	return h
}

// run executes queued writes one at a time, each bounded by historyTimeout.
func (h *history) run() {
	defer close(h.done)
	for job := range h.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		job(ctx)
		cancel()
	}
}

// enqueue hands job to the writer without blocking.
func (h *history) enqueue(job func(ctx context.Context)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.jobs <- job:
	default:
		log.Warn().Int("queue", historyQueue).Msg("history queue full, dropping write")
	}
}

// flush waits until every write queued before the call has run.
func (h *history) flush(ctx context.Context) error {
	barrier := make(chan struct{})
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return nil
	}
	select {
	case h.jobs <- func(context.Context) { close(barrier) }:
		h.mu.RUnlock()
	case <-ctx.Done():
		h.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close runs the remaining writes and stops the writer.
func (h *history) close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.jobs)
	}
	h.mu.Unlock()
	<-h.done
}

// owner identifies who a session belongs to: a user or an anonymous cookie.
type owner struct {
	userID string
	anonID string
}

// record tracks the games row behind one session. Its methods run on the
// session's loop goroutine, except begin.
type record struct {
	h         *history
	sessionID string
	owner     owner
	mode      string
	gameID    string
	words     []string
	finished  bool

	// onFinish is called once per round when it is won or abandoned.
	onFinish func(score int, words []string, won bool)
}

func (h *history) begin(sessionID string, o owner, mode string) *record {
	rec := &record{h: h, sessionID: sessionID, owner: o, mode: mode}
	rec.start()
	return rec
}

func (r *record) hooks() game.Hooks {
	return game.Hooks{
		OnResolved: r.resolved,
		OnGameOver: func(score int, words []string) { r.finish("won", score, words) },
		OnAbandon:  func(score int, words []string) { r.finish("abandoned", score, words) },
		OnRestart:  r.start,
	}
}

func (r *record) start() {
	r.gameID = genID()
	r.words = nil
	r.finished = false
	if r.h.db == nil {
		return
	}
	gameID, sessionID, o, mode := r.gameID, r.sessionID, r.owner, r.mode
	now := time.Now().UTC().Format(time.RFC3339)
	r.h.enqueue(func(ctx context.Context) {
		_, err := r.h.db.ExecContext(ctx,
			`INSERT INTO games (id, session_id, user_id, anonymous_id, mode, status, started_at)
			 VALUES (?,?,?,?,?,?,?)`,
			gameID, sessionID, nullable(o.userID), nullable(o.anonID), mode, "playing", now)
		if err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("insert game row")
		}
	})
}

func (r *record) resolved(res game.Result) {
	switch res.Outcome {
	case game.OutcomeValid:
		r.words = append(r.words, res.Word)
	case game.OutcomeInvalid:
	default:
		return
	}
	if r.h.db == nil {
		return
	}
	gameID, sessionID := r.gameID, r.sessionID
	found, joined := len(r.words), strings.Join(r.words, ",")
	r.h.enqueue(func(ctx context.Context) {
		if _, err := r.h.db.ExecContext(ctx,
			`UPDATE games SET score=?, words_found=?, words=? WHERE id=?`,
			res.Score, found, joined, gameID); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("update game row")
		}
	})
}

func (r *record) finish(status string, score int, words []string) {
	if r.finished {
		return
	}
	r.finished = true
	won := status == "won"
	log.Info().Str("session", r.sessionID).Str("status", status).Int("score", score).Msg("round finished")

	if r.h.db != nil {
		row := finishedRound{
			gameID:    r.gameID,
			sessionID: r.sessionID,
			userID:    r.owner.userID,
			status:    status,
			score:     score,
			words:     words,
			won:       won,
			at:        time.Now().UTC(),
		}
		r.h.enqueue(func(ctx context.Context) { r.h.finishRow(ctx, row) })
	}
	if r.onFinish != nil {
		r.onFinish(score, words, won)
	}
}

// finishedRound is what finishRow needs, copied off the loop goroutine.
type finishedRound struct {
	gameID    string
	sessionID string
	userID    string
	status    string
	score     int
	words     []string
	won       bool
	at        time.Time
}

func (h *history) finishRow(ctx context.Context, fr finishedRound) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		log.Warn().Err(err).Msg("begin finish tx")
		return
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET status=?, score=?, words_found=?, words=?, finished_at=? WHERE id=?`,
		fr.status, fr.score, len(fr.words), strings.Join(fr.words, ","), fr.at.Format(time.RFC3339), fr.gameID); err != nil {
		log.Warn().Err(err).Str("session", fr.sessionID).Msg("finish game")
	}
	if fr.userID != "" {
		if err := bumpStats(ctx, tx, fr.userID, fr.score, fr.won); err != nil {
			log.Warn().Err(err).Str("user", fr.userID).Msg("bump stats")
		}
	}
	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("commit finish tx")
	}
}

// bumpStats increments games played; updates wins, streak and best score.
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, score int, won bool) error {
	var gp, wins, streak, best int
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak, best_score FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &streak, &best); err != nil {
		return err
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	if score > best {
		best = score
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, streak=?, best_score=? WHERE id=?`,
		gp, wins, streak, best, userID)
	return err
}

// claimAnon transfers anonymous games to a user account after auth.
func (h *history) claimAnon(ctx context.Context, anonID, userID string) {
	if anonID == "" || userID == "" || h.db == nil {
		return
	}
	if err := h.flush(ctx); err != nil {
		log.Warn().Err(err).Msg("flush history before claim")
	}
	if _, err := h.db.ExecContext(ctx, `UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID); err != nil {
		log.Warn().Err(err).Msg("claim anon games")
	}
}

type gameRow struct {
	ID         string   `json:"id"`
	Mode       string   `json:"mode"`
	Status     string   `json:"status"`
	Score      int      `json:"score"`
	Words      []string `json:"words"`
	StartedAt  string   `json:"startedAt"`
	FinishedAt string   `json:"finishedAt,omitempty"`
}

func (h *history) recent(ctx context.Context, userID string, limit int) ([]gameRow, error) {
	if err := h.flush(ctx); err != nil {
		return nil, err
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, mode, status, score, words, started_at, COALESCE(finished_at,'')
		 FROM games WHERE user_id=? ORDER BY started_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []gameRow{}
	for rows.Next() {
		var (
			gr    gameRow
			words string
		)
		if err := rows.Scan(&gr.ID, &gr.Mode, &gr.Status, &gr.Score, &words, &gr.StartedAt, &gr.FinishedAt); err != nil {
			return nil, err
		}
		gr.Words = []string{}
		if words != "" {
			gr.Words = strings.Split(words, ",")
		}
		out = append(out, gr)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
