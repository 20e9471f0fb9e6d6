// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily mode.
// Exposes:
//   - POST /daily/new         → start today's session (creates or reuses one)
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=YYYY-MM-DD)
//
// POST /session/new with {"mode":"daily"} is routed here as well.
//
// Everyone gets the same letters on the same UTC date (seeded from date + salt).
// Each player has one recorded result per day: the first round they finish,
// whether by reaching the win score or by abandoning it.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordeko/internal/daily"
	"github.com/robalobadob/wordeko/internal/game"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	now      func() time.Time
	sessions map[string]string // userID|date → session ID
	mu       sync.Mutex
}

func newDailyServer(s *Server) *dailyServer {
	var st *daily.Store
	if s.db != nil {
		st = daily.NewStore(s.db)
	}
	return &dailyServer{
		srv:      s,
		store:    st,
		now:      time.Now,
		sessions: make(map[string]string),
	}
}

// mount registers all /daily routes.
func (d *dailyServer) mount(r chi.Router) {
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", d.handleNew)
		r.Get("/leaderboard", d.handleLeaderboard)
	})
}

// userID returns the authenticated user ID if logged in, otherwise the
// anonymous cookie ID.
func (d *dailyServer) userID(w http.ResponseWriter, r *http.Request) (string, owner) {
	o := d.srv.ownerOf(w, r)
	if o.userID != "" {
		return o.userID, o
	}
	return o.anonID, o
}

// newRes is returned by /daily/new.
type newRes struct {
	SessionID string         `json:"sessionId"`
	Date      string         `json:"date"`
	Played    bool           `json:"played"`
	Snapshot  *game.Snapshot `json:"snapshot,omitempty"`
}

// handleNew creates or reuses today's session.
// - If the player already has a result for today → Played=true.
// - Otherwise reuse a live session or start one with today's seed.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	uid, o := d.userID(w, r)
	now := d.now().UTC()
	date := daily.DateKey(now)

	if d.store != nil {
		if err := d.srv.history.flush(r.Context()); err != nil {
			log.Warn().Err(err).Msg("flush history before daily check")
		}
		if played, err := d.store.AlreadyPlayed(r.Context(), uid, date); err == nil && played {
			_ = json.NewEncoder(w).Encode(newRes{Date: date, Played: true})
			return
		}
	}

	key := uid + "|" + date
	d.mu.Lock()
	id, ok := d.sessions[key]
	d.mu.Unlock()
	if ok {
		if st, err := d.srv.store.Get(r.Context(), id); err == nil {
			if sess, ok := st.(*session); ok {
				d.respond(w, r, sess, date)
				return
			}
		}
		d.forget(key, id)
	}

	cfg := d.srv.cfg.Game()
	cfg.Seed = daily.Seed(now, d.srv.cfg.DailySalt)
	start := time.Now()
	sess, err := d.srv.startSession(r.Context(), o, "daily", cfg, func(score int, words []string, won bool) {
		d.record(daily.Result{
			UserID:    uid,
			Date:      date,
			Score:     score,
			Words:     words,
			ElapsedMs: int(time.Since(start).Milliseconds()),
		})
	})
	if err != nil {
		log.Error().Err(err).Msg("save daily session")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	d.mu.Lock()
	d.sessions[key] = sess.ID()
	d.mu.Unlock()
	sess.setOnStop(func() { d.forget(key, sess.ID()) })
	d.respond(w, r, sess, date)
}

// forget drops key if it still points at id.
func (d *dailyServer) forget(key, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sessions[key] == id {
		delete(d.sessions, key)
	}
}

// tracked reports how many daily sessions are remembered.
func (d *dailyServer) tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *dailyServer) respond(w http.ResponseWriter, r *http.Request, sess *session, date string) {
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(newRes{SessionID: sess.ID(), Date: date, Snapshot: &snap})
}

// record queues a finished daily round behind the session's history writes.
// It runs on the session's loop goroutine.
func (d *dailyServer) record(res daily.Result) {
	if d.store == nil {
		return
	}
	d.srv.history.enqueue(func(ctx context.Context) {
		if err := d.store.InsertResult(ctx, res); err != nil {
			log.Warn().Err(err).Str("user", res.UserID).Msg("insert daily result")
		}
	})
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.now())
	}
	if d.store == nil {
		_ = json.NewEncoder(w).Encode(lbRes{Date: date, Top: []daily.LBRow{}})
		return
	}
	if err := d.srv.history.flush(r.Context()); err != nil {
		log.Warn().Err(err).Msg("flush history before leaderboard")
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{Date: date, Top: rows})
}
