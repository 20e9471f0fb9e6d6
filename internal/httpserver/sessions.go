// internal/httpserver/sessions.go
//
// Session endpoints. Every route under /session/{id} talks to the session's
// loop; handlers never touch game state directly.
//
//   POST /session/new              start a session (optional auth)
//   GET  /session/{id}             snapshot
//   POST /session/{id}/toggle      select or deselect a letter
//   POST /session/{id}/submit      validate the current word (rate limited)
//   POST /session/{id}/restart     fresh letters, score zero
//   POST /session/{id}/music       play/pause and volume
//   GET  /session/{id}/stream      websocket event stream

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/robalobadob/wordeko/internal/game"
	"github.com/robalobadob/wordeko/internal/store"
)

const submitBurst = 5

// session is a live game plus what the HTTP layer keeps beside it.
type session struct {
	*game.Loop
	hub     *Hub
	limiter *rate.Limiter
	record  *record
	mode    string

	mu      sync.Mutex
	stopped bool
	onStop  func()
}

// Stop ends the loop and disconnects stream clients.
func (s *session) Stop() {
	s.Loop.Stop()
	s.hub.Close()
	s.mu.Lock()
	fn := s.onStop
	s.stopped, s.onStop = true, nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// setOnStop registers fn to run once the session stops. If it already has,
// fn runs now.
func (s *session) setOnStop(fn func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		fn()
		return
	}
	s.onStop = fn
	s.mu.Unlock()
}

// startSession creates, starts and stores a session. finish, when set, is
// called once per round that is won or abandoned.
func (s *Server) startSession(ctx context.Context, o owner, mode string, cfg game.Config,
	finish func(score int, words []string, won bool)) (*session, error) {
	id := uuid.NewString()
	hub := NewHub()
	rec := s.history.begin(id, o, mode)
	rec.onFinish = finish

	sess := &session{
		Loop:    game.NewLoop(id, cfg, s.checker, hub, rec.hooks()),
		hub:     hub,
		limiter: rate.NewLimiter(rate.Limit(s.cfg.SubmitRate), submitBurst),
		record:  rec,
		mode:    mode,
	}
	sess.Start()
	if err := s.store.Save(ctx, sess); err != nil {
		sess.Stop()
		return nil, err
	}
	log.Info().Str("session", id).Str("mode", mode).Msg("session started")
	return sess, nil
}

func (s *Server) ownerOf(w http.ResponseWriter, r *http.Request) owner {
	if me := currentUser(r); me != nil {
		return owner{userID: me.ID}
	}
	return owner{anonID: s.ensureAnonID(w, r)}
}

// lookup resolves {id} or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *session {
	id := chi.URLParam(r, "id")
	st, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		} else {
			http.Error(w, `{"error":"store_error"}`, http.StatusInternalServerError)
		}
		return nil
	}
	sess, ok := st.(*session)
	if !ok {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return nil
	}
	return sess
}

// writeGameError maps session errors to HTTP statuses.
func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrUnknownEntity):
		http.Error(w, `{"error":"unknown_entity"}`, http.StatusBadRequest)
	case errors.Is(err, game.ErrGameOver):
		http.Error(w, `{"error":"game_over"}`, http.StatusConflict)
	case errors.Is(err, game.ErrSuperseded):
		http.Error(w, `{"error":"superseded"}`, http.StatusConflict)
	case errors.Is(err, game.ErrLoopStopped):
		http.Error(w, `{"error":"session_stopped"}`, http.StatusGone)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		http.Error(w, `{"error":"timeout"}`, http.StatusGatewayTimeout)
	default:
		log.Error().Err(err).Msg("session command")
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}
}

// ------------------------------ handlers ------------------------------------

type newSessionReq struct {
	Mode string `json:"mode"` // "normal" | "daily"
}

type sessionRes struct {
	SessionID string        `json:"sessionId"`
	Snapshot  game.Snapshot `json:"snapshot"`
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Mode == "daily" {
		s.daily.handleNew(w, r)
		return
	}

	sess, err := s.startSession(r.Context(), s.ownerOf(w, r), "normal", s.cfg.Game(), nil)
	if err != nil {
		log.Error().Err(err).Msg("save session")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sessionRes{SessionID: sess.ID(), Snapshot: snap})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}

type toggleReq struct {
	EntityID int `json:"entityId"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}
	var req toggleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	snap, err := sess.Toggle(r.Context(), req.EntityID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}

type submitRes struct {
	game.Result
	Snapshot game.Snapshot `json:"snapshot"`
}

// handleSubmit waits for the dictionary verdict. The world keeps stepping
// meanwhile; the request context bounds the wait.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}
	if !sess.limiter.Allow() {
		http.Error(w, `{"error":"rate_limited"}`, http.StatusTooManyRequests)
		return
	}
	res, err := sess.Submit(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(submitRes{Result: res, Snapshot: snap})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}
	snap, err := sess.Restart(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}

type musicReq struct {
	Playing *bool    `json:"playing"`
	Volume  *float64 `json:"volume"`
	Toggle  bool     `json:"toggle"`
}

func (s *Server) handleMusic(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}
	var req musicReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	var (
		snap game.Snapshot
		err  error
	)
	if req.Toggle {
		snap, err = sess.ToggleMusic(r.Context())
		if err == nil && req.Volume != nil {
			snap, err = sess.SetMusic(r.Context(), nil, req.Volume)
		}
	} else {
		snap, err = sess.SetMusic(r.Context(), req.Playing, req.Volume)
	}
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sess.ID()).Msg("websocket upgrade")
		return
	}
	ctx := r.Context()
	sess.hub.Serve(conn, func(fn func(game.Snapshot)) error { return sess.View(ctx, fn) })
}
