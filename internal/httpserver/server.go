// internal/httpserver/server.go
//
// HTTP server wiring for the Wordeko backend.
// Responsibilities:
//   - Router + middleware (request IDs, access log, CORS, timeouts, panic recovery).
//   - Public endpoints: "/", "/health".
//   - Session endpoints (optional auth): /session/*.
//   - Daily mode endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - The websocket stream is mounted outside the request timeout and the
//     JSON content type, since it outlives any single request.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordeko/internal/config"
	"github.com/robalobadob/wordeko/internal/game"
	"github.com/robalobadob/wordeko/internal/store"
)

const requestTimeout = 10 * time.Second

// Server bundles router, live session store, dictionary and DB handle.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	store    store.Store
	db       *sql.DB
	checker  game.Checker
	history  *history
	daily    *dailyServer
	upgrader websocket.Upgrader
	http     *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, db *sql.DB, checker game.Checker) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     cfg,
		store:   st,
		db:      db,
		checker: checker,
		history: newHistory(db),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return o == "" || o == cfg.ClientOrigin
			},
		},
	}
	s.daily = newDailyServer(s)

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)   // zerolog access line
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(cors(cfg.ClientOrigin))

	// Websocket stream: no timeout, no JSON content type.
	s.r.With(s.withOptionalAuth()).Get("/session/{id}/stream", s.handleStream)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(jsonContentType)

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"wordeko-go","endpoints":["/health","POST /session/new","/session/{id}/*","/daily/*","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": s.store.Len()})
		})

		// Sessions: optional auth (guests can play)
		r.Group(func(r chi.Router) {
			r.Use(s.withOptionalAuth())
			r.Post("/session/new", s.handleNewSession)
			r.Get("/session/{id}", s.handleSnapshot)
			r.Post("/session/{id}/toggle", s.handleToggle)
			r.Post("/session/{id}/submit", s.handleSubmit)
			r.Post("/session/{id}/restart", s.handleRestart)
			r.Post("/session/{id}/music", s.handleMusic)
			s.daily.mount(r)
		})

		s.mountAuthRoutes(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start begins serving HTTP on addr. It returns nil after Shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

// Close waits for queued history writes and stops the writer. Call it after
// every session has been stopped and before closing the database.
func (s *Server) Close() { s.history.close() }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
