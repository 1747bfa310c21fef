// internal/httpserver/server.go
//
// HTTP server wiring for the Gridentify backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/metrics", "/leaderboard".
//   - Game endpoints: POST /game/new, then token-gated /game/state,
//     /game/move and /game/hint.
//   - Daily endpoints: mounted under /daily.
//   - WebSocket endpoints: /ws/play (the streaming protocol) and /ws/scores.
//
// Notes:
//   - Session creation routes are rate limited per client IP.
//   - WebSocket routes sit outside the request timeout; sessions can be long.
//   - A rejected move forfeits the session, matching the socket protocol.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/robalobadob/gridentify/internal/config"
	"github.com/robalobadob/gridentify/internal/leaderboard"
	"github.com/robalobadob/gridentify/internal/lucid"
	"github.com/robalobadob/gridentify/internal/store"
)

const (
	requestTimeout = 10 * time.Second
	wsIdleTimeout  = 2 * time.Minute
	limiterIdle    = 10 * time.Minute
	maxTopLimit    = 100
)

// Leaderboard is the durable score table.
type Leaderboard interface {
	Record(ctx context.Context, name string, score uint64) error
	Top(ctx context.Context, limit int, daily bool) ([]leaderboard.Entry, error)
}

// Server bundles the router with the live session store, the leaderboard and
// the solver behind the hint endpoint.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	store    store.Store
	scores   Leaderboard
	solver   *lucid.Solver
	solvers  *semaphore.Weighted // bounds concurrent hint searches
	limiter  *ipLimiter
	tokens   tokens
	upgrader websocket.Upgrader
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, scores Leaderboard, solver *lucid.Solver) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     cfg,
		store:   st,
		scores:  scores,
		solver:  solver,
		solvers: semaphore.NewWeighted(int64(cfg.MaxSolvers)),
		limiter: newIPLimiter(cfg.RatePerSecond, cfg.RateBurst),
		tokens:  tokens{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL},
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(requestLogger)
	s.r.Use(s.cors)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout)) // bound handler time
		r.Use(jsonContentType)

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"gridentify","endpoints":["/health","POST /game/new","POST /game/move","GET /game/hint","/leaderboard","/ws/play","/ws/scores"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": s.store.Len()})
		})

		r.With(s.limiter.middleware).Post("/game/new", s.handleNewGame)
		r.Group(func(r chi.Router) {
			r.Use(s.requireGame)
			r.Get("/game/state", s.handleState)
			r.Post("/game/move", s.handleMove)
			r.Get("/game/hint", s.handleHint)
		})

		s.mountDaily(r)
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	s.r.With(s.limiter.middleware).Get("/ws/play", s.handlePlayWS)
	s.r.With(s.limiter.middleware).Get("/ws/scores", s.handleScoresWS)
	s.r.Handle("/metrics", promhttp.Handler())

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found: "+r.URL.Path)
	})

	return s
}

// Handler is the root handler to serve.
func (s *Server) Handler() http.Handler { return s.r }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin accepts same-host pages, the configured client and non-browser
// clients (no Origin header).
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("requestId", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

// writeError writes {"error": msg} with status.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
