// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily challenge.
// Exposes two endpoints under /daily:
//   - POST /daily/new         → start today's game (same board for everyone)
//   - GET  /daily/leaderboard → best scores of the last 24 hours
//
// The board is seeded from HMAC(salt, YYYY-MM-DD), so it changes at UTC
// midnight. POST /game/new {"daily": true} is equivalent to /daily/new.

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/gridentify/internal/daily"
	"github.com/robalobadob/gridentify/internal/game"
	"github.com/robalobadob/gridentify/internal/metrics"
)

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	r.Route("/daily", func(r chi.Router) {
		r.With(s.limiter.middleware).Post("/new", s.handleDailyNew)
		r.Get("/leaderboard", s.handleDailyLeaderboard)
	})
}

// dailyNewReq is the request payload for /daily/new.
type dailyNewReq struct {
	Nickname string `json:"nickname"`
}

func (s *Server) handleDailyNew(w http.ResponseWriter, r *http.Request) {
	var req dailyNewReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	name, err := nickname(req.Nickname)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.startDaily(w, r, name)
}

// startDaily starts a game on today's shared board.
func (s *Server) startDaily(w http.ResponseWriter, r *http.Request, name string) {
	now := time.Now()
	tiles := game.SeededTiles(daily.Seed(now, s.cfg.DailySalt))
	s.startGame(w, r, name, tiles, metrics.ModeDaily, daily.DateKey(now))
}

func (s *Server) handleDailyLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.writeTop(w, r, s.topLimit(r), true)
}
