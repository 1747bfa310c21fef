// internal/httpserver/routes_scores.go
//
// Leaderboard endpoint.
//   - GET /leaderboard?daily=1&limit=N → {daily, top: [{name, score}]}
//
// Responses carry an ETag (xxhash of the body). Clients polling with
// If-None-Match get 304 until a new score changes the list.

package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridentify/internal/leaderboard"
)

// lbRes is returned by the leaderboard endpoints.
type lbRes struct {
	Daily bool                `json:"daily"`
	Top   []leaderboard.Entry `json:"top"`
}

// topLimit reads ?limit=N, defaulting to the configured size.
func (s *Server) topLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return s.cfg.LeaderboardSize
	}
	return min(n, maxTopLimit)
}

// handleLeaderboard serves GET /leaderboard?daily=1&limit=N.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	onlyDaily, _ := strconv.ParseBool(r.URL.Query().Get("daily"))
	s.writeTop(w, r, s.topLimit(r), onlyDaily)
}

// writeTop loads a top list and writes it with an ETag, or 304 when the
// client already holds the same list.
func (s *Server) writeTop(w http.ResponseWriter, r *http.Request, limit int, onlyDaily bool) {
	top, err := s.scores.Top(r.Context(), limit, onlyDaily)
	if err != nil {
		log.Error().Err(err).Msg("load leaderboard")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	body, err := json.Marshal(lbRes{Daily: onlyDaily, Top: top})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	etag := `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	_, _ = w.Write(append(body, '\n'))
}
