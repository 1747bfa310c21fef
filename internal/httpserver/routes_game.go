// internal/httpserver/routes_game.go
//
// REST game endpoints.
//   - POST /game/new    → create a session, return its token and first board
//   - GET  /game/state  → current board, score and move count
//   - POST /game/move   → apply one action; anything invalid forfeits
//   - GET  /game/hint   → the solver's pick for the current board
//
// Finished games are recorded on the leaderboard once and dropped from the
// session store.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridentify/internal/game"
	"github.com/robalobadob/gridentify/internal/lucid"
	"github.com/robalobadob/gridentify/internal/metrics"
	"github.com/robalobadob/gridentify/internal/session"
)

const anonymous = "anonymous"

// newGameReq is the payload of POST /game/new. Seed and Daily are optional;
// without either the board is random.
type newGameReq struct {
	Nickname string  `json:"nickname"`
	Seed     *uint64 `json:"seed,omitempty"`
	Daily    bool    `json:"daily,omitempty"`
}

// gameRes is returned by every game endpoint. GameID and Token are only set
// when a game is created.
type gameRes struct {
	GameID string     `json:"gameId,omitempty"`
	Token  string     `json:"token,omitempty"`
	Date   string     `json:"date,omitempty"`
	Board  game.Board `json:"board"`
	Score  uint64     `json:"score"`
	Moves  int        `json:"moves"`
	Over   bool       `json:"over"`
}

// decodeBody decodes JSON into v; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// nickname trims and checks a requested nickname.
func nickname(raw string) (string, error) {
	n := strings.TrimSpace(raw)
	if n == "" {
		return anonymous, nil
	}
	if len(n) > session.MaxNickname {
		return "", session.ErrNicknameTooLong
	}
	return n, nil
}

// handleNewGame creates a session and returns its token and first board.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	name, err := nickname(req.Nickname)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case req.Daily:
		s.startDaily(w, r, name)
	case req.Seed != nil:
		s.startGame(w, r, name, game.SeededTiles(*req.Seed), metrics.ModeSeeded, "")
	default:
		s.startGame(w, r, name, game.RandomTiles(), metrics.ModeRandom, "")
	}
}

// startGame stores a new game and answers with its token.
func (s *Server) startGame(w http.ResponseWriter, r *http.Request, name string, tiles game.TileSource, mode, date string) {
	g := game.New(name, tiles)
	tok, err := s.tokens.issue(g)
	if err != nil {
		log.Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	if err := s.store.Save(r.Context(), g); err != nil {
		log.Error().Err(err).Msg("save game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	metrics.GamesStarted.WithLabelValues(mode).Inc()
	log.Info().Str("gameId", g.ID).Str("nickname", name).Str("mode", mode).Msg("playing")

	st, moves := g.Snapshot()
	over := g.Finished()
	if over {
		s.finish(r.Context(), g, st)
	}
	_ = json.NewEncoder(w).Encode(gameRes{
		GameID: g.ID, Token: tok, Date: date,
		Board: st.Board, Score: st.Score, Moves: moves, Over: over,
	})
}

// finish records a completed game and drops the session.
func (s *Server) finish(ctx context.Context, g *game.Game, st game.State) {
	metrics.Finished(st.Score)
	// scores are recorded even when the client has gone away
	if err := s.scores.Record(context.WithoutCancel(ctx), g.Nickname, st.Score); err != nil {
		log.Error().Err(err).Str("gameId", g.ID).Msg("record score")
	}
	if err := s.store.Delete(ctx, g.ID); err != nil {
		log.Warn().Err(err).Str("gameId", g.ID).Msg("drop finished game")
	}
	log.Info().Str("gameId", g.ID).Uint64("score", st.Score).Msg("game over")
}

// forfeit drops a session after a protocol or rule violation.
func (s *Server) forfeit(ctx context.Context, g *game.Game, reason error) {
	metrics.Moves.WithLabelValues(metrics.MoveRejected).Inc()
	if err := s.store.Delete(ctx, g.ID); err != nil {
		log.Warn().Err(err).Str("gameId", g.ID).Msg("drop forfeited game")
	}
	log.Info().Err(reason).Str("gameId", g.ID).Str("nickname", g.Nickname).Msg("game forfeited")
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	g := gameFrom(r.Context())
	st, moves := g.Snapshot()
	_ = json.NewEncoder(w).Encode(gameRes{Board: st.Board, Score: st.Score, Moves: moves, Over: g.Finished()})
}

// moveReq is the payload of POST /game/move.
type moveReq struct {
	Action game.Action `json:"action"`
}

// handleMove applies one action. Anything but a valid action ends the game
// without a score.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	g := gameFrom(r.Context())
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.forfeit(r.Context(), g, err)
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	res, err := g.Apply(req.Action)
	switch {
	case errors.Is(err, game.ErrGameFinished):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.forfeit(r.Context(), g, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.Moves.WithLabelValues(metrics.MoveAccepted).Inc()
	if res.Completed {
		s.finish(r.Context(), g, res.State)
	}
	_ = json.NewEncoder(w).Encode(gameRes{
		Board: res.State.Board, Score: res.State.Score, Moves: res.Moves, Over: res.Completed,
	})
}

// hintRes is returned by GET /game/hint.
type hintRes struct {
	Action   game.Action `json:"action"`
	Expected float64     `json:"expected"`
}

// handleHint asks the solver for the current position. Searches run on their
// own goroutine under the solver semaphore; a search that outlives the hint
// timeout finishes in the background and its result is dropped.
func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	st, _ := gameFrom(r.Context()).Snapshot()
	if game.IsGameOver(&st) {
		writeError(w, http.StatusConflict, game.ErrGameFinished.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HintTimeout)
	defer cancel()
	if err := s.solvers.Acquire(ctx, 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "solver_busy")
		return
	}

	done := make(chan lucid.Decision, 1)
	go func() {
		defer s.solvers.Release(1)
		start := time.Now()
		d := s.solver.BestAction(st)
		metrics.SolverSeconds.Observe(time.Since(start).Seconds())
		done <- d
	}()

	select {
	case d := <-done:
		_ = json.NewEncoder(w).Encode(hintRes{Action: d.Action, Expected: d.Expected})
	case <-ctx.Done():
		writeError(w, http.StatusServiceUnavailable, "solver_timeout")
	}
}
