// internal/session/session.go
//
// Socket protocol for one game, independent of the transport.
//
//	client -> server  nickname (JSON string, at most 16 bytes)
//	server -> client  board (JSON array of 25 numbers)
//	client -> server  action (JSON array of cell indices)
//	... board/action repeat until no move is left ...
//	server            records (nickname, score) and returns
//
// Any error (bad JSON, long nickname, invalid move) is sent to the client as
// a JSON string and ends the session; there is no retry.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridentify/internal/game"
	"github.com/robalobadob/gridentify/internal/metrics"
)

// MaxNickname is the longest nickname accepted, in bytes.
const MaxNickname = 16

// ErrNicknameTooLong rejects a nickname over MaxNickname bytes.
var ErrNicknameTooLong = errors.New("nickname too long")

// Conn is a message-oriented JSON connection, as provided by
// *websocket.Conn.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
}

// Recorder persists one final score.
type Recorder interface {
	Record(ctx context.Context, name string, score uint64) error
}

// Runner plays games over connections.
type Runner struct {
	Scores Recorder
	// NewTiles picks the tile source per game; nil means game.RandomTiles.
	NewTiles func() game.TileSource
}

// Play runs one game to completion over conn. On error the error text has
// already been sent to the client (best effort) when Play returns.
func (r *Runner) Play(ctx context.Context, conn Conn) (game.Result, error) {
	res, err := r.play(ctx, conn)
	if err != nil {
		log.Warn().Err(err).Msg("session aborted")
		_ = conn.WriteJSON(err.Error())
	}
	return res, err
}

func (r *Runner) play(ctx context.Context, conn Conn) (game.Result, error) {
	var nickname string
	if err := conn.ReadJSON(&nickname); err != nil {
		return game.Result{}, fmt.Errorf("read nickname: %w", err)
	}
	if len(nickname) > MaxNickname {
		return game.Result{}, fmt.Errorf("%w: %s", ErrNicknameTooLong, nickname)
	}

	tiles := game.RandomTiles
	if r.NewTiles != nil {
		tiles = r.NewTiles
	}
	g := game.New(nickname, tiles())
	metrics.GamesStarted.WithLabelValues(metrics.ModeSocket).Inc()
	log.Info().Str("gameId", g.ID).Str("nickname", nickname).Msg("playing")

	for {
		st, moves := g.Snapshot()
		if err := conn.WriteJSON(st.Board); err != nil {
			return game.Result{State: st, Moves: moves}, fmt.Errorf("send board: %w", err)
		}

		if g.Finished() {
			metrics.Finished(st.Score)
			if err := r.Scores.Record(ctx, nickname, st.Score); err != nil {
				log.Error().Err(err).Str("gameId", g.ID).Msg("record score")
			}
			log.Info().Str("gameId", g.ID).Uint64("score", st.Score).Int("moves", moves).Msg("game over")
			return game.Result{State: st, Moves: moves, Completed: true}, nil
		}

		if err := ctx.Err(); err != nil {
			return game.Result{State: st, Moves: moves}, err
		}

		var action game.Action
		if err := conn.ReadJSON(&action); err != nil {
			return game.Result{State: st, Moves: moves}, fmt.Errorf("read action: %w", err)
		}
		if _, err := g.Apply(action); err != nil {
			metrics.Moves.WithLabelValues(metrics.MoveRejected).Inc()
			return game.Result{State: st, Moves: moves}, fmt.Errorf("wrong move from %s: %w", nickname, err)
		}
		metrics.Moves.WithLabelValues(metrics.MoveAccepted).Inc()
	}
}
