// internal/httpserver/routes_ws.go
//
// WebSocket endpoints.
//   - GET /ws/play   → the nickname/board/action protocol (internal/session)
//   - GET /ws/scores → the overall top list once, then close
//
// Sockets sit outside the REST timeout; idleConn bounds silence instead.

package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridentify/internal/session"
)

const wsReadLimit = 4096

// idleConn drops clients that stay silent for longer than idle.
type idleConn struct {
	*websocket.Conn
	idle time.Duration
}

func (c idleConn) ReadJSON(v any) error {
	if err := c.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
		return err
	}
	return c.Conn.ReadJSON(v)
}

func closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// handlePlayWS runs the socket protocol for one game: nickname in, then
// board out / action in until game over.
func (s *Server) handlePlayWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed websocket handshake")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)
	log.Info().Str("ip", clientIP(r)).Msg("new client")

	runner := &session.Runner{Scores: s.scores}
	res, err := runner.Play(r.Context(), idleConn{Conn: conn, idle: wsIdleTimeout})
	if err == nil {
		log.Info().Uint64("score", res.State.Score).Int("moves", res.Moves).Msg("dropping client")
	}
	closeNormal(conn)
}

// handleScoresWS sends the leaderboard once and closes.
func (s *Server) handleScoresWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed websocket handshake")
		return
	}
	defer conn.Close()

	top, err := s.scores.Top(r.Context(), s.cfg.LeaderboardSize, false)
	if err != nil {
		log.Error().Err(err).Msg("load leaderboard")
		_ = conn.WriteJSON(err.Error())
		return
	}
	_ = conn.WriteJSON(top)
	closeNormal(conn)
}
