// internal/client/client.go
//
// Remote player for the /ws/play socket protocol (see internal/session).
// Responsibilities:
//   - Dial the server, send the nickname and read the first board.
//   - Send actions and read back boards, keeping the score locally
//     (the server only sends boards; a move scores its terminal cell).
//   - Fetch the top list from /ws/scores.
//
// Notes:
//   - The server reports a rejected move or nickname as a JSON string and
//     ends the game; Move returns it as a *RemoteError.
//   - A Client is not safe for concurrent use; one goroutine plays one game.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridentify/internal/game"
	"github.com/robalobadob/gridentify/internal/leaderboard"
	"github.com/robalobadob/gridentify/internal/session"
)

// DefaultTimeout bounds every read from the server.
const DefaultTimeout = 30 * time.Second

// ErrClosed is returned by Move after the connection has failed.
var ErrClosed = errors.New("client closed")

// RemoteError is an error message sent by the server. The server closes the
// game after sending one.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return "server: " + e.Msg }

// Client plays one game on a remote server.
type Client struct {
	conn    *websocket.Conn
	timeout time.Duration

	nickname string
	state    game.State
	moves    int
	failed   bool
}

// Dial connects to a /ws/play endpoint (ws:// or wss://), registers
// nickname and reads the first board.
func Dial(ctx context.Context, url, nickname string) (*Client, error) {
	if len(nickname) > session.MaxNickname {
		return nil, fmt.Errorf("%w: %s", session.ErrNicknameTooLong, nickname)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{conn: conn, timeout: DefaultTimeout, nickname: nickname}
	if err := conn.WriteJSON(nickname); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send nickname: %w", err)
	}
	board, err := c.readBoard()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.state.Board = board
	log.Debug().Str("url", url).Str("nickname", nickname).Msg("joined remote game")
	return c, nil
}

// State is the last board received with the locally kept score.
func (c *Client) State() game.State { return c.state }

// Moves is the number of accepted moves.
func (c *Client) Moves() int { return c.moves }

// Over reports whether the current board has no valid action left.
func (c *Client) Over() bool { return game.IsGameOver(&c.state) }

// Move sends one action and waits for the next board. The score grows by the
// value that lands on the action's last cell.
func (c *Client) Move(a game.Action) error {
	switch {
	case c.failed:
		return ErrClosed
	case c.Over():
		return game.ErrGameFinished
	case len(a) == 0:
		return game.ErrTooShort
	}
	last := a[len(a)-1]
	if last < 0 || last >= game.Cells {
		return fmt.Errorf("%w: %d", game.ErrOutOfBoard, last)
	}

	if err := c.conn.WriteJSON(a); err != nil {
		c.failed = true
		return fmt.Errorf("send action: %w", err)
	}
	board, err := c.readBoard()
	if err != nil {
		c.failed = true
		return err
	}
	c.state.Board = board
	c.state.Score += uint64(board[last])
	c.moves++
	return nil
}

// Close drops the connection. Closing before game over forfeits the game.
func (c *Client) Close() error { return c.conn.Close() }

// readBoard reads one message: a board, or the server's error string.
func (c *Client) readBoard() (game.Board, error) {
	var board game.Board
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return board, err
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return board, fmt.Errorf("read board: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var msg string
		if err := json.Unmarshal(data, &msg); err != nil {
			return board, fmt.Errorf("decode server error: %w", err)
		}
		return board, &RemoteError{Msg: msg}
	}
	if err := json.Unmarshal(data, &board); err != nil {
		return board, fmt.Errorf("decode board: %w", err)
	}
	return board, nil
}

// Scores reads the top list from a /ws/scores endpoint.
func Scores(ctx context.Context, url string) ([]leaderboard.Entry, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	if err := conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		return nil, err
	}

	var top []leaderboard.Entry
	if err := conn.ReadJSON(&top); err != nil {
		return nil, fmt.Errorf("read scores: %w", err)
	}
	return top, nil
}
