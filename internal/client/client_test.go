package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/gridentify/assets"
	"github.com/robalobadob/gridentify/internal/config"
	"github.com/robalobadob/gridentify/internal/game"
	"github.com/robalobadob/gridentify/internal/httpserver"
	"github.com/robalobadob/gridentify/internal/leaderboard"
	"github.com/robalobadob/gridentify/internal/lucid"
	"github.com/robalobadob/gridentify/internal/session"
	"github.com/robalobadob/gridentify/internal/store"
)

var actionData = lucid.NewActionData(lucid.DefaultMaxChain)

// startServer runs the full HTTP server and returns its ws:// base URL.
func startServer(t *testing.T) (string, *leaderboard.Store) {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db, assets.Migrations()))

	cfg := config.Config{
		Port:            "0",
		JWTSecret:       "test-secret",
		RatePerSecond:   100,
		RateBurst:       100,
		MaxChain:        lucid.DefaultMaxChain,
		HintTimeout:     5 * time.Second,
		MaxSolvers:      1,
		LeaderboardSize: 10,
		TokenTTL:        time.Hour,
	}
	scores := leaderboard.NewStore(db)
	srv := httptest.NewServer(httpserver.New(cfg, store.NewMemoryStore(), scores, lucid.NewSolver(actionData, 0)).Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), scores
}

func TestPlayRemoteGame(t *testing.T) {
	base, scores := startServer(t)
	ctx := context.Background()

	c, err := Dial(ctx, base+"/ws/play", "remote")
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, uint64(0), c.State().Score)

	solver := lucid.NewSolver(actionData, 0)
	for !c.Over() {
		require.Less(t, c.Moves(), 500)
		st := c.State()
		d := solver.BestAction(st)
		require.NoError(t, c.Move(d.Action))

		merged := uint64(st.Board[d.Action[0]]) * uint64(len(d.Action))
		assert.Equal(t, st.Score+merged, c.State().Score)
	}
	assert.ErrorIs(t, c.Move(game.Action{0, 1}), game.ErrGameFinished)

	// the server records the final score before closing
	require.Eventually(t, func() bool {
		top, err := scores.Top(ctx, 10, false)
		return err == nil && len(top) == 1
	}, 2*time.Second, 10*time.Millisecond)
	top, err := Scores(ctx, base+"/ws/scores")
	require.NoError(t, err)
	assert.Equal(t, []leaderboard.Entry{{Name: "remote", Score: c.State().Score}}, top)
}

func TestRemoteWrongMove(t *testing.T) {
	base, scores := startServer(t)
	ctx := context.Background()

	c, err := Dial(ctx, base+"/ws/play", "cheater")
	require.NoError(t, err)
	defer c.Close()

	err = c.Move(game.Action{0, 0})
	var remote *RemoteError
	require.True(t, errors.As(err, &remote), "%v", err)
	assert.Contains(t, remote.Msg, "wrong move from cheater")
	assert.ErrorIs(t, c.Move(game.Action{0, 1}), ErrClosed)
	assert.Equal(t, 0, c.Moves())

	top, err := scores.Top(ctx, 10, false)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestDialRejectsLongNickname(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws/play", strings.Repeat("n", session.MaxNickname+1))
	assert.ErrorIs(t, err, session.ErrNicknameTooLong)
}

func TestMoveChecksTerminalCell(t *testing.T) {
	base, _ := startServer(t)
	c, err := Dial(context.Background(), base+"/ws/play", "x")
	require.NoError(t, err)
	defer c.Close()

	assert.ErrorIs(t, c.Move(game.Action{}), game.ErrTooShort)
	assert.ErrorIs(t, c.Move(game.Action{0, 25}), game.ErrOutOfBoard)
	// nothing was sent, so the game goes on
	assert.False(t, c.failed)
}

func TestScoresEmpty(t *testing.T) {
	base, _ := startServer(t)
	top, err := Scores(context.Background(), base+"/ws/scores")
	require.NoError(t, err)
	assert.Empty(t, top)
}
