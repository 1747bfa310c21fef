package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/gridentify/assets"
	"github.com/robalobadob/gridentify/internal/config"
	"github.com/robalobadob/gridentify/internal/game"
	"github.com/robalobadob/gridentify/internal/leaderboard"
	"github.com/robalobadob/gridentify/internal/lucid"
	"github.com/robalobadob/gridentify/internal/store"
)

var seed123 = game.Board{
	1, 1, 1, 2, 3,
	3, 2, 3, 1, 3,
	2, 1, 3, 2, 1,
	2, 1, 2, 2, 2,
	3, 1, 2, 2, 2,
}

var actionData = lucid.NewActionData(lucid.DefaultMaxChain)

func testConfig() config.Config {
	return config.Config{
		Port:            "0",
		JWTSecret:       "test-secret",
		ClientOrigin:    "http://localhost:5173",
		RatePerSecond:   100,
		RateBurst:       100,
		SolverDepth:     0,
		MaxChain:        lucid.DefaultMaxChain,
		HintTimeout:     5 * time.Second,
		MaxSolvers:      2,
		LeaderboardSize: 10,
		DailySalt:       "salt",
		TokenTTL:        time.Hour,
	}
}

type testServer struct {
	*Server
	scores *leaderboard.Store
}

func newTestServer(t *testing.T, cfg config.Config) testServer {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db, assets.Migrations()))

	scores := leaderboard.NewStore(db)
	solver := lucid.NewSolver(actionData, cfg.SolverDepth)
	return testServer{Server: New(cfg, store.NewMemoryStore(), scores, solver), scores: scores}
}

// do runs one request through the router and decodes a JSON response into out.
func (ts testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (ts testServer) newSeeded(t *testing.T, name string, seed uint64) gameRes {
	t.Helper()
	var res gameRes
	code := ts.do(t, http.MethodPost, "/game/new", "", map[string]any{"nickname": name, "seed": seed}, &res)
	require.Equal(t, http.StatusOK, code)
	return res
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, testConfig())
	var body map[string]any
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", "", nil, &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(0), body["sessions"])
}

func TestNewGameSeeded(t *testing.T) {
	ts := newTestServer(t, testConfig())
	res := ts.newSeeded(t, "ann", 123)
	assert.NotEmpty(t, res.GameID)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, seed123, res.Board)
	assert.Equal(t, uint64(0), res.Score)
	assert.False(t, res.Over)
	assert.Equal(t, 1, ts.store.Len())
}

func TestNewGameNickname(t *testing.T) {
	ts := newTestServer(t, testConfig())

	var errBody map[string]string
	code := ts.do(t, http.MethodPost, "/game/new", "", map[string]any{"nickname": strings.Repeat("n", 17)}, &errBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, errBody["error"], "nickname too long")

	// an empty body is a random game for an anonymous player
	var res gameRes
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/game/new", "", nil, &res))
	g, err := ts.store.Get(context.Background(), res.GameID)
	require.NoError(t, err)
	assert.Equal(t, anonymous, g.Nickname)
}

func TestMoveAndState(t *testing.T) {
	ts := newTestServer(t, testConfig())
	start := ts.newSeeded(t, "ann", 123)

	var moved gameRes
	code := ts.do(t, http.MethodPost, "/game/move", start.Token, map[string]any{"action": []int{0, 1, 2}}, &moved)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint64(3), moved.Score)
	assert.Equal(t, uint32(3), moved.Board[2])
	assert.Equal(t, 1, moved.Moves)

	var state gameRes
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/game/state", start.Token, nil, &state))
	assert.Equal(t, moved.Board, state.Board)
	assert.Equal(t, 1, state.Moves)
}

func TestInvalidMoveForfeits(t *testing.T) {
	ts := newTestServer(t, testConfig())
	start := ts.newSeeded(t, "bob", 123)

	var errBody map[string]string
	code := ts.do(t, http.MethodPost, "/game/move", start.Token, map[string]any{"action": []int{0, 2}}, &errBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, errBody["error"], game.ErrNotAdjacent.Error())

	code = ts.do(t, http.MethodGet, "/game/state", start.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 0, ts.store.Len())
}

func TestTokenRequired(t *testing.T) {
	ts := newTestServer(t, testConfig())
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/game/state", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/game/state", "not-a-jwt", nil, nil))

	other := testConfig()
	other.JWTSecret = "someone-else"
	foreign, err := tokens{secret: []byte(other.JWTSecret), ttl: time.Hour}.issue(game.New("eve", game.SeededTiles(1)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/game/state", foreign, nil, nil))
}

func TestTokenExpiry(t *testing.T) {
	tk := tokens{secret: []byte("s"), ttl: -time.Minute}
	raw, err := tk.issue(game.New("old", game.SeededTiles(1)))
	require.NoError(t, err)
	_, err = tk.parse(raw)
	assert.Error(t, err)

	tk.ttl = time.Minute
	g := game.New("new", game.SeededTiles(1))
	raw, err = tk.issue(g)
	require.NoError(t, err)
	claims, err := tk.parse(raw)
	require.NoError(t, err)
	assert.Equal(t, g.ID, claims.Subject)
	assert.Equal(t, "new", claims.Nickname)
}

func TestHint(t *testing.T) {
	ts := newTestServer(t, testConfig())
	start := ts.newSeeded(t, "cy", 123)

	var hint hintRes
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/game/hint", start.Token, nil, &hint))
	assert.Equal(t, game.Action{9, 4}, hint.Action)
	assert.Equal(t, 14.0, hint.Expected)
}

// Following the hints to the end records the final score exactly once.
func TestPlayToEndRecordsScore(t *testing.T) {
	ts := newTestServer(t, testConfig())
	start := ts.newSeeded(t, "dee", 123)

	var last gameRes
	for moves := 0; !last.Over; moves++ {
		require.Less(t, moves, 500)
		var hint hintRes
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/game/hint", start.Token, nil, &hint))
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/game/move", start.Token, moveReq{Action: hint.Action}, &last))
	}
	assert.True(t, game.IsGameOver(&game.State{Board: last.Board}))

	top, err := ts.scores.Top(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Equal(t, []leaderboard.Entry{{Name: "dee", Score: last.Score}}, top)
	assert.Equal(t, 0, ts.store.Len())
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RatePerSecond = 0.001
	cfg.RateBurst = 3
	ts := newTestServer(t, cfg)

	for range 3 {
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/game/new", "", nil, nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, http.MethodPost, "/game/new", "", nil, nil))
	// other routes are not limited
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/leaderboard", "", nil, nil))
}

func TestLimiterPrune(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := time.Now()
	assert.True(t, l.allow("a", now.Add(-time.Hour)))
	assert.True(t, l.allow("b", now))
	assert.Equal(t, 1, l.prune(now.Add(-time.Minute)))
	assert.Len(t, l.clients, 1)
}

func TestLeaderboard(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ctx := context.Background()
	for i, name := range []string{"ann", "bob", "cy"} {
		require.NoError(t, ts.scores.Record(ctx, name, uint64(10*(i+1))))
	}

	var res lbRes
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/leaderboard?limit=2", "", nil, &res))
	assert.False(t, res.Daily)
	assert.Equal(t, []leaderboard.Entry{{Name: "cy", Score: 30}, {Name: "bob", Score: 20}}, res.Top)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/daily/leaderboard", "", nil, &res))
	assert.True(t, res.Daily)
	assert.Len(t, res.Top, 3)
}

func TestLeaderboardETag(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ctx := context.Background()
	require.NoError(t, ts.scores.Record(ctx, "ann", 10))

	get := func(etag string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		rec := httptest.NewRecorder()
		ts.Handler().ServeHTTP(rec, req)
		return rec
	}

	first := get("")
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	cached := get(etag)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Empty(t, cached.Body.String())

	require.NoError(t, ts.scores.Record(ctx, "bob", 20))
	fresh := get(etag)
	assert.Equal(t, http.StatusOK, fresh.Code)
	assert.NotEqual(t, etag, fresh.Header().Get("ETag"))
	assert.Contains(t, fresh.Body.String(), `"bob"`)
}

func TestDailySharesBoard(t *testing.T) {
	ts := newTestServer(t, testConfig())
	var a, b gameRes
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/daily/new", "", map[string]any{"nickname": "a"}, &a))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/game/new", "", map[string]any{"nickname": "b", "daily": true}, &b))
	assert.Equal(t, a.Board, b.Board)
	assert.NotEqual(t, a.GameID, b.GameID)
	assert.NotEmpty(t, a.Date)
}

func TestMetricsExposed(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.newSeeded(t, "m", 1)

	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gridentify_games_started_total{mode="seeded"}`)
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketGame(t *testing.T) {
	ts := newTestServer(t, testConfig())
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()
	conn := dial(t, srv, "/ws/play")
	solver := lucid.NewSolver(actionData, 0)

	require.NoError(t, conn.WriteJSON("wsbot"))
	var st game.State
	for moves := 0; ; moves++ {
		require.Less(t, moves, 500)
		require.NoError(t, conn.ReadJSON(&st.Board))
		if game.IsGameOver(&st) {
			break
		}
		d := solver.BestAction(st)
		st.Score += uint64(st.Board[d.Action[len(d.Action)-1]]) * uint64(len(d.Action))
		require.NoError(t, conn.WriteJSON(d.Action))
	}

	// the server records the score and then closes
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)

	top, err := ts.scores.Top(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Equal(t, []leaderboard.Entry{{Name: "wsbot", Score: st.Score}}, top)
}

func TestWebSocketWrongMove(t *testing.T) {
	ts := newTestServer(t, testConfig())
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()
	conn := dial(t, srv, "/ws/play")

	require.NoError(t, conn.WriteJSON("cheater"))
	var board game.Board
	require.NoError(t, conn.ReadJSON(&board))
	require.NoError(t, conn.WriteJSON([]int{0, 0}))

	var msg string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Contains(t, msg, "wrong move from cheater")

	top, err := ts.scores.Top(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestWebSocketScores(t *testing.T) {
	ts := newTestServer(t, testConfig())
	require.NoError(t, ts.scores.Record(context.Background(), "ann", 77))
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	var top []leaderboard.Entry
	require.NoError(t, dial(t, srv, "/ws/scores").ReadJSON(&top))
	assert.Equal(t, []leaderboard.Entry{{Name: "ann", Score: 77}}, top)
}

func TestCheckOrigin(t *testing.T) {
	ts := newTestServer(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "http://grid.example.com/ws/play", nil)
	assert.True(t, ts.checkOrigin(req))

	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, ts.checkOrigin(req))
	req.Header.Set("Origin", "http://grid.example.com")
	assert.True(t, ts.checkOrigin(req))
	req.Header.Set("Origin", "http://evil.example.com")
	assert.False(t, ts.checkOrigin(req))
}
