package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bankgame/internal/auth"
	"bankgame/internal/config"
	"bankgame/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, cfg config.APIConfig) http.Handler {
	t.Helper()
	logger := testLogger()
	world := game.NewWorld(game.DefaultSettings(), nil, game.WithLogger(logger))
	engine := game.NewEngine(world, game.EngineConfig{TickEvery: time.Hour, LeaderboardRefresh: time.Hour}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = engine.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	tokens, err := auth.NewIssuer("api-test-secret", time.Hour, 64)
	require.NoError(t, err)
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = []string{"*"}
	}
	return New(cfg, logger, engine, tokens).Handler()
}

type apiClient struct {
	t   *testing.T
	srv *httptest.Server
}

func newAPIClient(t *testing.T) *apiClient {
	srv := httptest.NewServer(newTestHandler(t, config.APIConfig{}))
	t.Cleanup(srv.Close)
	return &apiClient{t: t, srv: srv}
}

func (c *apiClient) do(method, path string, body any, header http.Header) (int, map[string]any) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	require.NoError(c.t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (c *apiClient) login(username string) string {
	c.t.Helper()
	status, out := c.do(http.MethodPost, "/auth/login", map[string]any{"username": username}, nil)
	require.Equal(c.t, http.StatusOK, status, out)
	token, _ := out["token"].(string)
	require.NotEmpty(c.t, token)
	return token
}

func TestLoginAndState(t *testing.T) {
	c := newAPIClient(t)
	token := c.login("alice")

	status, state := c.do(http.MethodGet, "/game/state?token="+token, nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", state["username"])
	assert.Equal(t, 1000.0, state["cash"])
	assert.Equal(t, 1000.0, state["net_worth"])
	assert.EqualValues(t, 0, state["days"])
	prices := state["prices"].(map[string]any)
	assert.Contains(t, prices, "TSMC")

	status, again := c.do(http.MethodPost, "/auth/login", map[string]any{"username": "ALICE"}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, again["created"])
	assert.Equal(t, "alice", again["username"])
}

func TestLoginValidation(t *testing.T) {
	c := newAPIClient(t)
	status, out := c.do(http.MethodPost, "/auth/login", map[string]any{"username": "a"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, out["error"])

	status, _ = c.do(http.MethodPost, "/auth/login", map[string]any{"username": "alice", "password": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthRequired(t *testing.T) {
	c := newAPIClient(t)
	status, out := c.do(http.MethodGet, "/game/state", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, out["error"], "unauthorized")

	status, _ = c.do(http.MethodPost, "/stocks/buy", map[string]any{"token": "forged", "symbol": "TSMC", "qty": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestBuySellRoundTrip(t *testing.T) {
	c := newAPIClient(t)
	token := c.login("trader")

	status, buy := c.do(http.MethodPost, "/stocks/buy", map[string]any{"token": token, "symbol": "TSMC", "qty": 2}, nil)
	require.Equal(t, http.StatusOK, status, buy)
	assert.Equal(t, 200.0, buy["notional"])
	assert.Equal(t, 800.0, buy["cash"])

	bearer := http.Header{"Authorization": []string{"Bearer " + token}}
	status, sell := c.do(http.MethodPost, "/stocks/sell", map[string]any{"symbol": "TSMC", "qty": "2"}, bearer)
	require.Equal(t, http.StatusOK, status, sell)
	assert.Equal(t, 1000.0, sell["cash"])

	status, out := c.do(http.MethodPost, "/stocks/buy", map[string]any{"token": token, "symbol": "TSMC", "qty": 50}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out["error"], "insufficient funds")

	status, _ = c.do(http.MethodPost, "/stocks/buy", map[string]any{"token": token, "symbol": "NOPE", "qty": 1}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, hist := c.do(http.MethodGet, "/game/history?limit=10", nil, bearer)
	require.Equal(t, http.StatusOK, status)
	entries := hist["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "sell", entries[0].(map[string]any)["type"])
}

func TestBankAndManualTick(t *testing.T) {
	c := newAPIClient(t)
	token := c.login("saver")

	status, bal := c.do(http.MethodPost, "/bank/deposit", map[string]any{"token": token, "amount": 500}, nil)
	require.Equal(t, http.StatusOK, status, bal)
	assert.Equal(t, 500.0, bal["cash"])
	assert.Equal(t, 500.0, bal["deposit"])

	status, _ = c.do(http.MethodPost, "/bank/withdraw", map[string]any{"token": token, "amount": 501}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, bal = c.do(http.MethodPost, "/bank/loan", map[string]any{"token": token, "amount": 100}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 100.0, bal["loan"])

	status, state := c.do(http.MethodPost, "/tick/advance", map[string]any{"token": token}, nil)
	require.Equal(t, http.StatusOK, status, state)
	assert.EqualValues(t, 1, state["days"])
	assert.Equal(t, 505.0, state["deposit"])
	assert.Equal(t, 100.5, state["loan"])
}

func TestExpensesAndDRIP(t *testing.T) {
	c := newAPIClient(t)
	token := c.login("spender")

	status, exp := c.do(http.MethodPost, "/expenses/add", map[string]any{"token": token, "name": "rent", "amount": 40, "frequency": "daily"}, nil)
	require.Equal(t, http.StatusCreated, status, exp)
	assert.EqualValues(t, 1, exp["next_due_day"])

	status, _ = c.do(http.MethodPost, "/expenses/add", map[string]any{"token": token, "name": "rent", "amount": 40, "frequency": "daily"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, state := c.do(http.MethodPost, "/tick/advance", map[string]any{"token": token}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 960.0, state["cash"])

	status, _ = c.do(http.MethodPost, "/expenses/remove", map[string]any{"token": token, "name": "rent"}, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = c.do(http.MethodPost, "/expenses/remove", map[string]any{"token": token, "name": "rent"}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, drip := c.do(http.MethodPost, "/stocks/drip", map[string]any{"token": token, "symbol": "farm", "enabled": true}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "FARM", drip["symbol"])
	assert.Equal(t, true, drip["enabled"])
}

func TestLeaderboardAndCasino(t *testing.T) {
	c := newAPIClient(t)
	alice := c.login("alice")
	bob := c.login("bobby")

	status, _ := c.do(http.MethodPost, "/bank/loan", map[string]any{"token": bob, "amount": 100}, nil)
	require.Equal(t, http.StatusOK, status)
	_, _ = c.do(http.MethodPost, "/stocks/buy", map[string]any{"token": bob, "symbol": "TSMC", "qty": 1}, nil)

	status, sub := c.do(http.MethodPost, "/leaderboard/submit_web", map[string]any{"token": alice}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1000.0, sub["asset"])
	assert.EqualValues(t, 0, sub["days"])

	status, top := c.do(http.MethodGet, "/leaderboard/top", nil, nil)
	require.Equal(t, http.StatusOK, status)
	records := top["records"].([]any)
	require.Len(t, records, 2)

	status, filtered := c.do(http.MethodGet, "/leaderboard/top?username=alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, filtered["records"].([]any), 1)

	status, _ = c.do(http.MethodPost, "/casino/submit", map[string]any{"token": alice, "win": -3}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, win := c.do(http.MethodPost, "/casino/submit", map[string]any{"token": alice, "win": 12.5}, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 12.5, win["total"])

	status, casino := c.do(http.MethodGet, "/casino/top", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, casino["records"])
}

func TestStocksList(t *testing.T) {
	c := newAPIClient(t)
	status, out := c.do(http.MethodGet, "/stocks/list", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, len(game.DefaultInstruments()), out["count"])
	prices := out["prices"].(map[string]any)
	assert.Equal(t, 1000000.0, prices["BTC"])
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, config.APIConfig{RateLimit: 1})
	codes := []int{}
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORSHeaders(t *testing.T) {
	h := newTestHandler(t, config.APIConfig{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://dashboard.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))
}
