package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the game server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Created   bool      `json:"created"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Holding struct {
	Symbol       string  `json:"symbol"`
	Qty          float64 `json:"qty"`
	AvgCost      float64 `json:"avg_cost"`
	Price        float64 `json:"price"`
	MarketValue  float64 `json:"market_value"`
	UnrealizedPL float64 `json:"unrealized_pl"`
	DRIP         bool    `json:"drip"`
}

type Expense struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Frequency  string  `json:"frequency"`
	NextDueDay int     `json:"next_due_day"`
}

type State struct {
	Username       string             `json:"username"`
	Cash           float64            `json:"cash"`
	Deposit        float64            `json:"deposit"`
	Loan           float64            `json:"loan"`
	LoanLimit      float64            `json:"loan_limit"`
	NetWorth       float64            `json:"net_worth"`
	CasinoWinnings float64            `json:"casino_winnings"`
	Days           int                `json:"days"`
	RebornCount    int                `json:"reborn_count"`
	Holdings       []Holding          `json:"holdings"`
	Expenses       []Expense          `json:"expenses"`
	Prices         map[string]float64 `json:"prices"`
}

type LedgerEntry struct {
	ID      string    `json:"id"`
	Day     int       `json:"day"`
	At      time.Time `json:"at"`
	Type    string    `json:"type"`
	Bucket  string    `json:"bucket"`
	Symbol  string    `json:"symbol"`
	Qty     float64   `json:"qty"`
	Amount  float64   `json:"amount"`
	Balance float64   `json:"balance"`
}

type Instrument struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Sector           string  `json:"sector"`
	Class            string  `json:"class"`
	Price            float64 `json:"price"`
	DividendYield    float64 `json:"dividend_yield"`
	DividendInterval int     `json:"dividend_interval"`
}

type StockList struct {
	Prices      map[string]float64 `json:"prices"`
	Count       int                `json:"count"`
	Instruments []Instrument       `json:"instruments"`
}

type OrderResult struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Qty      float64 `json:"qty"`
	Price    float64 `json:"price"`
	Notional float64 `json:"notional"`
	Fee      float64 `json:"fee"`
	Cash     float64 `json:"cash"`
}

type Balances struct {
	Cash    float64 `json:"cash"`
	Deposit float64 `json:"deposit"`
	Loan    float64 `json:"loan"`
}

type LeaderboardRecord struct {
	Username string  `json:"username"`
	Asset    float64 `json:"asset"`
	Days     int     `json:"days"`
}

type CasinoRecord struct {
	Username  string  `json:"username"`
	CasinoWin float64 `json:"casino_win"`
}

func (c *Client) Login(ctx context.Context, username string) (LoginResponse, error) {
	var out LoginResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/auth/login", "", map[string]any{"username": username}, &out)
	return out, err
}

func (c *Client) State(ctx context.Context, token string) (State, error) {
	var out State
	err := c.jsonRequest(ctx, http.MethodGet, "/game/state", token, nil, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, token string, limit int) ([]LedgerEntry, error) {
	var out struct {
		Entries []LedgerEntry `json:"entries"`
	}
	path := "/game/history?limit=" + strconv.Itoa(limit)
	err := c.jsonRequest(ctx, http.MethodGet, path, token, nil, &out)
	return out.Entries, err
}

func (c *Client) ListStocks(ctx context.Context) (StockList, error) {
	var out StockList
	err := c.jsonRequest(ctx, http.MethodGet, "/stocks/list", "", nil, &out)
	return out, err
}

func (c *Client) PlaceOrder(ctx context.Context, token, side, symbol, qty string) (OrderResult, error) {
	var out OrderResult
	side = strings.ToLower(strings.TrimSpace(side))
	if side != "buy" && side != "sell" {
		return out, fmt.Errorf("side must be buy or sell")
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/stocks/"+side, token, map[string]any{
		"symbol": symbol,
		"qty":    qty,
	}, &out)
	return out, err
}

func (c *Client) SetDRIP(ctx context.Context, token, symbol string, enabled bool) error {
	return c.jsonRequest(ctx, http.MethodPost, "/stocks/drip", token, map[string]any{
		"symbol":  symbol,
		"enabled": enabled,
	}, nil)
}

// Bank runs deposit, withdraw, loan or repay.
func (c *Client) Bank(ctx context.Context, token, op, amount string) (Balances, error) {
	var out Balances
	switch op {
	case "deposit", "withdraw", "loan", "repay":
	default:
		return out, fmt.Errorf("unknown bank operation %q", op)
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/bank/"+op, token, map[string]any{"amount": amount}, &out)
	return out, err
}

func (c *Client) AddExpense(ctx context.Context, token, name, amount, frequency string) (Expense, error) {
	var out Expense
	err := c.jsonRequest(ctx, http.MethodPost, "/expenses/add", token, map[string]any{
		"name":      name,
		"amount":    amount,
		"frequency": frequency,
	}, &out)
	return out, err
}

func (c *Client) RemoveExpense(ctx context.Context, token, name string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/expenses/remove", token, map[string]any{"name": name}, nil)
}

func (c *Client) AdvanceDay(ctx context.Context, token string) (State, error) {
	var out State
	err := c.jsonRequest(ctx, http.MethodPost, "/tick/advance", token, map[string]any{}, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, username string) ([]LeaderboardRecord, error) {
	var out struct {
		Records []LeaderboardRecord `json:"records"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/leaderboard/top"+usernameQuery(username), "", nil, &out)
	return out.Records, err
}

func (c *Client) CasinoBoard(ctx context.Context, username string) ([]CasinoRecord, error) {
	var out struct {
		Records []CasinoRecord `json:"records"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/casino/top"+usernameQuery(username), "", nil, &out)
	return out.Records, err
}

func (c *Client) SubmitLeaderboard(ctx context.Context, token string) (LeaderboardRecord, error) {
	var out LeaderboardRecord
	err := c.jsonRequest(ctx, http.MethodPost, "/leaderboard/submit_web", token, map[string]any{}, &out)
	return out, err
}

func (c *Client) SubmitCasinoWin(ctx context.Context, token, win string) (float64, error) {
	var out struct {
		Total float64 `json:"total"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/casino/submit", token, map[string]any{"win": win}, &out)
	return out.Total, err
}

func usernameQuery(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return ""
	}
	return "?username=" + url.QueryEscape(username)
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
