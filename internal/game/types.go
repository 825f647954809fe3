package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type StateView struct {
	AccountID      string                     `json:"account_id"`
	Username       string                     `json:"username"`
	Cash           decimal.Decimal            `json:"cash"`
	Deposit        decimal.Decimal            `json:"deposit"`
	Loan           decimal.Decimal            `json:"loan"`
	NetWorth       decimal.Decimal            `json:"net_worth"`
	LoanLimit      decimal.Decimal            `json:"loan_limit"`
	CasinoWinnings decimal.Decimal            `json:"casino_winnings"`
	Days           int                        `json:"days"`
	RebornCount    int                        `json:"reborn_count"`
	Holdings       []HoldingView              `json:"holdings"`
	Expenses       []RecurringExpense         `json:"expenses"`
	Prices         map[string]decimal.Decimal `json:"prices"`
}

type HoldingView struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"qty"`
	AvgCost      decimal.Decimal `json:"avg_cost"`
	Price        decimal.Decimal `json:"price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	UnrealizedPL decimal.Decimal `json:"unrealized_pl"`
	DRIP         bool            `json:"drip"`
}

type OrderInput struct {
	AccountID string
	Symbol    string
	Side      string
	Quantity  decimal.Decimal
}

type OrderResult struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Quantity decimal.Decimal `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	Notional decimal.Decimal `json:"notional"`
	Fee      decimal.Decimal `json:"fee"`
	Cash     decimal.Decimal `json:"cash"`
}

type BalanceView struct {
	Cash    decimal.Decimal `json:"cash"`
	Deposit decimal.Decimal `json:"deposit"`
	Loan    decimal.Decimal `json:"loan"`
}

type LoginResult struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Created   bool   `json:"created"`
}

// TickReport summarises one scheduler pass.
type TickReport struct {
	Days    []int       `json:"days"`
	Moves   []PriceMove `json:"moves"`
	Settled int         `json:"settled"`
	Failed  int         `json:"failed"`
}

// Snapshot is the whole persisted state.
type Snapshot struct {
	SavedAt          time.Time           `json:"saved_at"`
	Epoch            time.Time           `json:"epoch"`
	LastProcessedDay int                 `json:"last_processed_day"`
	Instruments      []Instrument        `json:"instruments"`
	Accounts         []*Account          `json:"accounts"`
	Leaderboard      []LeaderboardRecord `json:"leaderboard"`
}
