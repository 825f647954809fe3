package api

import (
	"time"

	"bankgame/internal/game"
)

// JSON shapes for the dashboard. Money goes out as plain numbers.

type holdingJSON struct {
	Symbol       string  `json:"symbol"`
	Qty          float64 `json:"qty"`
	AvgCost      float64 `json:"avg_cost"`
	Price        float64 `json:"price"`
	MarketValue  float64 `json:"market_value"`
	UnrealizedPL float64 `json:"unrealized_pl"`
	DRIP         bool    `json:"drip"`
}

type expenseJSON struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Frequency  string  `json:"frequency"`
	NextDueDay int     `json:"next_due_day"`
}

type stateJSON struct {
	Username       string             `json:"username"`
	Cash           float64            `json:"cash"`
	Deposit        float64            `json:"deposit"`
	Loan           float64            `json:"loan"`
	LoanLimit      float64            `json:"loan_limit"`
	NetWorth       float64            `json:"net_worth"`
	CasinoWinnings float64            `json:"casino_winnings"`
	Days           int                `json:"days"`
	RebornCount    int                `json:"reborn_count"`
	Holdings       []holdingJSON      `json:"holdings"`
	Expenses       []expenseJSON      `json:"expenses"`
	Prices         map[string]float64 `json:"prices"`
}

type entryJSON struct {
	ID       string    `json:"id"`
	Day      int       `json:"day"`
	At       time.Time `json:"at"`
	Type     string    `json:"type"`
	Bucket   string    `json:"bucket"`
	Symbol   string    `json:"symbol,omitempty"`
	Quantity float64   `json:"qty,omitempty"`
	Amount   float64   `json:"amount"`
	Balance  float64   `json:"balance"`
}

type instrumentJSON struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Sector           string  `json:"sector"`
	Class            string  `json:"class"`
	Price            float64 `json:"price"`
	Floor            float64 `json:"floor"`
	DividendYield    float64 `json:"dividend_yield"`
	DividendInterval int     `json:"dividend_interval"`
}

type orderJSON struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Qty      float64 `json:"qty"`
	Price    float64 `json:"price"`
	Notional float64 `json:"notional"`
	Fee      float64 `json:"fee"`
	Cash     float64 `json:"cash"`
}

type balanceJSON struct {
	Cash    float64 `json:"cash"`
	Deposit float64 `json:"deposit"`
	Loan    float64 `json:"loan"`
}

type leaderboardJSON struct {
	Username string  `json:"username"`
	Asset    float64 `json:"asset"`
	Days     int     `json:"days"`
}

type casinoJSON struct {
	Username  string  `json:"username"`
	CasinoWin float64 `json:"casino_win"`
}

func newStateJSON(v game.StateView) stateJSON {
	out := stateJSON{
		Username:       v.Username,
		Cash:           v.Cash.InexactFloat64(),
		Deposit:        v.Deposit.InexactFloat64(),
		Loan:           v.Loan.InexactFloat64(),
		LoanLimit:      v.LoanLimit.InexactFloat64(),
		NetWorth:       v.NetWorth.InexactFloat64(),
		CasinoWinnings: v.CasinoWinnings.InexactFloat64(),
		Days:           v.Days,
		RebornCount:    v.RebornCount,
		Holdings:       make([]holdingJSON, 0, len(v.Holdings)),
		Expenses:       make([]expenseJSON, 0, len(v.Expenses)),
		Prices:         make(map[string]float64, len(v.Prices)),
	}
	for _, h := range v.Holdings {
		out.Holdings = append(out.Holdings, holdingJSON{
			Symbol:       h.Symbol,
			Qty:          h.Quantity.InexactFloat64(),
			AvgCost:      h.AvgCost.InexactFloat64(),
			Price:        h.Price.InexactFloat64(),
			MarketValue:  h.MarketValue.InexactFloat64(),
			UnrealizedPL: h.UnrealizedPL.InexactFloat64(),
			DRIP:         h.DRIP,
		})
	}
	for _, e := range v.Expenses {
		out.Expenses = append(out.Expenses, newExpenseJSON(e))
	}
	for sym, p := range v.Prices {
		out.Prices[sym] = p.InexactFloat64()
	}
	return out
}

func newExpenseJSON(e game.RecurringExpense) expenseJSON {
	return expenseJSON{Name: e.Name, Amount: e.Amount.InexactFloat64(), Frequency: e.Frequency, NextDueDay: e.NextDueDay}
}

func newEntryJSON(e game.LedgerEntry) entryJSON {
	return entryJSON{
		ID:       e.ID,
		Day:      e.Day,
		At:       e.At,
		Type:     string(e.Type),
		Bucket:   e.Bucket,
		Symbol:   e.Symbol,
		Quantity: e.Quantity.InexactFloat64(),
		Amount:   e.Amount.InexactFloat64(),
		Balance:  e.Balance.InexactFloat64(),
	}
}

func newInstrumentJSON(i game.Instrument) instrumentJSON {
	return instrumentJSON{
		Symbol:           i.Symbol,
		Name:             i.Name,
		Sector:           i.Sector,
		Class:            string(i.Class),
		Price:            i.Price.InexactFloat64(),
		Floor:            i.Floor.InexactFloat64(),
		DividendYield:    i.DividendYield.InexactFloat64(),
		DividendInterval: i.DividendInterval,
	}
}

func newOrderJSON(o game.OrderResult) orderJSON {
	return orderJSON{
		Symbol:   o.Symbol,
		Side:     o.Side,
		Qty:      o.Quantity.InexactFloat64(),
		Price:    o.Price.InexactFloat64(),
		Notional: o.Notional.InexactFloat64(),
		Fee:      o.Fee.InexactFloat64(),
		Cash:     o.Cash.InexactFloat64(),
	}
}

func newLeaderboardJSON(r game.LeaderboardRecord) leaderboardJSON {
	return leaderboardJSON{Username: r.Username, Asset: r.Asset.InexactFloat64(), Days: r.Days}
}
