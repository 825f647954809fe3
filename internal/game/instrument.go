package game

import "github.com/shopspring/decimal"

type InstrumentClass string

const (
	ClassEquity InstrumentClass = "equity"
	ClassCrypto InstrumentClass = "crypto"
)

type Instrument struct {
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name"`
	Sector           string          `json:"sector"`
	Class            InstrumentClass `json:"class"`
	Price            decimal.Decimal `json:"price"`
	Floor            decimal.Decimal `json:"floor"`
	DividendYield    decimal.Decimal `json:"dividend_yield"`
	DividendInterval int             `json:"dividend_interval"`
}

// PaysDividendOn reports whether the dividend interval elapses on day.
func (i Instrument) PaysDividendOn(day int) bool {
	if i.DividendInterval <= 0 || !i.DividendYield.IsPositive() || day <= 0 {
		return false
	}
	return day%i.DividendInterval == 0
}

// DefaultInstruments is the opening market. Yields are the per-share dividend
// of each listing over its opening price.
func DefaultInstruments() []Instrument {
	equityFloor := decimal.NewFromInt(10)
	seed := []struct {
		Symbol string
		Name   string
		Sector string
		Price  int64
		DPS    string
	}{
		{"TSMC", "Taiwan Semiconductor", "tech", 100, "1"},
		{"HONHAI", "Hon Hai Precision", "tech", 80, "1"},
		{"MTK", "MediaTek", "tech", 120, "1"},
		{"MINING", "Mining Co", "primary", 60, "2"},
		{"FARM", "Farming Co", "primary", 50, "1.5"},
		{"FOREST", "Forestry Co", "primary", 55, "1.2"},
		{"RETAIL", "Retail Chain", "services", 70, "1"},
		{"RESTAURANT", "Restaurant Group", "services", 65, "0.8"},
		{"TRAVEL", "Travel Co", "services", 75, "0.9"},
	}
	out := make([]Instrument, 0, len(seed)+1)
	for _, s := range seed {
		price := decimal.NewFromInt(s.Price)
		out = append(out, Instrument{
			Symbol:           s.Symbol,
			Name:             s.Name,
			Sector:           s.Sector,
			Class:            ClassEquity,
			Price:            price,
			Floor:            equityFloor,
			DividendYield:    decimal.RequireFromString(s.DPS).DivRound(price, 6),
			DividendInterval: MonthDays,
		})
	}
	out = append(out, Instrument{
		Symbol: "BTC",
		Name:   "Bitcoin",
		Sector: "crypto",
		Class:  ClassCrypto,
		Price:  decimal.NewFromInt(1_000_000),
		Floor:  decimal.NewFromInt(10_000),
	})
	return out
}
