package game

import (
	"math"
	mathrand "math/rand"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type marketDynamics struct {
	EquitySigma   float64
	EquityMaxStep float64
	CryptoSigma   float64
}

func volatilityParams(mode string) marketDynamics {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "calm":
		return marketDynamics{
			EquitySigma:   0.005,
			EquityMaxStep: 0.025,
			CryptoSigma:   0.015,
		}
	case "wild":
		return marketDynamics{
			EquitySigma:   0.025,
			EquityMaxStep: 0.10,
			CryptoSigma:   0.06,
		}
	default:
		return marketDynamics{
			EquitySigma:   0.01,
			EquityMaxStep: 0.05,
			CryptoSigma:   0.03,
		}
	}
}

// PriceMove is one instrument's change on a day boundary.
type PriceMove struct {
	Day    int             `json:"day"`
	Symbol string          `json:"symbol"`
	From   decimal.Decimal `json:"from"`
	To     decimal.Decimal `json:"to"`
}

// Market holds the current price of every instrument. It is owned by the
// engine loop and never touched concurrently.
type Market struct {
	instruments []Instrument
	index       map[string]int
	dynamics    marketDynamics
}

func NewMarket(instruments []Instrument, volatility string) *Market {
	sorted := append([]Instrument(nil), instruments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })
	m := &Market{
		instruments: sorted,
		index:       make(map[string]int, len(sorted)),
		dynamics:    volatilityParams(volatility),
	}
	for i, inst := range sorted {
		m.index[inst.Symbol] = i
	}
	return m
}

func (m *Market) Instrument(symbol string) (Instrument, bool) {
	i, ok := m.index[symbol]
	if !ok {
		return Instrument{}, false
	}
	return m.instruments[i], true
}

func (m *Market) Instruments() []Instrument {
	return append([]Instrument(nil), m.instruments...)
}

func (m *Market) Prices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m.instruments))
	for _, inst := range m.instruments {
		out[inst.Symbol] = inst.Price
	}
	return out
}

// Update applies one day of random movement to every instrument.
func (m *Market) Update(rng *mathrand.Rand) []PriceMove {
	moves := make([]PriceMove, 0, len(m.instruments))
	for i := range m.instruments {
		inst := &m.instruments[i]
		var ret float64
		switch inst.Class {
		case ClassCrypto:
			ret = rng.NormFloat64() * m.dynamics.CryptoSigma
		default:
			ret = clampStep(rng.NormFloat64()*m.dynamics.EquitySigma, m.dynamics.EquityMaxStep)
		}
		next := evolvePrice(inst.Price, ret, inst.Floor)
		moves = append(moves, PriceMove{Symbol: inst.Symbol, From: inst.Price, To: next})
		inst.Price = next
	}
	return moves
}

func clampStep(ret, maxStep float64) float64 {
	return math.Max(-maxStep, math.Min(maxStep, ret))
}

// evolvePrice applies a multiplicative return and clamps to the floor.
func evolvePrice(price decimal.Decimal, ret float64, floor decimal.Decimal) decimal.Decimal {
	minimum := floor
	if !minimum.IsPositive() {
		minimum = decimal.New(1, -MoneyPlaces)
	}
	mult := 1 + ret
	if mult <= 0 || math.IsNaN(mult) || math.IsInf(mult, 0) {
		return minimum
	}
	next := roundMoney(price.Mul(decimal.NewFromFloat(mult)))
	if next.LessThan(minimum) {
		return minimum
	}
	return next
}
