package main

import (
	"context"
	"errors"
	"testing"
	"time"

	cl "bankgame/internal/cli"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	cases := map[float64]string{
		0:          "0.00",
		12.5:       "12.50",
		999.999:    "1,000.00",
		1234567.89: "1,234,567.89",
		-4200.1:    "-4,200.10",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatMoney(in), "input %v", in)
	}
}

func TestParsePositive(t *testing.T) {
	v, err := parsePositive(" 2.5 ")
	require.NoError(t, err)
	assert.Equal(t, "2.5", v.String())

	_, err = parsePositive("0")
	assert.Error(t, err)
	_, err = parsePositive("abc")
	assert.Error(t, err)
}

func TestAmountFromArgs(t *testing.T) {
	v, err := amountFromArgsOrPrompt([]string{"TSMC", "3"}, 1, "qty")
	require.NoError(t, err)
	assert.Equal(t, "3", v.String())
}

func TestSymbolFromArgs(t *testing.T) {
	s, err := symbolFromArgsOrPrompt([]string{" tsmc "})
	require.NoError(t, err)
	assert.Equal(t, "TSMC", s)

	_, err = symbolFromArgsOrPrompt([]string{"x1"})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
}

func TestWatchModelUpdates(t *testing.T) {
	m := newWatchModel(func(context.Context) (cl.State, error) { return cl.State{}, nil }, time.Second)
	assert.Contains(t, m.View(), "loading")

	next, cmd := m.Update(stateMsg{
		state: cl.State{
			Username: "alice",
			Days:     4,
			Cash:     900,
			NetWorth: 1010,
			Holdings: []cl.Holding{{Symbol: "TSMC", Qty: 1, Price: 110, MarketValue: 110, UnrealizedPL: 10}},
		},
		at: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NotNil(t, cmd)
	wm := next.(watchModel)
	view := wm.View()
	assert.Contains(t, view, "alice :: day 4")
	assert.Contains(t, view, "TSMC")
	assert.Contains(t, view, "1,010.00")

	next, _ = wm.Update(errMsg{err: errors.New("boom")})
	assert.Contains(t, next.(watchModel).View(), "error: boom")
}

func TestWatchFetchCmd(t *testing.T) {
	m := newWatchModel(func(context.Context) (cl.State, error) {
		return cl.State{Username: "bob"}, nil
	}, time.Second)
	msg := m.fetchCmd()()
	sm, ok := msg.(stateMsg)
	require.True(t, ok)
	assert.Equal(t, "bob", sm.state.Username)
}
