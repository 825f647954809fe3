package game

import (
	"io"
	"log/slog"
	mathrand "math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorld(t *testing.T, clock *fakeClock, tweak ...func(*Settings)) *World {
	t.Helper()
	settings := DefaultSettings()
	settings.DayLength = time.Minute
	for _, fn := range tweak {
		fn(&settings)
	}
	return NewWorld(settings, nil,
		WithClock(clock.Now),
		WithRand(mathrand.New(mathrand.NewSource(7))),
		WithLogger(discardLogger()),
	)
}

func mustLogin(t *testing.T, w *World, username string) string {
	t.Helper()
	res, err := Login{Username: username}.Apply(w)
	require.NoError(t, err)
	return res.(LoginResult).AccountID
}

func requireDecEqual(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s got %s %v", want, got, msgAndArgs)
}
