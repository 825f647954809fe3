package game

import (
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

type Settings struct {
	StartingCash    decimal.Decimal
	DepositRate     decimal.Decimal
	LoanRate        decimal.Decimal
	TradeFeeRate    decimal.Decimal
	DayLength       time.Duration
	Volatility      string
	LeaderboardSize int
}

func DefaultSettings() Settings {
	return Settings{
		StartingCash:    DefaultStartingCash,
		DepositRate:     DefaultDepositRate,
		LoanRate:        DefaultLoanRate,
		TradeFeeRate:    decimal.Zero,
		DayLength:       time.Minute,
		Volatility:      "mor",
		LeaderboardSize: DefaultLeaderboardSize,
	}
}

// World is the whole game state. It has no locks: exactly one goroutine
// (the engine loop, or a one-shot command) may touch it.
type World struct {
	settings    Settings
	settlement  settler
	market      *Market
	scheduler   *Scheduler
	leaderboard *Leaderboard
	accounts    map[string]*Account
	byUsername  map[string]string
	rng         *mathrand.Rand
	now         func() time.Time
	log         *slog.Logger
	dirty       bool
}

type settler interface {
	Settle(acct *Account, market *Market, now time.Time) error
}

type WorldOption func(*World)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) WorldOption {
	return func(w *World) { w.now = now }
}

// WithRand fixes the market's random source.
func WithRand(rng *mathrand.Rand) WorldOption {
	return func(w *World) { w.rng = rng }
}

func WithLogger(logger *slog.Logger) WorldOption {
	return func(w *World) { w.log = logger }
}

// NewWorld restores state from snap, or starts a fresh world when snap is nil.
func NewWorld(settings Settings, snap *Snapshot, opts ...WorldOption) *World {
	w := &World{
		settings: settings,
		settlement: SettlementProcessor{
			DepositRate:  settings.DepositRate,
			LoanRate:     settings.LoanRate,
			StartingCash: settings.StartingCash,
		},
		accounts:   map[string]*Account{},
		byUsername: map[string]string{},
		rng:        mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if snap == nil {
		w.market = NewMarket(DefaultInstruments(), settings.Volatility)
		w.scheduler = NewScheduler(w.now(), settings.DayLength, 0)
		w.leaderboard = NewLeaderboard(settings.LeaderboardSize, nil)
		return w
	}

	w.market = NewMarket(mergeInstruments(snap.Instruments, DefaultInstruments()), settings.Volatility)
	epoch := snap.Epoch
	if epoch.IsZero() {
		epoch = w.now()
	}
	w.scheduler = NewScheduler(epoch, settings.DayLength, snap.LastProcessedDay)
	for _, acct := range snap.Accounts {
		if acct == nil {
			continue
		}
		restored := acct.Clone()
		if restored.Holdings == nil {
			restored.Holdings = map[string]*Holding{}
		}
		if restored.DRIP == nil {
			restored.DRIP = map[string]bool{}
		}
		w.accounts[restored.ID] = restored
		w.byUsername[strings.ToLower(restored.Username)] = restored.ID
	}
	w.leaderboard = NewLeaderboard(settings.LeaderboardSize, snap.Leaderboard)
	return w
}

// mergeInstruments keeps saved prices and adds any configured instrument the
// save predates.
func mergeInstruments(saved, defaults []Instrument) []Instrument {
	out := append([]Instrument(nil), saved...)
	seen := make(map[string]bool, len(saved))
	for _, inst := range saved {
		seen[inst.Symbol] = true
	}
	for _, inst := range defaults {
		if !seen[inst.Symbol] {
			out = append(out, inst)
		}
	}
	return out
}

func (w *World) Market() *Market { return w.market }

func (w *World) Scheduler() *Scheduler { return w.scheduler }

func (w *World) Settings() Settings { return w.settings }

func (w *World) markDirty() { w.dirty = true }

// TakeDirty reports whether state changed since the last call and clears the flag.
func (w *World) TakeDirty() bool {
	d := w.dirty
	w.dirty = false
	return d
}

func (w *World) account(id string) (*Account, error) {
	acct, ok := w.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

func (w *World) sortedAccounts() []*Account {
	out := make([]*Account, 0, len(w.accounts))
	for _, acct := range w.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tick processes every day boundary that elapsed since the last call.
func (w *World) Tick() TickReport {
	var report TickReport
	for _, day := range w.scheduler.Due(w.now()) {
		moves, settled, failed := w.processDay(day)
		w.scheduler.MarkProcessed(day)
		report.Days = append(report.Days, day)
		report.Moves = append(report.Moves, moves...)
		report.Settled += settled
		report.Failed += failed
	}
	if len(report.Days) > 0 {
		w.RefreshLeaderboard()
		w.markDirty()
	}
	return report
}

func (w *World) processDay(day int) (moves []PriceMove, settled, failed int) {
	moves = w.market.Update(w.rng)
	for i := range moves {
		moves[i].Day = day
	}
	var errs *multierror.Error
	for _, acct := range w.sortedAccounts() {
		if err := w.settleAccount(acct, day); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		settled++
	}
	if err := errs.ErrorOrNil(); err != nil {
		failed = len(errs.Errors)
		w.log.Error("day settlement had failures", "day", day, "failed", failed, "settled", settled, "err", err)
	}
	return moves, settled, failed
}

// settleAccount settles a copy and commits it only on success. A panic is
// reported as a SettlementError for this account alone.
func (w *World) settleAccount(acct *Account, day int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SettlementError{AccountID: acct.ID, Day: day, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	next := acct.Clone()
	if serr := w.settlement.Settle(next, w.market, w.now()); serr != nil {
		return &SettlementError{AccountID: acct.ID, Day: day, Err: serr}
	}
	w.accounts[acct.ID] = next
	return nil
}

func (w *World) RefreshLeaderboard() {
	w.leaderboard.Refresh(w.sortedAccounts(), w.market.Prices(), w.now())
}

// Snapshot returns a deep copy of the persisted state.
func (w *World) Snapshot() Snapshot {
	accounts := w.sortedAccounts()
	copies := make([]*Account, 0, len(accounts))
	for _, acct := range accounts {
		copies = append(copies, acct.Clone())
	}
	return Snapshot{
		SavedAt:          w.now().UTC(),
		Epoch:            w.scheduler.Epoch(),
		LastProcessedDay: w.scheduler.LastProcessedDay(),
		Instruments:      w.market.Instruments(),
		Accounts:         copies,
		Leaderboard:      w.leaderboard.Records(),
	}
}
