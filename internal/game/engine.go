package game

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrEngineStopped = errors.New("engine stopped")

// Notifier is told whenever a command or tick changed the world.
type Notifier interface {
	ScheduleWrite()
}

type EngineConfig struct {
	TickEvery          time.Duration
	LeaderboardRefresh time.Duration
}

type request struct {
	cmd   Command
	reply chan response
}

type response struct {
	value any
	err   error
}

// Engine owns a World and applies commands, ticks and leaderboard refreshes
// to it one at a time from a single goroutine.
type Engine struct {
	world    *World
	cfg      EngineConfig
	log      *slog.Logger
	notifier Notifier
	requests chan request
	done     chan struct{}
}

func NewEngine(world *World, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickEvery <= 0 {
		cfg.TickEvery = time.Second
	}
	if cfg.LeaderboardRefresh <= 0 {
		cfg.LeaderboardRefresh = 10 * time.Second
	}
	return &Engine{
		world:    world,
		cfg:      cfg,
		log:      logger,
		requests: make(chan request),
		done:     make(chan struct{}),
	}
}

// SetNotifier must be called before Run.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Run processes messages until ctx is cancelled. Missed day boundaries are
// caught up immediately on start.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	tick := time.NewTicker(e.cfg.TickEvery)
	defer tick.Stop()
	refresh := time.NewTicker(e.cfg.LeaderboardRefresh)
	defer refresh.Stop()

	e.world.RefreshLeaderboard()
	e.tick()
	e.log.Info("engine started",
		"tick_every", e.cfg.TickEvery.String(),
		"day_length", e.world.Scheduler().DayLength().String(),
		"last_processed_day", e.world.Scheduler().LastProcessedDay(),
	)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return nil
		case req := <-e.requests:
			value, err := e.apply(req.cmd)
			req.reply <- response{value: value, err: err}
		case <-tick.C:
			e.tick()
		case <-refresh.C:
			e.world.RefreshLeaderboard()
		}
		e.notify()
	}
}

func (e *Engine) apply(cmd Command) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("command panicked", "command", commandName(cmd), "panic", r)
			err = errors.New("internal error")
		}
	}()
	return cmd.Apply(e.world)
}

func (e *Engine) tick() {
	report := e.world.Tick()
	if len(report.Days) == 0 {
		return
	}
	e.log.Info("day boundaries processed",
		"from", report.Days[0],
		"to", report.Days[len(report.Days)-1],
		"settled", report.Settled,
		"failed", report.Failed,
	)
}

func (e *Engine) notify() {
	if e.world.TakeDirty() && e.notifier != nil {
		e.notifier.ScheduleWrite()
	}
}

// Execute hands cmd to the loop and waits for its result.
func (e *Engine) Execute(ctx context.Context, cmd Command) (any, error) {
	req := request{cmd: cmd, reply: make(chan response, 1)}
	select {
	case e.requests <- req:
	case <-e.done:
		return nil, ErrEngineStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.value, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Executor runs commands against a world; *Engine is the production one.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (any, error)
}

// Do executes cmd and asserts its result type.
func Do[T any](ctx context.Context, ex Executor, cmd Command) (T, error) {
	var zero T
	value, err := ex.Execute(ctx, cmd)
	if err != nil {
		return zero, err
	}
	out, ok := value.(T)
	if !ok {
		return zero, errors.New("unexpected command result type")
	}
	return out, nil
}

// Snapshot satisfies the persistence gateway's source.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	return Do[Snapshot](ctx, e, TakeSnapshot{})
}

func commandName(cmd Command) string {
	switch cmd.(type) {
	case Login:
		return "login"
	case PlaceOrder:
		return "order"
	case BankTransfer:
		return "bank"
	case AdvanceDay:
		return "advance_day"
	case TakeSnapshot:
		return "snapshot"
	default:
		return "other"
	}
}
