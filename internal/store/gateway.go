package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bankgame/internal/game"
)

type SnapshotSource interface {
	Snapshot(ctx context.Context) (game.Snapshot, error)
}

// Gateway coalesces write requests. The first request after a write arms a
// timer; requests that arrive before it fires ride along with that write.
type Gateway struct {
	store        Store
	source       SnapshotSource
	debounce     time.Duration
	writeTimeout time.Duration
	log          *slog.Logger

	mu     sync.Mutex
	dirty  bool
	timer  *time.Timer
	closed bool

	flushMu sync.Mutex
}

func NewGateway(st Store, source SnapshotSource, debounce time.Duration, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 8 * time.Second
	}
	return &Gateway{
		store:        st,
		source:       source,
		debounce:     debounce,
		writeTimeout: 30 * time.Second,
		log:          logger,
	}
}

// ScheduleWrite never blocks; it is called from the engine loop.
func (g *Gateway) ScheduleWrite() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.dirty = true
	g.armLocked()
}

func (g *Gateway) armLocked() {
	if g.timer == nil {
		g.timer = time.AfterFunc(g.debounce, g.fire)
	}
}

func (g *Gateway) fire() {
	g.mu.Lock()
	g.timer = nil
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), g.writeTimeout)
	defer cancel()
	if err := g.Flush(ctx); err != nil {
		g.log.Error("state write failed, will retry", "err", err, "retry_in", g.debounce.String())
		g.mu.Lock()
		if !g.closed {
			g.armLocked()
		}
		g.mu.Unlock()
	}
}

// Flush writes the current state if anything changed since the last write.
func (g *Gateway) Flush(ctx context.Context) error {
	g.flushMu.Lock()
	defer g.flushMu.Unlock()

	g.mu.Lock()
	if !g.dirty {
		g.mu.Unlock()
		return nil
	}
	g.dirty = false
	g.mu.Unlock()

	started := time.Now()
	snap, err := g.source.Snapshot(ctx)
	if err != nil {
		g.setDirty()
		return &PersistenceError{Op: "snapshot", Err: err}
	}
	if err := g.store.Save(ctx, snap); err != nil {
		g.setDirty()
		return &PersistenceError{Op: "save", Err: err}
	}
	g.log.Debug("state written", "accounts", len(snap.Accounts), "took", time.Since(started).String())
	return nil
}

func (g *Gateway) setDirty() {
	g.mu.Lock()
	g.dirty = true
	g.mu.Unlock()
}

// Close stops the timer and flushes a pending write. The snapshot source must
// still be running.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.mu.Unlock()
	return g.Flush(ctx)
}
