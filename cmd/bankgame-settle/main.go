package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bankgame/internal/config"
	"bankgame/internal/game"
	"bankgame/internal/logx"
	"bankgame/internal/store"
)

// bankgame-settle catches a stored world up to the current day and exits.
// Do not run it against a store the API process is serving.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := logx.New(cfg.LogLevel, cfg.LogFile)
	st, closeStore, err := store.Open(ctx, cfg.DatabaseURL, cfg.StatePath, logger)
	if err != nil {
		logger.Error("store open failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	snap, err := st.Load(ctx)
	if err != nil {
		logger.Error("load state failed", "err", err)
		os.Exit(1)
	}
	if snap == nil {
		logger.Info("no saved state, nothing to settle")
		return
	}

	world := game.NewWorld(cfg.GameSettings(), snap, game.WithLogger(logger))

	report := world.Tick()
	if len(report.Days) == 0 {
		logger.Info("already up to date", "last_day", world.Scheduler().LastProcessedDay())
		return
	}
	if err := st.Save(ctx, world.Snapshot()); err != nil {
		logger.Error("save state failed", "err", err)
		os.Exit(1)
	}
	logger.Info("settle run-once completed",
		"from", report.Days[0],
		"to", report.Days[len(report.Days)-1],
		"settled", report.Settled,
		"failed", report.Failed,
	)
	if report.Failed > 0 {
		os.Exit(2)
	}
}
