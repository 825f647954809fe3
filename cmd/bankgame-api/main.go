package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankgame/internal/api"
	"bankgame/internal/auth"
	"bankgame/internal/config"
	"bankgame/internal/game"
	"bankgame/internal/logx"
	"bankgame/internal/store"
)

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
		logger.Info("no saved state, starting fresh world")
	} else {
		logger.Info("state restored", "accounts", len(snap.Accounts), "saved_at", snap.SavedAt, "last_day", snap.LastProcessedDay)
	}

	world := game.NewWorld(cfg.GameSettings(), snap, game.WithLogger(logger))
	engine := game.NewEngine(world, game.EngineConfig{
		TickEvery:          cfg.TickEvery,
		LeaderboardRefresh: cfg.LeaderboardRefresh,
	}, logger)
	gateway := store.NewGateway(st, engine, cfg.PersistDebounce, logger)
	engine.SetNotifier(gateway)

	secret := cfg.TokenSecret
	if secret == "" {
		secret, err = auth.GenerateSecret()
		if err != nil {
			logger.Error("token secret generation failed", "err", err)
			os.Exit(1)
		}
		logger.Warn("BANKGAME_TOKEN_SECRET not set, issued tokens will not survive a restart")
	}
	tokens, err := auth.NewIssuer(secret, cfg.TokenTTL, 4096)
	if err != nil {
		logger.Error("token issuer init failed", "err", err)
		os.Exit(1)
	}

	engineCtx, stopEngine := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(engineCtx); err != nil {
			logger.Error("engine stopped", "err", err)
		}
	}()

	server := api.New(cfg, logger, engine, tokens)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "err", err)
		}
		if err := gateway.Close(shutdownCtx); err != nil {
			logger.Error("final state flush failed", "err", err)
		}
		stopEngine()
		<-engineDone
		logger.Info("bankgame api stopped")
	}()

	logger.Info("bankgame api listening", "addr", cfg.Addr, "day_length", cfg.DayLength.String(), "volatility", cfg.MarketVolatility)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		stop()
		<-shutdownDone
		os.Exit(1)
	}
	<-shutdownDone
}
