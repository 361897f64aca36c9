// Package main is the entry point for the CoinRush session server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/coinrush/server/internal/engine"
	"github.com/MRamiBalles/coinrush/server/internal/infra/cache"
	"github.com/MRamiBalles/coinrush/server/internal/infra/storage"
	"github.com/MRamiBalles/coinrush/server/internal/network"
	"github.com/MRamiBalles/coinrush/server/internal/platform/config"
	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
	"github.com/MRamiBalles/coinrush/server/internal/platform/otel"
	"github.com/MRamiBalles/coinrush/server/internal/worker"
)

// storeAdapter translates engine persistence calls to the SQLite repositories
// and drops cached leaderboard pages after every score write.
type storeAdapter struct {
	players     *storage.SQLitePlayerRepository
	sessions    *storage.SQLiteSessionRepository
	leaderboard *cache.LeaderboardCache
}

func (a *storeAdapter) TouchPlayer(ctx context.Context, identity string, at time.Time) error {
	return a.players.Touch(ctx, identity, at)
}

func (a *storeAdapter) AddSessionScore(ctx context.Context, identity string, score int, at time.Time) error {
	if err := a.players.AddScore(ctx, identity, score, at); err != nil {
		return err
	}
	a.leaderboard.Invalidate()
	return nil
}

func (a *storeAdapter) RecordSession(ctx context.Context, s engine.SessionSummary) error {
	return a.sessions.Append(ctx, storage.SessionRecord{
		ID:              s.ID,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		PlayerCount:     s.PlayerCount,
		TopWallet:       s.TopWallet,
		TopScore:        s.TopScore,
		EliminationMode: s.EliminationMode,
	})
}

func engineSettings(cfg config.Config) engine.Settings {
	s := engine.DefaultSettings()
	s.TickInterval = cfg.TickInterval
	s.SessionDuration = cfg.SessionDuration
	s.RestartDelay = cfg.RestartDelay
	s.SabotagePeriod = cfg.SabotagePeriod
	s.SabotageDuration = cfg.SabotageDuration
	s.PersistTimeout = cfg.PersistTimeout
	s.EliminationMode = cfg.EliminationMode
	s.ImposterChance = cfg.ImposterChance
	s.InboxSize = cfg.EngineInboxSize
	return s
}

func main() {
	appLogger := logger.NewLogger()
	appLogger.Info("Initializing CoinRush authoritative session server...")

	cfg, err := config.Load()
	if err != nil {
		config.Exitf("coinrush-server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "coinrush-server")
	if err != nil {
		appLogger.Warnf("Tracing disabled: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	appLogger.Infof("Initializing SQLite database %q...", cfg.DBPath)
	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		config.Exitf("coinrush-server: %v", err)
	}
	defer db.Close()

	players := storage.NewSQLitePlayerRepository(db)
	sessions := storage.NewSQLiteSessionRepository(db)
	leaderboard := cache.NewLeaderboardCache(players, cfg.LeaderboardCacheTTL)
	store := &storeAdapter{players: players, sessions: sessions, leaderboard: leaderboard}

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger)

	appLogger.Info("Bootstrapping Engine...")
	gameEngine := engine.NewEngine(engineSettings(cfg), hub, store, appLogger)

	mux := http.NewServeMux()
	mux.Handle("/ws", network.NewWSHandler(hub, gameEngine, network.Options{
		SendBuffer:   cfg.ClientSendBuffer,
		InboundRate:  cfg.InboundRate,
		InboundBurst: cfg.InboundBurst,
	}, appLogger))
	network.NewAPIBridge(leaderboard, sessions, gameEngine, hub, cfg.LeaderboardLimit, appLogger).RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/metrics/prometheus", metrics.PrometheusHandler())
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return gameEngine.Run(gctx)
	})
	if cfg.WeeklyResetEnabled {
		weekly := worker.NewWeeklyReset(players, leaderboard.Invalidate, appLogger)
		g.Go(func() error {
			return weekly.Run(gctx)
		})
	}
	g.Go(func() error {
		appLogger.Infof("HTTP API & WS Server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Errorf("Server stopped with error: %v", err)
	}
	appLogger.Info("Server stopped.")
}
