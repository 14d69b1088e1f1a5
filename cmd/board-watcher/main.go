package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/board"
	"github.com/hackgods/clinic-status-board/internal/clinic"
	"github.com/hackgods/clinic-status-board/internal/config"
	"github.com/hackgods/clinic-status-board/internal/docstore"
	"github.com/hackgods/clinic-status-board/internal/logger"
)

// board-watcher is a headless viewer: it follows the shared board, runs its own countdowns
// and logs every alarm. Useful on a nurse station without a display.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, "board-watcher", cfg.LogFile)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("board-watcher starting up",
		zap.String("env", cfg.Env),
		zap.String("backend", cfg.Backend),
		zap.Duration("interval", cfg.TickInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := docstore.Open(rootCtx, cfg, lg)
	if err != nil {
		lg.Fatal("document backend error", zap.Error(err))
	}
	defer backend.Close()

	metrics := board.NewMetrics(nil)
	store := board.NewStore(backend.Store, cfg.DocumentPath, lg, metrics)
	if err := store.Start(rootCtx); err != nil {
		lg.Warn("board replication unavailable", zap.Error(err))
	}
	defer store.Stop()

	cancel := store.Subscribe(func(s clinic.Snapshot) {
		occupied := 0
		for _, b := range s.Beds {
			if b.Occupied() {
				occupied++
			}
		}
		lg.Debug("board updated",
			zap.Int("occupied_beds", occupied),
			zap.Int("in_progress", s.InProgress()),
			zap.Int("waiting", len(s.WaitingList)),
			zap.Int("director_tasks", len(s.DirectorTasks)),
		)
	})
	defer cancel()

	ticker := board.NewTicker(store, board.NewLogAlarm(lg), cfg.TickInterval, lg, metrics)
	ticker.Run(rootCtx)

	lg.Info("shutdown signal received, stopping board-watcher")
}
