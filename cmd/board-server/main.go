package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/api"
	"github.com/hackgods/clinic-status-board/internal/board"
	"github.com/hackgods/clinic-status-board/internal/config"
	"github.com/hackgods/clinic-status-board/internal/docstore"
	"github.com/hackgods/clinic-status-board/internal/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, "board-server", cfg.LogFile)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("board-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("backend", cfg.Backend),
		zap.String("document", cfg.DocumentPath),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := docstore.Open(rootCtx, cfg, lg)
	if err != nil {
		lg.Fatal("document backend error", zap.Error(err))
	}
	defer backend.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := board.NewMetrics(reg)

	store := board.NewStore(backend.Store, cfg.DocumentPath, lg, metrics)
	if err := store.Start(rootCtx); err != nil {
		// memory-only: the board keeps working on this host
		lg.Warn("board replication unavailable", zap.Error(err))
	}
	defer store.Stop()

	hub := api.NewHub(store, lg, metrics.Viewers)
	detach := hub.Attach()
	defer detach()

	ticker := board.NewTicker(store, board.Alarms{board.NewLogAlarm(lg), hub}, cfg.TickInterval, lg, metrics)
	go ticker.Run(rootCtx)

	router := api.NewRouter(api.RouterConfig{
		Service:  board.NewService(store, lg),
		Store:    store,
		Hub:      hub,
		Checks:   backend.Checks,
		Gatherer: reg,
		Log:      lg,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	lg.Info("shutting down board-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
