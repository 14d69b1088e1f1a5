package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/board"
)

type RouterConfig struct {
	Service  *board.Service
	Store    *board.Store
	Hub      *Hub
	Checks   map[string]func(context.Context) error
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Store, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/board", getBoardHandler(cfg.Store))
	r.Get("/catalog", catalogHandler)
	if cfg.Hub != nil {
		r.Handle("/ws", cfg.Hub)
	}

	r.Route("/beds/{bedID}", func(r chi.Router) {
		r.Put("/patient", assignPatientHandler(cfg.Service))
		r.Delete("/patient", dischargeHandler(cfg.Service))
		r.Put("/memo", updateMemoHandler(cfg.Service))
		r.Put("/area", updateAreaHandler(cfg.Service))
		r.Post("/treatments", addTreatmentHandler(cfg.Service))
		r.Patch("/treatments/{treatmentID}", updateTreatmentHandler(cfg.Service))
	})

	r.Post("/transfers", transferHandler(cfg.Service))

	r.Post("/waiting", addWaitingHandler(cfg.Service))
	r.Delete("/waiting/{id}", removeWaitingHandler(cfg.Service))

	r.Post("/director-tasks", queueDirectorTaskHandler(cfg.Service))
	r.Post("/director-tasks/{id}/complete", completeDirectorTaskHandler(cfg.Service))
	r.Delete("/director-tasks/{id}", dismissDirectorTaskHandler(cfg.Service))

	return r
}
