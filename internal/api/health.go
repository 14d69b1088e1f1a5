package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hackgods/clinic-status-board/internal/board"
)

type HealthHandler struct {
	checks  map[string]func(context.Context) error
	store   *board.Store
	env     string
	version string
}

func NewHealthHandler(checks map[string]func(context.Context) error, store *board.Store, env, version string) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		store:   store,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Readiness reports "loading" until the first board arrives, "degraded" while running
// memory-only, and "error" when a backing dependency stops answering.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	for name, check := range h.checks {
		checkCtx, checkCancel := context.WithTimeout(ctx, 1*time.Second)
		err := check(checkCtx)
		checkCancel()
		if err != nil {
			deps[name] = "down"
			status = "error"
		} else {
			deps[name] = "ok"
		}
	}

	switch {
	case h.store.Loading():
		deps["board"] = "loading"
		status = "loading"
	case h.store.Degraded():
		deps["board"] = "memory-only"
		if status == "ok" {
			status = "degraded"
		}
	default:
		deps["board"] = "ok"
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" || status == "loading" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}
