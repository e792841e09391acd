package api

import (
	"context"
	"net/http"
	"time"

	"github.com/narratage/narratage/internal/gen"
	"github.com/narratage/narratage/internal/keystore"
	"github.com/narratage/narratage/internal/provider"
	"github.com/narratage/narratage/internal/storage"
)

// HealthChecker pings a persistence backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Keys          map[string]int    `json:"keys"`
	Batch         gen.BatchStats    `json:"batch"`
}

type HealthHandler struct {
	db        HealthChecker
	keys      *keystore.Store
	media     storage.MediaStore
	runner    *gen.Runner
	version   string
	startTime time.Time
}

func NewHealthHandler(db HealthChecker, keys *keystore.Store, media storage.MediaStore, runner *gen.Runner, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		keys:      keys,
		media:     media,
		runner:    runner,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["media_store"] = h.media.Type()

	// Enabled key counts let the UI surface "add a key" before the first
	// generation attempt fails.
	keyCounts := make(map[string]int)
	for _, p := range provider.All() {
		keyCounts[string(p)] = len(h.keys.EnabledKeys(p))
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Keys:          keyCounts,
		Batch:         h.runner.Stats(),
	})
}
