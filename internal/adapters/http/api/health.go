package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sigte/riskengine/pkg/logger"
	"github.com/sigte/riskengine/pkg/metrics"
)

const pingTimeout = 2 * time.Second

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthHandler handles liveness and metrics requests.
type HealthHandler struct {
	started time.Time
	checker HealthChecker
}

// NewHealthHandler creates a new health handler. A nil checker reports the
// database as healthy.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{started: time.Now(), checker: checker}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// HandleHealth handles GET /healthz requests.
// If the Accept header asks for "application/openmetrics-text" or "text/plain"
// it returns Prometheus metrics. Otherwise, it returns JSON health status.
// A failed store ping reports "degraded" with status 200; the process itself
// is still live.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/openmetrics-text") || strings.Contains(accept, "text/plain") {
		metrics.Handler().ServeHTTP(w, r)
		return
	}
	resp := healthResponse{
		Status:   StatusOK,
		Database: "healthy",
		Uptime:   time.Since(h.started).Truncate(time.Second).String(),
	}
	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := h.checker.Ping(ctx); err != nil {
			logger.Get().Named("api").Warn(r.Context(), "store ping failed", logger.Error(err))
			resp.Status = StatusDegraded
			resp.Database = "unhealthy: " + err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMetrics handles GET /metrics requests.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}
