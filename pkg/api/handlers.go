package api

import (
	"context"
	"net/http"

	"github.com/mediapruner/queue/internal/common"
)

// HealthChecker is the narrow capability a health endpoint needs from a
// database connection.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db    HealthChecker
	redis HealthChecker
}

// NewHealthHandler creates a new health handler. redis may be nil when
// the deployment runs without a Redis mirror.
func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Check performs a health check.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Services: make(map[string]string),
	}

	if h.db != nil {
		if err := h.db.Health(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Services["database"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["database"] = "healthy"
		}
	}

	if h.redis != nil {
		if err := h.redis.Health(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	common.WriteJSON(w, statusCode, resp)
}

// Ready checks if the service is ready to accept traffic.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Live checks if the service is alive.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
