// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker defines the interface for health checks.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RedisClient defines the interface for Redis client health checks.
type RedisClient interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db        HealthChecker
	kafka     HealthChecker
	redis     RedisClient
	version   string
	gitCommit string
}

// HealthHandlerConfig contains configuration for the health handler.
type HealthHandlerConfig struct {
	DB        HealthChecker
	Kafka     HealthChecker
	Redis     RedisClient
	Version   string
	GitCommit string
}

// NewHealthHandler creates a new HealthHandler. Kafka and Redis are optional.
func NewHealthHandler(cfg HealthHandlerConfig) *HealthHandler {
	return &HealthHandler{
		db:        cfg.DB,
		kafka:     cfg.Kafka,
		redis:     cfg.Redis,
		version:   cfg.Version,
		gitCommit: cfg.GitCommit,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
	Message string            `json:"message,omitempty"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	Service   string `json:"service"`
}

// Liveness handles the liveness probe.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readiness reports 503 when the database is unreachable. Kafka and Redis
// are reported but do not fail the probe: runs work without them.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if h.db == nil {
		checks["database"] = "not configured"
		healthy = false
	} else if err := h.db.Health(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		checks["database"] = "healthy"
	}

	checks["kafka"] = optionalCheck(ctx, h.kafka)
	var redis HealthChecker
	if h.redis != nil {
		redis = pinger{h.redis}
	}
	checks["redis"] = optionalCheck(ctx, redis)

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
}

type pinger struct{ RedisClient }

func (p pinger) Health(ctx context.Context) error { return p.Ping(ctx) }

func optionalCheck(ctx context.Context, c HealthChecker) string {
	if c == nil {
		return "not configured"
	}
	if err := c.Health(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

// Version handles the version endpoint.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version:   h.version,
		GitCommit: h.gitCommit,
		Service:   "riskengine",
	})
}

// Metrics handles the Prometheus metrics endpoint.
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
