package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tradelens/pkg/logger"
)

// Check pings one dependency. Required checks gate readiness; optional
// ones only degrade /health.
type Check struct {
	Name     string
	Required bool
	Ping     func(ctx context.Context) error
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      []Check
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler
func New(log *logger.Logger, serviceName, version string, checks ...Check) *Handler {
	if log == nil {
		log = logger.Get()
	}
	return &Handler{
		log:         log.With("component", "health"),
		checks:      checks,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	Required     bool   `json:"required"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
// Used by Kubernetes liveness probe
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness fails when any required dependency is down
// Used by Kubernetes readiness probe
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, requiredDown, _ := h.run(ctx)
	status := h.status(checks)

	code := http.StatusOK
	if requiredDown > 0 {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", checks)
	}
	writeStatus(w, code, status)
}

// HandleHealth returns detailed health status (includes all checks)
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks, requiredDown, optionalDown := h.run(ctx)
	status := h.status(checks)

	code := http.StatusOK
	switch {
	case requiredDown > 0:
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case optionalDown > 0:
		status.Status = "degraded" // still 200
	}
	writeStatus(w, code, status)
}

func (h *Handler) run(ctx context.Context) (checks map[string]ComponentHealth, requiredDown, optionalDown int) {
	checks = make(map[string]ComponentHealth, len(h.checks))
	for _, c := range h.checks {
		result := h.ping(ctx, c)
		checks[c.Name] = result
		if result.Status == "healthy" {
			continue
		}
		if c.Required {
			requiredDown++
		} else {
			optionalDown++
		}
	}
	return checks, requiredDown, optionalDown
}

func (h *Handler) ping(ctx context.Context, c Check) ComponentHealth {
	start := time.Now()
	err := c.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Errorw("Health check failed", "check", c.Name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			Required:     c.Required,
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}
	return ComponentHealth{
		Status:       "healthy",
		Required:     c.Required,
		ResponseTime: elapsed.String(),
	}
}

func (h *Handler) status(checks map[string]ComponentHealth) HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}
}

func writeStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
