package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthStatus represents process liveness
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ReadinessStatus represents whether the service accepts traffic
type ReadinessStatus struct {
	Ready     bool              `json:"ready"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// handleHealth is the liveness probe. It answers 200 while the process is up,
// even when dependencies are down.
func (s *Server) handleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}

	if c.QueryParam("verbose") == "true" {
		status.Checks, _ = s.runChecks(c.Request().Context())
	}

	return c.JSON(http.StatusOK, status)
}

// handleReadiness answers 200 only after startup completed and every dependency is healthy
func (s *Server) handleReadiness(c echo.Context) error {
	checks, healthy := s.runChecks(c.Request().Context())
	ready := s.IsReady() && healthy

	status := ReadinessStatus{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if !ready {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) runChecks(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string, len(s.deps.Checks))
	healthy := true
	for name, check := range s.deps.Checks {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(ctx)
		cancel()

		if err != nil {
			checks[name] = "unhealthy: " + err.Error()
			healthy = false
			continue
		}
		checks[name] = "healthy"
	}
	return checks, healthy
}
