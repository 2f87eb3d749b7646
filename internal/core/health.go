package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds GET /health as a whole.
const healthCheckTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthProbe is a dependency reported by GET /health. In production the
// probes are the upstream circuit breakers.
type HealthProbe interface {
	Name() string

	// Check must honour ctx and return an error while the dependency is
	// unavailable.
	Check(ctx context.Context) error
}

// StateReporter is implemented by probes that can describe their state
// beyond pass/fail, such as a breaker's "half-open".
type StateReporter interface {
	State() string
}

type componentStatus struct {
	Status  string `json:"status"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth checks every probe concurrently and answers 200 when all pass,
// 503 otherwise. Probes still running at the deadline count as failed.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: statusHealthy})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	// One buffered slot per probe so late finishers never block.
	results := make([]chan error, len(s.HealthProbes))
	for i, probe := range s.HealthProbes {
		results[i] = make(chan error, 1)
		go func() {
			results[i] <- runProbe(ctx, probe)
		}()
	}

	resp := healthResponse{
		Status:     statusHealthy,
		Components: make(map[string]componentStatus, len(s.HealthProbes)),
	}
	for i, probe := range s.HealthProbes {
		var err error
		select {
		case err = <-results[i]:
		case <-ctx.Done():
			err = fmt.Errorf("health check timed out")
		}

		comp := componentStatus{Status: statusHealthy}
		if sr, ok := probe.(StateReporter); ok {
			comp.State = sr.State()
		}
		if err != nil {
			comp.Status = statusUnhealthy
			comp.Message = err.Error()
			resp.Status = statusUnhealthy
		}
		resp.Components[probe.Name()] = comp
	}

	status := http.StatusOK
	if resp.Status != statusHealthy {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()
	return p.Check(ctx)
}
