package server

import (
	"context"
	"net/http"
	"time"
)

type checkResult struct {
	Connected bool    `json:"connected"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

type healthResponse struct {
	Status       string                 `json:"status"`
	Checks       map[string]checkResult `json:"checks"`
	QueueDepth   int                    `json:"queue_depth"`
	RelayBacklog int                    `json:"relay_backlog"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	checks := make(map[string]checkResult, len(s.checks))
	for name, fn := range s.checks {
		start := time.Now()
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := fn(checkCtx)
		cancel()

		res := checkResult{Connected: err == nil}
		if err != nil {
			res.Error = err.Error()
			overallHealthy = false
		} else {
			res.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
		checks[name] = res
	}

	resp := healthResponse{
		Status:     "healthy",
		Checks:     checks,
		QueueDepth: s.updateDLQDepth(),
	}
	if s.relay != nil {
		resp.RelayBacklog = s.relay.Backlog()
	}

	status := http.StatusOK
	if !overallHealthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
