package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// HealthResponse is the JSON response for the liveness endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// ReadinessResponse is the JSON response for the readiness endpoint.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]ProbeResult `json:"checks"`
}

// ProbeResult is the result of a single readiness probe.
type ProbeResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker can verify its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReadinessChecks holds the dependency probes for the readiness endpoint.
type ReadinessChecks struct {
	// DirectoryLoaded must report whether the customer directory holds at
	// least one entry. Always probed.
	DirectoryLoaded func() bool

	// Store is probed only if non-nil (the in-memory store needs no probe).
	Store HealthChecker
}

const probeTimeout = 2 * time.Second

// HandleHealth returns an HTTP handler for the liveness endpoint.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:  "ok",
			Version: Version,
			Commit:  Commit,
		})
	}
}

// HandleReady returns an HTTP handler for the readiness endpoint.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make(map[string]ProbeResult)

		start := time.Now()
		if checks.DirectoryLoaded != nil && checks.DirectoryLoaded() {
			results["directory"] = ProbeResult{
				Status:    "ok",
				LatencyMs: time.Since(start).Milliseconds(),
			}
		} else {
			results["directory"] = ProbeResult{
				Status:    "error",
				LatencyMs: time.Since(start).Milliseconds(),
				Error:     "no customers loaded",
			}
		}

		if checks.Store != nil {
			results["store"] = runProbe(r.Context(), checks.Store)
		}

		status := "ready"
		httpStatus := http.StatusOK
		for _, result := range results {
			if result.Status != "ok" {
				status = "not_ready"
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(ReadinessResponse{
			Status: status,
			Checks: results,
		})
	}
}

// runProbe executes a health check with a per-probe timeout.
func runProbe(parent context.Context, checker HealthChecker) ProbeResult {
	ctx, cancel := context.WithTimeout(parent, probeTimeout)
	defer cancel()

	start := time.Now()
	err := checker.HealthCheck(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return ProbeResult{Status: "error", LatencyMs: latency, Error: err.Error()}
	}
	return ProbeResult{Status: "ok", LatencyMs: latency}
}
