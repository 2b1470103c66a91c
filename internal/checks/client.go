// Package checks calls the remote KYB risk-check service. The dashboard makes
// exactly one check call per run, after the preparation steps finish; there is
// no automatic retry, a failed call surfaces as a failed run.
package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/config"
	"github.com/korubo/kybdash/internal/observability"
	"github.com/korubo/kybdash/model"
)

// failureMessage is what the dashboard shows when a check fails for any
// reason. Backend error details go to the log, never to the client.
const failureMessage = "risk check failed, please try again"

// Outcome is the terminal result of a check call. OK carries a full result
// document; otherwise Message holds a display-safe explanation.
type Outcome struct {
	OK      bool
	Result  model.CheckResult
	Message string
}

// CheckRunner executes a single risk check for a customer.
type CheckRunner interface {
	RunCheck(ctx context.Context, customerID, traceID string) Outcome
}

// HTTPCheckClient calls the risk-check service over HTTP.
type HTTPCheckClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewHTTPCheckClient creates a client for the configured check service.
func NewHTTPCheckClient(cfg config.ChecksConfig, logger *zap.Logger, metrics *observability.Metrics) *HTTPCheckClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPCheckClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// RunCheck performs one check call. Every failure mode maps to a non-OK
// Outcome with the generic failure message; nothing escapes as an error or
// panic.
func (c *HTTPCheckClient) RunCheck(ctx context.Context, customerID, traceID string) Outcome {
	start := time.Now()
	outcome, status := c.runCheck(ctx, customerID, traceID)
	c.metrics.RecordCheckRequest(status, time.Since(start))
	return outcome
}

// runCheck returns the outcome plus the HTTP status observed, 0 when the
// request never produced a response.
func (c *HTTPCheckClient) runCheck(ctx context.Context, customerID, traceID string) (Outcome, int) {
	reqURL := fmt.Sprintf("%s/v1/customers/%s/risk-check", c.baseURL, customerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.Error("check request build failed",
			zap.String("customer_id", customerID),
			zap.String("trace_id", traceID),
			zap.Error(err))
		return Outcome{Message: failureMessage}, 0
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Trace-Id", traceID)
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("check request failed",
			zap.String("customer_id", customerID),
			zap.String("trace_id", traceID),
			zap.Error(err))
		return Outcome{Message: failureMessage}, 0
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Warn("check response read failed",
			zap.String("customer_id", customerID),
			zap.String("trace_id", traceID),
			zap.Error(err))
		return Outcome{Message: failureMessage}, resp.StatusCode
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("check service returned error status",
			zap.String("customer_id", customerID),
			zap.String("trace_id", traceID),
			zap.Int("status", resp.StatusCode))
		return Outcome{Message: failureMessage}, resp.StatusCode
	}

	var result model.CheckResult
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Warn("check response decode failed",
			zap.String("customer_id", customerID),
			zap.String("trace_id", traceID),
			zap.Error(err))
		return Outcome{Message: failureMessage}, resp.StatusCode
	}

	// The run's trace id wins over whatever the service echoed back, so the
	// displayed result always carries the id the run was started with.
	result.TraceID = traceID
	if !result.Risk.Band.Valid() {
		c.logger.Warn("check response carried unknown risk band",
			zap.String("customer_id", customerID),
			zap.String("trace_id", traceID),
			zap.String("risk_band", string(result.Risk.Band)))
		return Outcome{Message: failureMessage}, resp.StatusCode
	}
	if result.GeneratedAt.IsZero() {
		result.GeneratedAt = time.Now().UTC()
	}

	return Outcome{OK: true, Result: result}, resp.StatusCode
}
