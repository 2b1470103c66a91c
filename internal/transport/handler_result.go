package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/observability"
	"github.com/korubo/kybdash/internal/report"
	"github.com/korubo/kybdash/model"
)

// resultResponse is the detail-view payload. The computed result is never
// mutated; an override is merged on read and EffectiveBand is what the
// client displays.
type resultResponse struct {
	Result        model.CheckResult       `json:"result"`
	Override      *model.RiskBandOverride `json:"override,omitempty"`
	EffectiveBand model.RiskBand          `json:"effective_band"`
}

// latestResult loads the cached result with its override merged.
func (d *Dependencies) latestResult(r *http.Request, subjectID string) (resultResponse, error) {
	res, ok, err := d.Store.LatestResult(r.Context(), subjectID)
	if err != nil {
		observability.RequestLogger(r.Context(), d.Logger).Error(
			"latest result read failed", zap.Error(err))
		return resultResponse{}, model.NewInternalError()
	}
	if !ok {
		return resultResponse{}, model.NewNoResultError()
	}

	out := resultResponse{Result: res, EffectiveBand: res.Risk.Band}
	override, found, err := d.Store.OverrideFor(r.Context(), subjectID, res.Entity.CustomerID)
	if err != nil {
		// The computed result is still shown; only the override layer is lost.
		observability.RequestLogger(r.Context(), d.Logger).Warn(
			"override read failed", zap.Error(err))
		return out, nil
	}
	if found {
		out.Override = &override
		out.EffectiveBand = override.Band
	}
	return out, nil
}

// handleLatestResult serves the detail view for the most recent successful
// check.
func (d *Dependencies) handleLatestResult(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())

	resp, err := d.latestResult(r, rctx.SubjectID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

type overrideRequest struct {
	Band   model.RiskBand `json:"band"`
	Reason string         `json:"reason"`
}

// handleOverride records a manual risk-band override for the customer of
// the latest result. The computed result itself is immutable.
func (d *Dependencies) handleOverride(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, model.NewBadRequestError("Request body must be JSON with band and reason"))
		return
	}
	if !req.Band.Valid() {
		WriteError(w, model.NewValidationError("band must be one of RED, AMBER, GREEN"))
		return
	}

	res, ok, err := d.Store.LatestResult(r.Context(), rctx.SubjectID)
	if err != nil {
		WriteError(w, model.NewInternalError())
		return
	}
	if !ok {
		WriteError(w, model.NewNoResultError())
		return
	}

	override := model.RiskBandOverride{
		CustomerID:   res.Entity.CustomerID,
		Band:         req.Band,
		PreviousBand: res.Risk.Band,
		Actor:        rctx.SubjectID,
		Reason:       req.Reason,
		TraceID:      res.TraceID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := d.Store.SaveOverride(r.Context(), rctx.SubjectID, override); err != nil {
		observability.RequestLogger(r.Context(), d.Logger).Error(
			"override save failed", zap.Error(err))
		WriteError(w, model.NewInternalError())
		return
	}

	d.Metrics.RecordOverride(string(req.Band))
	WriteJSON(w, http.StatusOK, override)
}

// handleLatestReport exports the latest result as a PDF download.
func (d *Dependencies) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())

	resp, err := d.latestResult(r, rctx.SubjectID)
	if err != nil {
		WriteError(w, err)
		return
	}

	pdf := report.Generate(resp.Result, resp.EffectiveBand)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "risk-check-"+resp.Result.TraceID+".pdf"))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
