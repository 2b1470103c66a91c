package transport

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/observability"
	"github.com/korubo/kybdash/model"
)

// dashboardResponse is the single payload the dashboard screen needs on
// entry: current selection, run state, and the bounded recent-check history.
type dashboardResponse struct {
	SelectedCustomerID     string                    `json:"selected_customer_id,omitempty"`
	LastSelectedCustomerID string                    `json:"last_selected_customer_id,omitempty"`
	Run                    runStateResponse          `json:"run"`
	RecentChecks           []model.RecentCheckRecord `json:"recent_checks"`
}

// handleDashboard assembles the dashboard snapshot. The persisted selection
// is surfaced separately from the live one: it pre-fills the selector on a
// fresh session but never restores it.
func (d *Dependencies) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())
	ctrl := d.Sessions.For(rctx.SubjectID)

	lastSelected, err := d.Store.LastSelectedCustomer(r.Context(), rctx.SubjectID)
	if err != nil {
		observability.RequestLogger(r.Context(), d.Logger).Warn(
			"last selection unavailable", zap.Error(err))
		lastSelected = ""
	}

	history, err := d.Store.RecentChecks(r.Context(), rctx.SubjectID)
	if err != nil {
		observability.RequestLogger(r.Context(), d.Logger).Warn(
			"recent checks unavailable", zap.Error(err))
		history = nil
	}
	if history == nil {
		history = []model.RecentCheckRecord{}
	}

	WriteJSON(w, http.StatusOK, dashboardResponse{
		SelectedCustomerID:     ctrl.SelectedCustomer(),
		LastSelectedCustomerID: lastSelected,
		Run:                    runStateView(ctrl.Snapshot()),
		RecentChecks:           history,
	})
}
