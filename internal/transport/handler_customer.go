package transport

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/observability"
	"github.com/korubo/kybdash/model"
)

// customerListResponse is the payload for the customer selector screen.
// LastSelectedCustomerID pre-fills the selector; it never starts a run.
type customerListResponse struct {
	Customers              []model.Customer `json:"customers"`
	LastSelectedCustomerID string           `json:"last_selected_customer_id,omitempty"`
}

// handleListCustomers returns the available-customer directory plus the
// durably-saved previous selection.
func (d *Dependencies) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())

	lastSelected, err := d.Store.LastSelectedCustomer(r.Context(), rctx.SubjectID)
	if err != nil {
		// The pre-fill is a convenience; the selector still works without it.
		observability.RequestLogger(r.Context(), d.Logger).Warn(
			"last selection unavailable", zap.Error(err))
		lastSelected = ""
	}

	WriteJSON(w, http.StatusOK, customerListResponse{
		Customers:              d.Directory.Customers(),
		LastSelectedCustomerID: lastSelected,
	})
}

type selectCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

// handleSelectCustomer records the customer the next run will target.
// Selection never changes run state.
func (d *Dependencies) handleSelectCustomer(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())

	var req selectCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, model.NewBadRequestError("Request body must be JSON with a customer_id"))
		return
	}
	if req.CustomerID == "" {
		WriteError(w, model.NewBadRequestError("customer_id is required"))
		return
	}
	if !d.Directory.Contains(req.CustomerID) {
		WriteError(w, model.NewUnknownCustomerError(req.CustomerID))
		return
	}

	d.Sessions.For(rctx.SubjectID).SelectCustomer(req.CustomerID)
	WriteJSON(w, http.StatusOK, map[string]string{"customer_id": req.CustomerID})
}
