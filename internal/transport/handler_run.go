package transport

import (
	"context"
	"net/http"

	"github.com/korubo/kybdash/model"
)

// stepView is one row of the progress checklist.
type stepView struct {
	ID        model.StepID `json:"id"`
	Name      string       `json:"name"`
	Completed bool         `json:"completed"`
}

// runStateResponse pairs the raw run state with the full step checklist so
// the client renders progress without knowing the canonical order.
type runStateResponse struct {
	State model.RunState `json:"state"`
	Steps []stepView     `json:"steps"`
}

func runStateView(state model.RunState) runStateResponse {
	done := make(map[model.StepID]bool, len(state.CompletedSteps))
	for _, s := range state.CompletedSteps {
		done[s] = true
	}
	steps := make([]stepView, 0, 6)
	for _, id := range model.StepOrder() {
		steps = append(steps, stepView{
			ID:        id,
			Name:      model.StepName(id),
			Completed: done[id] || state.Terminal(),
		})
	}
	return runStateResponse{State: state, Steps: steps}
}

// handleStartRun triggers a run for the selected customer. Duplicate
// triggers while a run is in flight are swallowed, so the response is the
// current state either way. The run outlives the request: its context keeps
// the request's values but not its cancellation.
func (d *Dependencies) handleStartRun(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())
	ctrl := d.Sessions.For(rctx.SubjectID)

	ctrl.StartRun(context.WithoutCancel(r.Context()))
	WriteJSON(w, http.StatusAccepted, runStateView(ctrl.Snapshot()))
}

// handleCurrentRun returns the run state the progress view polls.
func (d *Dependencies) handleCurrentRun(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())
	WriteJSON(w, http.StatusOK, runStateView(d.Sessions.For(rctx.SubjectID).Snapshot()))
}

// handleResetRun returns the controller to idle, ready for a fresh run.
func (d *Dependencies) handleResetRun(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())
	ctrl := d.Sessions.For(rctx.SubjectID)

	ctrl.ResetRun()
	WriteJSON(w, http.StatusOK, runStateView(ctrl.Snapshot()))
}

// handleRunCompletion hands out the one-shot navigation signal. 204 means
// nothing to navigate to; a signal is returned exactly once per run.
func (d *Dependencies) handleRunCompletion(w http.ResponseWriter, r *http.Request) {
	rctx := model.RequestContextFrom(r.Context())

	sig, ok := d.Navigation.Consume(rctx.SubjectID)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSON(w, http.StatusOK, sig)
}
