// Package runner owns the dashboard run lifecycle: a per-subject state
// machine that walks the six simulated check steps, performs exactly one
// remote risk check, caches the result, and signals completion to the
// navigation layer exactly once per run.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/checks"
	"github.com/korubo/kybdash/internal/observability"
	"github.com/korubo/kybdash/internal/store"
	"github.com/korubo/kybdash/model"
)

// storeFailureMessage is shown when the check succeeded but the result could
// not be persisted. The run still fails: a completed run always has a
// readable cached result.
const storeFailureMessage = "could not save the check result, please try again"

// CustomerDirectory is the read side of the customer directory the
// controller validates selections against.
type CustomerDirectory interface {
	Get(id string) (model.Customer, bool)
	Contains(id string) bool
}

// Navigator receives the one-shot completion signal that moves the client
// from the progress view to the result view.
type Navigator interface {
	RunCompleted(subjectID, customerID, traceID string, band model.RiskBand)
}

// Deps carries everything a Controller needs. All fields except TraceIDFunc
// and StepInterval are required.
type Deps struct {
	Directory CustomerDirectory
	Store     store.Store
	Checks    checks.CheckRunner
	Navigator Navigator
	Telemetry *observability.Emitter
	Metrics   *observability.Metrics
	Logger    *zap.Logger

	// StepInterval is the fixed delay before each simulated step completes.
	// Zero is allowed and makes steps complete immediately, which tests use.
	StepInterval time.Duration

	// TraceIDFunc mints the per-run trace id. Defaults to uuid.NewString.
	TraceIDFunc func() string
}

// Controller drives the run state machine for one dashboard user. All state
// transitions happen under mu; snapshots published to listeners are deep
// copies taken inside the lock and delivered outside it.
type Controller struct {
	subjectID string
	deps      Deps

	mu           sync.Mutex
	state        model.RunState
	selectedID   string
	selectedName string
	navigated    bool
	generation   uint64
	listeners    map[int]chan model.RunState
	nextListener int
}

// NewController creates an idle controller for the given subject.
func NewController(subjectID string, deps Deps) *Controller {
	if deps.TraceIDFunc == nil {
		deps.TraceIDFunc = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Controller{
		subjectID: subjectID,
		deps:      deps,
		state:     model.IdleRunState(),
		listeners: make(map[int]chan model.RunState),
	}
}

// SelectCustomer records the customer the next run will target. An id not
// present in the directory is ignored. Selection never touches run state:
// re-selecting during an in-flight run only affects the NEXT run.
func (c *Controller) SelectCustomer(customerID string) {
	cust, ok := c.deps.Directory.Get(customerID)
	if !ok {
		c.deps.Telemetry.EmitEvent("customer_selection_ignored", map[string]any{
			"subject_id":  c.subjectID,
			"customer_id": customerID,
		})
		return
	}

	c.mu.Lock()
	c.selectedID = cust.ID
	c.selectedName = cust.Name
	c.mu.Unlock()

	c.deps.Telemetry.EmitEvent("customer_selected", map[string]any{
		"subject_id":  c.subjectID,
		"customer_id": cust.ID,
	})
}

// SelectedCustomer returns the current selection, or "" if none.
func (c *Controller) SelectedCustomer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedID
}

// StartRun begins a run for the selected customer. It is a silent no-op
// when no customer is selected or a run is already in flight; at most one
// run per controller can be in flight. The heavy lifting happens on a
// separate goroutine; StartRun returns once the state is running.
func (c *Controller) StartRun(ctx context.Context) {
	c.mu.Lock()
	if c.selectedID == "" {
		c.mu.Unlock()
		c.deps.Telemetry.EmitEvent("run_start_ignored_no_selection", map[string]any{
			"subject_id": c.subjectID,
		})
		return
	}
	if c.state.InFlight() {
		c.mu.Unlock()
		c.deps.Telemetry.EmitEvent("run_start_ignored_in_flight", map[string]any{
			"subject_id": c.subjectID,
		})
		return
	}

	customerID := c.selectedID
	customerName := c.selectedName
	traceID := c.deps.TraceIDFunc()

	c.generation++
	gen := c.generation
	c.navigated = false
	c.state = model.RunState{
		Phase:          model.RunPhaseRunning,
		CompletedSteps: []model.StepID{},
		TraceID:        traceID,
	}
	snapshot := c.state.Clone()
	c.mu.Unlock()

	c.deps.Metrics.RecordRunStart()
	c.deps.Telemetry.EmitEvent("run_started", map[string]any{
		"subject_id":  c.subjectID,
		"customer_id": customerID,
		"trace_id":    traceID,
	})
	c.publish(snapshot)

	// Selection persistence is best effort: a failed write must not stop
	// the run, it only loses the pre-fill on next sign-in.
	if err := c.deps.Store.SaveSelectedCustomer(ctx, c.subjectID, customerID); err != nil {
		c.deps.Logger.Warn("selected customer not persisted",
			zap.String("subject_id", c.subjectID),
			zap.String("customer_id", customerID),
			zap.Error(err))
	}

	go c.run(ctx, gen, customerID, customerName, traceID)
}

// run executes one full run on its own goroutine. Cancellation abandons the
// run without further transitions; a later StartRun or ResetRun bumps the
// generation, which makes this goroutine's remaining transitions no-ops.
func (c *Controller) run(ctx context.Context, gen uint64, customerID, customerName, traceID string) {
	steps := model.StepOrder()
	for i, step := range steps {
		stepStart := time.Now()
		if !c.sleep(ctx) {
			return
		}
		// The final step completes and the fetch begins in one transition:
		// observers never see a running state with every step done.
		final := i == len(steps)-1
		if !c.transition(gen, func(s *model.RunState) {
			s.CompletedSteps = append(s.CompletedSteps, step)
			if final {
				s.Phase = model.RunPhaseFetchingResult
			}
		}) {
			return
		}
		c.deps.Metrics.RecordRunStep(string(step), time.Since(stepStart))
	}

	if ctx.Err() != nil {
		return
	}

	outcome := c.deps.Checks.RunCheck(ctx, customerID, traceID)
	if !outcome.OK {
		c.fail(gen, traceID, outcome.Message)
		return
	}

	// A reset or restart that landed while the remote call was in flight
	// abandoned this run; its result must not reach the cache or history.
	if !c.current(gen) {
		return
	}

	record := model.RecentCheckRecord{
		CustomerID:   customerID,
		CustomerName: customerName,
		RiskBand:     outcome.Result.Risk.Band,
		TraceID:      traceID,
		Timestamp:    time.Now().UTC(),
	}
	if err := c.deps.Store.SaveResult(ctx, c.subjectID, outcome.Result); err != nil {
		c.deps.Logger.Error("check result not persisted",
			zap.String("subject_id", c.subjectID),
			zap.String("trace_id", traceID),
			zap.Error(err))
		c.fail(gen, traceID, storeFailureMessage)
		return
	}
	if err := c.deps.Store.SaveRecentCheck(ctx, c.subjectID, record); err != nil {
		// History is display-only; losing one entry does not fail the run.
		c.deps.Logger.Warn("recent check not persisted",
			zap.String("subject_id", c.subjectID),
			zap.String("trace_id", traceID),
			zap.Error(err))
	}

	c.complete(gen, traceID, outcome.Result.Risk.Band, customerID)
}

// sleep waits one step interval, returning false if the context was
// cancelled first.
func (c *Controller) sleep(ctx context.Context) bool {
	if c.deps.StepInterval <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(c.deps.StepInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// current reports whether this goroutine's run is still the live one.
func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

// transition applies fn to the state under the lock if this goroutine's
// generation is still current, then publishes the new snapshot. It reports
// whether the transition was applied.
func (c *Controller) transition(gen uint64, fn func(*model.RunState)) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	snapshot := c.state.Clone()
	c.mu.Unlock()

	c.publish(snapshot)
	return true
}

func (c *Controller) fail(gen uint64, traceID, message string) {
	applied := c.transition(gen, func(s *model.RunState) {
		*s = model.RunState{
			Phase:   model.RunPhaseFailed,
			TraceID: traceID,
			Message: message,
		}
	})
	if !applied {
		return
	}
	c.deps.Metrics.RecordRunFailure()
	c.deps.Telemetry.EmitEvent("run_failed", map[string]any{
		"subject_id": c.subjectID,
		"trace_id":   traceID,
		"message":    message,
	})
}

func (c *Controller) complete(gen uint64, traceID string, band model.RiskBand, customerID string) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.state = model.RunState{
		Phase:    model.RunPhaseCompleted,
		TraceID:  traceID,
		RiskBand: band,
	}
	snapshot := c.state.Clone()
	navigate := !c.navigated
	c.navigated = true
	c.mu.Unlock()

	c.publish(snapshot)
	c.deps.Metrics.RecordRunCompletion(string(band))
	c.deps.Telemetry.EmitEvent("run_completed", map[string]any{
		"subject_id":  c.subjectID,
		"customer_id": customerID,
		"trace_id":    traceID,
		"risk_band":   string(band),
	})

	// The navigation signal fires at most once per run, outside the lock,
	// so a slow navigator cannot stall state reads.
	if navigate && c.deps.Navigator != nil {
		c.deps.Navigator.RunCompleted(c.subjectID, customerID, traceID, band)
	}
}

// ResetRun returns the controller to idle. It is idempotent and also
// abandons any in-flight run by bumping the generation.
func (c *Controller) ResetRun() {
	c.mu.Lock()
	c.generation++
	c.navigated = false
	c.state = model.IdleRunState()
	snapshot := c.state.Clone()
	c.mu.Unlock()

	c.publish(snapshot)
	c.deps.Telemetry.EmitEvent("run_reset", map[string]any{
		"subject_id": c.subjectID,
	})
}

// Snapshot returns a deep copy of the current run state.
func (c *Controller) Snapshot() model.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Subscribe registers a listener for state snapshots. The returned channel
// receives every published transition, buffered; a listener that falls more
// than the buffer behind misses intermediate snapshots but a final Snapshot
// call always reflects the truth. Cancel must be called to release the
// listener.
func (c *Controller) Subscribe() (<-chan model.RunState, func()) {
	ch := make(chan model.RunState, 16)

	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
	return ch, cancel
}

// publish fans a snapshot out to all listeners without blocking.
func (c *Controller) publish(snapshot model.RunState) {
	c.mu.Lock()
	targets := make([]chan model.RunState, 0, len(c.listeners))
	for _, ch := range c.listeners {
		targets = append(targets, ch)
	}
	c.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
