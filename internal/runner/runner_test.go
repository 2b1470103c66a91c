package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/checks"
	"github.com/korubo/kybdash/internal/observability"
	"github.com/korubo/kybdash/internal/store"
	"github.com/korubo/kybdash/model"
)

// --- Test doubles ---

type fakeDirectory struct {
	customers map[string]model.Customer
}

func newFakeDirectory(customers ...model.Customer) *fakeDirectory {
	d := &fakeDirectory{customers: make(map[string]model.Customer)}
	for _, c := range customers {
		d.customers[c.ID] = c
	}
	return d
}

func (d *fakeDirectory) Get(id string) (model.Customer, bool) {
	c, ok := d.customers[id]
	return c, ok
}

func (d *fakeDirectory) Contains(id string) bool {
	_, ok := d.customers[id]
	return ok
}

type fakeChecker struct {
	mu      sync.Mutex
	calls   int
	traces  []string
	outcome checks.Outcome
	block   chan struct{} // when non-nil, RunCheck waits on it
}

func (f *fakeChecker) RunCheck(_ context.Context, _, traceID string) checks.Outcome {
	f.mu.Lock()
	f.calls++
	f.traces = append(f.traces, traceID)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return f.outcome
}

func (f *fakeChecker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNavigator struct {
	mu     sync.Mutex
	calls  int
	traces []string
	bands  []model.RiskBand
}

func (f *fakeNavigator) RunCompleted(_, _, traceID string, band model.RiskBand) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.traces = append(f.traces, traceID)
	f.bands = append(f.bands, band)
}

func (f *fakeNavigator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingStore wraps a Store and fails SaveResult.
type failingStore struct {
	store.Store
}

func (failingStore) SaveResult(context.Context, string, model.CheckResult) error {
	return errors.New("disk full")
}

func amberResult(legalName string) checks.Outcome {
	return checks.Outcome{
		OK: true,
		Result: model.CheckResult{
			Entity: model.EntityProfile{LegalName: legalName},
			Risk:   model.RiskAssessment{Score: 55, Band: model.RiskBandAmber},
		},
	}
}

type fixture struct {
	controller *Controller
	store      *store.MemoryStore
	checker    *fakeChecker
	navigator  *fakeNavigator
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()

	memStore := store.NewMemoryStore(10)
	checker := &fakeChecker{outcome: amberResult("Acme Holdings Ltd")}
	navigator := &fakeNavigator{}

	seq := 0
	deps := Deps{
		Directory: newFakeDirectory(
			model.Customer{ID: "cust-acme", Name: "Acme Holdings Ltd"},
			model.Customer{ID: "cust-nimbus", Name: "Nimbus Freight GmbH"},
		),
		Store:     memStore,
		Checks:    checker,
		Navigator: navigator,
		Telemetry: observability.NewEmitter(zap.NewNop(), nil),
		Metrics:   observability.InitMetrics(prometheus.NewRegistry()),
		Logger:    zap.NewNop(),
		TraceIDFunc: func() string {
			seq++
			return fmt.Sprintf("trace-%d", seq)
		},
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &fixture{
		controller: NewController("analyst-1", deps),
		store:      memStore,
		checker:    checker,
		navigator:  navigator,
	}
}

func waitForPhase(t *testing.T, c *Controller, phase string) model.RunState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s := c.Snapshot()
		if s.Phase == phase {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %q, current %q", phase, c.Snapshot().Phase)
	return model.RunState{}
}

// --- Tests ---

func TestStartRun_without_selection_is_noop(t *testing.T) {
	f := newFixture(t, nil)

	f.controller.StartRun(context.Background())

	if got := f.controller.Snapshot().Phase; got != model.RunPhaseIdle {
		t.Errorf("phase = %q, want idle", got)
	}
	if f.checker.callCount() != 0 {
		t.Error("checker should not be called without a selection")
	}
}

func TestSelectCustomer_unknown_is_ignored(t *testing.T) {
	f := newFixture(t, nil)

	f.controller.SelectCustomer("cust-ghost")
	if got := f.controller.SelectedCustomer(); got != "" {
		t.Errorf("SelectedCustomer() = %q, want empty", got)
	}

	// A known selection after the ignored one works normally.
	f.controller.SelectCustomer("cust-acme")
	if got := f.controller.SelectedCustomer(); got != "cust-acme" {
		t.Errorf("SelectedCustomer() = %q, want cust-acme", got)
	}
}

func TestRun_happy_path(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.controller.SelectCustomer("cust-acme")
	f.controller.StartRun(ctx)

	state := waitForPhase(t, f.controller, model.RunPhaseCompleted)
	if state.TraceID != "trace-1" {
		t.Errorf("TraceID = %q, want trace-1", state.TraceID)
	}
	if state.RiskBand != model.RiskBandAmber {
		t.Errorf("RiskBand = %q, want AMBER", state.RiskBand)
	}

	// The same trace id flowed to the check call.
	if len(f.checker.traces) != 1 || f.checker.traces[0] != "trace-1" {
		t.Errorf("checker traces = %v, want [trace-1]", f.checker.traces)
	}

	// Result cached under the run's trace id.
	res, ok, err := f.store.LatestResult(ctx, "analyst-1")
	if err != nil || !ok {
		t.Fatalf("LatestResult() = ok %v, err %v", ok, err)
	}
	if res.Risk.Band != model.RiskBandAmber {
		t.Errorf("cached band = %q, want AMBER", res.Risk.Band)
	}

	// History gained one entry with matching ids.
	history, err := f.store.RecentChecks(ctx, "analyst-1")
	if err != nil {
		t.Fatalf("RecentChecks() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
	if history[0].CustomerID != "cust-acme" || history[0].TraceID != "trace-1" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[0].RiskBand != model.RiskBandAmber {
		t.Errorf("history band = %q, want AMBER", history[0].RiskBand)
	}

	// Selection was persisted for next sign-in.
	sel, _ := f.store.LastSelectedCustomer(ctx, "analyst-1")
	if sel != "cust-acme" {
		t.Errorf("persisted selection = %q, want cust-acme", sel)
	}
}

func TestRun_step_progression_is_ordered(t *testing.T) {
	f := newFixture(t, nil)

	snapshots, cancel := f.controller.Subscribe()
	defer cancel()

	f.controller.SelectCustomer("cust-acme")
	f.controller.StartRun(context.Background())

	want := model.StepOrder()
	var observed []model.RunState
	for state := range snapshots {
		observed = append(observed, state)
		if state.Terminal() {
			break
		}
	}

	// The exact observable sequence: running with 0..5 completed steps,
	// then fetching_result carrying all six (the sixth step never shows a
	// running snapshot), then completed.
	if len(observed) != len(want)+2 {
		t.Fatalf("observed %d snapshots, want %d: %+v", len(observed), len(want)+2, observed)
	}
	for i := 0; i < len(want); i++ {
		state := observed[i]
		if state.Phase != model.RunPhaseRunning {
			t.Fatalf("snapshot %d phase = %q, want running", i, state.Phase)
		}
		if len(state.CompletedSteps) != i {
			t.Fatalf("snapshot %d has %d steps, want %d", i, len(state.CompletedSteps), i)
		}
		for j, step := range state.CompletedSteps {
			if step != want[j] {
				t.Fatalf("snapshot %d step[%d] = %q, want %q", i, j, step, want[j])
			}
		}
	}
	fetching := observed[len(want)]
	if fetching.Phase != model.RunPhaseFetchingResult {
		t.Fatalf("snapshot %d phase = %q, want fetching_result", len(want), fetching.Phase)
	}
	if len(fetching.CompletedSteps) != len(want) {
		t.Fatalf("fetching_result has %d steps, want %d", len(fetching.CompletedSteps), len(want))
	}
	for j, step := range fetching.CompletedSteps {
		if step != want[j] {
			t.Fatalf("fetching_result step[%d] = %q, want %q", j, step, want[j])
		}
	}
	last := observed[len(observed)-1]
	if last.Phase != model.RunPhaseCompleted {
		t.Errorf("final phase = %q, want completed", last.Phase)
	}
}

func TestStartRun_single_flight(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(d *Deps) {})
	f.checker.block = release

	ctx := context.Background()
	f.controller.SelectCustomer("cust-acme")
	f.controller.StartRun(ctx)
	waitForPhase(t, f.controller, model.RunPhaseFetchingResult)

	// Duplicate triggers while in flight are swallowed.
	f.controller.StartRun(ctx)
	f.controller.StartRun(ctx)

	close(release)
	waitForPhase(t, f.controller, model.RunPhaseCompleted)

	if got := f.checker.callCount(); got != 1 {
		t.Errorf("checker calls = %d, want 1", got)
	}
	if got := f.navigator.callCount(); got != 1 {
		t.Errorf("navigator calls = %d, want 1", got)
	}
}

func TestRun_navigation_fires_once_per_run(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.controller.SelectCustomer("cust-acme")
	f.controller.StartRun(ctx)
	waitForPhase(t, f.controller, model.RunPhaseCompleted)

	if got := f.navigator.callCount(); got != 1 {
		t.Fatalf("navigator calls after first run = %d, want 1", got)
	}
	if f.navigator.bands[0] != model.RiskBandAmber {
		t.Errorf("signalled band = %q, want AMBER", f.navigator.bands[0])
	}

	// A second run after reset gets its own single signal and a fresh trace.
	f.controller.ResetRun()
	f.controller.StartRun(ctx)
	waitForPhase(t, f.controller, model.RunPhaseCompleted)

	if got := f.navigator.callCount(); got != 2 {
		t.Errorf("navigator calls after second run = %d, want 2", got)
	}
	if f.navigator.traces[0] == f.navigator.traces[1] {
		t.Errorf("both runs signalled trace %q, want distinct ids", f.navigator.traces[0])
	}
}

func TestRun_check_failure(t *testing.T) {
	f := newFixture(t, nil)
	f.checker.outcome = checks.Outcome{Message: "risk check failed, please try again"}

	ctx := context.Background()
	f.controller.SelectCustomer("cust-acme")
	f.controller.StartRun(ctx)

	state := waitForPhase(t, f.controller, model.RunPhaseFailed)
	if state.Message != "risk check failed, please try again" {
		t.Errorf("Message = %q", state.Message)
	}

	// Failure leaves no cached result, no history entry, no navigation.
	if _, ok, _ := f.store.LatestResult(ctx, "analyst-1"); ok {
		t.Error("failed run must not cache a result")
	}
	if history, _ := f.store.RecentChecks(ctx, "analyst-1"); len(history) != 0 {
		t.Errorf("failed run must not append history, got %d entries", len(history))
	}
	if f.navigator.callCount() != 0 {
		t.Error("failed run must not signal navigation")
	}

	// No automatic retry: exactly one check call.
	if got := f.checker.callCount(); got != 1 {
		t.Errorf("checker calls = %d, want 1", got)
	}

	// An explicit restart works and is a fresh run.
	f.checker.outcome = amberResult("Acme Holdings Ltd")
	f.controller.StartRun(ctx)
	state = waitForPhase(t, f.controller, model.RunPhaseCompleted)
	if state.TraceID != "trace-2" {
		t.Errorf("retry TraceID = %q, want trace-2", state.TraceID)
	}
}

func TestRun_store_failure_fails_run(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Store = failingStore{d.Store}
	})

	f.controller.SelectCustomer("cust-acme")
	f.controller.StartRun(context.Background())

	state := waitForPhase(t, f.controller, model.RunPhaseFailed)
	if state.Message != storeFailureMessage {
		t.Errorf("Message = %q, want %q", state.Message, storeFailureMessage)
	}
	if f.navigator.callCount() != 0 {
		t.Error("a run that could not persist its result must not navigate")
	}
}

func TestRun_cancellation_abandons_without_transitions(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.StepInterval = time.Hour
	})

	ctx, cancel := context.WithCancel(context.Background())
	f.controller.SelectCustomer("cust-acme")
	f.controller.StartRun(ctx)

	if got := f.controller.Snapshot().Phase; got != model.RunPhaseRunning {
		t.Fatalf("phase = %q, want running", got)
	}

	cancel()

	// The goroutine abandons: no failed, no completed, no check call.
	time.Sleep(50 * time.Millisecond)
	if got := f.controller.Snapshot().Phase; got != model.RunPhaseRunning {
		t.Errorf("phase after cancel = %q, want running (abandoned in place)", got)
	}
	if f.checker.callCount() != 0 {
		t.Error("abandoned run must not call the checker")
	}

	// Reset recovers the controller for the next run.
	f.controller.ResetRun()
	if got := f.controller.Snapshot().Phase; got != model.RunPhaseIdle {
		t.Errorf("phase after reset = %q, want idle", got)
	}
}

func TestResetRun_mid_flight_discards_result(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, nil)
	f.checker.block = release

	ctx := context.Background()
	f.controller.SelectCustomer("cust-acme")
	f.controller.StartRun(ctx)
	waitForPhase(t, f.controller, model.RunPhaseFetchingResult)

	// Reset while the remote call is in flight, then let it finish.
	f.controller.ResetRun()
	close(release)
	time.Sleep(50 * time.Millisecond)

	// The abandoned run's success is fully discarded: no cached result, no
	// history entry, no navigation, and the controller stays idle.
	if _, ok, _ := f.store.LatestResult(ctx, "analyst-1"); ok {
		t.Error("abandoned run wrote the cached result")
	}
	if history, _ := f.store.RecentChecks(ctx, "analyst-1"); len(history) != 0 {
		t.Errorf("abandoned run appended %d history entries, want 0", len(history))
	}
	if f.navigator.callCount() != 0 {
		t.Error("abandoned run must not signal navigation")
	}
	if got := f.controller.Snapshot().Phase; got != model.RunPhaseIdle {
		t.Errorf("phase = %q, want idle", got)
	}
}

func TestResetRun_is_idempotent(t *testing.T) {
	f := newFixture(t, nil)

	f.controller.ResetRun()
	f.controller.ResetRun()

	state := f.controller.Snapshot()
	if state.Phase != model.RunPhaseIdle {
		t.Errorf("phase = %q, want idle", state.Phase)
	}
	if state.TraceID != "" {
		t.Errorf("TraceID = %q, want empty after reset", state.TraceID)
	}
}

func TestSelectCustomer_mid_run_affects_next_run_only(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, nil)
	f.checker.block = release

	ctx := context.Background()
	f.controller.SelectCustomer("cust-acme")
	f.controller.StartRun(ctx)
	waitForPhase(t, f.controller, model.RunPhaseFetchingResult)

	// Re-selecting while in flight does not disturb the current run.
	f.controller.SelectCustomer("cust-nimbus")
	close(release)
	waitForPhase(t, f.controller, model.RunPhaseCompleted)

	history, _ := f.store.RecentChecks(ctx, "analyst-1")
	if len(history) != 1 || history[0].CustomerID != "cust-acme" {
		t.Fatalf("first run history = %+v, want cust-acme", history)
	}

	// The next run targets the new selection.
	f.controller.ResetRun()
	f.controller.StartRun(ctx)
	waitForPhase(t, f.controller, model.RunPhaseCompleted)

	history, _ = f.store.RecentChecks(ctx, "analyst-1")
	if len(history) != 2 || history[0].CustomerID != "cust-nimbus" {
		t.Fatalf("second run history = %+v, want cust-nimbus first", history)
	}
}

func TestSessions_one_controller_per_subject(t *testing.T) {
	memStore := store.NewMemoryStore(10)
	sessions := NewSessions(Deps{
		Directory: newFakeDirectory(model.Customer{ID: "cust-acme", Name: "Acme Holdings Ltd"}),
		Store:     memStore,
		Checks:    &fakeChecker{outcome: amberResult("Acme Holdings Ltd")},
		Navigator: &fakeNavigator{},
		Telemetry: observability.NewEmitter(zap.NewNop(), nil),
		Metrics:   observability.InitMetrics(prometheus.NewRegistry()),
		Logger:    zap.NewNop(),
	})

	a := sessions.For("analyst-1")
	b := sessions.For("analyst-2")
	if a == b {
		t.Fatal("different subjects must get different controllers")
	}
	if sessions.For("analyst-1") != a {
		t.Error("same subject must get the same controller back")
	}
	if sessions.Len() != 2 {
		t.Errorf("Len() = %d, want 2", sessions.Len())
	}

	// State is isolated between subjects.
	a.SelectCustomer("cust-acme")
	if got := b.SelectedCustomer(); got != "" {
		t.Errorf("subject b selection = %q, want empty", got)
	}
}
