package model

// Run phase constants. Exactly one phase is held at any instant and
// transitions are monotonic within a run: idle -> running ->
// fetching_result -> completed|failed. Only an explicit reset returns a
// terminal phase to idle.
const (
	RunPhaseIdle           = "idle"
	RunPhaseRunning        = "running"
	RunPhaseFetchingResult = "fetching_result"
	RunPhaseCompleted      = "completed"
	RunPhaseFailed         = "failed"
)

// StepID identifies one stage of the simulated check progression.
type StepID string

// The six check stages, in canonical order.
const (
	StepClassification      StepID = "classification"
	StepEntityResolution    StepID = "entity_resolution"
	StepTransactionInsights StepID = "transaction_insights"
	StepRegistryLookup      StepID = "registry_lookup"
	StepRuleEvaluation      StepID = "rule_evaluation"
	StepSummaryNotes        StepID = "summary_notes"
)

// stepOrder is the canonical step sequence. The simulation always advances
// through it one step at a time, never skipping, never reordering.
var stepOrder = []StepID{
	StepClassification,
	StepEntityResolution,
	StepTransactionInsights,
	StepRegistryLookup,
	StepRuleEvaluation,
	StepSummaryNotes,
}

// StepOrder returns a copy of the canonical step sequence.
func StepOrder() []StepID {
	out := make([]StepID, len(stepOrder))
	copy(out, stepOrder)
	return out
}

// StepName returns a human-readable name for a step, for progress display.
func StepName(id StepID) string {
	switch id {
	case StepClassification:
		return "Business classification"
	case StepEntityResolution:
		return "Entity and party resolution"
	case StepTransactionInsights:
		return "Transaction insight aggregation"
	case StepRegistryLookup:
		return "Registry lookup"
	case StepRuleEvaluation:
		return "Risk rule evaluation"
	case StepSummaryNotes:
		return "Summary note generation"
	default:
		return string(id)
	}
}

// RiskBand is the three-valued severity classification returned by a check.
type RiskBand string

// Risk band values.
const (
	RiskBandRed   RiskBand = "RED"
	RiskBandAmber RiskBand = "AMBER"
	RiskBandGreen RiskBand = "GREEN"
)

// Valid reports whether b is one of the three known bands.
func (b RiskBand) Valid() bool {
	return b == RiskBandRed || b == RiskBandAmber || b == RiskBandGreen
}

// RunState is the workflow state machine value published to observers.
// The Phase discriminates which of the remaining fields are meaningful:
// CompletedSteps for running/fetching_result, TraceID and RiskBand for
// completed, Message for failed.
type RunState struct {
	Phase          string   `json:"phase"`
	CompletedSteps []StepID `json:"completed_steps,omitempty"`
	TraceID        string   `json:"trace_id,omitempty"`
	RiskBand       RiskBand `json:"risk_band,omitempty"`
	Message        string   `json:"message,omitempty"`
}

// IdleRunState returns the initial state.
func IdleRunState() RunState {
	return RunState{Phase: RunPhaseIdle}
}

// InFlight reports whether a run is currently progressing, i.e. the phase
// is running or fetching_result.
func (s RunState) InFlight() bool {
	return s.Phase == RunPhaseRunning || s.Phase == RunPhaseFetchingResult
}

// Terminal reports whether the run has reached completed or failed.
func (s RunState) Terminal() bool {
	return s.Phase == RunPhaseCompleted || s.Phase == RunPhaseFailed
}

// Clone returns a deep copy, so published snapshots cannot alias the
// controller's internal step slice.
func (s RunState) Clone() RunState {
	out := s
	if s.CompletedSteps != nil {
		out.CompletedSteps = make([]StepID, len(s.CompletedSteps))
		copy(out.CompletedSteps, s.CompletedSteps)
	}
	return out
}
