package model

import "testing"

func TestStepOrder_is_stable_copy(t *testing.T) {
	order := StepOrder()
	if len(order) != 6 {
		t.Fatalf("len(StepOrder()) = %d, want 6", len(order))
	}
	if order[0] != StepClassification || order[5] != StepSummaryNotes {
		t.Errorf("unexpected step order: %v", order)
	}

	// Mutating the returned slice must not affect later calls.
	order[0] = StepID("tampered")
	if fresh := StepOrder(); fresh[0] != StepClassification {
		t.Error("StepOrder() returned aliased backing array")
	}
}

func TestStepName_known_and_unknown(t *testing.T) {
	if got := StepName(StepRegistryLookup); got != "Registry lookup" {
		t.Errorf("StepName(registry_lookup) = %q", got)
	}
	if got := StepName(StepID("mystery")); got != "mystery" {
		t.Errorf("StepName(mystery) = %q, want raw id fallback", got)
	}
}

func TestRiskBand_Valid(t *testing.T) {
	for _, b := range []RiskBand{RiskBandRed, RiskBandAmber, RiskBandGreen} {
		if !b.Valid() {
			t.Errorf("%s should be valid", b)
		}
	}
	for _, b := range []RiskBand{"", "PURPLE", "red"} {
		if b.Valid() {
			t.Errorf("%q should not be valid", b)
		}
	}
}

func TestRunState_phase_predicates(t *testing.T) {
	tests := []struct {
		phase    string
		inFlight bool
		terminal bool
	}{
		{RunPhaseIdle, false, false},
		{RunPhaseRunning, true, false},
		{RunPhaseFetchingResult, true, false},
		{RunPhaseCompleted, false, true},
		{RunPhaseFailed, false, true},
	}
	for _, tt := range tests {
		s := RunState{Phase: tt.phase}
		if s.InFlight() != tt.inFlight {
			t.Errorf("InFlight(%s) = %v", tt.phase, s.InFlight())
		}
		if s.Terminal() != tt.terminal {
			t.Errorf("Terminal(%s) = %v", tt.phase, s.Terminal())
		}
	}
}

func TestRunState_Clone_deep_copies_steps(t *testing.T) {
	orig := RunState{
		Phase:          RunPhaseRunning,
		CompletedSteps: []StepID{StepClassification, StepEntityResolution},
	}
	clone := orig.Clone()
	clone.CompletedSteps[0] = StepID("tampered")

	if orig.CompletedSteps[0] != StepClassification {
		t.Error("Clone() aliased the CompletedSteps slice")
	}
}
