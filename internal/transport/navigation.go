package transport

import (
	"sync"
	"time"

	"github.com/korubo/kybdash/model"
)

// CompletionSignal tells the client to move from the progress view to the
// result view. One signal is produced per completed run and consumed at
// most once.
type CompletionSignal struct {
	CustomerID string         `json:"customer_id"`
	TraceID    string         `json:"trace_id"`
	RiskBand   model.RiskBand `json:"risk_band"`
	At         time.Time      `json:"at"`
}

// NavigationSink collects per-subject completion signals from the run
// controller. The controller guarantees at most one RunCompleted per run;
// the sink guarantees each signal is handed out at most once.
type NavigationSink struct {
	mu      sync.Mutex
	pending map[string]CompletionSignal
}

// NewNavigationSink creates an empty sink.
func NewNavigationSink() *NavigationSink {
	return &NavigationSink{pending: make(map[string]CompletionSignal)}
}

// RunCompleted records the completion signal for a subject. A signal that
// was never consumed is replaced; the client only ever needs the latest.
func (n *NavigationSink) RunCompleted(subjectID, customerID, traceID string, band model.RiskBand) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending[subjectID] = CompletionSignal{
		CustomerID: customerID,
		TraceID:    traceID,
		RiskBand:   band,
		At:         time.Now().UTC(),
	}
}

// Consume removes and returns the pending signal for a subject, if any.
func (n *NavigationSink) Consume(subjectID string) (CompletionSignal, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	sig, ok := n.pending[subjectID]
	if ok {
		delete(n.pending, subjectID)
	}
	return sig, ok
}
