package store

import (
	"context"
	"sync"

	"github.com/korubo/kybdash/model"
)

// MemoryStore is an in-memory Store for local development and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	historyLimit int
	selected     map[string]string                          // key: subject ID
	history      map[string][]model.RecentCheckRecord       // key: subject ID
	results      map[string]model.CheckResult               // key: subject ID
	overrides    map[string]map[string]model.RiskBandOverride // subject ID -> customer ID
}

// NewMemoryStore creates a new in-memory store with the given history cap.
func NewMemoryStore(historyLimit int) *MemoryStore {
	if historyLimit < 1 {
		historyLimit = 10
	}
	return &MemoryStore{
		historyLimit: historyLimit,
		selected:     make(map[string]string),
		history:      make(map[string][]model.RecentCheckRecord),
		results:      make(map[string]model.CheckResult),
		overrides:    make(map[string]map[string]model.RiskBandOverride),
	}
}

// SaveSelectedCustomer durably records the last-run-for customer.
func (s *MemoryStore) SaveSelectedCustomer(_ context.Context, subjectID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[subjectID] = customerID
	return nil
}

// LastSelectedCustomer returns the saved customer id, or "".
func (s *MemoryStore) LastSelectedCustomer(_ context.Context, subjectID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected[subjectID], nil
}

// SaveRecentCheck prepends a record and trims the history to the cap.
func (s *MemoryStore) SaveRecentCheck(_ context.Context, subjectID string, rec model.RecentCheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append([]model.RecentCheckRecord{rec}, s.history[subjectID]...)
	if len(history) > s.historyLimit {
		history = history[:s.historyLimit]
	}
	s.history[subjectID] = history
	return nil
}

// RecentChecks returns a copy of the history, most-recent-first.
func (s *MemoryStore) RecentChecks(_ context.Context, subjectID string) ([]model.RecentCheckRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.history[subjectID]
	out := make([]model.RecentCheckRecord, len(history))
	copy(out, history)
	return out, nil
}

// SaveResult atomically replaces the cached result.
func (s *MemoryStore) SaveResult(_ context.Context, subjectID string, res model.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[subjectID] = res
	return nil
}

// LatestResult returns the cached result, if any.
func (s *MemoryStore) LatestResult(_ context.Context, subjectID string) (model.CheckResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[subjectID]
	return res, ok, nil
}

// SaveOverride upserts an override keyed by customer.
func (s *MemoryStore) SaveOverride(_ context.Context, subjectID string, o model.RiskBandOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCustomer := s.overrides[subjectID]
	if byCustomer == nil {
		byCustomer = make(map[string]model.RiskBandOverride)
		s.overrides[subjectID] = byCustomer
	}
	byCustomer[o.CustomerID] = o
	return nil
}

// OverrideFor returns the override for a customer, if any.
func (s *MemoryStore) OverrideFor(_ context.Context, subjectID, customerID string) (model.RiskBandOverride, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[subjectID][customerID]
	return o, ok, nil
}
