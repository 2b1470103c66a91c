package runner

import "sync"

// Sessions hands out one Controller per dashboard user, created lazily on
// first use and kept for the life of the process.
type Sessions struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	deps        Deps
}

// NewSessions creates a session registry sharing the given dependencies
// across all controllers.
func NewSessions(deps Deps) *Sessions {
	return &Sessions{
		controllers: make(map[string]*Controller),
		deps:        deps,
	}
}

// For returns the controller for a subject, creating it if needed.
func (s *Sessions) For(subjectID string) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.controllers[subjectID]
	if !ok {
		c = NewController(subjectID, s.deps)
		s.controllers[subjectID] = c
	}
	return c
}

// Len returns the number of live controllers.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.controllers)
}
