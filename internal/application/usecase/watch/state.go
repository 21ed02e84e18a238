package watch

import (
	"sync"

	"tickalert/internal/application/port"
)

// State holds the last-known tick per security id. Entries are never
// deleted; the map lives as long as the process. Guarded so a future
// concurrent handler stays correct.
type State struct {
	mu     sync.Mutex
	latest map[string]port.Tick
}

func NewState() *State {
	return &State{latest: make(map[string]port.Tick)}
}

// Apply records t and reports whether the price changed from the previous
// observation for that security.
func (s *State) Apply(t port.Tick) bool {
	if t.SecurityID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.latest[t.SecurityID]
	s.latest[t.SecurityID] = t
	return !seen || prev.PriceStr != t.PriceStr
}

// Latest returns the last tick recorded for id.
func (s *State) Latest(id string) (port.Tick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.latest[id]
	return t, ok
}
