// Package state holds process-wide mutable controller state shared between
// the control loop and the HTTP API.
package state

import (
	"sync"

	"github.com/ovanier/heatctl-go/internal/domain"
)

// Setpoints guards the shared setpoint values. The control loop reads them
// every cycle while the HTTP API may update them concurrently.
type Setpoints struct {
	mu sync.RWMutex
	sp domain.Setpoints
}

// NewSetpoints creates the shared setpoint state with initial values from
// the config file.
func NewSetpoints(sp domain.Setpoints) *Setpoints {
	return &Setpoints{sp: sp}
}

// Get returns the current setpoints.
func (s *Setpoints) Get() domain.Setpoints {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sp
}

// Set replaces the setpoints.
func (s *Setpoints) Set(sp domain.Setpoints) {
	s.mu.Lock()
	s.sp = sp
	s.mu.Unlock()
}
