package watch

import (
	"sync"
	"time"
)

// ComponentHealth is the health of one component, as rendered by the
// healthz endpoint.
type ComponentHealth struct {
	Healthy     bool      `json:"healthy"`
	LastCheck   time.Time `json:"last_check"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	Message     string    `json:"message,omitempty"`
}

// Health tracks the health of the moving parts of the daemon.
type Health struct {
	mu         sync.RWMutex
	components map[string]*ComponentHealth
}

// NewHealth creates a new health tracker.
func NewHealth() *Health {
	return &Health{
		components: make(map[string]*ComponentHealth),
	}
}

// SetHealthy marks a component as healthy.
func (h *Health) SetHealthy(component, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	c := h.component(component)
	c.Healthy = true
	c.LastCheck = now
	c.LastSuccess = now
	c.Message = message
}

// SetUnhealthy marks a component as unhealthy.
func (h *Health) SetUnhealthy(component string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.component(component)
	c.Healthy = false
	c.LastCheck = time.Now()
	c.Message = err.Error()
}

func (h *Health) component(name string) *ComponentHealth {
	if _, ok := h.components[name]; !ok {
		h.components[name] = &ComponentHealth{}
	}
	return h.components[name]
}

// Snapshot returns a copy of every component state.
func (h *Health) Snapshot() map[string]ComponentHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]ComponentHealth, len(h.components))
	for name, c := range h.components {
		out[name] = *c
	}
	return out
}

// Healthy reports whether every tracked component is healthy.
func (h *Health) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.components {
		if !c.Healthy {
			return false
		}
	}
	return true
}
