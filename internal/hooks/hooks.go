// Package hooks implements the two-phase startup observer registries.
// Hooks registered for the config-loaded phase fire once the merged
// configuration is available and before any asset fetch begins; hooks for
// the ready phase fire only after all materialization is complete.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/bootrt/internal/ctxlog"
)

// Phase identifies one of the two defined barrier points.
type Phase int

const (
	// ConfigLoaded fires after configuration resolution, before fetch.
	ConfigLoaded Phase = iota
	// RuntimeReady fires after all materialization is complete.
	RuntimeReady
)

func (p Phase) String() string {
	switch p {
	case ConfigLoaded:
		return "config-loaded"
	case RuntimeReady:
		return "runtime-ready"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Hook is one startup observer.
type Hook func(ctx context.Context) error

type registered struct {
	name string
	fn   Hook
}

// Registry holds the ordered hook lists for both phases. Hooks run in
// registration order; a hook error aborts the phase and with it the boot.
type Registry struct {
	mu     sync.Mutex
	phases map[Phase][]registered
	fired  map[Phase]bool
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{
		phases: make(map[Phase][]registered),
		fired:  make(map[Phase]bool),
	}
}

// Register appends a named hook to a phase. Registering after the phase
// has fired is an error; the barrier points are fixed.
func (r *Registry) Register(phase Phase, name string, fn Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fired[phase] {
		return fmt.Errorf("hook %q registered after %s phase fired", name, phase)
	}
	r.phases[phase] = append(r.phases[phase], registered{name: name, fn: fn})
	return nil
}

// Fire runs all hooks of a phase in registration order. The first hook
// error stops the run and is returned.
func (r *Registry) Fire(ctx context.Context, phase Phase) error {
	r.mu.Lock()
	hooks := r.phases[phase]
	r.fired[phase] = true
	r.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	for _, h := range hooks {
		logger.Debug("Running startup hook.", "phase", phase.String(), "hook", h.name)
		if err := h.fn(ctx); err != nil {
			return fmt.Errorf("%s hook %q: %w", phase, h.name, err)
		}
	}
	return nil
}

// Count returns the number of hooks registered for a phase.
func (r *Registry) Count(phase Phase) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.phases[phase])
}
