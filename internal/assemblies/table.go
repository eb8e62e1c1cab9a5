// Package assemblies implements the managed loader's assembly table:
// eagerly registered assemblies, culture-keyed satellite resources, debug
// symbols, and lazily declared assemblies deferred to host-driven load.
package assemblies

import (
	"fmt"
	"sort"
	"sync"
)

// Entry is one registered assembly payload.
type Entry struct {
	Name    string
	Culture string
	Data    []byte
}

// Export is an opaque handle to a managed export, resolved by name once
// the runtime is up.
type Export struct {
	Assembly string
	Name     string
}

// Table is the per-runtime assembly registry. Registration happens only
// during materialization; lookups are safe at any point after.
type Table struct {
	mu         sync.RWMutex
	assemblies map[string]*Entry
	satellites map[string]map[string]*Entry // culture -> name -> entry
	pdbs       map[string]*Entry
	lazy       map[string]string // name -> declared hash, fetched on demand
}

// New creates an empty assembly table.
func New() *Table {
	return &Table{
		assemblies: make(map[string]*Entry),
		satellites: make(map[string]map[string]*Entry),
		pdbs:       make(map[string]*Entry),
		lazy:       make(map[string]string),
	}
}

// Register installs an eager assembly. Duplicate names are an error; an
// assembly is materialized exactly once.
func (t *Table) Register(name string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.assemblies[name]; exists {
		return fmt.Errorf("assembly %q already registered", name)
	}
	t.assemblies[name] = &Entry{Name: name, Data: data}
	return nil
}

// RegisterSatellite installs a satellite resource assembly keyed by name
// and culture.
func (t *Table) RegisterSatellite(culture, name string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	byName := t.satellites[culture]
	if byName == nil {
		byName = make(map[string]*Entry)
		t.satellites[culture] = byName
	}
	if _, exists := byName[name]; exists {
		return fmt.Errorf("satellite %q for culture %q already registered", name, culture)
	}
	byName[name] = &Entry{Name: name, Culture: culture, Data: data}
	return nil
}

// RegisterPdb installs a debug symbol payload for an assembly.
func (t *Table) RegisterPdb(name string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.pdbs[name]; exists {
		return fmt.Errorf("pdb %q already registered", name)
	}
	t.pdbs[name] = &Entry{Name: name, Data: data}
	return nil
}

// DeclareLazy records an assembly available for deferred host-driven load.
func (t *Table) DeclareLazy(name, hash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lazy[name] = hash
}

// Has reports whether an eager assembly is registered.
func (t *Table) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.assemblies[name]
	return ok
}

// HasPdb reports whether a debug symbol payload is registered.
func (t *Table) HasPdb(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.pdbs[name]
	return ok
}

// Satellite returns a satellite resource entry by culture and name.
func (t *Table) Satellite(culture, name string) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.satellites[culture][name]
	return e, ok
}

// LazyHash returns the declared hash of a lazy assembly.
func (t *Table) LazyHash(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.lazy[name]
	return h, ok
}

// Export resolves an export handle by assembly and symbol name. The
// assembly must be registered.
func (t *Table) Export(assembly, name string) (Export, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.assemblies[assembly]; !ok {
		return Export{}, fmt.Errorf("assembly %q not registered", assembly)
	}
	return Export{Assembly: assembly, Name: name}, nil
}

// Names returns registered eager assembly names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.assemblies))
	for n := range t.assemblies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot exports the full table state for snapshot serialization.
func (t *Table) Snapshot() (assemblies, pdbs []*Entry, satellites []*Entry, lazy map[string]string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.assemblies {
		assemblies = append(assemblies, cloneEntry(e))
	}
	for _, e := range t.pdbs {
		pdbs = append(pdbs, cloneEntry(e))
	}
	for _, byName := range t.satellites {
		for _, e := range byName {
			satellites = append(satellites, cloneEntry(e))
		}
	}
	lazy = make(map[string]string, len(t.lazy))
	for k, v := range t.lazy {
		lazy[k] = v
	}
	return assemblies, pdbs, satellites, lazy
}

// Restore replaces the table state from a snapshot.
func (t *Table) Restore(assemblies, pdbs, satellites []*Entry, lazy map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assemblies = make(map[string]*Entry, len(assemblies))
	for _, e := range assemblies {
		t.assemblies[e.Name] = cloneEntry(e)
	}
	t.pdbs = make(map[string]*Entry, len(pdbs))
	for _, e := range pdbs {
		t.pdbs[e.Name] = cloneEntry(e)
	}
	t.satellites = make(map[string]map[string]*Entry)
	for _, e := range satellites {
		byName := t.satellites[e.Culture]
		if byName == nil {
			byName = make(map[string]*Entry)
			t.satellites[e.Culture] = byName
		}
		byName[e.Name] = cloneEntry(e)
	}
	t.lazy = make(map[string]string, len(lazy))
	for k, v := range lazy {
		t.lazy[k] = v
	}
}

func cloneEntry(e *Entry) *Entry {
	data := make([]byte, len(e.Data))
	copy(data, e.Data)
	return &Entry{Name: e.Name, Culture: e.Culture, Data: data}
}
