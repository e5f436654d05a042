// registry/registry.go
package registry

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Module is one published generation of a source unit: its descriptors plus
// the source identity they were built from.
type Module struct {
	Name        string
	SourcePath  string
	Fingerprint string
	Generation  uint64
	Functions   map[string]*Descriptor
}

// Snapshot is an immutable view of every live module. Readers hold a
// snapshot for the duration of one request and never observe later writes.
type Snapshot struct {
	Modules map[string]*Module
}

// Lookup resolves (module, function) in this snapshot.
func (s *Snapshot) Lookup(module, function string) (*Descriptor, bool) {
	m, ok := s.Modules[module]
	if !ok {
		return nil, false
	}
	d, ok := m.Functions[function]
	return d, ok
}

// ModuleNames returns the live module names, sorted.
func (s *Snapshot) ModuleNames() []string {
	out := make([]string, 0, len(s.Modules))
	for name := range s.Modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FunctionNames returns the function names of one module, sorted.
func (s *Snapshot) FunctionNames(module string) []string {
	m, ok := s.Modules[module]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m.Functions))
	for name := range m.Functions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EndpointCount totals descriptors across all modules.
func (s *Snapshot) EndpointCount() int {
	n := 0
	for _, m := range s.Modules {
		n += len(m.Functions)
	}
	return n
}

// Registry holds the live endpoint mapping. Writes build a complete new
// snapshot off to the side and install it with one atomic store, so a
// concurrent reader sees either the whole old state or the whole new state,
// never a mix. The writer mutex only serializes publishers; readers never
// take it.
type Registry struct {
	mu   sync.Mutex
	live atomic.Pointer[Snapshot]
}

func New() *Registry {
	r := &Registry{}
	r.live.Store(&Snapshot{Modules: map[string]*Module{}})
	return r
}

// Publish atomically replaces every descriptor owned by the module. The
// generation increments from the previously published generation of the same
// module, or starts at 1. Descriptor ownership is enforced: a publish of
// module A can never touch module B's entry.
func (r *Registry) Publish(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.live.Load()
	next := &Snapshot{Modules: make(map[string]*Module, len(old.Modules)+1)}
	for name, mod := range old.Modules {
		next.Modules[name] = mod
	}
	gen := uint64(1)
	if prev, ok := old.Modules[m.Name]; ok {
		gen = prev.Generation + 1
	}
	m.Generation = gen
	next.Modules[m.Name] = m
	r.live.Store(next)
}

// RemoveModule drops a module and all its descriptors in one step. Removing
// an unknown module is a no-op.
func (r *Registry) RemoveModule(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.live.Load()
	if _, ok := old.Modules[name]; !ok {
		return
	}
	next := &Snapshot{Modules: make(map[string]*Module, len(old.Modules))}
	for n, mod := range old.Modules {
		if n != name {
			next.Modules[n] = mod
		}
	}
	r.live.Store(next)
}

// Lookup resolves against the current snapshot.
func (r *Registry) Lookup(module, function string) (*Descriptor, bool) {
	return r.live.Load().Lookup(module, function)
}

// Module returns the live record for one module.
func (r *Registry) Module(name string) (*Module, bool) {
	m, ok := r.live.Load().Modules[name]
	return m, ok
}

// Snapshot returns the current immutable view.
func (r *Registry) Snapshot() *Snapshot {
	return r.live.Load()
}
