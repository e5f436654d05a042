// handler/catalog.go
package handler

import (
	"context"
	"sync"
)

// Func is the signature for compiled-in endpoint handlers. Arguments arrive
// fully typed and validated; the return value is wrapped into the success
// envelope by the dispatcher.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Entry is one catalog registration: the callable plus its declared
// capabilities.
type Entry struct {
	Name  string
	Fn    Func
	Async bool // true when the handler is safe to schedule off the request path
}

// Option configures a registration.
type Option func(*Entry)

// WithAsync marks the handler as async-capable. A module definition may only
// declare a function async when its catalog handler carries this capability.
func WithAsync() Option {
	return func(e *Entry) { e.Async = true }
}

// Catalog maps symbolic handler names, as referenced by module definition
// files, to compiled-in callables. Registration happens at init time from
// handler packages; lookups happen on every module load.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewCatalog() *Catalog {
	return &Catalog{entries: map[string]Entry{}}
}

// Register makes a handler resolvable under a name referenced by module
// definition files. Re-registering a name replaces the earlier entry.
func (c *Catalog) Register(name string, fn Func, opts ...Option) {
	e := Entry{Name: name, Fn: fn}
	for _, o := range opts {
		o(&e)
	}
	c.mu.Lock()
	c.entries[name] = e
	c.mu.Unlock()
}

// Lookup retrieves a registered handler by name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	return e, ok
}

// Names lists the registered handler names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for n := range c.entries {
		out = append(out, n)
	}
	return out
}

// Default is the process-wide catalog that handler packages register into
// from init.
var Default = NewCatalog()

// Register adds to the default catalog.
func Register(name string, fn Func, opts ...Option) { Default.Register(name, fn, opts...) }

// Lookup reads from the default catalog.
func Lookup(name string) (Entry, bool) { return Default.Lookup(name) }
