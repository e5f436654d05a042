// loader/loader.go
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/funcgate/funcgate-core/pkg/config"
	"github.com/funcgate/funcgate-core/pkg/handler"
	"github.com/funcgate/funcgate-core/pkg/middleware/logger"
	"github.com/funcgate/funcgate-core/pkg/middleware/metrics"
	"github.com/funcgate/funcgate-core/pkg/registry"
)

// Per-module reload outcomes as reported by ReloadAll.
const (
	OutcomeReloaded  = "reloaded"
	OutcomeUnchanged = "unchanged"
	OutcomeErrored   = "errored"
	OutcomeRemoved   = "removed"
)

// ModuleOutcome is one module's result inside a reload report.
type ModuleOutcome struct {
	Module  string `json:"module"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
	Added   int    `json:"endpoints_added"`
	Removed int    `json:"endpoints_removed"`
}

// Report aggregates a full reload pass.
type Report struct {
	Modules          []ModuleOutcome `json:"modules"`
	EndpointsAdded   int             `json:"endpoints_added"`
	EndpointsRemoved int             `json:"endpoints_removed"`
}

// Loader discovers module definition files in one directory, builds
// descriptor sets against the handler catalog and publishes them into the
// registry. Reloads are serialized by the loader mutex; the registry swap is
// the only point where request dispatch observes a change, so a slow or
// failing load never blocks readers.
type Loader struct {
	dir     string
	reg     *registry.Registry
	catalog *handler.Catalog
	cfg     *config.Holder
	events  *logger.Events

	mu    sync.Mutex
	units map[string]unitState // by module name
}

type unitState struct {
	path        string
	fingerprint string
}

func New(cfg *config.Holder, reg *registry.Registry, cat *handler.Catalog, events *logger.Events) *Loader {
	return &Loader{
		dir:     cfg.Current().ModulesDir,
		reg:     reg,
		catalog: cat,
		cfg:     cfg,
		events:  events,
		units:   map[string]unitState{},
	}
}

// Dir returns the watched modules directory.
func (l *Loader) Dir() string { return l.dir }

// LoadAll loads every discoverable unit at startup. Individual failures are
// recorded and skipped; they never abort the pass.
func (l *Loader) LoadAll() Report {
	return l.ReloadAll()
}

// ReloadAll synchronously runs the per-module reload routine for every unit
// under the modules directory, unloads modules whose file disappeared, and
// returns the per-module report.
func (l *Loader) ReloadAll() Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rep Report
	present := map[string]bool{}
	for _, path := range l.discover() {
		name := moduleName(path)
		present[name] = true
		out := l.reloadLocked(name, path)
		rep.Modules = append(rep.Modules, out)
		rep.EndpointsAdded += out.Added
		rep.EndpointsRemoved += out.Removed
	}

	// Drop modules whose source unit was deleted since the last pass.
	for name := range l.units {
		if present[name] {
			continue
		}
		out := l.unloadLocked(name)
		rep.Modules = append(rep.Modules, out)
		rep.EndpointsRemoved += out.Removed
	}

	sort.Slice(rep.Modules, func(i, j int) bool { return rep.Modules[i].Module < rep.Modules[j].Module })
	metrics.SetLiveEndpoints(l.reg.Snapshot().EndpointCount())
	return rep
}

// ReloadModule runs the reload routine for the unit at path, in isolation
// from every other module.
func (l *Loader) ReloadModule(path string) ModuleOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.reloadLocked(moduleName(path), path)
	metrics.SetLiveEndpoints(l.reg.Snapshot().EndpointCount())
	return out
}

// UnloadModule removes the module owning the unit at path from the registry.
func (l *Loader) UnloadModule(path string) ModuleOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.unloadLocked(moduleName(path))
	metrics.SetLiveEndpoints(l.reg.Snapshot().EndpointCount())
	return out
}

// ReloadConfig re-reads the configuration collaborator and atomically swaps
// the in-memory snapshot. On failure the previous snapshot stays live.
func (l *Loader) ReloadConfig() (*config.Snapshot, error) {
	cfg, err := l.cfg.Reload()
	if err != nil {
		l.events.System("CONFIG_RELOAD_FAILED", zap.Error(err))
		return nil, err
	}
	l.events.System("CONFIG_RELOADED",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Bool("hotReload", cfg.HotReload),
	)
	return cfg, nil
}

// ConfigPath exposes the config file location for the watch loop.
func (l *Loader) ConfigPath() string { return l.cfg.Path() }

func (l *Loader) discover() []string {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.toml"))
	if err != nil {
		return nil
	}
	sort.Strings(paths)
	out := paths[:0]
	for _, p := range paths {
		if !strings.HasPrefix(filepath.Base(p), "_") {
			out = append(out, p)
		}
	}
	return out
}

func (l *Loader) reloadLocked(name, path string) ModuleOutcome {
	out := ModuleOutcome{Module: name}

	// "api" would shadow the admin routes.
	if name == "api" {
		return l.failed(out, fmt.Errorf("module name %q is reserved", name))
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return l.failed(out, fmt.Errorf("read %s: %w", path, err))
	}

	sum := sha256.Sum256(src)
	fp := hex.EncodeToString(sum[:])
	if prev, ok := l.units[name]; ok && prev.fingerprint == fp {
		out.Outcome = OutcomeUnchanged
		metrics.ObserveReload(OutcomeUnchanged)
		return out
	}

	descriptors, err := parseUnit(name, src, l.catalog)
	if err != nil {
		return l.failed(out, err)
	}

	out.Added, out.Removed = l.diff(name, descriptors)
	l.reg.Publish(&registry.Module{
		Name:        name,
		SourcePath:  path,
		Fingerprint: fp,
		Functions:   descriptors,
	})
	l.units[name] = unitState{path: path, fingerprint: fp}

	out.Outcome = OutcomeReloaded
	metrics.ObserveReload(OutcomeReloaded)
	l.events.ReloadOutcome(name, OutcomeReloaded, out.Added, out.Removed, nil)
	mod, _ := l.reg.Module(name)
	l.events.Module("MODULE_PUBLISHED", name,
		zap.Uint64("generation", mod.Generation),
		zap.Int("functions", len(descriptors)),
	)
	return out
}

func (l *Loader) unloadLocked(name string) ModuleOutcome {
	out := ModuleOutcome{Module: name, Outcome: OutcomeRemoved}
	if mod, ok := l.reg.Module(name); ok {
		out.Removed = len(mod.Functions)
	}
	l.reg.RemoveModule(name)
	delete(l.units, name)
	metrics.ObserveReload(OutcomeRemoved)
	l.events.Module("MODULE_UNLOADED", name, zap.Int("endpointsRemoved", out.Removed))
	return out
}

// failed records a load error without touching the registry: the previously
// published generation of this module stays fully servable.
func (l *Loader) failed(out ModuleOutcome, err error) ModuleOutcome {
	out.Outcome = OutcomeErrored
	out.Error = err.Error()
	metrics.ObserveReload(OutcomeErrored)
	l.events.ReloadOutcome(out.Module, OutcomeErrored, 0, 0, err)
	return out
}

// diff computes endpoint add/remove counts between the live generation and
// the candidate descriptor set.
func (l *Loader) diff(name string, next map[string]*registry.Descriptor) (added, removed int) {
	var prev map[string]*registry.Descriptor
	if mod, ok := l.reg.Module(name); ok {
		prev = mod.Functions
	}
	for fn := range next {
		if _, ok := prev[fn]; !ok {
			added++
		}
	}
	for fn := range prev {
		if _, ok := next[fn]; !ok {
			removed++
		}
	}
	return added, removed
}

func moduleName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
