// core/dispatcher.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	chi "github.com/go-chi/chi/v5"

	"github.com/funcgate/funcgate-core/pkg/api"
	"github.com/funcgate/funcgate-core/pkg/binder"
	"github.com/funcgate/funcgate-core/pkg/config"
	"github.com/funcgate/funcgate-core/pkg/loader"
	"github.com/funcgate/funcgate-core/pkg/middleware/auth"
	"github.com/funcgate/funcgate-core/pkg/middleware/logger"
	"github.com/funcgate/funcgate-core/pkg/registry"
)

const Version = "1.0.0"

// Dispatcher is the top-level request handler: it authorizes the caller,
// resolves the live descriptor, binds parameters, invokes the handler and
// writes the uniform envelope.
type Dispatcher struct {
	reg    *registry.Registry
	gate   *auth.Gate
	loader *loader.Loader
	cfg    *config.Holder
	events *logger.Events
	sched  *Scheduler
}

func NewDispatcher(
	cfg *config.Holder,
	reg *registry.Registry,
	gate *auth.Gate,
	ld *loader.Loader,
	events *logger.Events,
	sched *Scheduler,
) *Dispatcher {
	return &Dispatcher{reg: reg, gate: gate, loader: ld, cfg: cfg, events: events, sched: sched}
}

// postPayload is the fixed POST request shape: a top-level token plus the
// nested parameter object.
type postPayload struct {
	Token string         `json:"token"`
	Body  map[string]any `json:"body"`
}

// extract pulls the caller token and raw parameter bag from the request.
// GET: token from the reserved query key, bag from the remaining query
// parameters. POST: token and bag from the JSON body; an absent or
// unparsable body yields an empty token, which the auth gate reports as
// missing.
func extract(r *http.Request) (token string, query map[string]string, body map[string]any) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		token = q.Get(auth.TokenKey)
		query = queryBag(q)
		return token, query, nil
	}
	raw, _ := io.ReadAll(r.Body)
	if len(raw) == 0 {
		return "", nil, map[string]any{}
	}
	var p postPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, map[string]any{}
	}
	if p.Body == nil {
		p.Body = map[string]any{}
	}
	return p.Token, nil, p.Body
}

func queryBag(q url.Values) map[string]string {
	bag := make(map[string]string, len(q))
	for k := range q {
		if k == auth.TokenKey {
			continue
		}
		bag[k] = q.Get(k)
	}
	return bag
}

// HandleDynamic serves GET|POST /{module}/{function}.
func (d *Dispatcher) HandleDynamic(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	function := chi.URLParam(r, "function")
	endpoint := "/" + module + "/" + function

	token, query, body := extract(r)

	// Authorization resolves before any routing detail is revealed.
	if authErr := d.gate.CheckBusiness(token); authErr != nil {
		d.events.AuthFailure(endpoint, r.RemoteAddr, authErr.Message)
		api.WriteError(w, endpoint, authErr)
		return
	}

	desc, ok := d.reg.Lookup(module, function)
	if !ok {
		api.WriteError(w, endpoint, d.notFound(module, function))
		return
	}

	if !desc.AllowsMethod(r.Method) {
		api.WriteError(w, endpoint, api.NewError(api.KindMethodNotAllowed,
			"Method %s not allowed for endpoint %s", r.Method, endpoint).
			With("allowed_methods", desc.AllowedMethods()))
		return
	}

	var args map[string]any
	var bindErr *api.Error
	if r.Method == http.MethodGet {
		args, bindErr = binder.BindQuery(desc, query)
	} else {
		args, bindErr = binder.BindJSON(desc, body)
	}
	if bindErr != nil {
		api.WriteError(w, endpoint, bindErr)
		return
	}

	result, err := d.invoke(r, desc, args)
	if err != nil {
		var apiErr *api.Error
		if e, ok := err.(*api.Error); ok {
			apiErr = e
		} else {
			d.events.UncaughtError(endpoint, err)
			apiErr = api.Internal(err)
		}
		api.WriteError(w, endpoint, apiErr)
		return
	}
	api.WriteSuccess(w, endpoint, result)
}

// invoke runs the handler: synchronous descriptors execute inline on the
// request goroutine, asynchronous ones go through the shared scheduler and
// are awaited here. Panics are confined to this boundary either way.
func (d *Dispatcher) invoke(r *http.Request, desc *registry.Descriptor, args map[string]any) (result any, err error) {
	if desc.Async {
		res := <-d.sched.Submit(r.Context(), desc.Fn, args)
		return res.value, res.err
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return desc.Fn(r.Context(), args)
}

func (d *Dispatcher) notFound(module, function string) *api.Error {
	snap := d.reg.Snapshot()
	if _, ok := snap.Modules[module]; !ok {
		return api.NewError(api.KindNotFound, "API module not found: %s", module).
			With("available_modules", snap.ModuleNames())
	}
	return api.NewError(api.KindNotFound,
		"API function not found: %s in module %s", function, module).
		With("available_functions", snap.FunctionNames(module))
}

// HandleReload serves GET|POST /api/reload: admin tier, then a synchronous
// full reload pass with a per-module report.
func (d *Dispatcher) HandleReload(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/reload"
	token, _, _ := extract(r)
	if authErr := d.gate.CheckAdmin(token); authErr != nil {
		d.events.AuthFailure(endpoint, r.RemoteAddr, authErr.Message)
		api.WriteError(w, endpoint, authErr)
		return
	}

	rep := d.loader.ReloadAll()
	api.WriteSuccess(w, endpoint, map[string]any{
		"message": "All modules reloaded",
		"modules": d.reg.Snapshot().ModuleNames(),
		"report":  rep,
	})
}

// HandleReloadConfig serves GET|POST /api/reload-config.
func (d *Dispatcher) HandleReloadConfig(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/reload-config"
	token, _, _ := extract(r)
	if authErr := d.gate.CheckAdmin(token); authErr != nil {
		d.events.AuthFailure(endpoint, r.RemoteAddr, authErr.Message)
		api.WriteError(w, endpoint, authErr)
		return
	}

	cfg, err := d.loader.ReloadConfig()
	if err != nil {
		api.WriteError(w, endpoint, api.Internal(err))
		return
	}
	api.WriteSuccess(w, endpoint, map[string]any{
		"message": "Configuration reloaded",
		"config": map[string]any{
			"host":                   cfg.Host,
			"port":                   cfg.Port,
			"hot_reload":             cfg.HotReload,
			"enable_request_logging": cfg.Logging.EnableRequestLogging,
		},
	})
}

// HandleStatus serves GET /: the live endpoint listing.
func (d *Dispatcher) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap := d.reg.Snapshot()
	var endpoints []string
	for _, moduleName := range snap.ModuleNames() {
		mod := snap.Modules[moduleName]
		for _, fn := range snap.FunctionNames(moduleName) {
			desc := mod.Functions[fn]
			for _, m := range desc.AllowedMethods() {
				endpoints = append(endpoints, m+" "+desc.Endpoint())
			}
		}
	}
	sort.Strings(endpoints)
	api.WriteSuccess(w, "/", map[string]any{
		"message":    "Dynamic API server is running",
		"version":    Version,
		"endpoints":  endpoints,
		"hot_reload": d.cfg.Current().HotReload,
	})
}
