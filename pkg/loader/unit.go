// loader/unit.go
package loader

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/funcgate/funcgate-core/pkg/handler"
	"github.com/funcgate/funcgate-core/pkg/registry"
)

// Unit is one module definition file: the registration construct a source
// unit carries. The module name is the file's base name; each function entry
// registers one endpoint with its allowed methods, parameter spec, async
// flag and a reference into the compiled-in handler catalog.
type Unit struct {
	Functions []Function `toml:"function"`
}

type Function struct {
	Name    string   `toml:"name"`
	Handler string   `toml:"handler"`
	Methods []string `toml:"methods"`
	Async   bool     `toml:"async"`
	Params  []Param  `toml:"param"`
}

type Param struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Required bool   `toml:"required"`
	Default  any    `toml:"default"`
}

// parseUnit decodes and validates a module definition, resolving handler
// references against the catalog. Any failure here is a module load error:
// the caller must leave the previously published generation untouched.
func parseUnit(moduleName string, src []byte, cat *handler.Catalog) (map[string]*registry.Descriptor, error) {
	var u Unit
	if err := toml.Unmarshal(src, &u); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(u.Functions) == 0 {
		return nil, errors.New("no functions defined")
	}

	// Last registration wins for duplicate function names within one unit.
	out := make(map[string]*registry.Descriptor, len(u.Functions))
	for i := range u.Functions {
		d, err := u.Functions[i].descriptor(moduleName, cat)
		if err != nil {
			return nil, fmt.Errorf("function %d (%s): %w", i, u.Functions[i].Name, err)
		}
		out[d.Function] = d
	}
	return out, nil
}

func (f *Function) descriptor(moduleName string, cat *handler.Catalog) (*registry.Descriptor, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	if strings.ContainsAny(name, "/ ") {
		return nil, fmt.Errorf("name %q contains reserved characters", name)
	}

	ref := strings.TrimSpace(f.Handler)
	if ref == "" {
		return nil, errors.New("handler is required")
	}
	entry, ok := cat.Lookup(ref)
	if !ok {
		return nil, fmt.Errorf("handler %q not registered", ref)
	}
	if f.Async && !entry.Async {
		return nil, fmt.Errorf("handler %q is not async-capable", ref)
	}

	methods, err := normalizeMethods(f.Methods)
	if err != nil {
		return nil, err
	}

	params := make([]registry.ParamSpec, 0, len(f.Params))
	seen := map[string]bool{}
	for i := range f.Params {
		p, err := f.Params[i].spec()
		if err != nil {
			return nil, fmt.Errorf("param %d (%s): %w", i, f.Params[i].Name, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("param %q declared twice", p.Name)
		}
		seen[p.Name] = true
		params = append(params, p)
	}

	return &registry.Descriptor{
		Module:   moduleName,
		Function: name,
		Fn:       entry.Fn,
		Methods:  methods,
		Async:    f.Async,
		Params:   params,
	}, nil
}

// normalizeMethods uppercases, dedupes and restricts to GET/POST. An absent
// list defaults to POST only.
func normalizeMethods(in []string) (map[string]bool, error) {
	if len(in) == 0 {
		return map[string]bool{http.MethodPost: true}, nil
	}
	out := map[string]bool{}
	for _, m := range in {
		switch strings.ToUpper(strings.TrimSpace(m)) {
		case http.MethodGet:
			out[http.MethodGet] = true
		case http.MethodPost:
			out[http.MethodPost] = true
		default:
			return nil, fmt.Errorf("method %q not supported", m)
		}
	}
	return out, nil
}

func (p *Param) spec() (registry.ParamSpec, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return registry.ParamSpec{}, errors.New("name is required")
	}
	t, err := registry.ParseParamType(p.Type)
	if err != nil {
		return registry.ParamSpec{}, err
	}
	if p.Required && p.Default != nil {
		return registry.ParamSpec{}, errors.New("required parameter cannot carry a default")
	}
	def, err := normalizeDefault(t, p.Default)
	if err != nil {
		return registry.ParamSpec{}, err
	}
	return registry.ParamSpec{Name: name, Type: t, Required: p.Required, Default: def}, nil
}

// normalizeDefault checks a declared default against the parameter type.
// TOML decodes integers as int64 and floats as float64; an integer default
// is acceptable for a float parameter.
func normalizeDefault(t registry.ParamType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case registry.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case registry.TypeInteger:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	case registry.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
	case registry.TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("default %v does not match type %s", v, t)
}
