// binder/binder.go
package binder

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/funcgate/funcgate-core/pkg/api"
	"github.com/funcgate/funcgate-core/pkg/registry"
)

// BindQuery validates and coerces a GET parameter bag (raw string values,
// reserved token key already stripped) against the descriptor's spec.
func BindQuery(d *registry.Descriptor, bag map[string]string) (map[string]any, *api.Error) {
	raw := make(map[string]any, len(bag))
	for k, v := range bag {
		raw[k] = v
	}
	return bind(d, raw, coerceQueryValue)
}

// BindJSON validates a POST parameter bag. Values arrive already JSON-typed;
// they are type-checked against the spec without silent coercion.
func BindJSON(d *registry.Descriptor, bag map[string]any) (map[string]any, *api.Error) {
	return bind(d, bag, checkJSONValue)
}

type coerceFn func(p registry.ParamSpec, v any) (any, *api.Error)

func bind(d *registry.Descriptor, bag map[string]any, coerce coerceFn) (map[string]any, *api.Error) {
	// Unknown keys first: report every unexpected name at once.
	var unknown []string
	for k := range bag {
		if _, ok := d.Param(k); !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		received := make([]string, 0, len(bag))
		for k := range bag {
			received = append(received, k)
		}
		sort.Strings(received)
		return nil, api.NewError(api.KindInvalidParameter,
			"Invalid parameter(s): %s", strings.Join(unknown, ", ")).
			With("valid_parameters", d.ParamNames()).
			With("received_parameters", received)
	}

	args := make(map[string]any, len(d.Params))
	for _, p := range d.Params {
		v, present := bag[p.Name]
		if !present {
			if p.Required {
				return nil, api.NewError(api.KindMissingParameter,
					"Missing required parameter: %s", p.Name).
					With("required_parameters", d.RequiredParams()).
					With("optional_parameters", d.OptionalParams())
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}
		typed, err := coerce(p, v)
		if err != nil {
			return nil, err
		}
		args[p.Name] = typed
	}
	return args, nil
}

// coerceQueryValue parses a raw query string per the declared type.
func coerceQueryValue(p registry.ParamSpec, v any) (any, *api.Error) {
	s := v.(string)
	switch p.Type {
	case registry.TypeString:
		return s, nil
	case registry.TypeInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, typeError(p, s)
		}
		return n, nil
	case registry.TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, typeError(p, s)
		}
		return f, nil
	case registry.TypeBoolean:
		switch strings.ToLower(s) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		default:
			return nil, typeError(p, s)
		}
	}
	return nil, typeError(p, s)
}

// checkJSONValue verifies a decoded JSON value matches the declared type.
// encoding/json yields float64 for every number, so integers additionally
// require a whole value.
func checkJSONValue(p registry.ParamSpec, v any) (any, *api.Error) {
	switch p.Type {
	case registry.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case registry.TypeInteger:
		switch n := v.(type) {
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
		}
	case registry.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
		}
	case registry.TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, typeError(p, v)
}

func typeError(p registry.ParamSpec, got any) *api.Error {
	return api.NewError(api.KindInvalidParameterType,
		"Invalid parameter type for '%s': expected %s, got '%v'", p.Name, p.Type, got).
		With("parameter", p.Name).
		With("expected_type", string(p.Type)).
		With("received_value", fmt.Sprintf("%v", got))
}
