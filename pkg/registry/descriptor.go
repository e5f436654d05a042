// registry/descriptor.go
package registry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/funcgate/funcgate-core/pkg/handler"
)

// ParamType enumerates the declarable parameter types.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeBoolean ParamType = "boolean"
)

// ParseParamType normalizes a declared type name, accepting the common
// aliases used in module definition files.
func ParseParamType(s string) (ParamType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str", "":
		return TypeString, nil
	case "integer", "int":
		return TypeInteger, nil
	case "float", "number":
		return TypeFloat, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	default:
		return "", fmt.Errorf("unknown parameter type %q", s)
	}
}

// ParamSpec describes one declared handler argument. Order within a
// descriptor matters only for documentation, never for binding.
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
	Default  any // nil unless the parameter is optional
}

// Descriptor is the registered metadata plus callable for one endpoint.
// Identity key is (Module, Function); descriptors are never mutated after
// publication, only replaced wholesale by a newer module generation.
type Descriptor struct {
	Module   string
	Function string
	Fn       handler.Func
	Methods  map[string]bool // subset of GET/POST, never empty
	Async    bool
	Params   []ParamSpec
}

// Endpoint returns the routing path for this descriptor.
func (d *Descriptor) Endpoint() string {
	return "/" + d.Module + "/" + d.Function
}

// AllowsMethod reports whether the HTTP method is in the allowed set.
func (d *Descriptor) AllowsMethod(method string) bool {
	return d.Methods[strings.ToUpper(method)]
}

// AllowedMethods returns the allowed set in stable GET-before-POST order.
func (d *Descriptor) AllowedMethods() []string {
	out := make([]string, 0, 2)
	if d.Methods[http.MethodGet] {
		out = append(out, http.MethodGet)
	}
	if d.Methods[http.MethodPost] {
		out = append(out, http.MethodPost)
	}
	return out
}

// Param looks up a spec by name.
func (d *Descriptor) Param(name string) (ParamSpec, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// RequiredParams and OptionalParams report sorted name lists for error
// envelopes.
func (d *Descriptor) RequiredParams() []string { return d.paramNames(true) }
func (d *Descriptor) OptionalParams() []string { return d.paramNames(false) }

func (d *Descriptor) paramNames(required bool) []string {
	out := []string{}
	for _, p := range d.Params {
		if p.Required == required {
			out = append(out, p.Name)
		}
	}
	sort.Strings(out)
	return out
}

// ParamNames returns every declared name, sorted.
func (d *Descriptor) ParamNames() []string {
	out := []string{}
	for _, p := range d.Params {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}
