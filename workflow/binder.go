package workflow

import (
	"regexp"
	"strings"
)

// Variable binds a {{placeholder}} to the upstream output that feeds it.
// An empty Source means the variable is unbound.
type Variable struct {
	Name         string `json:"name" yaml:"name"`
	Source       string `json:"source,omitempty" yaml:"source,omitempty"`
	DefaultValue *Value `json:"default_value,omitempty" yaml:"default_value,omitempty"`
}

// Bound reports whether the variable resolves to an upstream producer.
func (v Variable) Bound() bool { return v.Source != "" }

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// BindVariables extracts every {{...}} placeholder from text, in order of
// appearance, and binds it against the owning node's dependencies.
//
// Qualified placeholders ("producer.field") are taken verbatim as the
// source. Unqualified ones are bound to "<first dependency>.text". Only the
// first dependency is consulted even when a node has several producers;
// this matches the engine's current contract and is intentionally left
// unchanged until multi-producer resolution is specified.
func BindVariables(text string, deps []string) []Variable {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	vars := make([]Variable, 0, len(matches))
	for _, m := range matches {
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		switch {
		case strings.Contains(body, "."):
			vars = append(vars, Variable{
				Name:   body[strings.LastIndex(body, ".")+1:],
				Source: body,
			})
		case len(deps) > 0:
			vars = append(vars, Variable{
				Name:   body,
				Source: deps[0] + ".text",
			})
		default:
			vars = append(vars, Variable{Name: body})
		}
	}
	return vars
}

// UnboundVariables returns the names of variables without a source.
func UnboundVariables(vars []Variable) []string {
	var names []string
	for _, v := range vars {
		if !v.Bound() {
			names = append(names, v.Name)
		}
	}
	return names
}
