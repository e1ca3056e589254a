package loader

import (
	"modloader/core/module"
)

// Resolver expands requested ids into their dependency closure.
type Resolver struct {
	reg *module.Registry
}

// NewResolver creates a resolver over reg.
func NewResolver(reg *module.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Normalize returns every module reachable from ids, deduplicated, with
// dependencies before dependents. Unknown ids become placeholders so they
// can be fetched.
//
// A module is marked visited before its dependencies are walked, so a
// cycle is cut at the first module seen again. Members of a cycle are
// ordered by first visit and initialize as simultaneously ready.
func (r *Resolver) Normalize(ids []string) []*module.Module {
	visited := make(map[string]struct{})
	var out []*module.Module

	var visit func(id string)
	visit = func(id string) {
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		m := r.reg.Get(id)
		for _, dep := range m.Requires() {
			visit(dep)
		}
		out = append(out, m)
	}

	for _, id := range module.SplitIDs(ids...) {
		visit(id)
	}
	return out
}
