// Package module defines modules, their status machine and the registry
// that stores them.
//
// # Status Machine
//
//	Undefined -> Loading -> Loaded -> Initialized
//	Undefined -> Loaded               (definition registered before any fetch)
//	Loading   -> Error                (fetch failed or never defined the module)
//	Loaded    -> Error                (factory failed or a dependency failed)
//	Undefined -> Error                (module never resolved, reported as stuck)
//
// Initialized and Error are terminal. Only invalidation moves a module back
// to Undefined; it keeps the factory and requires so the module can be
// initialized again without a new registration.
//
// # Registry
//
// The Registry maps ids to modules. Referencing an unknown id creates a
// placeholder that a later Define fills in. The registry is plain data and
// is not safe for concurrent use; the loader owns it on its event loop.
//
// # Usage
//
//	reg := module.NewRegistry()
//	reg.Define(module.Definition{
//	    ID:       "b",
//	    Requires: []string{"a"},
//	    Factory: func(rt module.Runtime, deps []any) (any, error) {
//	        return deps[0].(int) + 1, nil
//	    },
//	})
package module
