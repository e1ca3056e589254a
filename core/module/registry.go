package module

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ErrInvalidDefinition is returned for definitions without id or factory.
var ErrInvalidDefinition = errors.New("invalid module definition")

// ErrInvalidID is returned for ids that climb above the module root.
var ErrInvalidID = errors.New("invalid module id")

var manifestSuffixes = []string{".yaml", ".yml", ".json", ".toml"}

// NormalizeID trims whitespace, leading slashes and a manifest suffix.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimLeft(id, "/")
	for _, suffix := range manifestSuffixes {
		if strings.HasSuffix(id, suffix) {
			id = strings.TrimSuffix(id, suffix)
			break
		}
	}
	return id
}

// ValidateID rejects empty ids and ids with a ".." segment, which would
// address manifests outside the transport root.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	for _, seg := range strings.Split(strings.ReplaceAll(id, "\\", "/"), "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %s leaves the module root", ErrInvalidID, id)
		}
	}
	return nil
}

// ResolveID resolves dep relative to the module id from when dep starts
// with "./" or "../".
func ResolveID(from, dep string) string {
	dep = strings.TrimSpace(dep)
	if strings.HasPrefix(dep, "./") || strings.HasPrefix(dep, "../") {
		return NormalizeID(path.Join(path.Dir(from), dep))
	}
	return NormalizeID(dep)
}

// SplitIDs expands comma separated lists and drops empty entries and
// duplicates, keeping the first occurrence.
func SplitIDs(ids ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range ids {
		for _, part := range strings.Split(raw, ",") {
			id := NormalizeID(part)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPackageFunc sets how the package of a new module is derived.
func WithPackageFunc(fn func(id string) string) RegistryOption {
	return func(r *Registry) {
		r.packageOf = fn
	}
}

// Registry holds one Module per id. It is not safe for concurrent use; the
// loader serializes every access on its event loop.
type Registry struct {
	modules   map[string]*Module
	packageOf func(id string) string
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{modules: make(map[string]*Module)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the module for id, creating an undefined placeholder when the
// id has never been referenced.
func (r *Registry) Get(id string) *Module {
	id = NormalizeID(id)
	if m, ok := r.modules[id]; ok {
		return m
	}
	m := &Module{ID: id, Status: Undefined}
	if r.packageOf != nil {
		m.Package = r.packageOf(id)
	}
	r.modules[id] = m
	return m
}

// Lookup returns the module for id without creating it.
func (r *Registry) Lookup(id string) (*Module, bool) {
	m, ok := r.modules[NormalizeID(id)]
	return m, ok
}

// Define registers or overwrites the factory and requires of a module.
// Undefined and loading modules become loaded; initialized and errored
// modules keep their status until they are invalidated.
func (r *Registry) Define(def Definition) (*Module, error) {
	id := NormalizeID(def.ID)
	if id == "" || def.Factory == nil {
		return nil, ErrInvalidDefinition
	}
	if err := ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	m := r.Get(id)
	m.declared = append([]string(nil), def.Requires...)
	m.requires = nil
	seen := make(map[string]struct{}, len(def.Requires))
	for _, dep := range def.Requires {
		depID := ResolveID(id, dep)
		if depID == "" {
			continue
		}
		if _, dup := seen[depID]; dup {
			continue
		}
		seen[depID] = struct{}{}
		m.requires = append(m.requires, depID)
	}
	m.factory = def.Factory
	if def.Package != "" {
		m.Package = def.Package
	}
	if m.Status.Pending() {
		if err := m.SetStatus(Loaded); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Exports returns the exports of an initialized module.
func (r *Registry) Exports(id string) (any, bool) {
	m, ok := r.Lookup(id)
	if !ok {
		return nil, false
	}
	return m.Exports()
}

// Invalidate resets a module to undefined, dropping its exports but keeping
// its factory and requires.
func (r *Registry) Invalidate(m *Module) {
	m.reset()
}

// Dependents returns the modules that directly require id, sorted by id.
func (r *Registry) Dependents(id string) []*Module {
	id = NormalizeID(id)
	var out []*Module
	for _, m := range r.modules {
		for _, dep := range m.requires {
			if dep == id {
				out = append(out, m)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns every module sorted by id.
func (r *Registry) Snapshot() []Info {
	out := make([]Info, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of known modules, placeholders included.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Reset forgets every module.
func (r *Registry) Reset() {
	r.modules = make(map[string]*Module)
}
