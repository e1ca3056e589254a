package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"modloader/core/module"
	"modloader/core/utils"
)

var (
	// ErrUnknownFactory is returned for a factory kind nobody registered.
	ErrUnknownFactory = errors.New("unknown factory kind")
	// ErrMissingID is returned for documents without an id.
	ErrMissingID = errors.New("manifest document has no id")
)

// Builder turns a document into a module factory.
type Builder func(doc Document) (module.Factory, error)

// Catalog maps factory kinds to builders. It is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewCatalog returns a catalog holding the builtin kinds.
func NewCatalog() *Catalog {
	c := &Catalog{builders: make(map[string]Builder)}
	c.Register("value", buildValue)
	c.Register("object", buildObject)
	c.Register("sum", buildSum)
	c.Register("concat", buildConcat)
	c.Register("alias", buildAlias)
	return c
}

// Register adds or replaces the builder for kind.
func (c *Catalog) Register(kind string, b Builder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builders[kind] = b
}

// Kinds returns the registered kinds sorted by name.
func (c *Catalog) Kinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.builders))
	for kind := range c.builders {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

// Definition builds the module definition declared by doc.
func (c *Catalog) Definition(doc Document) (module.Definition, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return module.Definition{}, ErrMissingID
	}
	kind := doc.Factory
	if kind == "" {
		kind = "value"
	}

	c.mu.RLock()
	build, ok := c.builders[kind]
	c.mu.RUnlock()
	if !ok {
		return module.Definition{}, fmt.Errorf("%w: %q in %s", ErrUnknownFactory, kind, doc.ID)
	}

	factory, err := build(doc)
	if err != nil {
		return module.Definition{}, fmt.Errorf("build %s: %w", doc.ID, err)
	}
	return module.Definition{
		ID:       doc.ID,
		Requires: doc.Requires,
		Factory:  factory,
	}, nil
}

// Definitions builds every document, stopping at the first error.
func (c *Catalog) Definitions(docs []Document) ([]module.Definition, error) {
	out := make([]module.Definition, 0, len(docs))
	for _, doc := range docs {
		def, err := c.Definition(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// value exports config.value as is.
func buildValue(doc Document) (module.Factory, error) {
	v := doc.Config["value"]
	return func(rt module.Runtime, deps []any) (any, error) {
		return v, nil
	}, nil
}

// object exports config.fields plus each dependency under its id.
func buildObject(doc Document) (module.Factory, error) {
	fields, _ := doc.Config["fields"].(map[string]any)
	// Factories receive one export per distinct require.
	var keys []string
	seen := make(map[string]struct{}, len(doc.Requires))
	for _, r := range doc.Requires {
		id := module.ResolveID(doc.ID, r)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, id)
	}
	return func(rt module.Runtime, deps []any) (any, error) {
		out := make(map[string]any, len(fields)+len(deps))
		for k, v := range fields {
			out[k] = v
		}
		for i, dep := range deps {
			if i < len(keys) {
				out[keys[i]] = dep
			}
		}
		return out, nil
	}, nil
}

// sum adds config.value and every dependency as integers.
func buildSum(doc Document) (module.Factory, error) {
	base := utils.ToInt(doc.Config["value"])
	return func(rt module.Runtime, deps []any) (any, error) {
		total := base
		for _, dep := range deps {
			total += utils.ToInt(dep)
		}
		return total, nil
	}, nil
}

// concat joins config.parts and the dependencies with config.sep.
func buildConcat(doc Document) (module.Factory, error) {
	sep := utils.ToString(doc.Config["sep"])
	skipEmpty := utils.ToBool(doc.Config["skip_empty"])
	var parts []string
	if raw, ok := doc.Config["parts"].([]any); ok {
		for _, p := range raw {
			parts = append(parts, utils.ToString(p))
		}
	}
	return func(rt module.Runtime, deps []any) (any, error) {
		out := make([]string, 0, len(parts)+len(deps))
		for _, p := range parts {
			if skipEmpty && p == "" {
				continue
			}
			out = append(out, p)
		}
		for _, dep := range deps {
			if dep == nil {
				continue
			}
			s := utils.ToString(dep)
			if skipEmpty && s == "" {
				continue
			}
			out = append(out, s)
		}
		return strings.Join(out, sep), nil
	}, nil
}

// alias re-exports its single dependency.
func buildAlias(doc Document) (module.Factory, error) {
	if len(doc.Requires) != 1 {
		return nil, fmt.Errorf("alias needs exactly one require, got %d", len(doc.Requires))
	}
	return func(rt module.Runtime, deps []any) (any, error) {
		return deps[0], nil
	}, nil
}
