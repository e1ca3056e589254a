package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constFactory(v any) Factory {
	return func(rt Runtime, deps []any) (any, error) {
		return v, nil
	}
}

func TestRegistry_GetCreatesPlaceholder(t *testing.T) {
	reg := NewRegistry(WithPackageFunc(func(id string) string { return "pkg" }))

	m := reg.Get(" app/main.yaml ")
	assert.Equal(t, "app/main", m.ID)
	assert.Equal(t, Undefined, m.Status)
	assert.Equal(t, "pkg", m.Package)
	assert.False(t, m.HasFactory())

	assert.Same(t, m, reg.Get("app/main"), "one instance per id")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_DefinePromotesPlaceholder(t *testing.T) {
	reg := NewRegistry()
	ghost := reg.Get("b")

	m, err := reg.Define(Definition{ID: "b", Requires: []string{"a", " a ", "c"}, Factory: constFactory(1)})
	require.NoError(t, err)
	assert.Same(t, ghost, m)
	assert.Equal(t, Loaded, m.Status)
	assert.Equal(t, []string{"a", "c"}, m.Requires())
	assert.Equal(t, []string{"a", " a ", "c"}, m.Declared())
}

func TestRegistry_DefineKeepsTerminalStatus(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Define(Definition{ID: "a", Factory: constFactory(1)})
	require.NoError(t, err)
	require.NoError(t, m.Initialize(1))

	_, err = reg.Define(Definition{ID: "a", Requires: []string{"z"}, Factory: constFactory(2)})
	require.NoError(t, err)
	assert.Equal(t, Initialized, m.Status)
	assert.Equal(t, []string{"z"}, m.Requires())

	exports, ok := reg.Exports("a")
	assert.True(t, ok)
	assert.Equal(t, 1, exports)
}

func TestRegistry_DefineRejectsInvalid(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Define(Definition{ID: "a"})
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = reg.Define(Definition{ID: " ", Factory: constFactory(1)})
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = reg.Define(Definition{ID: "../secret", Factory: constFactory(1)})
	assert.ErrorIs(t, err, ErrInvalidDefinition)
	assert.ErrorIs(t, err, ErrInvalidID)
	_, ok := reg.Lookup("../secret")
	assert.False(t, ok)
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"app/a", true},
		{"a..b", true},
		{"app/..hidden", true},
		{"", false},
		{"..", false},
		{"../secret", false},
		{"app/../../secret", false},
		{`app\..\secret`, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidID)
			}
		})
	}
}

func TestRegistry_RelativeRequires(t *testing.T) {
	reg := NewRegistry()

	m, err := reg.Define(Definition{
		ID:       "ui/widgets/button",
		Requires: []string{"./icon", "../theme", "core/dom"},
		Factory:  constFactory(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ui/widgets/icon", "ui/theme", "core/dom"}, m.Requires())
}

func TestRegistry_InvalidateKeepsDeclarations(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Define(Definition{ID: "a", Requires: []string{"b"}, Factory: constFactory(1)})
	require.NoError(t, err)
	require.NoError(t, m.Initialize(1))

	reg.Invalidate(m)

	assert.Equal(t, Undefined, m.Status)
	assert.True(t, m.HasFactory())
	assert.Equal(t, []string{"b"}, m.Requires())
	_, ok := reg.Exports("a")
	assert.False(t, ok)
}

func TestRegistry_DependentsAndSnapshot(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Define(Definition{ID: "c", Requires: []string{"a"}, Factory: constFactory(nil)})
	require.NoError(t, err)
	_, err = reg.Define(Definition{ID: "b", Requires: []string{"a"}, Factory: constFactory(nil)})
	require.NoError(t, err)

	deps := reg.Dependents("a")
	require.Len(t, deps, 2)
	assert.Equal(t, "b", deps[0].ID)
	assert.Equal(t, "c", deps[1].ID)

	snap := reg.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "a", snap[0].ID)
	assert.False(t, snap[0].Defined)
	assert.Equal(t, Loaded, snap[1].Status)

	reg.Reset()
	assert.Equal(t, 0, reg.Len())
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitIDs("a, b", "c", "a", " , "))
	assert.Empty(t, SplitIDs(""))
}
