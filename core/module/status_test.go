package module

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"registration arrives", Undefined, Loaded, true},
		{"fetch dispatched", Undefined, Loading, true},
		{"fetch arrived", Loading, Loaded, true},
		{"fetch failed", Loading, Error, true},
		{"factory ran", Loaded, Initialized, true},
		{"factory failed", Loaded, Error, true},
		{"stuck placeholder", Undefined, Error, true},
		{"skip loaded", Undefined, Initialized, false},
		{"raw fetch to initialized", Loading, Initialized, false},
		{"initialized is terminal", Initialized, Loaded, false},
		{"error is terminal", Error, Loaded, false},
		{"invalidation", Initialized, Undefined, true},
		{"invalidate error", Error, Undefined, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestModule_SetStatusRejectsIllegal(t *testing.T) {
	m := &Module{ID: "a"}

	err := m.SetStatus(Initialized)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, Undefined, m.Status)
}

func TestModule_InitializeCachesExports(t *testing.T) {
	m := &Module{ID: "a", Status: Loaded}

	_, ok := m.Exports()
	assert.False(t, ok)

	require.NoError(t, m.Initialize(42))
	exports, ok := m.Exports()
	assert.True(t, ok)
	assert.Equal(t, 42, exports)

	assert.Error(t, m.Initialize(43), "exports are set at most once")
	exports, _ = m.Exports()
	assert.Equal(t, 42, exports)
}

func TestModule_FailRecordsReason(t *testing.T) {
	m := &Module{ID: "a", Status: Loading}
	cause := errors.New("boom")

	require.NoError(t, m.Fail("fetch_failure", cause))
	assert.Equal(t, Error, m.Status)
	assert.Equal(t, "fetch_failure", m.Reason)
	assert.Equal(t, cause, m.Err)
	assert.Equal(t, "boom", m.Info().Error)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "initialized", Initialized.String())
	assert.Equal(t, "status(42)", Status(42).String())

	text, err := Loading.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "loading", string(text))
}
