package module

import (
	"fmt"

	"go.uber.org/zap"
)

// Runtime is handed to a factory while its module initializes.
type Runtime interface {
	// ID is the id of the module being initialized.
	ID() string
	// Require returns the exports of an initialized module.
	Require(id string) (any, bool)
	// Logger is scoped to the module being initialized.
	Logger() *zap.Logger
}

// Factory produces a module's exports from the exports of its declared
// dependencies, in declaration order.
type Factory func(rt Runtime, deps []any) (any, error)

// Definition is a registration request for a module.
type Definition struct {
	ID       string
	Requires []string
	Factory  Factory
	Package  string
}

// Arrival is the outcome of one fetch request covering one or more modules.
type Arrival struct {
	// Modules are the ids the request was issued for.
	Modules []string
	// Definitions are the registrations carried by the response.
	Definitions []Definition
	// Err is set when the transport could not deliver the response.
	Err error
}

// Module is a named unit with declared dependencies and a factory.
type Module struct {
	ID       string
	Package  string
	Status   Status
	Err      error
	Reason   string
	declared []string
	requires []string
	factory  Factory
	exports  any
}

// Requires returns the normalized ids of the module's dependencies.
func (m *Module) Requires() []string {
	out := make([]string, len(m.requires))
	copy(out, m.requires)
	return out
}

// Declared returns the dependency ids as they were registered.
func (m *Module) Declared() []string {
	out := make([]string, len(m.declared))
	copy(out, m.declared)
	return out
}

// Factory returns the module factory, nil for placeholders.
func (m *Module) Factory() Factory {
	return m.factory
}

// HasFactory reports whether a definition has ever been registered.
func (m *Module) HasFactory() bool {
	return m.factory != nil
}

// Exports returns the cached exports of an initialized module.
func (m *Module) Exports() (any, bool) {
	if m.Status != Initialized {
		return nil, false
	}
	return m.exports, true
}

// SetStatus moves the module to next when the status machine allows it.
func (m *Module) SetStatus(next Status) error {
	if !m.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, m.ID, m.Status, next)
	}
	m.Status = next
	if next != Error {
		m.Err = nil
		m.Reason = ""
	}
	return nil
}

// Fail marks the module as errored with a machine readable reason.
func (m *Module) Fail(reason string, err error) error {
	if err := m.SetStatus(Error); err != nil {
		return err
	}
	m.Reason = reason
	m.Err = err
	return nil
}

// Initialize stores the exports and marks the module initialized.
func (m *Module) Initialize(exports any) error {
	if err := m.SetStatus(Initialized); err != nil {
		return err
	}
	m.exports = exports
	return nil
}

func (m *Module) reset() {
	m.Status = Undefined
	m.Err = nil
	m.Reason = ""
	m.exports = nil
}

// Info is a read-only view of a module.
type Info struct {
	ID       string   `json:"id"`
	Package  string   `json:"package,omitempty"`
	Status   Status   `json:"status"`
	Requires []string `json:"requires"`
	Defined  bool     `json:"defined"`
	Reason   string   `json:"reason,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Info returns a snapshot of the module.
func (m *Module) Info() Info {
	info := Info{
		ID:       m.ID,
		Package:  m.Package,
		Status:   m.Status,
		Requires: m.Requires(),
		Defined:  m.HasFactory(),
		Reason:   m.Reason,
	}
	if m.Err != nil {
		info.Error = m.Err.Error()
	}
	return info
}
