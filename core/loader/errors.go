package loader

import (
	"errors"
	"fmt"
	"strings"

	"modloader/core/module"
)

var (
	// ErrNotDefined means a fetch completed without registering the module.
	ErrNotDefined = errors.New("module not defined by fetch")
	// ErrFetchTimeout means no arrival was reported within the round timeout.
	ErrFetchTimeout = errors.New("fetch timed out")
	// ErrNoProgress means a round resolved nothing while modules were unloaded.
	ErrNoProgress = errors.New("no progress")
	// ErrClosed is returned for sessions aborted by Close or Reset.
	ErrClosed = errors.New("loader closed")
	// ErrFactoryPanic wraps a recovered factory panic.
	ErrFactoryPanic = errors.New("factory panicked")
	// ErrDependencyFailed means a dependency of the module ended in error.
	ErrDependencyFailed = errors.New("dependency failed")
	// ErrNotInitialized is returned by Require for modules without exports.
	ErrNotInitialized = errors.New("module not initialized")
)

// ErrorKind classifies why a module ended in error.
type ErrorKind int

const (
	// FetchFailure means the transport could not deliver the definition.
	FetchFailure ErrorKind = iota + 1
	// Stuck means the module never resolved.
	Stuck
	// InitFailure means the factory returned an error or panicked.
	InitFailure
	// DependencyPoisoned means a dependency failed first.
	DependencyPoisoned
)

var kindNames = map[ErrorKind]string{
	FetchFailure:       "fetch_failure",
	Stuck:              "stuck",
	InitFailure:        "init_failure",
	DependencyPoisoned: "dependency_poisoned",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseErrorKind maps a module failure reason back to its kind.
func ParseErrorKind(reason string) ErrorKind {
	for kind, name := range kindNames {
		if name == reason {
			return kind
		}
	}
	return 0
}

// Failure describes a module that ended a session in error.
type Failure struct {
	ID     string        `json:"id"`
	Status module.Status `json:"status"`
	Kind   ErrorKind     `json:"kind"`
	Err    error         `json:"-"`
}

func (f Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.ID, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.ID, f.Kind, f.Err)
}

// Unwrap returns the cause.
func (f Failure) Unwrap() error {
	return f.Err
}

func failureOf(m *module.Module) Failure {
	return Failure{
		ID:     m.ID,
		Status: m.Status,
		Kind:   ParseErrorKind(m.Reason),
		Err:    m.Err,
	}
}

// LoadError is the error of a failed session. Action is "load" when
// fetching failed and "init" when a factory failed.
type LoadError struct {
	Action   string
	Failures []Failure
}

func (e *LoadError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%s failed: %s", e.Action, strings.Join(parts, "; "))
}

// Unwrap exposes every failure so errors.Is matches any cause.
func (e *LoadError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}

// IDs returns the failed module ids in report order.
func (e *LoadError) IDs() []string {
	out := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.ID
	}
	return out
}
