package module

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a module.
type Status int

const (
	// Undefined means the module is referenced but not registered.
	Undefined Status = iota
	// Loading means a fetch for the module definition is in flight.
	Loading
	// Loaded means the factory is known but has not run yet.
	Loaded
	// Initialized means the factory ran and the exports are cached.
	Initialized
	// Error means fetching or initializing the module failed.
	Error
)

// ErrIllegalTransition is returned when a status change is not allowed.
var ErrIllegalTransition = errors.New("illegal module status transition")

var statusNames = map[Status]string{
	Undefined:   "undefined",
	Loading:     "loading",
	Loaded:      "loaded",
	Initialized: "initialized",
	Error:       "error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status by name in JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the forward moves. Resetting to Undefined is handled by
// invalidation and is always allowed.
var transitions = map[Status][]Status{
	Undefined: {Loading, Loaded, Error},
	Loading:   {Loaded, Error},
	Loaded:    {Loaded, Initialized, Error},
}

// CanTransition reports whether a module in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	if next == Undefined {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further work is expected for the module
// within a session.
func (s Status) Terminal() bool {
	return s == Initialized || s == Error
}

// Pending reports whether the module still needs its definition.
func (s Status) Pending() bool {
	return s == Undefined || s == Loading
}
