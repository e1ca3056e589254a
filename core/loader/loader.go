package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"modloader/core/metrics"
	"modloader/core/logger"
	"modloader/core/module"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher fetches module definitions. Dispatch must return without
// waiting for the transport; deliver may be called from any goroutine, once
// per request, with the ids that request covered.
type Dispatcher interface {
	Dispatch(ctx context.Context, ids []string, deliver func(module.Arrival))
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, ids []string, deliver func(module.Arrival))

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, ids []string, deliver func(module.Arrival)) {
	f(ctx, ids, deliver)
}

// Callbacks receive the outcome of a Use call. Exactly one of them runs.
type Callbacks struct {
	Success func(exports ...any)
	Error   func(failed []Failure)
}

// fetch tracks one in-flight fetch and the sessions waiting on it.
type fetch struct {
	waiters []*session
}

// Loader resolves, fetches and initializes modules. All registry access
// happens on a single event loop goroutine; the exported methods are safe
// for concurrent use.
type Loader struct {
	reg        *module.Registry
	resolver   *Resolver
	dispatcher Dispatcher
	loop       *executor

	log             *zap.Logger
	metrics         *metrics.Collector
	roundTimeout    time.Duration
	maxRounds       int
	onCallbackPanic func(session string, recovered any)

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	// Owned by the loop.
	inflight map[string]*fetch
	sessions map[string]*session
}

// New creates a loader over reg that fetches missing modules through d.
func New(reg *module.Registry, d Dispatcher, opts ...Option) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		reg:          reg,
		resolver:     NewResolver(reg),
		dispatcher:   d,
		log:          zap.NewNop(),
		roundTimeout: defaultRoundTimeout,
		maxRounds:    defaultMaxRounds,
		ctx:          ctx,
		cancel:       cancel,
		inflight:     make(map[string]*fetch),
		sessions:     make(map[string]*session),
	}
	for _, opt := range opts {
		opt(l)
	}
	exec, err := newExecutor()
	if err != nil {
		l.log.Error("Failed to start event loop", zap.Error(err))
	}
	l.loop = exec
	return l
}

// Define registers or overwrites a module. A module some session is waiting
// on is settled immediately.
func (l *Loader) Define(def module.Definition) error {
	var err error
	if !l.loop.Call(func() {
		var m *module.Module
		m, err = l.reg.Define(def)
		if err != nil {
			return
		}
		l.log.Debug("Module defined", zap.String("module", m.ID), zap.Strings("requires", m.Requires()))
		l.settle(m.ID)
	}) {
		return ErrClosed
	}
	return err
}

// Use starts a session for ids. Each argument may be a single id or a comma
// separated list. The callbacks run on their own goroutine.
func (l *Loader) Use(cb Callbacks, ids ...string) *Future {
	s := l.newSession(cb, ids)
	if !l.loop.Submit(func() { l.start(s) }) {
		s.future.complete(nil, ErrClosed)
		go l.deliver(s, nil, nil, ErrClosed)
	}
	return s.future
}

// Await runs a session for ids and waits for its exports. When ctx ends
// first the session is canceled at its next round boundary.
func (l *Loader) Await(ctx context.Context, ids ...string) ([]any, error) {
	s := l.newSession(Callbacks{}, ids)
	if !l.loop.Submit(func() { l.start(s) }) {
		return nil, ErrClosed
	}

	select {
	case <-s.future.Done():
		return s.future.Result()
	case <-ctx.Done():
		l.loop.Submit(func() { s.canceled = true })
		return nil, ctx.Err()
	}
}

// Require returns the exports of an initialized module without loading it.
func (l *Loader) Require(id string) (any, error) {
	var (
		exports any
		status  module.Status
		ok      bool
	)
	if !l.loop.Call(func() {
		m, found := l.reg.Lookup(id)
		if !found {
			return
		}
		status = m.Status
		exports, ok = m.Exports()
	}) {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotInitialized, module.NormalizeID(id), status)
	}
	return exports, nil
}

// Undef resets id, its dependencies and every dependent that cached
// readiness to undefined. Factories and requires are kept. It returns the
// invalidated ids; an unknown id invalidates nothing.
func (l *Loader) Undef(id string) []string {
	var out []string
	l.loop.Call(func() {
		out = l.invalidate(id)
	})
	return out
}

// Status returns a snapshot of one module.
func (l *Loader) Status(id string) (module.Info, bool) {
	var (
		info module.Info
		ok   bool
	)
	l.loop.Call(func() {
		var m *module.Module
		if m, ok = l.reg.Lookup(id); ok {
			info = m.Info()
		}
	})
	return info, ok
}

// Order returns the ids reachable from ids in initialization order:
// dependencies first, cycles cut at the first module seen again.
func (l *Loader) Order(ids ...string) []string {
	var out []string
	l.loop.Call(func() {
		for _, m := range l.resolver.Normalize(module.SplitIDs(ids...)) {
			out = append(out, m.ID)
		}
	})
	return out
}

// Snapshot returns every known module sorted by id.
func (l *Loader) Snapshot() []module.Info {
	var out []module.Info
	l.loop.Call(func() {
		out = l.reg.Snapshot()
	})
	return out
}

// Reset aborts pending sessions and forgets every module.
func (l *Loader) Reset() {
	l.loop.Call(func() {
		l.abortAll()
		l.reg.Reset()
	})
}

// Close aborts pending sessions with ErrClosed and stops the event loop.
// Module state is left untouched.
func (l *Loader) Close() error {
	l.once.Do(func() {
		l.loop.Call(l.abortAll)
		l.cancel()
		l.loop.Stop()
	})
	return nil
}

// invalidate runs on the loop.
func (l *Loader) invalidate(id string) []string {
	if _, ok := l.reg.Lookup(id); !ok {
		l.log.Debug("Undef of unknown module", zap.String("module", module.NormalizeID(id)))
		return nil
	}

	seen := make(map[string]struct{})
	var out []string

	reset := func(m *module.Module) {
		if _, ok := seen[m.ID]; ok {
			return
		}
		seen[m.ID] = struct{}{}
		if m.Status.Pending() {
			return
		}
		l.reg.Invalidate(m)
		out = append(out, m.ID)
	}

	for _, m := range l.resolver.Normalize([]string{id}) {
		reset(m)
	}

	// Dependents lose their cached exports too.
	queue := append([]string(nil), out...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, dep := range l.reg.Dependents(next) {
			if dep.Status != module.Initialized && dep.Status != module.Error {
				continue
			}
			reset(dep)
			queue = append(queue, dep.ID)
		}
	}

	l.metrics.AddInvalidations(len(out))
	l.log.Info("Modules invalidated", zap.String("module", module.NormalizeID(id)), zap.Strings("invalidated", out))
	return out
}

// abortAll runs on the loop.
func (l *Loader) abortAll() {
	for _, s := range l.sessions {
		var failures []Failure
		for _, m := range s.mods {
			if m.Status.Terminal() {
				continue
			}
			failures = append(failures, Failure{ID: m.ID, Status: m.Status, Kind: Stuck, Err: ErrClosed})
		}
		l.finish(s, nil, &LoadError{Action: "load", Failures: failures}, failures)
	}
	for id := range l.inflight {
		delete(l.inflight, id)
		l.metrics.AddInFlight(-1)
	}
}

func (l *Loader) newSession(cb Callbacks, ids []string) *session {
	return &session{
		id:        uuid.NewString(),
		requested: module.SplitIDs(ids...),
		cb:        cb,
		future:    newFuture(),
		started:   time.Now(),
	}
}

// deliver runs the callbacks of a finished session off the loop.
func (l *Loader) deliver(s *session, exports []any, failures []Failure, err error) {
	log := logger.WithSession(l.log, s.id)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Session callback panicked", zap.Any("panic", r))
			if l.onCallbackPanic != nil {
				l.onCallbackPanic(s.id, r)
			}
		}
	}()

	if err == nil {
		if s.cb.Success != nil {
			s.cb.Success(exports...)
		}
		return
	}
	if s.cb.Error != nil {
		s.cb.Error(failures)
	}
}
