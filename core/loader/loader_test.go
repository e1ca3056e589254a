package loader_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"modloader/core/loader"
	"modloader/core/module"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher answers fetches from a table of definitions.
type fakeDispatcher struct {
	mu    sync.Mutex
	defs  map[string]module.Definition
	errs  map[string]error
	hold  bool
	held  []func()
	calls [][]string
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		defs: make(map[string]module.Definition),
		errs: make(map[string]error),
	}
}

func (d *fakeDispatcher) serve(def module.Definition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defs[def.ID] = def
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, ids []string, deliver func(module.Arrival)) {
	d.mu.Lock()
	d.calls = append(d.calls, append([]string(nil), ids...))
	arrival := module.Arrival{Modules: ids}
	for _, id := range ids {
		if def, ok := d.defs[id]; ok {
			arrival.Definitions = append(arrival.Definitions, def)
		}
		if err, ok := d.errs[id]; ok {
			arrival.Err = err
		}
	}
	release := func() { deliver(arrival) }
	if d.hold {
		d.held = append(d.held, release)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	go release()
}

func (d *fakeDispatcher) releaseAll() {
	d.mu.Lock()
	held := d.held
	d.held = nil
	d.hold = false
	d.mu.Unlock()
	for _, release := range held {
		release()
	}
}

func (d *fakeDispatcher) fetchCount(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, call := range d.calls {
		for _, got := range call {
			if got == id {
				n++
			}
		}
	}
	return n
}

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func value(v any) module.Factory {
	return func(rt module.Runtime, deps []any) (any, error) {
		return v, nil
	}
}

func plusOne(rt module.Runtime, deps []any) (any, error) {
	return deps[0].(int) + 1, nil
}

func await(t *testing.T, l *loader.Loader, ids ...string) ([]any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exports, err := l.Await(ctx, ids...)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "session did not terminate")
	return exports, err
}

func newLoader(t *testing.T, d loader.Dispatcher, opts ...loader.Option) (*loader.Loader, *module.Registry) {
	t.Helper()
	reg := module.NewRegistry()
	l := loader.New(reg, d, opts...)
	t.Cleanup(func() { _ = l.Close() })
	return l, reg
}

func TestLoader_RegisteredChain(t *testing.T) {
	d := newFakeDispatcher()
	l, _ := newLoader(t, d)

	require.NoError(t, l.Define(module.Definition{ID: "A", Factory: value(1)}))
	require.NoError(t, l.Define(module.Definition{ID: "B", Requires: []string{"A"}, Factory: plusOne}))

	var calls atomic.Int32
	done := make(chan []any, 1)
	l.Use(loader.Callbacks{
		Success: func(exports ...any) {
			calls.Add(1)
			done <- exports
		},
		Error: func(failed []loader.Failure) {
			t.Errorf("unexpected failure: %v", failed)
		},
	}, "B")

	select {
	case exports := <-done:
		assert.Equal(t, []any{2}, exports)
	case <-time.After(5 * time.Second):
		t.Fatal("success callback not called")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, d.callCount(), "registered modules need no fetch")
}

func TestLoader_FetchesMissingModules(t *testing.T) {
	d := newFakeDispatcher()
	d.serve(module.Definition{ID: "A", Factory: value(1)})
	d.serve(module.Definition{ID: "B", Requires: []string{"A"}, Factory: plusOne})
	l, _ := newLoader(t, d)

	exports, err := await(t, l, "B")
	require.NoError(t, err)
	assert.Equal(t, []any{2}, exports)

	// B is fetched first, its requires join the session in the next round.
	assert.Equal(t, 2, d.callCount())
	assert.Equal(t, 1, d.fetchCount("A"))
	assert.Equal(t, 1, d.fetchCount("B"))

	info, ok := l.Status("A")
	require.True(t, ok)
	assert.Equal(t, module.Initialized, info.Status)
}

func TestLoader_InitializedModulesNeedNoRound(t *testing.T) {
	d := newFakeDispatcher()
	d.serve(module.Definition{ID: "A", Factory: value("a")})
	l, _ := newLoader(t, d)

	_, err := await(t, l, "A")
	require.NoError(t, err)
	before := d.callCount()

	exports, err := await(t, l, "A", "A")
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, exports)
	assert.Equal(t, before, d.callCount())
}

func TestLoader_DeduplicatesRequestedIDs(t *testing.T) {
	d := newFakeDispatcher()
	var inits atomic.Int32
	d.serve(module.Definition{ID: "A", Factory: func(rt module.Runtime, deps []any) (any, error) {
		inits.Add(1)
		return "a", nil
	}})
	d.serve(module.Definition{ID: "B", Factory: value("b")})
	l, _ := newLoader(t, d)

	exports, err := await(t, l, "A", "B,A", "A")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, exports)
	assert.Equal(t, 1, d.fetchCount("A"))
	assert.Equal(t, int32(1), inits.Load())
}

func TestLoader_OneFetchAcrossSessions(t *testing.T) {
	d := newFakeDispatcher()
	d.hold = true
	d.serve(module.Definition{ID: "A", Factory: value(1)})
	l, _ := newLoader(t, d)

	first := l.Use(loader.Callbacks{}, "A")
	second := l.Use(loader.Callbacks{}, "A")

	// Snapshot runs after both sessions started their first round.
	l.Snapshot()
	assert.Equal(t, 1, d.fetchCount("A"))

	d.releaseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, f := range []*loader.Future{first, second} {
		exports, err := f.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, []any{1}, exports)
	}
	assert.Equal(t, 1, d.fetchCount("A"))
}

func TestLoader_AcyclicGraphInitializesOnce(t *testing.T) {
	graph := map[string][]string{
		"D": nil,
		"B": {"D"},
		"C": {"D"},
		"A": {"B", "C"},
		"E": {"C", "D"},
	}

	var (
		mu    sync.Mutex
		order []string
		inits = make(map[string]int)
		seen  = make(map[string][]any)
	)
	d := newFakeDispatcher()
	d.hold = true
	for id, requires := range graph {
		id := id
		d.serve(module.Definition{ID: id, Requires: requires, Factory: func(rt module.Runtime, deps []any) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			inits[id]++
			order = append(order, id)
			seen[id] = append([]any(nil), deps...)
			return strings.ToLower(id), nil
		}})
	}
	l, _ := newLoader(t, d)

	futures := []*loader.Future{
		l.Use(loader.Callbacks{}, "A"),
		l.Use(loader.Callbacks{}, "E,B"),
		l.Use(loader.Callbacks{}, "C"),
		l.Use(loader.Callbacks{}, "A", "E"),
	}
	l.Snapshot()
	d.releaseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for id, requires := range graph {
		assert.Equal(t, 1, inits[id], "factory calls of %s", id)
		assert.Equal(t, 1, d.fetchCount(id), "fetches of %s", id)

		var want []any
		for _, dep := range requires {
			assert.Less(t, position[dep], position[id], "%s initialized before %s", dep, id)
			want = append(want, strings.ToLower(dep))
		}
		if len(want) == 0 {
			assert.Empty(t, seen[id])
			continue
		}
		assert.Equal(t, want, seen[id])
	}
}

func TestLoader_RejectsIDsOutsideRoot(t *testing.T) {
	d := newFakeDispatcher()
	l, _ := newLoader(t, d)
	require.NoError(t, l.Define(module.Definition{ID: "app/a", Requires: []string{"../../secret"}, Factory: value(1)}))

	for _, id := range []string{"app/a", "../secret"} {
		_, err := await(t, l, id)
		var loadErr *loader.LoadError
		require.ErrorAs(t, err, &loadErr, id)
		require.Len(t, loadErr.Failures, 1)
		assert.Equal(t, "../secret", loadErr.Failures[0].ID)
		assert.Equal(t, loader.FetchFailure, loadErr.Failures[0].Kind)
		assert.ErrorIs(t, loadErr.Failures[0], module.ErrInvalidID)
	}
	assert.Zero(t, d.callCount())
}

func TestLoader_CycleTerminates(t *testing.T) {
	for i := 0; i < 3; i++ {
		t.Run(fmt.Sprintf("Run%d", i), func(t *testing.T) {
			d := newFakeDispatcher()
			l, _ := newLoader(t, d)

			describe := func(name string) module.Factory {
				return func(rt module.Runtime, deps []any) (any, error) {
					return fmt.Sprintf("%s(%v)", name, deps[0]), nil
				}
			}
			require.NoError(t, l.Define(module.Definition{ID: "A", Requires: []string{"B"}, Factory: describe("a")}))
			require.NoError(t, l.Define(module.Definition{ID: "B", Requires: []string{"A"}, Factory: describe("b")}))

			exports, err := await(t, l, "A")
			require.NoError(t, err)
			assert.Equal(t, []any{"a(b(<nil>))"}, exports)

			b, err := l.Require("B")
			require.NoError(t, err)
			assert.Equal(t, "b(<nil>)", b)
		})
	}
}

func TestLoader_SelfRequire(t *testing.T) {
	l, _ := newLoader(t, newFakeDispatcher())
	require.NoError(t, l.Define(module.Definition{
		ID:       "A",
		Requires: []string{"A"},
		Factory: func(rt module.Runtime, deps []any) (any, error) {
			return deps[0] == nil, nil
		},
	}))

	exports, err := await(t, l, "A")
	require.NoError(t, err)
	assert.Equal(t, []any{true}, exports)
}

func TestLoader_InitFailurePoisonsDependents(t *testing.T) {
	d := newFakeDispatcher()
	l, _ := newLoader(t, d)

	boom := errors.New("boom")
	require.NoError(t, l.Define(module.Definition{ID: "A", Factory: func(rt module.Runtime, deps []any) (any, error) {
		return nil, boom
	}}))
	require.NoError(t, l.Define(module.Definition{ID: "B", Requires: []string{"A"}, Factory: plusOne}))
	require.NoError(t, l.Define(module.Definition{ID: "C", Factory: value("c")}))

	var failed []loader.Failure
	done := make(chan struct{})
	l.Use(loader.Callbacks{
		Success: func(exports ...any) { t.Error("unexpected success") },
		Error: func(f []loader.Failure) {
			failed = f
			close(done)
		},
	}, "B", "C")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("error callback not called")
	}

	require.Len(t, failed, 2)
	assert.Equal(t, "A", failed[0].ID)
	assert.Equal(t, loader.InitFailure, failed[0].Kind)
	assert.ErrorIs(t, failed[0], boom)
	assert.Equal(t, "B", failed[1].ID)
	assert.Equal(t, loader.DependencyPoisoned, failed[1].Kind)
	assert.Equal(t, module.Error, failed[1].Status)
	assert.ErrorIs(t, failed[1], loader.ErrDependencyFailed)

	c, err := l.Require("C")
	require.NoError(t, err)
	assert.Equal(t, "c", c)
}

func TestLoader_FactoryPanic(t *testing.T) {
	l, _ := newLoader(t, newFakeDispatcher())
	require.NoError(t, l.Define(module.Definition{ID: "A", Factory: func(rt module.Runtime, deps []any) (any, error) {
		panic("bad factory")
	}}))

	_, err := await(t, l, "A")
	require.Error(t, err)

	var loadErr *loader.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "init", loadErr.Action)
	assert.Equal(t, []string{"A"}, loadErr.IDs())
	assert.ErrorIs(t, err, loader.ErrFactoryPanic)
}

func TestLoader_NeverDefinedModule(t *testing.T) {
	t.Run("FetchWithoutDefinition", func(t *testing.T) {
		l, _ := newLoader(t, newFakeDispatcher())

		_, err := await(t, l, "missing")
		var loadErr *loader.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, "load", loadErr.Action)
		require.Len(t, loadErr.Failures, 1)
		assert.Equal(t, loader.Stuck, loadErr.Failures[0].Kind)
		assert.ErrorIs(t, err, loader.ErrNotDefined)
	})

	t.Run("TransportFailure", func(t *testing.T) {
		d := newFakeDispatcher()
		d.errs["missing"] = errors.New("connection refused")
		l, _ := newLoader(t, d)

		_, err := await(t, l, "missing")
		var loadErr *loader.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, loader.FetchFailure, loadErr.Failures[0].Kind)
	})

	t.Run("NoArrival", func(t *testing.T) {
		d := newFakeDispatcher()
		d.hold = true
		l, _ := newLoader(t, d, loader.WithConfig(loader.Config{RoundTimeout: 50 * time.Millisecond}))

		_, err := await(t, l, "missing")
		var loadErr *loader.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, loader.Stuck, loadErr.Failures[0].Kind)
		assert.ErrorIs(t, err, loader.ErrFetchTimeout)

		// A late arrival does not disturb the errored module.
		d.releaseAll()
		info, ok := l.Status("missing")
		require.True(t, ok)
		assert.Equal(t, module.Error, info.Status)
	})

	t.Run("MissingDependency", func(t *testing.T) {
		d := newFakeDispatcher()
		d.serve(module.Definition{ID: "B", Requires: []string{"ghost"}, Factory: plusOne})
		l, _ := newLoader(t, d)

		_, err := await(t, l, "B")
		var loadErr *loader.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, []string{"ghost"}, loadErr.IDs())

		info, _ := l.Status("B")
		assert.Equal(t, module.Loaded, info.Status)
	})
}

func TestLoader_UndefRoundTrip(t *testing.T) {
	d := newFakeDispatcher()
	var builds atomic.Int32
	d.serve(module.Definition{ID: "A", Factory: func(rt module.Runtime, deps []any) (any, error) {
		return int(builds.Add(1)), nil
	}})
	d.serve(module.Definition{ID: "B", Requires: []string{"A"}, Factory: plusOne})
	l, _ := newLoader(t, d)

	exports, err := await(t, l, "B")
	require.NoError(t, err)
	assert.Equal(t, []any{2}, exports)

	invalidated := l.Undef("A")
	assert.ElementsMatch(t, []string{"A", "B"}, invalidated)

	_, err = l.Require("B")
	assert.ErrorIs(t, err, loader.ErrNotInitialized)

	exports, err = await(t, l, "B")
	require.NoError(t, err)
	assert.Equal(t, []any{3}, exports)
	assert.Equal(t, 2, d.fetchCount("A"))
}

func TestLoader_UndefUnknownModule(t *testing.T) {
	l, _ := newLoader(t, newFakeDispatcher())
	require.NoError(t, l.Define(module.Definition{ID: "A", Factory: value(1)}))

	assert.Empty(t, l.Undef("typo"))
	snapshot := l.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "A", snapshot[0].ID)
}

func TestLoader_UndefFallsBackToRetainedFactory(t *testing.T) {
	d := newFakeDispatcher()
	l, _ := newLoader(t, d)
	require.NoError(t, l.Define(module.Definition{ID: "A", Factory: value("a")}))

	_, err := await(t, l, "A")
	require.NoError(t, err)
	l.Undef("A")

	exports, err := await(t, l, "A")
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, exports)
	assert.Equal(t, 1, d.fetchCount("A"))
}

func TestLoader_DefineSettlesPendingFetch(t *testing.T) {
	d := newFakeDispatcher()
	d.hold = true
	l, _ := newLoader(t, d)

	f := l.Use(loader.Callbacks{}, "A")
	l.Snapshot()
	require.Equal(t, 1, d.fetchCount("A"))

	require.NoError(t, l.Define(module.Definition{ID: "A", Factory: value(7)}))

	exports, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{7}, exports)
}

func TestLoader_CallbackPanicIsIsolated(t *testing.T) {
	panicked := make(chan any, 1)
	l, _ := newLoader(t, newFakeDispatcher(), loader.WithCallbackPanicHandler(func(session string, recovered any) {
		panicked <- recovered
	}))
	require.NoError(t, l.Define(module.Definition{ID: "A", Factory: value(1)}))

	l.Use(loader.Callbacks{Success: func(exports ...any) { panic("broken continuation") }}, "A")

	select {
	case r := <-panicked:
		assert.Equal(t, "broken continuation", r)
	case <-time.After(5 * time.Second):
		t.Fatal("panic handler not called")
	}

	exports, err := await(t, l, "A")
	require.NoError(t, err)
	assert.Equal(t, []any{1}, exports)
}

func TestLoader_AwaitCanceled(t *testing.T) {
	d := newFakeDispatcher()
	d.hold = true
	l, _ := newLoader(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Await(ctx, "A")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_Close(t *testing.T) {
	d := newFakeDispatcher()
	d.hold = true
	reg := module.NewRegistry()
	l := loader.New(reg, d)

	f := l.Use(loader.Callbacks{}, "A")
	l.Snapshot()
	require.NoError(t, l.Close())

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, loader.ErrClosed)

	_, err = l.Await(context.Background(), "A")
	assert.ErrorIs(t, err, loader.ErrClosed)
	assert.ErrorIs(t, l.Define(module.Definition{ID: "B", Factory: value(1)}), loader.ErrClosed)
	assert.NoError(t, l.Close())
}

func TestLoader_Reset(t *testing.T) {
	l, _ := newLoader(t, newFakeDispatcher())
	require.NoError(t, l.Define(module.Definition{ID: "A", Factory: value(1)}))
	require.Len(t, l.Snapshot(), 1)

	l.Reset()
	assert.Empty(t, l.Snapshot())
}

func TestLoader_EmptyRequest(t *testing.T) {
	l, _ := newLoader(t, newFakeDispatcher())

	exports, err := await(t, l)
	require.NoError(t, err)
	assert.Empty(t, exports)
}

func TestLoader_Order(t *testing.T) {
	l, _ := newLoader(t, newFakeDispatcher())
	require.NoError(t, l.Define(module.Definition{ID: "app/a", Requires: []string{"./b", "./c"}, Factory: value(1)}))
	require.NoError(t, l.Define(module.Definition{ID: "app/b", Requires: []string{"./c"}, Factory: value(2)}))
	require.NoError(t, l.Define(module.Definition{ID: "app/c", Factory: value(3)}))

	assert.Equal(t, []string{"app/c", "app/b", "app/a"}, l.Order("app/a"))
	assert.Equal(t, []string{"app/c", "app/b"}, l.Order("app/b,app/c"))
}
