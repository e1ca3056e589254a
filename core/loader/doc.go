// Package loader resolves module dependency graphs, fetches missing modules
// in batched rounds and initializes them in dependency order.
//
// # Event Loop
//
// Every Loader runs a go-eventloop Loop on one goroutine that executes all
// registry reads and writes. Exported methods submit tasks to it; Use
// returns immediately while Await, Require, Define and Undef wait for their
// task to run. Round timers fire on the loop and each Future settles
// through a promise chained there. Success and
// Error callbacks run on a separate goroutine and a panic inside them is
// recovered, logged and passed to the handler set by
// WithCallbackPanicHandler.
//
// # Sessions
//
// A session is one Use or Await call. Each round it:
//   - re-resolves the requested ids, so requires declared by freshly fetched
//     modules join the session
//   - fails with action "load" when a module in the closure is errored
//   - initializes when nothing is undefined or loading
//   - otherwise waits on the fetch of every unloaded module, issuing a new
//     fetch only for modules nobody is fetching yet
//
// Ids with a ".." segment fail as FetchFailure without being fetched.
// A round that resolves nothing marks its unloaded modules Stuck. A round
// whose fetches do not arrive within the round timeout does the same.
//
// # Initialization
//
// Factories run on the event loop, dependencies first, once per module.
// Inside a factory use Runtime.Require rather than Loader.Require. A
// failing factory poisons its dependents while unrelated modules still
// initialize. Cycles are cut at the module reached again, which is bound
// as nil in its partner's dependency list.
//
// # Usage
//
//	reg := module.NewRegistry()
//	l := loader.New(reg, dispatcher, loader.WithLogger(log))
//	defer l.Close()
//
//	exports, err := l.Await(ctx, "app/main")
package loader
