package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	eventloop "github.com/joeycumines/go-eventloop"
)

var errCanceled = errors.New("session canceled")

// Future is the pending result of a Use call. Once the session is bound to
// the event loop it settles through a chained promise.
type Future struct {
	once    sync.Once
	done    chan struct{}
	exports []any
	err     error

	resolve func(eventloop.Result)
	reject  func(eventloop.Result)
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// bind chains the future on a promise owned by the loop. It runs on the
// loop.
func (f *Future) bind(js *eventloop.JS) {
	p, resolve, reject := js.NewChainedPromise()
	f.resolve, f.reject = resolve, reject
	p.Then(func(v eventloop.Result) eventloop.Result {
		exports, _ := v.([]any)
		f.settle(exports, nil)
		return nil
	}, func(r eventloop.Result) eventloop.Result {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		f.settle(nil, err)
		return nil
	})
}

// complete resolves or rejects the bound promise. An unbound future settles
// directly.
func (f *Future) complete(exports []any, err error) {
	switch {
	case f.resolve == nil:
		f.settle(exports, err)
	case err != nil:
		f.reject(err)
	default:
		f.resolve(exports)
	}
}

func (f *Future) settle(exports []any, err error) {
	f.once.Do(func() {
		f.exports = exports
		f.err = err
		close(f.done)
	})
}

// Done is closed once the session finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the exports in request order, or a *LoadError. It must
// only be called after Done is closed.
func (f *Future) Result() ([]any, error) {
	return f.exports, f.err
}

// Wait blocks until the session finished or ctx ends.
func (f *Future) Wait(ctx context.Context) ([]any, error) {
	select {
	case <-f.done:
		return f.exports, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
