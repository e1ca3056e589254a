package loader

import (
	"context"
	"fmt"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
)

// executor owns the loader state. Tasks submitted from any goroutine run one
// at a time on the event loop goroutine; timers and promises settle there
// too.
type executor struct {
	loop    *eventloop.Loop
	js      *eventloop.JS
	stopped chan struct{}
}

func newExecutor() (*executor, error) {
	loop, err := eventloop.New(eventloop.WithStrictMicrotaskOrdering(true))
	if err != nil {
		return nil, fmt.Errorf("create event loop: %w", err)
	}
	js, err := eventloop.NewJS(loop)
	if err != nil {
		loop.Close()
		return nil, fmt.Errorf("create timer adapter: %w", err)
	}

	e := &executor{loop: loop, js: js, stopped: make(chan struct{})}
	go func() {
		defer close(e.stopped)
		loop.Run(context.Background())
	}()
	return e, nil
}

// Submit queues fn. It returns false once the loop is shut down.
func (e *executor) Submit(fn func()) bool {
	if e == nil {
		return false
	}
	return e.loop.Submit(fn) == nil
}

// Call runs fn on the loop and waits for it. It must not be used from a
// task already running on the loop.
func (e *executor) Call(fn func()) bool {
	done := make(chan struct{})
	if !e.Submit(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	<-done
	return true
}

// After runs fn on the loop once d has passed. The returned function clears
// the timer.
func (e *executor) After(d time.Duration, fn func()) (func(), error) {
	ms := int(d / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	id, err := e.js.SetTimeout(fn, ms)
	if err != nil {
		return nil, fmt.Errorf("schedule timer: %w", err)
	}
	return func() { e.js.ClearTimeout(id) }, nil
}

// Stop runs the queued tasks, refuses new ones and waits for the loop
// goroutine to exit.
func (e *executor) Stop() {
	if e == nil {
		return
	}
	e.loop.Shutdown(context.Background())
	<-e.stopped
}
