// Package dispatch runs "check X visits node Y" units of work.
//
// Execute is a join barrier: it returns only after every unit passed to it
// has finished. Serial runs units in order on the calling goroutine; Pool fans
// them out to a fixed set of worker goroutines and inspects one Result per
// unit once all of them are in.
package dispatch

import (
	"context"
	"errors"

	"arbor/internal/check"
)

// Unit is one unit of work. It must not retain references to the executor.
type Unit func() error

// Result is the outcome of one unit submitted to a Pool.
type Result struct {
	Index int
	Err   error
}

// Failed reports whether the unit returned an error or panicked.
func (r Result) Failed() bool { return r.Err != nil }

var (
	// ErrPoolClosed is returned by Execute after Destroy.
	ErrPoolClosed = errors.New("dispatch: pool is shut down")
	// ErrTaskFailed wraps the first failed unit of a pooled Execute.
	ErrTaskFailed = errors.New("unable to execute tasks")
)

// Executor is the strategy used by the walker.
type Executor interface {
	// Init prepares the executor for a run. Resources may be allocated lazily.
	Init(ctx context.Context) error
	// Execute runs units and blocks until all of them finished.
	Execute(ctx context.Context, units []Unit) error
	// Destroy releases resources; it is safe to call more than once.
	Destroy()
	// Concurrent reports whether units of one Execute may run in parallel.
	Concurrent() bool
}

// New returns Serial for threads <= 1 and a Pool otherwise.
func New(threads int, opts ...Option) Executor {
	if threads <= 1 {
		return NewSerial()
	}
	return NewPool(threads, opts...)
}

// runUnit executes u with panic recovery so that a worker never dies.
func runUnit(u Unit) error {
	return check.Call(u)
}
