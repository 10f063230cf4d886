// Package concurrency provides a small semaphore-style limiter for
// bounding how many genome chunks are processed at once: a buffered
// channel paired with a waitgroup and a latched first error.
package concurrency

import (
	"sync"
	"sync/atomic"
)

// Throttle bounds the number of concurrent Acquire/Release pairs to Max and
// latches the first error reported via Report, the way cmd/marginphase
// bounds concurrent per-chunk phasing runs.
type Throttle struct {
	Max       int
	wg        sync.WaitGroup
	ch        chan bool
	err       atomic.Value
	setupOnce sync.Once
	errorOnce sync.Once
}

// Acquire blocks until fewer than Max goroutines hold the throttle.
func (t *Throttle) Acquire() {
	t.setupOnce.Do(func() { t.ch = make(chan bool, t.Max) })
	t.wg.Add(1)
	t.ch <- true
}

// Release returns a slot acquired with Acquire.
func (t *Throttle) Release() {
	t.wg.Done()
	<-t.ch
}

// Report records err as the throttle's error if no error has been reported
// yet. Later errors are dropped; call Err to retrieve the first one.
func (t *Throttle) Report(err error) {
	if err != nil {
		t.errorOnce.Do(func() { t.err.Store(err) })
	}
}

// Err returns the first error reported, or nil.
func (t *Throttle) Err() error {
	err, _ := t.err.Load().(error)
	return err
}

// Wait blocks until every acquired slot has been released, then returns the
// first reported error, if any.
func (t *Throttle) Wait() error {
	t.wg.Wait()
	return t.Err()
}
