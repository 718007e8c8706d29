// Package waiter provides the process-wide wake primitive shared by the
// filesystem layer and its owning event loop, plus the coarse decisecond
// tick used to debounce change notifications.
//
// The model is cooperative: any component may call Notify to wake the
// loop; the loop parks in Wait (or WaitTimeout) between dispatch passes.
// A Waiter carries at most one pending wake, so redundant Notify calls
// collapse instead of queueing.
package waiter

import "time"

// Waiter is a single-slot wake signal.
type Waiter struct {
	wake chan struct{}
}

// New returns a Waiter with no wake pending.
func New() *Waiter {
	return &Waiter{wake: make(chan struct{}, 1)}
}

// Notify wakes the next (or current) Wait call. Safe to call from any
// goroutine; a wake that is already pending is not duplicated.
func (w *Waiter) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Wait parks until a wake is delivered. It must not be called from the
// wake-delivery path itself, which would deadlock the loop.
func (w *Waiter) Wait() {
	<-w.wake
}

// WaitTimeout parks until a wake is delivered or the timeout elapses.
// It reports whether a wake was received.
func (w *Waiter) WaitTimeout(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-w.wake:
		return true
	case <-t.C:
		return false
	}
}

// processStart anchors the debounce tick so that Ds is never zero; a zero
// timestamp on a queued notification means "dispatch immediately".
var processStart = time.Now()

// Ds returns the current debounce tick in deciseconds since process start.
// The first tick is 1, never 0.
func Ds() int64 {
	return int64(time.Since(processStart)/(100*time.Millisecond)) + 1
}
