// Package sched abstracts one-shot and repeating timers so timer-driven
// state transitions can run against a virtual clock in tests.
package sched

import (
	"sync"
	"time"
)

// Cancel stops a scheduled callback. Calling it more than once is safe.
type Cancel func()

// Scheduler schedules callbacks and reports the current time.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Cancel
	Every(d time.Duration, fn func()) Cancel
}

// Real is a Scheduler backed by the runtime timers.
type Real struct{}

// NewReal returns a wall-clock scheduler.
func NewReal() *Real {
	return &Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

// After runs fn on its own goroutine once d has elapsed.
func (Real) After(d time.Duration, fn func()) Cancel {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Every runs fn every d until cancelled. Ticks are delivered sequentially.
func (Real) Every(d time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}
