package sched

import (
	"sync"
	"time"
)

// Fake is a Scheduler driven by a virtual clock. Callbacks only run inside
// Advance, on the caller's goroutine, in due-time order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers map[int]*fakeTimer
}

type fakeTimer struct {
	seq   int
	at    time.Time
	every time.Duration
	fn    func()
}

// NewFake returns a fake scheduler whose clock starts at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, timers: make(map[int]*fakeTimer)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration, fn func()) Cancel {
	return f.add(d, 0, fn)
}

func (f *Fake) Every(d time.Duration, fn func()) Cancel {
	return f.add(d, d, fn)
}

func (f *Fake) add(d, every time.Duration, fn func()) Cancel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := f.seq
	f.timers[id] = &fakeTimer{seq: id, at: f.now.Add(d), every: every, fn: fn}
	return func() {
		f.mu.Lock()
		delete(f.timers, id)
		f.mu.Unlock()
	}
}

// Advance moves the clock forward by d, firing every callback that falls due.
// Repeating timers fire once per elapsed period.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.nextDue(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = next.at
		if next.every > 0 {
			next.at = next.at.Add(next.every)
		} else {
			delete(f.timers, next.seq)
		}
		fn := next.fn
		f.mu.Unlock()

		fn()
	}
}

// Pending reports how many callbacks are still scheduled.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *Fake) nextDue(target time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range f.timers {
		if t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}
