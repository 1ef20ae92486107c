package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFiresOnce(t *testing.T) {
	f := NewFake(epoch)
	calls := 0
	f.After(time.Second, func() { calls++ })

	f.Advance(999 * time.Millisecond)
	if calls != 0 {
		t.Fatalf("fired early: calls = %d", calls)
	}
	f.Advance(time.Millisecond)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	f.Advance(10 * time.Second)
	if calls != 1 {
		t.Errorf("one-shot fired again: calls = %d", calls)
	}
	if f.Pending() != 0 {
		t.Errorf("pending = %d, want 0", f.Pending())
	}
}

func TestFakeEveryFiresPerPeriod(t *testing.T) {
	f := NewFake(epoch)
	calls := 0
	cancel := f.Every(time.Second, func() { calls++ })

	f.Advance(5 * time.Second)
	if calls != 5 {
		t.Fatalf("calls = %d, want 5", calls)
	}
	cancel()
	f.Advance(5 * time.Second)
	if calls != 5 {
		t.Errorf("fired after cancel: calls = %d", calls)
	}
}

func TestFakeCallbackSeesDueTime(t *testing.T) {
	f := NewFake(epoch)
	var seen time.Time
	f.After(1200*time.Millisecond, func() { seen = f.Now() })

	f.Advance(5 * time.Second)
	if want := epoch.Add(1200 * time.Millisecond); !seen.Equal(want) {
		t.Errorf("Now() inside callback = %v, want %v", seen, want)
	}
	if want := epoch.Add(5 * time.Second); !f.Now().Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", f.Now(), want)
	}
}

func TestFakeOrdersByDueTime(t *testing.T) {
	f := NewFake(epoch)
	var order []string
	f.After(400*time.Millisecond, func() { order = append(order, "cleanup") })
	f.After(100*time.Millisecond, func() { order = append(order, "first") })
	f.After(100*time.Millisecond, func() { order = append(order, "second") })

	f.Advance(time.Second)
	want := []string{"first", "second", "cleanup"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestFakeCallbackMaySchedule(t *testing.T) {
	f := NewFake(epoch)
	fired := false
	f.After(time.Second, func() {
		f.After(time.Second, func() { fired = true })
	})

	f.Advance(2 * time.Second)
	if !fired {
		t.Error("timer scheduled from a callback did not fire within the same Advance")
	}
}

func TestRealAfterAndCancel(t *testing.T) {
	r := NewReal()
	var fired atomic.Bool
	done := make(chan struct{})
	r.After(10*time.Millisecond, func() {
		fired.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for After callback")
	}

	var cancelled atomic.Bool
	cancel := r.After(50*time.Millisecond, func() { cancelled.Store(true) })
	cancel()
	time.Sleep(100 * time.Millisecond)
	if cancelled.Load() {
		t.Error("cancelled callback fired")
	}
}

func TestRealEveryStops(t *testing.T) {
	r := NewReal()
	var ticks atomic.Int32
	cancel := r.Every(5*time.Millisecond, func() { ticks.Add(1) })
	time.Sleep(50 * time.Millisecond)
	cancel()
	cancel()
	n := ticks.Load()
	if n == 0 {
		t.Fatal("no ticks delivered")
	}
	time.Sleep(30 * time.Millisecond)
	if after := ticks.Load(); after > n+1 {
		t.Errorf("ticks kept arriving after cancel: %d -> %d", n, after)
	}
}
