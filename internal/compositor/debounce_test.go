package compositor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/mprint/editor/internal/editor"
)

func TestDebouncerCoalescesRapidRequests(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var runs int64
	for i := 0; i < 10; i++ {
		d.Schedule(editor.SideFront, func() { atomic.AddInt64(&runs, 1) })
		time.Sleep(2 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&runs) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Allow any stragglers to fire before asserting.
	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Fatalf("runs = %d, want 1 settled recomposition", got)
	}
}

func TestDebouncerSidesAreIndependent(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Stop()

	var front, back int64
	d.Schedule(editor.SideFront, func() { atomic.AddInt64(&front, 1) })
	d.Schedule(editor.SideBack, func() { atomic.AddInt64(&back, 1) })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt64(&front) == 1 && atomic.LoadInt64(&back) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("front = %d back = %d, want both scheduled tasks to run", front, back)
}

func TestDebouncerFlushRunsImmediately(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.Stop()

	var runs int64
	d.Schedule(editor.SideFront, func() { atomic.AddInt64(&runs, 1) })
	d.Flush(editor.SideFront)
	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Fatalf("runs = %d, want flush to run the pending task", got)
	}

	// Flushing with nothing pending is a no-op.
	d.Flush(editor.SideFront)
	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Fatalf("runs = %d after empty flush, want 1", got)
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var runs int64
	d.Schedule(editor.SideFront, func() { atomic.AddInt64(&runs, 1) })
	d.Stop()
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != 0 {
		t.Fatalf("runs = %d, want stopped task not to fire", got)
	}

	d.Schedule(editor.SideFront, func() { atomic.AddInt64(&runs, 1) })
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != 0 {
		t.Fatalf("runs = %d, want scheduling rejected after Stop", got)
	}
}
