package compositor

import (
	"sync"
	"time"

	"github.com/mprint/editor/internal/editor"
)

// DefaultDebounce is the quiet period applied before a recomposition runs.
const DefaultDebounce = 250 * time.Millisecond

type pendingTask struct {
	timer *time.Timer
	fn    func()
}

// Debouncer coalesces recomposition requests per card side. At most one
// pending task exists per side: scheduling while one is pending supersedes
// it rather than queueing, so rapid layer changes (text typed character by
// character) settle into a single render.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[editor.Side]*pendingTask
	stopped bool
}

// NewDebouncer builds a Debouncer with the given quiet period, defaulting
// to DefaultDebounce when non-positive.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		delay:   delay,
		pending: make(map[editor.Side]*pendingTask),
	}
}

// Schedule arms fn to run after the quiet period, replacing any pending task
// for the same side.
func (d *Debouncer) Schedule(side editor.Side, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if task, ok := d.pending[side]; ok {
		task.timer.Stop()
	}
	task := &pendingTask{fn: fn}
	task.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.pending[side] == task {
			delete(d.pending, side)
		}
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
	d.pending[side] = task
}

// Flush runs the pending task for the side immediately, if any.
func (d *Debouncer) Flush(side editor.Side) {
	d.mu.Lock()
	task, ok := d.pending[side]
	if ok {
		delete(d.pending, side)
	}
	d.mu.Unlock()
	if ok && task.timer.Stop() {
		task.fn()
	}
}

// Stop cancels all pending tasks and rejects further scheduling.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for side, task := range d.pending {
		task.timer.Stop()
		delete(d.pending, side)
	}
}
