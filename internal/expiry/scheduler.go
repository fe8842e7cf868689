// Package expiry runs cancellable one-shot tasks used to evict secrets
// when their lifetime ends.
package expiry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler hands out one-shot tasks. Each task fires on its own goroutine
// no earlier than the requested delay, unless cancelled first.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[*Task]struct{}
	stopped bool
	pending atomic.Int64
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		tasks: make(map[*Task]struct{}),
	}
}

// Task is a handle to a scheduled callback.
type Task struct {
	s     *Scheduler
	timer *time.Timer
	done  atomic.Bool // fired or cancelled
}

// After schedules fn to run once d has elapsed.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	t := &Task{s: s}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		t.done.Store(true)
		return t
	}

	s.tasks[t] = struct{}{}
	s.pending.Add(1)
	t.timer = time.AfterFunc(d, func() {
		if !t.finish() {
			return
		}
		fn()
	})
	return t
}

// Cancel prevents the task from firing. It reports whether this call
// stopped it; false means it already fired or was cancelled.
func (t *Task) Cancel() bool {
	if t.timer == nil {
		return false
	}
	if !t.finish() {
		return false
	}
	t.timer.Stop()
	return true
}

// finish moves the task to its terminal state exactly once.
func (t *Task) finish() bool {
	if !t.done.CompareAndSwap(false, true) {
		return false
	}
	t.s.pending.Add(-1)
	t.s.mu.Lock()
	delete(t.s.tasks, t)
	t.s.mu.Unlock()
	return true
}

// Pending returns the number of tasks that have neither fired nor been
// cancelled.
func (s *Scheduler) Pending() int {
	return int(s.pending.Load())
}

// Stop cancels every pending task. Tasks scheduled afterwards never fire.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	tasks := make([]*Task, 0, len(s.tasks))
	for t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
}
