// Package debounce models deferred cleanup as scheduled tasks with an
// explicit cancel handle, so idle-eviction timers can be replaced,
// cancelled and driven manually in tests.
package debounce

import (
	"sort"
	"sync"
	"time"
)

// Handle refers to a scheduled task. Cancel reports whether the task
// was still pending when cancelled.
type Handle interface {
	Cancel() bool
}

// Scheduler runs a function once after a delay.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
}

type timerScheduler struct{}

type timerHandle struct {
	timer *time.Timer
}

func (h *timerHandle) Cancel() bool {
	return h.timer.Stop()
}

// NewTimerScheduler returns a Scheduler backed by time.AfterFunc.
func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) Schedule(delay time.Duration, fn func()) Handle {
	return &timerHandle{timer: time.AfterFunc(delay, fn)}
}

// Manual is a Scheduler for tests: tasks fire only when the fake clock
// is advanced past their deadline.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks map[int]*manualTask
}

type manualTask struct {
	owner    *Manual
	id       int
	deadline time.Duration
	fn       func()
}

func (t *manualTask) Cancel() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if _, ok := t.owner.tasks[t.id]; !ok {
		return false
	}
	delete(t.owner.tasks, t.id)
	return true
}

// NewManual returns a manually driven scheduler.
func NewManual() *Manual {
	return &Manual{tasks: make(map[int]*manualTask)}
}

func (m *Manual) Schedule(delay time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	task := &manualTask{
		owner:    m,
		id:       m.seq,
		deadline: m.now + delay,
		fn:       fn,
	}
	m.tasks[task.id] = task
	return task
}

// Advance moves the fake clock forward and fires every task whose
// deadline has passed, in deadline order. Callbacks run without the
// scheduler lock held so they may schedule or cancel further tasks.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualTask
	for id, task := range m.tasks {
		if task.deadline <= m.now {
			due = append(due, task)
			delete(m.tasks, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline < due[j].deadline })
	for _, task := range due {
		task.fn()
	}
}

// Pending returns the number of tasks that have not fired or been cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
