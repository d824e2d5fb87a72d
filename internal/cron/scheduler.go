// Package cron runs delayed and periodic tasks with cancellation handles.
// Time comes from a Clock so tests can drive schedules without sleeping.
package cron

import (
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// Scheduler owns every pending task.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	nextID  uint64
	handles map[uint64]*Handle
	stopped bool
}

// Handle is a scheduled task. Cancel is safe to call at any time.
type Handle struct {
	id   uint64
	name string
	s    *Scheduler

	mu        sync.Mutex
	timer     Timer
	due       time.Time
	cancelled bool
}

// New creates a scheduler. A nil clock means the wall clock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock, handles: make(map[uint64]*Handle)}
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// After runs fn once after d.
func (s *Scheduler) After(d time.Duration, name string, fn func()) *Handle {
	if d < 0 {
		d = 0
	}
	h := s.register(name)
	h.arm(s.clock.Now().Add(d), d, func() {
		s.forget(h)
		s.run(h, fn)
	})
	return h
}

// At runs fn once at t. A time in the past fires on the next tick.
func (s *Scheduler) At(t time.Time, name string, fn func()) *Handle {
	return s.After(t.Sub(s.clock.Now()), name, fn)
}

// Every runs fn on a cron schedule ("*/5 * * * *", "@daily", "@every 10m")
// until the handle is cancelled.
func (s *Scheduler) Every(expr, name string, fn func()) (*Handle, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	h := s.register(name)
	s.armEvery(h, sched, fn)
	return h, nil
}

func (s *Scheduler) armEvery(h *Handle, sched cronlib.Schedule, fn func()) {
	now := s.clock.Now()
	next := sched.Next(now)
	h.arm(next, next.Sub(now), func() {
		s.run(h, fn)
		s.armEvery(h, sched, fn)
	})
}

// Pending lists the names of live tasks, soonest first.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	hs := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	sort.Slice(hs, func(i, j int) bool { return hs[i].Due().Before(hs[j].Due()) })
	names := make([]string, len(hs))
	for i, h := range hs {
		names[i] = h.name
	}
	return names
}

// Stop cancels every pending task. Later After/At/Every calls return
// handles that never fire.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	hs := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	for _, h := range hs {
		h.Cancel()
	}
}

func (s *Scheduler) register(name string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h := &Handle{id: s.nextID, name: name, s: s}
	if s.stopped {
		h.cancelled = true
		return h
	}
	s.handles[h.id] = h
	return h
}

func (s *Scheduler) forget(h *Handle) {
	s.mu.Lock()
	delete(s.handles, h.id)
	s.mu.Unlock()
}

func (s *Scheduler) run(h *Handle, fn func()) {
	if h.Cancelled() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			L_error("cron: task panic", "task", h.name, "panic", r)
		}
	}()
	L_debug("cron: running task", "task", h.name)
	fn()
}

func (h *Handle) arm(due time.Time, d time.Duration, fire func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return
	}
	h.due = due
	h.timer = h.s.clock.AfterFunc(d, fire)
}

// Cancel stops the task. Returns false if it already ran (one-shot) or was
// already cancelled.
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return false
	}
	h.cancelled = true
	stopped := h.timer != nil && h.timer.Stop()
	h.mu.Unlock()

	h.s.forget(h)
	return stopped
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Name returns the task name.
func (h *Handle) Name() string {
	return h.name
}

// Due returns when the task next fires.
func (h *Handle) Due() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.due
}
