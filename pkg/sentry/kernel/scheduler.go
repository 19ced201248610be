// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import (
	"gvisor.dev/gvisor/pkg/errors/linuxerr"
	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/sync"

	"github.com/nerdsane/strideos/pkg/sentry/time"
	"github.com/nerdsane/strideos/pkg/stride"
)

// SchedulerState is a point-in-time view of the scheduler.
type SchedulerState struct {
	// Started indicates whether dispatching has begun.
	Started bool
	// CurrentTID is the TID of the running task (0 if none).
	CurrentTID ThreadID
	// YieldCounter counts yields.
	YieldCounter uint64
	// DispatchCounter counts dispatches.
	DispatchCounter uint64
	// Rollovers counts stride epoch rollovers.
	Rollovers uint64
	// Ready lists queued tasks in queue order.
	Ready []ReadyTask
}

// ReadyTask describes one queued task.
type ReadyTask struct {
	TID      ThreadID
	Priority uint8
	Stride   string
}

// Scheduler runs one task at a time, always choosing the ready task with the
// smallest stride.
//
// Each task runs on its own goroutine but may only execute while it holds the
// permit. A task that gives up the CPU (Yield or Exit) passes the permit to
// the next task chosen by the run queue; the task then parks in
// WaitForPermit until it is chosen again.
type Scheduler struct {
	mu sync.Mutex

	clock time.Clock

	// started indicates whether dispatching has begun.
	// +checklocks:mu
	started bool

	// tasks maps TID to live (not exited) tasks.
	// +checklocks:mu
	tasks map[ThreadID]*Task

	// +checklocks:mu
	ready RunQueue

	// currentTask is the TID of the running task (0 if none).
	// +checklocks:mu
	currentTask ThreadID

	// +checklocks:mu
	yieldCounter uint64

	// +checklocks:mu
	dispatchCounter uint64

	// done is closed once dispatching has started and no live task remains.
	done     chan struct{}
	doneOnce sync.Once

	// stopped is closed by Shutdown. No task is dispatched afterwards.
	stopped  chan struct{}
	stopOnce sync.Once

	// +checklocks:mu
	listeners []SchedulerListener
}

// SchedulerListener is notified of scheduling events. Callbacks run with the
// scheduler lock held and must not call back into the Scheduler.
type SchedulerListener interface {
	// OnTaskScheduled is called when a task is granted the CPU.
	OnTaskScheduled(tid ThreadID)
	// OnTaskYielded is called when a task yields.
	OnTaskYielded(tid ThreadID)
	// OnTaskExited is called when a task exits.
	OnTaskExited(tid ThreadID, code int32)
}

// NewScheduler creates a scheduler that timestamps dispatches with clock.
func NewScheduler(clock time.Clock) *Scheduler {
	return &Scheduler{
		clock:   clock,
		tasks:   make(map[ThreadID]*Task),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins dispatching. Tasks admitted before Start wait until it is
// called.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	if len(s.tasks) == 0 {
		s.finishLocked()
		return
	}
	if s.currentTask == 0 {
		s.scheduleNextLocked()
	}
}

// IsStarted returns whether dispatching has begun.
func (s *Scheduler) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Done returns a channel that is closed once every task has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Admit adds a new task to the run queue. The priority must be at least
// stride.MinPriority.
func (s *Scheduler) Admit(t *Task) error {
	if t.priority < stride.MinPriority {
		return linuxerr.EINVAL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.tid]; exists {
		return linuxerr.EEXIST
	}
	t.status = TaskReady
	s.tasks[t.tid] = t
	s.ready.Push(t)

	// If nothing is running, the new task may run right away.
	if s.started && s.currentTask == 0 {
		s.scheduleNextLocked()
	}
	return nil
}

// WaitForPermit blocks until tid holds the CPU and returns true. It returns
// false once the scheduler has been shut down, and true immediately for
// unknown tasks.
func (s *Scheduler) WaitForPermit(tid ThreadID) bool {
	s.mu.Lock()
	t, exists := s.tasks[tid]
	s.mu.Unlock()
	if !exists {
		return true
	}
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case <-t.permit:
		return true
	case <-s.stopped:
		return false
	}
}

// Shutdown stops dispatching. Tasks parked in WaitForPermit, and any task that
// later gives up the CPU, see WaitForPermit return false. The running task,
// if any, keeps the CPU until it yields or exits.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// lookup returns the live task tid, or nil.
func (s *Scheduler) lookup(tid ThreadID) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[tid]
}

// Yield gives up the CPU. The task's stride advances by one pass for its
// priority before it is queued again, and the next task is dispatched; this
// may be the same task.
func (s *Scheduler) Yield(tid ThreadID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[tid]
	if !exists || s.currentTask != tid {
		return
	}

	s.yieldCounter++
	for _, l := range s.listeners {
		l.OnTaskYielded(tid)
	}

	t.stride.Advance(t.priority)
	t.status = TaskReady
	s.ready.Push(t)

	s.currentTask = 0
	s.scheduleNextLocked()
}

// Exit terminates tid with the given code and dispatches the next task.
func (s *Scheduler) Exit(tid ThreadID, code int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[tid]
	if !exists {
		return
	}

	t.status = TaskExited
	t.exitCode = code
	delete(s.tasks, tid)
	s.ready.Remove(tid)

	for _, l := range s.listeners {
		l.OnTaskExited(tid, code)
	}

	if s.currentTask == tid {
		s.currentTask = 0
		s.scheduleNextLocked()
	}
	if s.started && len(s.tasks) == 0 {
		s.finishLocked()
	}
}

// SetPriority changes the priority used for tid's future stride advances.
func (s *Scheduler) SetPriority(tid ThreadID, prio uint8) error {
	if prio < stride.MinPriority {
		return linuxerr.EINVAL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[tid]
	if !exists {
		return linuxerr.ESRCH
	}
	t.priority = prio
	return nil
}

// GetCurrentTask returns the TID of the running task, or 0.
func (s *Scheduler) GetCurrentTask() ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTask
}

// GetYieldCounter returns the total number of yields.
func (s *Scheduler) GetYieldCounter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.yieldCounter
}

// GetState returns the current scheduler state.
func (s *Scheduler) GetState() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ready := make([]ReadyTask, 0, s.ready.Len())
	for _, t := range s.ready.tasks {
		ready = append(ready, ReadyTask{
			TID:      t.tid,
			Priority: t.priority,
			Stride:   t.stride.String(),
		})
	}
	return SchedulerState{
		Started:         s.started,
		CurrentTID:      s.currentTask,
		YieldCounter:    s.yieldCounter,
		DispatchCounter: s.dispatchCounter,
		Rollovers:       s.ready.Rollovers(),
		Ready:           ready,
	}
}

// AddListener adds a listener for scheduling events.
func (s *Scheduler) AddListener(l SchedulerListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// withCurrent calls fn with the running task under the scheduler lock. It
// returns false if no task is running.
func (s *Scheduler) withCurrent(fn func(t *Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[s.currentTask]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// withTask calls fn with any task, live or exited, under the scheduler lock.
func (s *Scheduler) withTask(t *Task, fn func(t *Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(t)
}

// scheduleNextLocked picks the next task to run and grants it the permit.
//
// +checklocks:s.mu
func (s *Scheduler) scheduleNextLocked() {
	if !s.started {
		return
	}
	select {
	case <-s.stopped:
		return
	default:
	}
	next := s.ready.PopMin()
	if next == nil {
		return
	}

	s.currentTask = next.tid
	next.status = TaskRunning
	if next.dispatches == 0 {
		next.firstDispatchUS = s.clock.NowMicroseconds()
	}
	next.dispatches++
	s.dispatchCounter++
	log.Debugf("sched: dispatch tid=%d stride=%s prio=%d", next.tid, next.stride, next.priority)

	for _, l := range s.listeners {
		l.OnTaskScheduled(next.tid)
	}

	select {
	case next.permit <- struct{}{}:
	default:
	}
}

// +checklocks:s.mu
func (s *Scheduler) finishLocked() {
	s.doneOnce.Do(func() { close(s.done) })
}
