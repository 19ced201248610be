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

// Package kernel implements tasks, the stride-ordered scheduler, and the
// kernel object that services syscalls on behalf of the running task.
package kernel

import (
	"context"
	"runtime"

	"github.com/google/uuid"
	"gvisor.dev/gvisor/pkg/hostarch"
	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/sync"

	"github.com/nerdsane/strideos/pkg/mm"
	"github.com/nerdsane/strideos/pkg/sentry/time"
)

// Config configures a Kernel.
type Config struct {
	// Frames is the number of physical frames.
	Frames int

	// Clock selects the timer.
	Clock time.Config

	// SyscallAdvanceUS is how far a virtual clock moves per syscall.
	// Ignored for the host clock.
	SyscallAdvanceUS uint64
}

// DefaultConfig returns the default kernel configuration.
func DefaultConfig() Config {
	return Config{
		Frames:           1024,
		Clock:            time.Config{Virtual: true},
		SyscallAdvanceUS: 1,
	}
}

// Kernel owns memory, time and the scheduler, and implements the collaborator
// interface used by syscall handlers. Every method that refers to "the
// current task" acts on whichever task holds the CPU.
type Kernel struct {
	bootID uuid.UUID
	cfg    Config

	mem   *mm.Memory
	clock time.Clock
	sched *Scheduler

	mu sync.Mutex

	// +checklocks:mu
	nextTID ThreadID

	// all holds every task ever spawned, in spawn order.
	// +checklocks:mu
	all []*Task

	wg sync.WaitGroup
}

// New creates a Kernel.
func New(cfg Config) *Kernel {
	if cfg.Frames <= 0 {
		cfg.Frames = DefaultConfig().Frames
	}
	clock := time.NewClock(cfg.Clock)
	k := &Kernel{
		bootID:  uuid.New(),
		cfg:     cfg,
		mem:     mm.NewMemory(cfg.Frames),
		clock:   clock,
		sched:   NewScheduler(clock),
		nextTID: 1,
	}
	log.Infof("kernel: boot id=%s frames=%d virtual-clock=%t", k.bootID, cfg.Frames, cfg.Clock.Virtual)
	return k
}

// BootID identifies this kernel instance.
func (k *Kernel) BootID() uuid.UUID {
	return k.bootID
}

// Memory returns the memory system.
func (k *Kernel) Memory() *mm.Memory {
	return k.mem
}

// Clock returns the timer.
func (k *Kernel) Clock() time.Clock {
	return k.clock
}

// Scheduler returns the scheduler.
func (k *Kernel) Scheduler() *Scheduler {
	return k.sched
}

// Spawn creates a task with its own address space and admits it. The entry
// function runs once the scheduler first dispatches the task.
func (k *Kernel) Spawn(name string, priority uint8, layout mm.Layout, entry EntryFunc) (*Task, error) {
	ms, err := k.mem.NewAddressSpace(layout)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	t := newTask(k.nextTID, name, priority)
	k.nextTID++
	k.mu.Unlock()
	t.token = ms.Token()
	t.entry = entry

	if err := k.sched.Admit(t); err != nil {
		k.mem.Release(ms.Token())
		return nil, err
	}

	k.mu.Lock()
	k.all = append(k.all, t)
	k.mu.Unlock()

	k.wg.Add(1)
	go k.taskMain(t)
	log.Infof("kernel: spawned tid=%d name=%q prio=%d token=%d", t.tid, name, priority, t.token)
	return t, nil
}

// taskMain is the body of every task goroutine.
func (k *Kernel) taskMain(t *Task) {
	defer k.wg.Done()
	if !k.sched.WaitForPermit(t.tid) {
		k.kill(t.tid)
	}
	if t.entry != nil {
		t.entry(k)
	}
	k.ExitCurrentAndRunNext(0)
}

// Run starts dispatching and blocks until every task has exited or ctx is
// done.
//
// On cancellation the scheduler is shut down and ctx.Err() is returned at
// once. Parked tasks are killed with ExitKilled and their memory released. The
// task holding the CPU, if any, is killed when it next yields, or exits
// normally; Wait blocks until that has happened.
func (k *Kernel) Run(ctx context.Context) error {
	k.sched.Start()
	select {
	case <-k.sched.Done():
		k.wg.Wait()
		log.Infof("kernel: all tasks exited")
		return nil
	case <-ctx.Done():
		log.Warningf("kernel: run cancelled: %v", ctx.Err())
		k.sched.Shutdown()
		return ctx.Err()
	}
}

// Wait blocks until every task goroutine has finished.
func (k *Kernel) Wait() {
	k.wg.Wait()
}

// Tasks returns every task ever spawned, in spawn order.
func (k *Kernel) Tasks() []*Task {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]*Task(nil), k.all...)
}

// CurrentTID returns the TID of the running task, or 0.
func (k *Kernel) CurrentTID() int32 {
	return int32(k.sched.GetCurrentTask())
}

// ExitCurrentAndRunNext terminates the running task and hands the CPU to the
// next one. When called on a task goroutine it does not return.
func (k *Kernel) ExitCurrentAndRunNext(code int32) {
	var (
		tid   ThreadID
		token mm.Token
	)
	if !k.sched.withCurrent(func(t *Task) {
		tid, token = t.tid, t.token
	}) {
		return
	}
	k.mem.Release(token)
	log.Infof("kernel: tid=%d exited with code %d", tid, code)
	k.sched.Exit(tid, code)
	runtime.Goexit()
}

// SuspendCurrentAndRunNext puts the running task back on the run queue and
// blocks until it is scheduled again.
func (k *Kernel) SuspendCurrentAndRunNext() {
	tid := k.sched.GetCurrentTask()
	if tid == 0 {
		return
	}
	k.sched.Yield(tid)
	if !k.sched.WaitForPermit(tid) {
		k.kill(tid)
	}
}

// ExitKilled is the exit code of a task torn down by a cancelled Run.
const ExitKilled int32 = -1

// kill terminates tid, which must be the calling task goroutine, after the
// scheduler was shut down. It does not return.
func (k *Kernel) kill(tid ThreadID) {
	if t := k.sched.lookup(tid); t != nil {
		k.mem.Release(t.token)
		log.Infof("kernel: tid=%d killed", tid)
		k.sched.Exit(tid, ExitKilled)
	}
	runtime.Goexit()
}

// CurrentToken returns the running task's address space token, or 0.
func (k *Kernel) CurrentToken() mm.Token {
	var token mm.Token
	k.sched.withCurrent(func(t *Task) { token = t.token })
	return token
}

// CurrentTaskInfo returns the running task's diagnostic record.
func (k *Kernel) CurrentTaskInfo() mm.Marshallable {
	now := k.clock.NowMicroseconds()
	info := &TaskInfo{}
	k.sched.withCurrent(func(t *Task) {
		*info = t.infoLocked(now)
	})
	return info
}

// TaskInfo returns the diagnostic record of any task, live or exited.
func (k *Kernel) TaskInfo(t *Task) TaskInfo {
	now := k.clock.NowMicroseconds()
	var info TaskInfo
	k.sched.withTask(t, func(t *Task) { info = t.infoLocked(now) })
	return info
}

// infoLocked builds a TaskInfo. The scheduler lock must be held.
func (t *Task) infoLocked(nowUS uint64) TaskInfo {
	info := TaskInfo{
		Status:       t.status,
		Dispatches:   t.dispatches,
		SyscallTimes: t.syscallTimes,
	}
	if t.dispatches > 0 {
		info.TimeMS = (nowUS - t.firstDispatchUS) / 1000
	}
	return info
}

// InsertRegion maps [start, end) into the running task as an mmap area.
// It returns 0 on success and -1 on overlap or exhaustion.
func (k *Kernel) InsertRegion(start, end hostarch.Addr, perm mm.MapPermission) int64 {
	ms, err := k.mem.Lookup(k.CurrentToken())
	if err == nil {
		err = ms.InsertFramedArea(start, end, perm, mm.AreaMmap)
	}
	if err != nil {
		log.Debugf("kernel: insert [%#x, %#x) %s: %v", start, end, perm, err)
		return -1
	}
	return 0
}

// RemoveRegion unmaps [start, end) from the running task. It returns 0 on
// success and -1 if any page in the range is not an mmap page.
func (k *Kernel) RemoveRegion(start, end hostarch.Addr) int64 {
	ms, err := k.mem.Lookup(k.CurrentToken())
	if err == nil {
		err = ms.RemoveMmapRange(start, end)
	}
	if err != nil {
		log.Debugf("kernel: remove [%#x, %#x): %v", start, end, err)
		return -1
	}
	return 0
}

// ChangeProgramBrk moves the running task's program break by delta bytes and
// returns the previous break.
func (k *Kernel) ChangeProgramBrk(delta int32) (hostarch.Addr, bool) {
	ms, err := k.mem.Lookup(k.CurrentToken())
	if err != nil {
		return 0, false
	}
	old, err := ms.ChangeBrk(int64(delta))
	if err != nil {
		log.Debugf("kernel: brk %+d: %v", delta, err)
		return 0, false
	}
	return old, true
}

// SetCurrentPriority changes the running task's priority. It returns prio on
// success and -1 if prio is out of range.
func (k *Kernel) SetCurrentPriority(prio int64) int64 {
	if prio < 0 || prio > 0xff {
		return -1
	}
	if err := k.sched.SetPriority(k.sched.GetCurrentTask(), uint8(prio)); err != nil {
		return -1
	}
	return prio
}

// RecordSyscall counts sysno against the running task and, with a virtual
// clock, advances time by the configured per-syscall amount.
func (k *Kernel) RecordSyscall(sysno uintptr) {
	k.sched.withCurrent(func(t *Task) {
		if sysno < MaxSyscallNum {
			t.syscallTimes[sysno]++
		}
	})
	if vc := time.GetVirtualClocks(k.clock); vc != nil {
		vc.Advance(k.cfg.SyscallAdvanceUS)
	}
}

// NowMicroseconds returns the time since boot.
func (k *Kernel) NowMicroseconds() uint64 {
	return k.clock.NowMicroseconds()
}

// Translator returns the cross-address-space translator.
func (k *Kernel) Translator() mm.Translator {
	return k.mem
}
