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
	"fmt"

	"github.com/nerdsane/strideos/pkg/mm"
	"github.com/nerdsane/strideos/pkg/stride"
)

// ThreadID is a task identifier. Zero means "no task".
type ThreadID int32

// TaskStatus is the lifecycle state of a task.
type TaskStatus uint32

const (
	// TaskUnInit is a task that has not been admitted.
	TaskUnInit TaskStatus = iota
	// TaskReady is waiting in the run queue.
	TaskReady
	// TaskRunning holds the CPU.
	TaskRunning
	// TaskExited has terminated.
	TaskExited
)

// String implements fmt.Stringer.
func (s TaskStatus) String() string {
	switch s {
	case TaskUnInit:
		return "uninit"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskExited:
		return "exited"
	default:
		return fmt.Sprintf("TaskStatus(%d)", uint32(s))
	}
}

// EntryFunc is the body of a user task. It runs on the task's own goroutine
// and only while the task holds the CPU. Returning from it exits the task
// with code 0.
type EntryFunc func(k *Kernel)

// Task is a task control block.
//
// Scheduling fields are guarded by the owning Scheduler's mutex.
type Task struct {
	tid  ThreadID
	name string

	priority uint8
	stride   stride.Stride
	status   TaskStatus
	exitCode int32

	// dispatches counts how many times the task was given the CPU.
	dispatches uint64

	// firstDispatchUS is the clock reading at the first dispatch. It is
	// only meaningful once dispatches is non-zero.
	firstDispatchUS uint64

	syscallTimes [MaxSyscallNum]uint32

	// token names the task's address space.
	token mm.Token

	entry EntryFunc

	// permit is sent on to hand the CPU to this task.
	permit chan struct{}
}

func newTask(tid ThreadID, name string, priority uint8) *Task {
	return &Task{
		tid:      tid,
		name:     name,
		priority: priority,
		stride:   stride.New(0),
		status:   TaskUnInit,
		permit:   make(chan struct{}, 1),
	}
}

// TID returns the task's identifier.
func (t *Task) TID() ThreadID {
	return t.tid
}

// Name returns the task's name.
func (t *Task) Name() string {
	return t.name
}

// Token returns the task's address space token.
func (t *Task) Token() mm.Token {
	return t.token
}
