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

// Package syscalls implements the process-control syscalls: exit, yield,
// get_time, task_info, mmap, munmap, sbrk and set_priority.
//
// Handlers never reach for global state. Each takes a Context naming the
// calling task's kernel, and reports failure with the -1 sentinel.
package syscalls

import (
	"gvisor.dev/gvisor/pkg/hostarch"

	"github.com/nerdsane/strideos/pkg/mm"
)

// Syscall numbers.
const (
	SysExit        = 93
	SysYield       = 124
	SysSetPriority = 140
	SysGetTime     = 169
	SysSbrk        = 214
	SysMunmap      = 215
	SysMmap        = 222
	SysTaskInfo    = 410
)

// Context is what a syscall handler needs from the kernel. "Current" always
// means the task that issued the syscall.
type Context interface {
	// ExitCurrentAndRunNext terminates the current task. It does not return.
	ExitCurrentAndRunNext(code int32)

	// SuspendCurrentAndRunNext requeues the current task and returns once
	// it is scheduled again.
	SuspendCurrentAndRunNext()

	// CurrentTID identifies the current task.
	CurrentTID() int32

	// CurrentToken names the current task's address space.
	CurrentToken() mm.Token

	// CurrentTaskInfo returns the current task's diagnostic record.
	CurrentTaskInfo() mm.Marshallable

	// InsertRegion maps [start, end) with perm; 0 or -1.
	InsertRegion(start, end hostarch.Addr, perm mm.MapPermission) int64

	// RemoveRegion unmaps [start, end); 0 or -1.
	RemoveRegion(start, end hostarch.Addr) int64

	// ChangeProgramBrk moves the break and returns the old one.
	ChangeProgramBrk(delta int32) (hostarch.Addr, bool)

	// SetCurrentPriority sets the priority; prio or -1.
	SetCurrentPriority(prio int64) int64

	// RecordSyscall counts an incoming syscall.
	RecordSyscall(sysno uintptr)

	// NowMicroseconds reads the monotonic clock.
	NowMicroseconds() uint64

	// Translator resolves user addresses.
	Translator() mm.Translator
}

// Args are the raw syscall arguments.
type Args [3]uintptr

// Name returns the name of sysno, or "" if it is not implemented.
func Name(sysno uintptr) string {
	switch sysno {
	case SysExit:
		return "exit"
	case SysYield:
		return "yield"
	case SysSetPriority:
		return "set_priority"
	case SysGetTime:
		return "get_time"
	case SysSbrk:
		return "sbrk"
	case SysMunmap:
		return "munmap"
	case SysMmap:
		return "mmap"
	case SysTaskInfo:
		return "task_info"
	default:
		return ""
	}
}
