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

package syscalls

import (
	"gvisor.dev/gvisor/pkg/hostarch"
	"gvisor.dev/gvisor/pkg/log"

	"github.com/nerdsane/strideos/pkg/sentry/strace"
)

// Dispatch counts and runs syscall sysno for the current task of ctx and
// returns the value placed in the task's return register. Unknown numbers
// return -1. Dispatch does not return for exit.
func Dispatch(ctx Context, sysno uintptr, args Args) int64 {
	ctx.RecordSyscall(sysno)
	span := strace.Enter(ctx.CurrentTID(), sysno, Name(sysno), args)

	var ret int64
	switch sysno {
	case SysExit:
		strace.Exit(span, 0)
		Exit(ctx, int32(args[0]))
	case SysYield:
		ret = Yield(ctx)
	case SysSetPriority:
		ret = SetPriority(ctx, int64(args[0]))
	case SysGetTime:
		ret = GetTime(ctx, hostarch.Addr(args[0]), args[1])
	case SysSbrk:
		ret = Sbrk(ctx, int32(args[0]))
	case SysMunmap:
		ret = Munmap(ctx, hostarch.Addr(args[0]), uint64(args[1]))
	case SysMmap:
		ret = Mmap(ctx, hostarch.Addr(args[0]), uint64(args[1]), uint64(args[2]))
	case SysTaskInfo:
		ret = TaskInfo(ctx, hostarch.Addr(args[0]))
	default:
		log.Warningf("syscall: tid=%d unsupported syscall %d", ctx.CurrentTID(), sysno)
		ret = -1
	}
	strace.Exit(span, ret)
	return ret
}
