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

	"github.com/nerdsane/strideos/pkg/mm"
)

// TimeVal is the user ABI record filled in by get_time: two 64-bit words,
// seconds then microseconds.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// SizeBytes implements mm.Marshallable.SizeBytes.
func (tv *TimeVal) SizeBytes() int {
	return 16
}

// MarshalBytes implements mm.Marshallable.MarshalBytes.
func (tv *TimeVal) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint64(dst[0:], tv.Sec)
	hostarch.ByteOrder.PutUint64(dst[8:], tv.Usec)
	return dst[16:]
}

// UnmarshalBytes decodes src and returns the remainder.
func (tv *TimeVal) UnmarshalBytes(src []byte) []byte {
	tv.Sec = hostarch.ByteOrder.Uint64(src[0:])
	tv.Usec = hostarch.ByteOrder.Uint64(src[8:])
	return src[16:]
}

// protMask covers the read, write and execute bits of mmap's prot argument.
const protMask = 0x7

// Exit terminates the calling task. It never returns.
func Exit(ctx Context, code int32) {
	log.Debugf("syscall: exit tid=%d code=%d", ctx.CurrentTID(), code)
	ctx.ExitCurrentAndRunNext(code)
	panic("unreachable in sys_exit")
}

// Yield gives up the CPU until the scheduler picks the task again.
func Yield(ctx Context) int64 {
	log.Debugf("syscall: yield tid=%d", ctx.CurrentTID())
	ctx.SuspendCurrentAndRunNext()
	return 0
}

// GetTime writes the time since boot to the TimeVal at ts. The timezone
// argument is ignored.
func GetTime(ctx Context, ts hostarch.Addr, _ uintptr) int64 {
	us := ctx.NowMicroseconds()
	tv := TimeVal{
		Sec:  us / 1_000_000,
		Usec: us % 1_000_000,
	}
	if err := mm.CopyOutObject(ctx.Translator(), ctx.CurrentToken(), ts, &tv); err != nil {
		log.Debugf("syscall: get_time tid=%d ts=%#x: %v", ctx.CurrentTID(), ts, err)
		return -1
	}
	return 0
}

// TaskInfo writes the calling task's diagnostic record to ti.
func TaskInfo(ctx Context, ti hostarch.Addr) int64 {
	if err := mm.CopyOutObject(ctx.Translator(), ctx.CurrentToken(), ti, ctx.CurrentTaskInfo()); err != nil {
		log.Debugf("syscall: task_info tid=%d ti=%#x: %v", ctx.CurrentTID(), ti, err)
		return -1
	}
	return 0
}

// Mmap maps length bytes at start with the given protection. start must be
// page aligned and prot must be a non-empty subset of read, write and execute.
func Mmap(ctx Context, start hostarch.Addr, length uint64, prot uint64) int64 {
	if !start.IsPageAligned() || prot&^protMask != 0 || prot&protMask == 0 {
		return -1
	}
	end, ok := start.AddLength(length)
	if !ok {
		return -1
	}
	perm := mm.MapPermission(prot<<1) | mm.PermU
	return ctx.InsertRegion(start, end, perm)
}

// Munmap unmaps length bytes at start, which must be page aligned.
func Munmap(ctx Context, start hostarch.Addr, length uint64) int64 {
	if !start.IsPageAligned() {
		return -1
	}
	end, ok := start.AddLength(length)
	if !ok {
		return -1
	}
	return ctx.RemoveRegion(start, end)
}

// Sbrk moves the program break by delta bytes and returns the old break.
func Sbrk(ctx Context, delta int32) int64 {
	old, ok := ctx.ChangeProgramBrk(delta)
	if !ok {
		return -1
	}
	return int64(old)
}

// SetPriority sets the calling task's scheduling priority.
func SetPriority(ctx Context, prio int64) int64 {
	return ctx.SetCurrentPriority(prio)
}
