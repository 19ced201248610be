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

package usr

import (
	"bytes"
	"fmt"
	"sort"

	"gvisor.dev/gvisor/pkg/hostarch"
	"gvisor.dev/gvisor/pkg/log"

	"github.com/nerdsane/strideos/pkg/mm"
	"github.com/nerdsane/strideos/pkg/sentry/kernel"
	"github.com/nerdsane/strideos/pkg/sentry/syscalls"
)

// Program is a user program. arg is a program-specific tuning knob; zero
// selects the program's default. The return value is the exit code.
type Program func(u *User, arg int64) int32

// Exit codes reported by the built-in programs when a check fails.
const (
	ExitOK int32 = iota
	ExitSyscallFailed
	ExitBadValue
	ExitNoFault
)

var programs = map[string]Program{
	"spin":   Spin,
	"clock":  Clock,
	"mapper": Mapper,
	"heap":   Heap,
	"info":   Info,
}

// Lookup returns the built-in program called name.
func Lookup(name string) (Program, error) {
	p, ok := programs[name]
	if !ok {
		return nil, fmt.Errorf("unknown program %q", name)
	}
	return p, nil
}

// Names lists the built-in programs.
func Names() []string {
	names := make([]string, 0, len(programs))
	for n := range programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entry adapts p into a task entry point.
func Entry(p Program, layout mm.Layout, arg int64) kernel.EntryFunc {
	return func(k *kernel.Kernel) {
		u := NewUser(k, layout)
		u.Exit(p(u, arg))
	}
}

// straddle returns a stack address where an n-byte object crosses the edge
// between the first and second stack pages.
func (u *User) straddle(n int) hostarch.Addr {
	return u.layout.StackBottom() + hostarch.PageSize - hostarch.Addr(n/2)
}

// Spin yields arg times (default 100).
func Spin(u *User, arg int64) int32 {
	if arg <= 0 {
		arg = 100
	}
	for i := int64(0); i < arg; i++ {
		if u.Yield() != 0 {
			return ExitSyscallFailed
		}
	}
	return ExitOK
}

// Clock reads the time arg times (default 10) into a TimeVal that crosses a
// page boundary, yielding in between, and checks that time never goes
// backwards.
func Clock(u *User, arg int64) int32 {
	if arg <= 0 {
		arg = 10
	}
	ts := u.straddle(16)
	var last uint64
	for i := int64(0); i < arg; i++ {
		if u.GetTime(ts) != 0 {
			return ExitSyscallFailed
		}
		tv, err := u.LoadTimeVal(ts)
		if err != nil || tv.Usec >= 1_000_000 {
			return ExitBadValue
		}
		now := tv.Sec*1_000_000 + tv.Usec
		if now < last {
			return ExitBadValue
		}
		last = now
		u.Yield()
	}
	return ExitOK
}

// MapperBase is where Mapper places its mapping.
const MapperBase hostarch.Addr = 0x1000_0000

// Mapper maps arg pages (default 2) read-write, fills them, unmaps them and
// checks that the range faults afterwards.
func Mapper(u *User, arg int64) int32 {
	if arg <= 0 {
		arg = 2
	}
	length := uint64(arg) * hostarch.PageSize
	if u.Mmap(MapperBase, length, 0x3) != 0 {
		return ExitSyscallFailed
	}
	pattern := bytes.Repeat([]byte{0x5a}, int(length))
	if err := u.Store(MapperBase, pattern); err != nil {
		return ExitBadValue
	}
	got, err := u.Load(MapperBase, int(length))
	if err != nil || !bytes.Equal(got, pattern) {
		return ExitBadValue
	}
	if u.Munmap(MapperBase, length) != 0 {
		return ExitSyscallFailed
	}
	if _, err := u.Load(MapperBase, 1); err == nil {
		return ExitNoFault
	}
	return ExitOK
}

// Heap grows the break by arg bytes (default one page), writes to the new
// memory, then shrinks it back and checks the break is where it started.
func Heap(u *User, arg int64) int32 {
	if arg <= 0 {
		arg = hostarch.PageSize
	}
	base := u.Sbrk(int32(arg))
	if base < 0 {
		return ExitSyscallFailed
	}
	if err := u.Store(hostarch.Addr(base), []byte("heap")); err != nil {
		return ExitBadValue
	}
	if old := u.Sbrk(-int32(arg)); old != base+arg {
		return ExitBadValue
	}
	if cur := u.Sbrk(0); cur != base {
		return ExitBadValue
	}
	return ExitOK
}

// Info fetches task_info into a record that crosses a page boundary and
// checks what it says about the caller.
func Info(u *User, arg int64) int32 {
	var ti kernel.TaskInfo
	addr := u.straddle(ti.SizeBytes())
	if u.TaskInfo(addr) != 0 {
		return ExitSyscallFailed
	}
	ti, err := u.LoadTaskInfo(addr)
	if err != nil {
		return ExitBadValue
	}
	if ti.Status != kernel.TaskRunning || ti.SyscallTimes[syscalls.SysTaskInfo] != 1 || ti.Dispatches == 0 {
		log.Warningf("info: unexpected task info status=%s task_info=%d dispatches=%d",
			ti.Status, ti.SyscallTimes[syscalls.SysTaskInfo], ti.Dispatches)
		return ExitBadValue
	}
	return ExitOK
}
