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

// Package usr is the user side of the kernel: a thin syscall library and a
// set of built-in programs that exercise it.
package usr

import (
	"gvisor.dev/gvisor/pkg/hostarch"

	"github.com/nerdsane/strideos/pkg/mm"
	"github.com/nerdsane/strideos/pkg/sentry/kernel"
	"github.com/nerdsane/strideos/pkg/sentry/syscalls"
)

// User issues syscalls and touches memory as the running task.
type User struct {
	k      *kernel.Kernel
	layout mm.Layout
}

// NewUser returns the user view of k for a task built with layout.
func NewUser(k *kernel.Kernel, layout mm.Layout) *User {
	return &User{k: k, layout: layout}
}

// Layout returns the task's initial address space layout.
func (u *User) Layout() mm.Layout {
	return u.layout
}

// Syscall traps into the kernel.
func (u *User) Syscall(sysno uintptr, a0, a1, a2 uintptr) int64 {
	return syscalls.Dispatch(u.k, sysno, syscalls.Args{a0, a1, a2})
}

// Exit terminates the task.
func (u *User) Exit(code int32) {
	u.Syscall(syscalls.SysExit, uintptr(code), 0, 0)
}

// Yield gives up the CPU.
func (u *User) Yield() int64 {
	return u.Syscall(syscalls.SysYield, 0, 0, 0)
}

// GetTime fills the TimeVal at ts.
func (u *User) GetTime(ts hostarch.Addr) int64 {
	return u.Syscall(syscalls.SysGetTime, uintptr(ts), 0, 0)
}

// TaskInfo fills the TaskInfo at ti.
func (u *User) TaskInfo(ti hostarch.Addr) int64 {
	return u.Syscall(syscalls.SysTaskInfo, uintptr(ti), 0, 0)
}

// Mmap maps length bytes at start.
func (u *User) Mmap(start hostarch.Addr, length uint64, prot uint64) int64 {
	return u.Syscall(syscalls.SysMmap, uintptr(start), uintptr(length), uintptr(prot))
}

// Munmap unmaps length bytes at start.
func (u *User) Munmap(start hostarch.Addr, length uint64) int64 {
	return u.Syscall(syscalls.SysMunmap, uintptr(start), uintptr(length), 0)
}

// Sbrk moves the program break.
func (u *User) Sbrk(delta int32) int64 {
	return u.Syscall(syscalls.SysSbrk, uintptr(delta), 0, 0)
}

// SetPriority sets the task's priority.
func (u *User) SetPriority(prio int64) int64 {
	return u.Syscall(syscalls.SysSetPriority, uintptr(prio), 0, 0)
}

// Load reads n bytes at addr with user permissions. It fails with EFAULT
// where a user load would fault.
func (u *User) Load(addr hostarch.Addr, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := mm.CopyIn(u.k.Memory(), u.k.CurrentToken(), addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Store writes data at addr with user permissions.
func (u *User) Store(addr hostarch.Addr, data []byte) error {
	_, err := mm.CopyOut(u.k.Memory(), u.k.CurrentToken(), addr, data)
	return err
}

// LoadTimeVal decodes the TimeVal at addr.
func (u *User) LoadTimeVal(addr hostarch.Addr) (syscalls.TimeVal, error) {
	var tv syscalls.TimeVal
	buf, err := u.Load(addr, tv.SizeBytes())
	if err != nil {
		return tv, err
	}
	tv.UnmarshalBytes(buf)
	return tv, nil
}

// LoadTaskInfo decodes the TaskInfo at addr.
func (u *User) LoadTaskInfo(addr hostarch.Addr) (kernel.TaskInfo, error) {
	var ti kernel.TaskInfo
	buf, err := u.Load(addr, ti.SizeBytes())
	if err != nil {
		return ti, err
	}
	ti.UnmarshalBytes(buf)
	return ti, nil
}
