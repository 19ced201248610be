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
	"gvisor.dev/gvisor/pkg/hostarch"
)

// MaxSyscallNum bounds the syscall numbers counted in TaskInfo.
const MaxSyscallNum = 500

// TaskInfo is the diagnostic record returned by task_info.
//
// User ABI, little endian, 2024 bytes:
//
//	0     Status       uint32
//	4     (padding)    uint32
//	8     Dispatches   uint64
//	16    TimeMS       uint64
//	24    SyscallTimes [MaxSyscallNum]uint32
type TaskInfo struct {
	Status TaskStatus

	// Dispatches is the number of times the task was scheduled.
	Dispatches uint64

	// TimeMS is the time in milliseconds since the task was first scheduled.
	TimeMS uint64

	// SyscallTimes counts calls per syscall number.
	SyscallTimes [MaxSyscallNum]uint32
}

const taskInfoSize = 24 + 4*MaxSyscallNum

// SizeBytes implements mm.Marshallable.SizeBytes.
func (ti *TaskInfo) SizeBytes() int {
	return taskInfoSize
}

// MarshalBytes implements mm.Marshallable.MarshalBytes.
func (ti *TaskInfo) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint32(dst[0:], uint32(ti.Status))
	hostarch.ByteOrder.PutUint32(dst[4:], 0)
	hostarch.ByteOrder.PutUint64(dst[8:], ti.Dispatches)
	hostarch.ByteOrder.PutUint64(dst[16:], ti.TimeMS)
	dst = dst[24:]
	for _, n := range ti.SyscallTimes {
		hostarch.ByteOrder.PutUint32(dst, n)
		dst = dst[4:]
	}
	return dst
}

// UnmarshalBytes decodes src, which must be at least SizeBytes long, and
// returns the remainder.
func (ti *TaskInfo) UnmarshalBytes(src []byte) []byte {
	ti.Status = TaskStatus(hostarch.ByteOrder.Uint32(src[0:]))
	ti.Dispatches = hostarch.ByteOrder.Uint64(src[8:])
	ti.TimeMS = hostarch.ByteOrder.Uint64(src[16:])
	src = src[24:]
	for i := range ti.SyscallTimes {
		ti.SyscallTimes[i] = hostarch.ByteOrder.Uint32(src)
		src = src[4:]
	}
	return src
}
