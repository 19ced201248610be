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
	"context"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gvisor.dev/gvisor/pkg/hostarch"

	"github.com/nerdsane/strideos/pkg/mm"
	"github.com/nerdsane/strideos/pkg/sentry/syscalls"
)

func runKernel(t *testing.T, k *Kernel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*gotime.Second)
	defer cancel()
	require.NoError(t, k.Run(ctx))
}

func spawn(t *testing.T, k *Kernel, name string, prio uint8, entry EntryFunc) *Task {
	t.Helper()
	task, err := k.Spawn(name, prio, mm.DefaultLayout(), entry)
	require.NoError(t, err, "Spawn(%s)", name)
	return task
}

func yielder(order *[]ThreadID, n int) EntryFunc {
	return func(k *Kernel) {
		for i := 0; i < n; i++ {
			*order = append(*order, ThreadID(k.CurrentTID()))
			syscalls.Dispatch(k, syscalls.SysYield, syscalls.Args{})
		}
	}
}

func TestKernelRunStrideOrder(t *testing.T) {
	k := New(DefaultConfig())
	var order []ThreadID
	spawn(t, k, "a", 2, yielder(&order, 3))
	spawn(t, k, "b", 4, yielder(&order, 3))
	runKernel(t, k)

	assert.Equal(t, []ThreadID{1, 2, 2, 2, 1, 1}, order)
	for _, task := range k.Tasks() {
		assert.Equal(t, TaskExited, k.TaskInfo(task).Status, "task %d", task.TID())
	}
	assert.Zero(t, k.Memory().Frames().Stats().InUse, "frames in use after all tasks exited")
}

func TestKernelDeterministic(t *testing.T) {
	run := func() []ThreadID {
		k := New(DefaultConfig())
		var order []ThreadID
		for i, prio := range []uint8{3, 5, 7} {
			spawn(t, k, "t", prio, yielder(&order, 10+i))
		}
		runKernel(t, k)
		return order
	}
	first := run()
	for i := 0; i < 5; i++ {
		require.Equal(t, first, run(), "run %d", i)
	}
}

func TestKernelSyscalls(t *testing.T) {
	k := New(DefaultConfig())
	layout := mm.DefaultLayout()
	// A TimeVal that crosses from the first stack page into the second.
	tsAddr := layout.StackBottom() + hostarch.PageSize - 8

	var (
		getTimeRet, mmapRet, infoRet int64
		tv                           syscalls.TimeVal
		info                         TaskInfo
		copyErr                      error
		exitReturned                 bool
	)
	entry := func(k *Kernel) {
		getTimeRet = syscalls.Dispatch(k, syscalls.SysGetTime, syscalls.Args{uintptr(tsAddr)})
		buf := make([]byte, tv.SizeBytes())
		if _, copyErr = mm.CopyIn(k.Translator(), k.CurrentToken(), tsAddr, buf); copyErr != nil {
			return
		}
		tv.UnmarshalBytes(buf)

		mmapRet = syscalls.Dispatch(k, syscalls.SysMmap, syscalls.Args{0x1000_0000, hostarch.PageSize, 0x3})

		infoRet = syscalls.Dispatch(k, syscalls.SysTaskInfo, syscalls.Args{0x1000_0000})
		buf = make([]byte, info.SizeBytes())
		if _, copyErr = mm.CopyIn(k.Translator(), k.CurrentToken(), 0x1000_0000, buf); copyErr != nil {
			return
		}
		info.UnmarshalBytes(buf)

		syscalls.Dispatch(k, syscalls.SysExit, syscalls.Args{3})
		exitReturned = true
	}
	task, err := k.Spawn("sys", 16, layout, entry)
	require.NoError(t, err)
	runKernel(t, k)

	require.NoError(t, copyErr, "copy in")
	assert.False(t, exitReturned, "exit returned")
	assert.Zero(t, getTimeRet, "get_time")
	assert.Zero(t, mmapRet, "mmap")
	assert.Zero(t, infoRet, "task_info")
	// One microsecond per syscall; get_time itself is the first.
	assert.Zero(t, tv.Sec)
	assert.EqualValues(t, 1, tv.Usec)
	assert.Equal(t, TaskRunning, info.Status)
	assert.EqualValues(t, 1, info.Dispatches)
	for sysno, want := range map[int]uint32{syscalls.SysGetTime: 1, syscalls.SysMmap: 1, syscalls.SysTaskInfo: 1, syscalls.SysExit: 0} {
		assert.Equal(t, want, info.SyscallTimes[sysno], "task_info syscall_times[%d]", sysno)
	}

	st := k.State()
	require.Len(t, st.Tasks, 1)
	ts := st.Tasks[0]
	assert.Equal(t, task.TID(), ts.TID)
	assert.Equal(t, "exited", ts.Status)
	assert.Equal(t, int32(3), ts.ExitCode)
	assert.EqualValues(t, 1, ts.Syscalls[syscalls.SysExit])
	assert.Equal(t, k.BootID().String(), st.BootID)
}

func TestKernelSetPriority(t *testing.T) {
	k := New(DefaultConfig())
	var order []ThreadID
	var ret int64
	lowered := func(k *Kernel) {
		ret = syscalls.Dispatch(k, syscalls.SysSetPriority, syscalls.Args{2})
		yielder(&order, 3)(k)
	}
	spawn(t, k, "lowered", 64, lowered)
	spawn(t, k, "steady", 4, yielder(&order, 3))
	runKernel(t, k)

	assert.Equal(t, int64(2), ret, "set_priority")
	// With priority 2 the first task's pass is twice the second's.
	assert.Equal(t, []ThreadID{1, 2, 2, 2, 1, 1}, order)
}

func TestKernelSpawnRejectsLowPriority(t *testing.T) {
	k := New(DefaultConfig())
	_, err := k.Spawn("bad", 1, mm.DefaultLayout(), nil)
	require.Error(t, err, "Spawn(priority 1) succeeded")
	assert.Zero(t, k.Memory().Frames().Stats().InUse, "frames in use after rejected spawn")
	assert.Empty(t, k.Tasks())
}

func TestKernelRunCancel(t *testing.T) {
	k := New(DefaultConfig())
	release := make(chan struct{})
	blocked := spawn(t, k, "blocked", 2, func(k *Kernel) { <-release })
	var order []ThreadID
	parked := []*Task{
		spawn(t, k, "parked", 2, yielder(&order, 3)),
		spawn(t, k, "parked", 2, yielder(&order, 3)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, k.Run(ctx))

	close(release)
	<-k.Scheduler().Done()
	k.Wait()

	assert.Empty(t, order, "a task ran after Run was cancelled")
	for _, task := range parked {
		info := k.TaskInfo(task)
		assert.Equal(t, TaskExited, info.Status, "task %d", task.TID())
	}
	for _, ts := range k.State().Tasks {
		if ts.TID == blocked.TID() {
			// It may have been killed before it read its first permit.
			assert.Contains(t, []int32{0, ExitKilled}, ts.ExitCode)
			continue
		}
		assert.Equal(t, ExitKilled, ts.ExitCode, "task %d", ts.TID)
	}
	assert.Zero(t, k.Memory().Frames().Stats().InUse, "frames in use after cancelled run")
}

func TestKernelOutOfMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Frames = 8
	k := New(cfg)
	// The default layout needs 6 frames.
	spawn(t, k, "a", 2, nil)
	_, err := k.Spawn("b", 2, mm.DefaultLayout(), nil)
	assert.Error(t, err, "Spawn(b) succeeded with exhausted frames")
	runKernel(t, k)
}
