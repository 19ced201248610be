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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gvisor.dev/gvisor/pkg/errors/linuxerr"

	"github.com/nerdsane/strideos/pkg/sentry/time"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(time.NewClock(time.Config{Virtual: true}))
}

func admit(t *testing.T, s *Scheduler, tid ThreadID, prio uint8) *Task {
	t.Helper()
	task := newTask(tid, "", prio)
	require.NoError(t, s.Admit(task), "Admit(%d)", tid)
	return task
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestSchedulerStart(t *testing.T) {
	s := newTestScheduler()
	admit(t, s, 1, 16)

	assert.False(t, s.IsStarted(), "scheduler started before Start()")
	assert.Equal(t, ThreadID(0), s.GetCurrentTask())

	s.Start()
	assert.Equal(t, ThreadID(1), s.GetCurrentTask())
}

func TestSchedulerStartEmpty(t *testing.T) {
	s := newTestScheduler()
	s.Start()
	assert.True(t, isClosed(s.Done()), "Done() not closed after starting with no tasks")
}

func TestSchedulerAdmitErrors(t *testing.T) {
	s := newTestScheduler()
	assert.Equal(t, linuxerr.EINVAL, s.Admit(newTask(1, "", 1)))
	assert.Equal(t, linuxerr.EINVAL, s.Admit(newTask(1, "", 0)))
	admit(t, s, 1, 2)
	assert.Equal(t, linuxerr.EEXIST, s.Admit(newTask(1, "", 2)))
}

func TestSchedulerTiesInAdmissionOrder(t *testing.T) {
	s := newTestScheduler()
	for _, tid := range []ThreadID{5, 3, 1, 4, 2} {
		admit(t, s, tid, 8)
	}
	s.Start()

	for _, want := range []ThreadID{5, 3, 1, 4, 2, 5} {
		got := s.GetCurrentTask()
		require.Equal(t, want, got)
		s.Yield(got)
	}
}

func TestSchedulerStrideOrder(t *testing.T) {
	s := newTestScheduler()
	admit(t, s, 1, 2) // pass 127
	admit(t, s, 2, 4) // pass 63
	s.Start()

	// 1 runs first on the tie. Then 2 runs at 0, 63 and 126, all below
	// 1's 127, and 1 runs again once 2 reaches 189.
	for i, want := range []ThreadID{1, 2, 2, 2, 1, 2} {
		got := s.GetCurrentTask()
		require.Equal(t, want, got, "dispatch %d", i)
		s.Yield(got)
	}
}

func TestSchedulerYieldNotCurrent(t *testing.T) {
	s := newTestScheduler()
	admit(t, s, 1, 2)
	admit(t, s, 2, 2)
	s.Start()

	s.Yield(2)
	assert.Equal(t, ThreadID(1), s.GetCurrentTask())
	assert.Equal(t, uint64(0), s.GetYieldCounter())
}

func TestSchedulerSingleTaskYield(t *testing.T) {
	s := newTestScheduler()
	task := admit(t, s, 1, 2)
	s.Start()

	s.Yield(1)
	assert.Equal(t, ThreadID(1), s.GetCurrentTask())
	assert.EqualValues(t, 2, task.dispatches)
	assert.Equal(t, "127", task.stride.String())
}

func TestSchedulerExit(t *testing.T) {
	s := newTestScheduler()
	a := admit(t, s, 1, 2)
	admit(t, s, 2, 2)
	s.Start()

	s.Exit(1, 7)
	assert.Equal(t, TaskExited, a.status)
	assert.Equal(t, int32(7), a.exitCode)
	assert.Equal(t, ThreadID(2), s.GetCurrentTask())
	require.False(t, isClosed(s.Done()), "Done() closed with a live task")

	s.Exit(2, 0)
	assert.Equal(t, ThreadID(0), s.GetCurrentTask())
	assert.True(t, isClosed(s.Done()), "Done() not closed after the last exit")
}

func TestSchedulerExitQueued(t *testing.T) {
	s := newTestScheduler()
	admit(t, s, 1, 2)
	admit(t, s, 2, 2)
	admit(t, s, 3, 2)
	s.Start()

	s.Exit(2, 0)
	assert.Equal(t, ThreadID(1), s.GetCurrentTask())
	s.Yield(1)
	assert.Equal(t, ThreadID(3), s.GetCurrentTask())
}

func TestSchedulerSetPriority(t *testing.T) {
	s := newTestScheduler()
	task := admit(t, s, 1, 2)
	s.Start()

	assert.Equal(t, linuxerr.EINVAL, s.SetPriority(1, 1))
	assert.Equal(t, linuxerr.ESRCH, s.SetPriority(9, 4))
	require.NoError(t, s.SetPriority(1, 4))
	s.Yield(1)
	assert.Equal(t, "63", task.stride.String())
}

func TestSchedulerAdmitAfterStart(t *testing.T) {
	s := newTestScheduler()
	admit(t, s, 1, 2)
	s.Start()
	s.Exit(1, 0)

	// Done is final once every task has exited.
	require.True(t, isClosed(s.Done()), "Done() not closed")

	s = newTestScheduler()
	s.Start()
	admit(t, s, 1, 2)
	assert.Equal(t, ThreadID(1), s.GetCurrentTask())
}

func TestSchedulerShutdown(t *testing.T) {
	s := newTestScheduler()
	admit(t, s, 1, 2)
	admit(t, s, 2, 2)
	s.Start()
	require.True(t, s.WaitForPermit(1))

	s.Shutdown()
	s.Shutdown()
	assert.False(t, s.WaitForPermit(2), "parked task got the CPU after Shutdown")

	// The running task gives up the CPU and nothing else is dispatched.
	s.Yield(1)
	assert.Equal(t, ThreadID(0), s.GetCurrentTask())
	assert.False(t, s.WaitForPermit(1))
	assert.EqualValues(t, 1, s.GetState().DispatchCounter)

	s.Exit(1, ExitKilled)
	s.Exit(2, ExitKilled)
	assert.True(t, isClosed(s.Done()), "Done() not closed after every task was killed")
}

type recordingListener struct {
	events []string
}

func (l *recordingListener) OnTaskScheduled(tid ThreadID) {
	l.events = append(l.events, fmt.Sprintf("sched:%d", tid))
}

func (l *recordingListener) OnTaskYielded(tid ThreadID) {
	l.events = append(l.events, fmt.Sprintf("yield:%d", tid))
}

func (l *recordingListener) OnTaskExited(tid ThreadID, code int32) {
	l.events = append(l.events, fmt.Sprintf("exit:%d", tid))
}

func TestSchedulerListener(t *testing.T) {
	s := newTestScheduler()
	l := &recordingListener{}
	s.AddListener(l)
	admit(t, s, 1, 2)
	admit(t, s, 2, 2)
	s.Start()
	s.Yield(1)
	s.Exit(2, 0)

	assert.Equal(t, []string{"sched:1", "yield:1", "sched:2", "exit:2", "sched:1"}, l.events)
}

func TestSchedulerState(t *testing.T) {
	s := newTestScheduler()
	admit(t, s, 1, 2)
	admit(t, s, 2, 4)
	s.Start()
	s.Yield(1)

	st := s.GetState()
	assert.True(t, st.Started)
	assert.Equal(t, ThreadID(2), st.CurrentTID)
	assert.EqualValues(t, 1, st.YieldCounter)
	assert.EqualValues(t, 2, st.DispatchCounter)
	require.Len(t, st.Ready, 1)
	assert.Equal(t, ThreadID(1), st.Ready[0].TID)
	assert.Equal(t, "127", st.Ready[0].Stride)
}
