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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdsane/strideos/pkg/stride"
)

// simulate runs the run queue for rounds dispatches, advancing each chosen
// task by one pass, and returns the dispatch count per task.
func simulate(prios []uint8, rounds int) ([]int, uint64) {
	var q RunQueue
	for i, p := range prios {
		q.Push(newTask(ThreadID(i+1), "", p))
	}
	counts := make([]int, len(prios))
	for r := 0; r < rounds; r++ {
		t := q.PopMin()
		counts[t.tid-1]++
		t.stride.Advance(t.priority)
		q.Push(t)
	}
	return counts, q.Rollovers()
}

func TestRunQueueProportionalShare(t *testing.T) {
	for _, prios := range [][]uint8{
		{2, 4},
		{3, 6, 9},
		{5, 6, 7, 8, 9, 10},
		{2, 2},
	} {
		const rounds = 3000
		counts, rollovers := simulate(prios, rounds)
		assert.NotZero(t, rollovers, "prios %v: no epoch rollover in %d rounds", prios, rounds)

		sum := 0
		for _, p := range prios {
			sum += int(p)
		}
		for i, p := range prios {
			want := float64(p) / float64(sum)
			got := float64(counts[i]) / rounds
			assert.LessOrEqual(t, math.Abs(got/want-1), 0.03,
				"prios %v: task %d got share %.3f, want %.3f (counts %v)", prios, i+1, got, want, counts)
		}
	}
}

func TestRunQueueTieOrder(t *testing.T) {
	var q RunQueue
	for _, tid := range []ThreadID{5, 3, 1} {
		q.Push(newTask(tid, "", 2))
	}
	for _, want := range []ThreadID{5, 3, 1} {
		got := q.PopMin()
		require.NotNil(t, got)
		assert.Equal(t, want, got.tid)
	}
	assert.Nil(t, q.PopMin(), "PopMin() on empty queue returned a task")
}

func TestRunQueueWrappedRunsLast(t *testing.T) {
	var q RunQueue
	a := newTask(1, "a", 2)
	b := newTask(2, "b", 2)
	a.stride = stride.New(250)
	a.stride.Advance(25) // Wraps to 4.
	b.stride = stride.New(100)
	q.Push(a)
	q.Push(b)

	assert.Same(t, b, q.PopMin(), "wrapped task ran before unwrapped one")
	assert.Equal(t, uint64(0), q.Rollovers())
}

func TestRunQueueRollover(t *testing.T) {
	var q RunQueue
	a := newTask(1, "a", 2)
	b := newTask(2, "b", 2)
	a.stride = stride.New(200)
	a.stride.Advance(2) // 200+127 wraps to 71.
	b.stride = stride.New(150)
	b.stride.Advance(2) // 150+127 wraps to 21.
	q.Push(a)
	q.Push(b)

	assert.Same(t, b, q.PopMin())
	assert.Equal(t, uint64(1), q.Rollovers())
	assert.False(t, a.stride.Overflowed(), "rollover left a wrapped stride")
	assert.False(t, b.stride.Overflowed(), "rollover left a wrapped stride")
	assert.Equal(t, uint8(71), a.stride.Value())
	assert.Equal(t, uint8(21), b.stride.Value())
}

func TestRunQueueRemove(t *testing.T) {
	var q RunQueue
	for tid := ThreadID(1); tid <= 3; tid++ {
		q.Push(newTask(tid, "", 2))
	}
	require.True(t, q.Remove(2))
	assert.False(t, q.Remove(2), "second Remove(2)")
	assert.False(t, q.Contains(2), "Contains(2) after Remove")
	assert.Equal(t, []ThreadID{1, 3}, q.TIDs())
}
