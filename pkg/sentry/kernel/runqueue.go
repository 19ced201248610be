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
	"github.com/nerdsane/strideos/pkg/stride"
)

// RunQueue holds ready tasks in insertion order and hands out the one with
// the smallest stride.
//
// Ties are broken by insertion order: stride.Equal never holds, so the
// earliest-queued of several tied tasks is kept as the minimum.
//
// A Stride only records whether its latest advance wrapped. Once every queued
// task has wrapped, they are all on the same lap again, so PopMin starts a new
// epoch by clearing the wrap bit of every queued stride. Without this, a task
// whose next advance does not wrap would look a full lap behind the others.
type RunQueue struct {
	tasks []*Task

	// rollovers counts epoch rollovers.
	rollovers uint64
}

// Len returns the number of queued tasks.
func (q *RunQueue) Len() int {
	return len(q.tasks)
}

// Push appends t.
func (q *RunQueue) Push(t *Task) {
	q.tasks = append(q.tasks, t)
}

// Contains reports whether tid is queued.
func (q *RunQueue) Contains(tid ThreadID) bool {
	return q.index(tid) >= 0
}

// Remove drops tid from the queue.
func (q *RunQueue) Remove(tid ThreadID) bool {
	i := q.index(tid)
	if i < 0 {
		return false
	}
	q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
	return true
}

// PopMin removes and returns the task with the smallest stride, or nil if the
// queue is empty.
func (q *RunQueue) PopMin() *Task {
	if len(q.tasks) == 0 {
		return nil
	}
	q.maybeRollover()

	best := 0
	for i := 1; i < len(q.tasks); i++ {
		if stride.Less(q.tasks[i].stride, q.tasks[best].stride) {
			best = i
		}
	}
	t := q.tasks[best]
	q.tasks = append(q.tasks[:best], q.tasks[best+1:]...)
	return t
}

// TIDs returns the queued TIDs in insertion order.
func (q *RunQueue) TIDs() []ThreadID {
	tids := make([]ThreadID, len(q.tasks))
	for i, t := range q.tasks {
		tids[i] = t.tid
	}
	return tids
}

// Rollovers returns the number of epoch rollovers so far.
func (q *RunQueue) Rollovers() uint64 {
	return q.rollovers
}

func (q *RunQueue) maybeRollover() {
	for _, t := range q.tasks {
		if !t.stride.Overflowed() {
			return
		}
	}
	for _, t := range q.tasks {
		t.stride = stride.New(t.stride.Value())
	}
	q.rollovers++
}

func (q *RunQueue) index(tid ThreadID) int {
	for i, t := range q.tasks {
		if t.tid == tid {
			return i
		}
	}
	return -1
}
