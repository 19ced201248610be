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

package check

import (
	"fmt"
	"math"

	"github.com/nerdsane/strideos/pkg/sentry/kernel"
)

// KernelProperties returns the properties every run must satisfy.
func KernelProperties() []Property {
	return []Property{
		{
			Name:        "exit-once",
			Description: "every task that exited did so exactly once and nothing ran it afterwards",
			Kind:        KindSafety,
			Check:       CheckFunc(exitOnce),
		},
		{
			Name:        "single-cpu",
			Description: "a task is only scheduled when no other task holds the CPU",
			Kind:        KindInvariant,
			Check:       CheckFunc(singleCPU),
		},
		{
			Name:        "dispatch-accounting",
			Description: "per-task dispatch counts add up to the scheduler's counter",
			Kind:        KindInvariant,
			Check:       CheckFunc(dispatchAccounting),
		},
		{
			Name:        "frames-released",
			Description: "no frame stays in use once every task has exited",
			Kind:        KindLiveness,
			Check:       CheckFunc(framesReleased),
		},
	}
}

func exitOnce(obs *Observation) Result {
	exited := make(map[kernel.ThreadID]bool)
	for _, e := range obs.History {
		switch {
		case e.Kind == EventExited && exited[e.TID]:
			return fail("tid %d exited twice", e.TID)
		case e.Kind == EventExited:
			exited[e.TID] = true
		case exited[e.TID]:
			return fail("tid %d %s after exit (event %d)", e.TID, e.Kind, e.Seq)
		}
	}
	for _, t := range obs.State.Tasks {
		if (t.Status == kernel.TaskExited.String()) != exited[t.TID] {
			return fail("tid %d status %s disagrees with history", t.TID, t.Status)
		}
	}
	return pass()
}

func singleCPU(obs *Observation) Result {
	var running kernel.ThreadID
	for _, e := range obs.History {
		switch e.Kind {
		case EventScheduled:
			if running != 0 {
				return fail("tid %d scheduled while tid %d held the CPU (event %d)", e.TID, running, e.Seq)
			}
			running = e.TID
		case EventYielded, EventExited:
			if e.TID == running {
				running = 0
			}
		}
	}
	return pass()
}

func dispatchAccounting(obs *Observation) Result {
	var sum uint64
	for _, t := range obs.State.Tasks {
		sum += t.Dispatches
	}
	var scheduled uint64
	for _, e := range obs.History {
		if e.Kind == EventScheduled {
			scheduled++
		}
	}
	want := obs.State.Scheduler.DispatchCounter
	if sum != want {
		return fail("task dispatches sum to %d, scheduler counted %d", sum, want)
	}
	if scheduled != want {
		return fail("history has %d dispatches, scheduler counted %d", scheduled, want)
	}
	return pass()
}

func framesReleased(obs *Observation) Result {
	if !obs.allExited() {
		return unknown("tasks still live")
	}
	if n := obs.State.Frames.InUse; n != 0 {
		return fail("%d frames in use after every task exited", n)
	}
	return pass()
}

// MinShareWindow is the smallest number of dispatches ProportionalShare will
// judge.
const MinShareWindow = 100

// ProportionalShare returns a property checking that, up to the first exit,
// each task received a share of dispatches proportional to its priority,
// within the given relative tolerance. Tasks must not change priority during
// the window.
func ProportionalShare(tolerance float64) Property {
	return Property{
		Name:        "proportional-share",
		Description: "dispatch share tracks priority while every task is runnable",
		Kind:        KindLiveness,
		Check: CheckFunc(func(obs *Observation) Result {
			return proportionalShare(obs, tolerance)
		}),
	}
}

func proportionalShare(obs *Observation, tolerance float64) Result {
	counts := make(map[kernel.ThreadID]int)
	total := 0
	for _, e := range obs.History {
		if e.Kind == EventExited {
			break
		}
		if e.Kind == EventScheduled {
			counts[e.TID]++
			total++
		}
	}
	if total < MinShareWindow {
		return unknown("window of %d dispatches is too short", total)
	}

	prioSum := 0
	for _, t := range obs.State.Tasks {
		prioSum += int(t.Priority)
	}
	res := pass()
	res.Detail = make(map[string]any)
	for _, t := range obs.State.Tasks {
		want := float64(t.Priority) / float64(prioSum)
		got := float64(counts[t.TID]) / float64(total)
		res.Detail[fmt.Sprint(t.TID)] = got
		if dev := math.Abs(got/want - 1); dev > tolerance {
			r := fail("tid %d got %.3f of %d dispatches, want %.3f", t.TID, got, total, want)
			r.Detail = res.Detail
			return r
		}
	}
	return res
}
