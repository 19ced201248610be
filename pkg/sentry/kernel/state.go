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
	"github.com/nerdsane/strideos/pkg/mm"
)

// State is a JSON-friendly view of the whole kernel.
type State struct {
	BootID    string         `json:"bootId"`
	NowUS     uint64         `json:"nowUs"`
	Frames    mm.FrameStats  `json:"frames"`
	Scheduler SchedulerState `json:"scheduler"`
	Tasks     []TaskState    `json:"tasks"`
}

// TaskState describes one task.
type TaskState struct {
	TID        ThreadID           `json:"tid"`
	Name       string             `json:"name"`
	Priority   uint8              `json:"priority"`
	Status     string             `json:"status"`
	Stride     string             `json:"stride"`
	Dispatches uint64             `json:"dispatches"`
	ExitCode   int32              `json:"exitCode"`
	Syscalls   map[uintptr]uint32 `json:"syscalls,omitempty"`
}

// State returns the current kernel state.
func (k *Kernel) State() State {
	st := State{
		BootID:    k.bootID.String(),
		NowUS:     k.clock.NowMicroseconds(),
		Frames:    k.mem.Frames().Stats(),
		Scheduler: k.sched.GetState(),
	}
	for _, t := range k.Tasks() {
		k.sched.withTask(t, func(t *Task) {
			ts := TaskState{
				TID:        t.tid,
				Name:       t.name,
				Priority:   t.priority,
				Status:     t.status.String(),
				Stride:     t.stride.String(),
				Dispatches: t.dispatches,
				ExitCode:   t.exitCode,
			}
			for no, n := range t.syscallTimes {
				if n == 0 {
					continue
				}
				if ts.Syscalls == nil {
					ts.Syscalls = make(map[uintptr]uint32)
				}
				ts.Syscalls[uintptr(no)] = n
			}
			st.Tasks = append(st.Tasks, ts)
		})
	}
	return st
}
