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

package boot

import (
	"fmt"

	"github.com/nerdsane/strideos/ksim/config"
	"github.com/nerdsane/strideos/pkg/rand"
	"github.com/nerdsane/strideos/pkg/stride"
)

// ShareOptions describes a generated proportional-share workload.
type ShareOptions struct {
	// Seed selects the priorities.
	Seed uint64

	// Tasks is the number of spinning tasks.
	Tasks int

	// MinPriority and MaxPriority bound the drawn priorities.
	MinPriority uint8
	MaxPriority uint8

	// Yields is how many times each task yields before exiting.
	Yields int64
}

// ShareManifest returns a manifest of spinning tasks with priorities drawn
// from the seeded source. The same options always yield the same manifest.
func ShareManifest(opts ShareOptions) (*config.Manifest, error) {
	if opts.Tasks <= 0 {
		return nil, fmt.Errorf("need at least one task, got %d", opts.Tasks)
	}
	if opts.MinPriority < stride.MinPriority {
		return nil, fmt.Errorf("minimum priority %d is below %d", opts.MinPriority, stride.MinPriority)
	}
	if opts.MaxPriority < opts.MinPriority {
		return nil, fmt.Errorf("maximum priority %d is below minimum %d", opts.MaxPriority, opts.MinPriority)
	}

	src := rand.NewSource(opts.Seed)
	m := &config.Manifest{}
	for i := 0; i < opts.Tasks; i++ {
		prio := uint8(src.Range(int(opts.MinPriority), int(opts.MaxPriority)))
		m.Tasks = append(m.Tasks, config.TaskSpec{
			Name:     fmt.Sprintf("spin-%d", i),
			Priority: prio,
			Program:  "spin",
			Arg:      opts.Yields,
		})
	}
	return m, nil
}
