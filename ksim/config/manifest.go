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

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gvisor.dev/gvisor/pkg/hostarch"

	"github.com/nerdsane/strideos/pkg/mm"
	"github.com/nerdsane/strideos/pkg/stride"
)

// Manifest lists the tasks to boot.
//
//	tasks:
//	  - name: worker
//	    priority: 8
//	    program: spin
//	    arg: 500
//	    count: 2
type Manifest struct {
	Tasks []TaskSpec `yaml:"tasks"`
}

// TaskSpec describes one task, or Count identical ones.
type TaskSpec struct {
	// Name names the task. Replicas get a numeric suffix.
	Name string `yaml:"name"`

	Priority uint8 `yaml:"priority"`

	// Program is the name of a built-in user program.
	Program string `yaml:"program"`

	// Arg is passed to the program.
	Arg int64 `yaml:"arg,omitempty"`

	// Count is the number of replicas. Zero means one.
	Count int `yaml:"count,omitempty"`

	// Layout overrides the default address space layout.
	Layout *LayoutSpec `yaml:"layout,omitempty"`
}

// LayoutSpec is the YAML form of mm.Layout.
type LayoutSpec struct {
	ImageBase  uint64 `yaml:"imageBase"`
	ImagePages uint64 `yaml:"imagePages"`
	StackPages uint64 `yaml:"stackPages"`
}

// MMLayout returns the address space layout for t.
func (t *TaskSpec) MMLayout() mm.Layout {
	if t.Layout == nil {
		return mm.DefaultLayout()
	}
	return mm.Layout{
		ImageBase:  hostarch.Addr(t.Layout.ImageBase),
		ImagePages: t.Layout.ImagePages,
		StackPages: t.Layout.StackPages,
	}
}

// Replicas returns the number of tasks t expands to.
func (t *TaskSpec) Replicas() int {
	if t.Count <= 0 {
		return 1
	}
	return t.Count
}

// ReplicaName returns the name of replica i.
func (t *TaskSpec) ReplicaName(i int) string {
	if t.Replicas() == 1 {
		return t.Name
	}
	return fmt.Sprintf("%s-%d", t.Name, i)
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Marshal encodes m as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Validate checks every task spec. Program names are resolved at boot.
func (m *Manifest) Validate() error {
	if len(m.Tasks) == 0 {
		return fmt.Errorf("manifest has no tasks")
	}
	for i, t := range m.Tasks {
		if t.Name == "" {
			return fmt.Errorf("task %d: missing name", i)
		}
		if t.Priority < stride.MinPriority {
			return fmt.Errorf("task %q: priority %d is below the minimum of %d", t.Name, t.Priority, stride.MinPriority)
		}
		if t.Program == "" {
			return fmt.Errorf("task %q: missing program", t.Name)
		}
		if t.Count < 0 {
			return fmt.Errorf("task %q: negative count", t.Name)
		}
		if l := t.Layout; l != nil && (l.ImageBase%hostarch.PageSize != 0 || l.ImagePages == 0 || l.StackPages == 0) {
			return fmt.Errorf("task %q: invalid layout %+v", t.Name, *l)
		}
	}
	return nil
}
