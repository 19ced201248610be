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

// Package check records scheduling history and evaluates properties of a
// finished or running kernel against it.
package check

import (
	"fmt"
	"sort"

	"gvisor.dev/gvisor/pkg/sync"

	"github.com/nerdsane/strideos/pkg/sentry/kernel"
)

// Kind is the kind of a property.
type Kind string

const (
	KindSafety    Kind = "safety"    // Something bad never happens.
	KindLiveness  Kind = "liveness"  // Something good eventually happens.
	KindInvariant Kind = "invariant" // Always true.
)

// Status is the outcome of a check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusUnknown Status = "unknown"
)

// Result is the outcome of checking one property.
type Result struct {
	Status Status         `json:"status"`
	Reason string         `json:"reason,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// IsFail returns true if the check failed.
func (r Result) IsFail() bool {
	return r.Status == StatusFail
}

func pass() Result {
	return Result{Status: StatusPass}
}

func fail(format string, args ...any) Result {
	return Result{Status: StatusFail, Reason: fmt.Sprintf(format, args...)}
}

func unknown(format string, args ...any) Result {
	return Result{Status: StatusUnknown, Reason: fmt.Sprintf(format, args...)}
}

// EventKind names a scheduling event.
type EventKind string

const (
	EventScheduled EventKind = "scheduled"
	EventYielded   EventKind = "yielded"
	EventExited    EventKind = "exited"
)

// Event is one scheduling event.
type Event struct {
	Seq  uint64          `json:"seq"`
	Kind EventKind       `json:"kind"`
	TID  kernel.ThreadID `json:"tid"`
	Code int32           `json:"code,omitempty"`
}

// Recorder is a kernel.SchedulerListener that keeps the full event history.
type Recorder struct {
	mu sync.Mutex

	// +checklocks:mu
	events []Event
}

var _ kernel.SchedulerListener = (*Recorder)(nil)

// NewRecorder creates a Recorder and attaches it to k's scheduler.
func NewRecorder(k *kernel.Kernel) *Recorder {
	r := &Recorder{}
	k.Scheduler().AddListener(r)
	return r
}

func (r *Recorder) add(kind EventKind, tid kernel.ThreadID, code int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		Seq:  uint64(len(r.events)),
		Kind: kind,
		TID:  tid,
		Code: code,
	})
}

// OnTaskScheduled implements kernel.SchedulerListener.OnTaskScheduled.
func (r *Recorder) OnTaskScheduled(tid kernel.ThreadID) {
	r.add(EventScheduled, tid, 0)
}

// OnTaskYielded implements kernel.SchedulerListener.OnTaskYielded.
func (r *Recorder) OnTaskYielded(tid kernel.ThreadID) {
	r.add(EventYielded, tid, 0)
}

// OnTaskExited implements kernel.SchedulerListener.OnTaskExited.
func (r *Recorder) OnTaskExited(tid kernel.ThreadID, code int32) {
	r.add(EventExited, tid, code)
}

// Events returns a copy of the history.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Observation is what properties are checked against.
type Observation struct {
	State   kernel.State
	History []Event
}

// Observe captures k's state together with r's history.
func Observe(k *kernel.Kernel, r *Recorder) *Observation {
	return &Observation{
		State:   k.State(),
		History: r.Events(),
	}
}

// allExited reports whether every task in the observation has exited.
func (o *Observation) allExited() bool {
	for _, t := range o.State.Tasks {
		if t.Status != kernel.TaskExited.String() {
			return false
		}
	}
	return true
}

// Check is a property check.
type Check interface {
	// Check evaluates the property against obs.
	Check(obs *Observation) Result
}

// CheckFunc adapts a function to Check.
type CheckFunc func(obs *Observation) Result

// Check implements Check.Check.
func (f CheckFunc) Check(obs *Observation) Result {
	return f(obs)
}

// Property is a named check.
type Property struct {
	// Name is the unique property name.
	Name string

	// Description describes what the property checks.
	Description string

	Kind  Kind
	Check Check
}

// Checker evaluates a set of properties and keeps every result.
type Checker struct {
	mu sync.Mutex

	// +checklocks:mu
	properties []Property

	// +checklocks:mu
	results map[string][]Result
}

// NewChecker creates a checker with the given properties.
func NewChecker(props ...Property) *Checker {
	c := &Checker{results: make(map[string][]Result)}
	for _, p := range props {
		c.Add(p)
	}
	return c
}

// Add adds a property. A property with the same name is replaced.
func (c *Checker) Add(p Property) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.properties {
		if c.properties[i].Name == p.Name {
			c.properties[i] = p
			return
		}
	}
	c.properties = append(c.properties, p)
}

// CheckAll evaluates every property against obs.
func (c *Checker) CheckAll(obs *Observation) map[string]Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Result, len(c.properties))
	for _, p := range c.properties {
		r := p.Check.Check(obs)
		out[p.Name] = r
		c.results[p.Name] = append(c.results[p.Name], r)
	}
	return out
}

// Failures returns every failed result so far, by property name.
func (c *Checker) Failures() map[string][]Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string][]Result)
	for name, rs := range c.results {
		for _, r := range rs {
			if r.IsFail() {
				out[name] = append(out[name], r)
			}
		}
	}
	return out
}

// Names returns the property names in sorted order.
func (c *Checker) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.properties))
	for _, p := range c.properties {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
