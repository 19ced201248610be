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

// Package stride implements the fixed-width pass counter used by the stride
// scheduler.
//
// A Stride is an 8-bit counter plus a single bit recording whether its most
// recent advance wrapped past 255. Ordering treats a wrapped counter as one lap
// ahead of an unwrapped one, in the style of sequence number comparison. This
// is only meaningful while every counter being compared is within one lap of
// the others, which the scheduler guarantees by bounding priorities and by
// rolling the epoch over once every queued counter has wrapped.
package stride

import "fmt"

// BigStride is the pass unit. A task of priority p advances by BigStride/p on
// each dispatch.
const BigStride uint8 = 255

// MinPriority is the smallest priority the scheduler admits. Priorities 0 and
// 1 yield passes that break the one-lap assumption behind Compare.
const MinPriority uint8 = 2

// Stride is a per-task fairness counter.
type Stride struct {
	value    uint8
	overflow bool
}

// New returns a Stride at the given value that has not wrapped.
func New(value uint8) Stride {
	return Stride{value: value}
}

// Advance moves the counter forward by one pass for the given priority.
//
// prio must be non-zero.
func (s *Stride) Advance(prio uint8) {
	pass := BigStride / prio
	sum := uint16(s.value) + uint16(pass)
	s.value = uint8(sum)
	s.overflow = sum > 0xff
}

// Value returns the raw counter.
func (s Stride) Value() uint8 {
	return s.value
}

// Overflowed reports whether the most recent Advance wrapped.
func (s Stride) Overflowed() bool {
	return s.overflow
}

// String implements fmt.Stringer.
func (s Stride) String() string {
	if s.overflow {
		return fmt.Sprintf("%d+", s.value)
	}
	return fmt.Sprintf("%d", s.value)
}

// Compare orders a and b. It returns a negative number when a runs before b,
// a positive number when a runs after b, and zero only when neither is
// preferred by the counter alone.
func Compare(a, b Stride) int {
	switch {
	case a.overflow == b.overflow:
		switch {
		case a.value < b.value:
			return -1
		case a.value > b.value:
			return 1
		}
		return 0
	case a.overflow:
		return 1
	default:
		return -1
	}
}

// Less reports whether a strictly orders before b.
func Less(a, b Stride) bool {
	return Compare(a, b) < 0
}

// Equal always returns false, including for a Stride compared with itself.
// Callers picking a minimum must therefore break ties by their own ordering
// rather than treating tied counters as interchangeable.
func Equal(a, b Stride) bool {
	return false
}
