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

// Package mm implements the simulated user address spaces serviced by the
// kernel: a physical frame pool, per-task page tables, mapped areas, the
// program break, and translation of user byte ranges into frame-backed chunks.
package mm

import (
	"strings"

	"gvisor.dev/gvisor/pkg/hostarch"
)

// MapPermission is the permission set of a mapped page. Bit positions match
// the page table entry encoding, where bit 0 is the valid bit.
type MapPermission uint8

const (
	// PermR allows reads.
	PermR MapPermission = 1 << 1
	// PermW allows writes.
	PermW MapPermission = 1 << 2
	// PermX allows instruction fetch.
	PermX MapPermission = 1 << 3
	// PermU makes the page accessible from user mode.
	PermU MapPermission = 1 << 4

	permMask = PermR | PermW | PermX | PermU
)

// Valid reports whether p contains only known bits.
func (p MapPermission) Valid() bool {
	return p&^permMask == 0
}

// Allows reports whether a user-mode access of type at is permitted.
func (p MapPermission) Allows(at hostarch.AccessType) bool {
	if p&PermU == 0 {
		return false
	}
	if at.Read && p&PermR == 0 {
		return false
	}
	if at.Write && p&PermW == 0 {
		return false
	}
	if at.Execute && p&PermX == 0 {
		return false
	}
	return true
}

// String implements fmt.Stringer.
func (p MapPermission) String() string {
	var b strings.Builder
	for _, f := range []struct {
		bit MapPermission
		c   byte
	}{{PermR, 'r'}, {PermW, 'w'}, {PermX, 'x'}, {PermU, 'u'}} {
		if p&f.bit != 0 {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
