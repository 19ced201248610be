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

package mm

import (
	"gvisor.dev/gvisor/pkg/hostarch"
)

// VPN is a virtual page number.
type VPN uint64

// FloorVPN returns the page containing addr.
func FloorVPN(addr hostarch.Addr) VPN {
	return VPN(addr >> hostarch.PageShift)
}

// CeilVPN returns the first page at or after addr.
func CeilVPN(addr hostarch.Addr) VPN {
	return VPN((uint64(addr) + hostarch.PageSize - 1) >> hostarch.PageShift)
}

// Addr returns the first address of the page.
func (v VPN) Addr() hostarch.Addr {
	return hostarch.Addr(uint64(v) << hostarch.PageShift)
}

// PTE is a leaf page table entry.
type PTE struct {
	Frame FrameNumber
	Perm  MapPermission
}

// PageTable maps virtual pages to frames for a single address space. It is a
// flat map; the hardware walk format is not modeled.
type PageTable struct {
	entries map[VPN]PTE
}

func newPageTable() *PageTable {
	return &PageTable{entries: make(map[VPN]PTE)}
}

// Map installs a translation. Mapping a page twice panics.
func (pt *PageTable) Map(vpn VPN, fn FrameNumber, perm MapPermission) {
	if _, ok := pt.entries[vpn]; ok {
		panic("mm.PageTable.Map: page already mapped")
	}
	pt.entries[vpn] = PTE{Frame: fn, Perm: perm}
}

// Unmap removes a translation and returns it.
func (pt *PageTable) Unmap(vpn VPN) (PTE, bool) {
	pte, ok := pt.entries[vpn]
	if ok {
		delete(pt.entries, vpn)
	}
	return pte, ok
}

// Translate looks up vpn.
func (pt *PageTable) Translate(vpn VPN) (PTE, bool) {
	pte, ok := pt.entries[vpn]
	return pte, ok
}

// Len returns the number of mapped pages.
func (pt *PageTable) Len() int {
	return len(pt.entries)
}
