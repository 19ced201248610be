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
	"fmt"
	"sort"

	"gvisor.dev/gvisor/pkg/errors/linuxerr"
	"gvisor.dev/gvisor/pkg/hostarch"
	"gvisor.dev/gvisor/pkg/sync"
)

// UserTop is the first address above the user half of every address space.
const UserTop hostarch.Addr = 1 << 38

// AreaKind records why an area exists.
type AreaKind int

const (
	// AreaImage holds the program image.
	AreaImage AreaKind = iota
	// AreaStack is the user stack.
	AreaStack
	// AreaHeap covers the pages below the program break.
	AreaHeap
	// AreaMmap was created by mmap.
	AreaMmap
)

// String implements fmt.Stringer.
func (k AreaKind) String() string {
	switch k {
	case AreaImage:
		return "image"
	case AreaStack:
		return "stack"
	case AreaHeap:
		return "heap"
	case AreaMmap:
		return "mmap"
	default:
		return fmt.Sprintf("AreaKind(%d)", int(k))
	}
}

// MapArea is a contiguous run of pages [Start, End) with one permission set.
type MapArea struct {
	Start VPN
	End   VPN
	Perm  MapPermission
	Kind  AreaKind
}

// Pages returns the number of pages in the area.
func (a MapArea) Pages() uint64 {
	return uint64(a.End - a.Start)
}

// MemorySet is one task's address space.
type MemorySet struct {
	mu sync.Mutex

	token  Token
	frames *Frames

	// +checklocks:mu
	pt *PageTable

	// areas is sorted by Start and non-overlapping.
	// +checklocks:mu
	areas []MapArea

	// heapBottom is the page-aligned lowest address of the heap.
	heapBottom hostarch.Addr

	// brk is the current program break.
	// +checklocks:mu
	brk hostarch.Addr
}

func newMemorySet(token Token, frames *Frames) *MemorySet {
	return &MemorySet{
		token:  token,
		frames: frames,
		pt:     newPageTable(),
	}
}

// Token identifies this address space.
func (ms *MemorySet) Token() Token {
	return ms.token
}

// Areas returns a copy of the mapped areas in address order.
func (ms *MemorySet) Areas() []MapArea {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]MapArea(nil), ms.areas...)
}

// MappedPages returns the number of mapped pages.
func (ms *MemorySet) MappedPages() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.pt.Len()
}

// Translate returns the page table entry for the page holding addr.
func (ms *MemorySet) Translate(addr hostarch.Addr) (PTE, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.pt.Translate(FloorVPN(addr))
}

// InsertFramedArea maps fresh zeroed frames over the pages covering
// [start, end).
//
// It fails with EINVAL for an empty or inverted range, EEXIST if any page is
// already mapped, and ENOMEM if the range leaves the user half or the frame
// pool runs dry. On failure nothing is mapped.
func (ms *MemorySet) InsertFramedArea(start, end hostarch.Addr, perm MapPermission, kind AreaKind) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.insertLocked(FloorVPN(start), CeilVPN(end), perm, kind)
}

// +checklocks:ms.mu
func (ms *MemorySet) insertLocked(startVPN, endVPN VPN, perm MapPermission, kind AreaKind) error {
	if endVPN <= startVPN || !perm.Valid() {
		return linuxerr.EINVAL
	}
	if endVPN.Addr() > UserTop {
		return linuxerr.ENOMEM
	}
	if err := ms.mapPagesLocked(startVPN, endVPN, perm); err != nil {
		return err
	}
	ms.addAreaLocked(MapArea{Start: startVPN, End: endVPN, Perm: perm, Kind: kind})
	return nil
}

// mapPagesLocked backs [startVPN, endVPN) with new frames, all or nothing.
//
// +checklocks:ms.mu
func (ms *MemorySet) mapPagesLocked(startVPN, endVPN VPN, perm MapPermission) error {
	for vpn := startVPN; vpn < endVPN; vpn++ {
		if _, ok := ms.pt.Translate(vpn); ok {
			return linuxerr.EEXIST
		}
	}
	allocated := make([]FrameNumber, 0, endVPN-startVPN)
	for vpn := startVPN; vpn < endVPN; vpn++ {
		fn, err := ms.frames.Alloc()
		if err != nil {
			for _, f := range allocated {
				ms.frames.Free(f)
			}
			return err
		}
		allocated = append(allocated, fn)
	}
	for i, fn := range allocated {
		ms.pt.Map(startVPN+VPN(i), fn, perm)
	}
	return nil
}

// +checklocks:ms.mu
func (ms *MemorySet) unmapPagesLocked(startVPN, endVPN VPN) {
	for vpn := startVPN; vpn < endVPN; vpn++ {
		if pte, ok := ms.pt.Unmap(vpn); ok {
			ms.frames.Free(pte.Frame)
		}
	}
}

// +checklocks:ms.mu
func (ms *MemorySet) addAreaLocked(a MapArea) {
	ms.areas = append(ms.areas, a)
	sort.Slice(ms.areas, func(i, j int) bool {
		return ms.areas[i].Start < ms.areas[j].Start
	})
}

// RemoveMmapRange unmaps the pages covering [start, end). Every page in the
// range must belong to an mmap area, otherwise EINVAL is returned and nothing
// changes. Areas that only partly overlap are trimmed or split.
func (ms *MemorySet) RemoveMmapRange(start, end hostarch.Addr) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	startVPN, endVPN := FloorVPN(start), CeilVPN(end)
	if endVPN <= startVPN {
		return linuxerr.EINVAL
	}
	for vpn := startVPN; vpn < endVPN; vpn++ {
		i := ms.areaIndexLocked(vpn)
		if i < 0 || ms.areas[i].Kind != AreaMmap {
			return linuxerr.EINVAL
		}
	}

	var kept []MapArea
	for _, a := range ms.areas {
		if a.Kind != AreaMmap || a.End <= startVPN || a.Start >= endVPN {
			kept = append(kept, a)
			continue
		}
		lo, hi := max(a.Start, startVPN), min(a.End, endVPN)
		ms.unmapPagesLocked(lo, hi)
		if a.Start < lo {
			kept = append(kept, MapArea{Start: a.Start, End: lo, Perm: a.Perm, Kind: a.Kind})
		}
		if hi < a.End {
			kept = append(kept, MapArea{Start: hi, End: a.End, Perm: a.Perm, Kind: a.Kind})
		}
	}
	ms.areas = kept
	return nil
}

// areaIndexLocked returns the index of the area containing vpn, or -1.
//
// +checklocks:ms.mu
func (ms *MemorySet) areaIndexLocked(vpn VPN) int {
	for i, a := range ms.areas {
		if a.Start <= vpn && vpn < a.End {
			return i
		}
	}
	return -1
}

// Brk returns the current program break.
func (ms *MemorySet) Brk() hostarch.Addr {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.brk
}

// HeapBottom returns the lowest address the program break may take.
func (ms *MemorySet) HeapBottom() hostarch.Addr {
	return ms.heapBottom
}

// ChangeBrk moves the program break by delta bytes and returns the previous
// break. Shrinking below the heap bottom fails with EINVAL; growing into a
// mapped page fails with EEXIST; running out of frames or address space fails
// with ENOMEM. On failure the break is unchanged.
func (ms *MemorySet) ChangeBrk(delta int64) (hostarch.Addr, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	old := ms.brk
	next := int64(old) + delta
	if next < int64(ms.heapBottom) {
		return 0, linuxerr.EINVAL
	}
	newBrk := hostarch.Addr(next)
	if newBrk > UserTop {
		return 0, linuxerr.ENOMEM
	}

	oldTop, newTop := CeilVPN(old), CeilVPN(newBrk)
	switch {
	case newTop > oldTop:
		if err := ms.mapPagesLocked(oldTop, newTop, PermR|PermW|PermU); err != nil {
			return 0, err
		}
	case newTop < oldTop:
		ms.unmapPagesLocked(newTop, oldTop)
	}
	ms.brk = newBrk
	ms.setHeapEndLocked(newTop)
	return old, nil
}

// +checklocks:ms.mu
func (ms *MemorySet) setHeapEndLocked(end VPN) {
	for i := range ms.areas {
		if ms.areas[i].Kind == AreaHeap {
			ms.areas[i].End = end
			return
		}
	}
}

// TranslateRange returns the frame-backed chunks covering
// [addr, addr+length) for a user access of type at. See Memory.TranslateRange.
func (ms *MemorySet) TranslateRange(addr hostarch.Addr, length uint64, at hostarch.AccessType) ([][]byte, error) {
	if length == 0 {
		return nil, nil
	}
	end, ok := addr.AddLength(length)
	if !ok || end > UserTop {
		return nil, linuxerr.EFAULT
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var chunks [][]byte
	for cur := addr; cur < end; {
		vpn := FloorVPN(cur)
		pte, ok := ms.pt.Translate(vpn)
		if !ok || !pte.Perm.Allows(at) {
			return nil, linuxerr.EFAULT
		}
		pageEnd := (vpn + 1).Addr()
		chunkEnd := min(pageEnd, end)
		off := cur.PageOffset()
		data := ms.frames.Data(pte.Frame)
		chunks = append(chunks, data[off:off+uint64(chunkEnd-cur)])
		cur = chunkEnd
	}
	return chunks, nil
}

// destroy unmaps everything and returns all frames to the pool.
func (ms *MemorySet) destroy() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, a := range ms.areas {
		ms.unmapPagesLocked(a.Start, a.End)
	}
	ms.areas = nil
}
