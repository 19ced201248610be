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
	"gvisor.dev/gvisor/pkg/errors/linuxerr"
	"gvisor.dev/gvisor/pkg/hostarch"
	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/sync"
)

// Token names an address space, the way a page table root register value
// does on hardware. Zero is never a valid token.
type Token uint64

// Layout describes the initial shape of a user address space.
//
// From low to high: the program image, one unmapped guard page, the user
// stack, then the heap, which starts empty at the stack top.
type Layout struct {
	// ImageBase is the page-aligned base of the program image.
	ImageBase hostarch.Addr

	// ImagePages is the size of the image in pages.
	ImagePages uint64

	// StackPages is the size of the user stack in pages.
	StackPages uint64
}

// DefaultLayout returns the layout used when a task does not ask for one.
func DefaultLayout() Layout {
	return Layout{
		ImageBase:  0x10000,
		ImagePages: 4,
		StackPages: 2,
	}
}

// StackBottom returns the lowest stack address for l.
func (l Layout) StackBottom() hostarch.Addr {
	return l.ImageBase + hostarch.Addr((l.ImagePages+1)*hostarch.PageSize)
}

// StackTop returns the address just above the stack.
func (l Layout) StackTop() hostarch.Addr {
	return l.StackBottom() + hostarch.Addr(l.StackPages*hostarch.PageSize)
}

// Memory owns physical frames and every live address space.
type Memory struct {
	mu sync.RWMutex

	frames *Frames

	// +checklocks:mu
	spaces map[Token]*MemorySet

	// +checklocks:mu
	nextToken Token
}

// NewMemory creates a memory system backed by frameCount frames.
func NewMemory(frameCount int) *Memory {
	return &Memory{
		frames:    NewFrames(frameCount),
		spaces:    make(map[Token]*MemorySet),
		nextToken: 1,
	}
}

// Frames returns the frame pool.
func (m *Memory) Frames() *Frames {
	return m.frames
}

// NewAddressSpace builds an address space with layout l.
func (m *Memory) NewAddressSpace(l Layout) (*MemorySet, error) {
	if !l.ImageBase.IsPageAligned() || l.ImagePages == 0 || l.StackPages == 0 {
		return nil, linuxerr.EINVAL
	}

	m.mu.Lock()
	token := m.nextToken
	m.nextToken++
	m.mu.Unlock()

	ms := newMemorySet(token, m.frames)
	ms.mu.Lock()
	imageStart := FloorVPN(l.ImageBase)
	err := ms.insertLocked(imageStart, imageStart+VPN(l.ImagePages), PermR|PermX|PermU, AreaImage)
	if err == nil {
		err = ms.insertLocked(FloorVPN(l.StackBottom()), FloorVPN(l.StackTop()), PermR|PermW|PermU, AreaStack)
	}
	if err != nil {
		ms.mu.Unlock()
		ms.destroy()
		return nil, err
	}
	ms.heapBottom = l.StackTop()
	ms.brk = ms.heapBottom
	heap := FloorVPN(ms.heapBottom)
	ms.addAreaLocked(MapArea{Start: heap, End: heap, Perm: PermR | PermW | PermU, Kind: AreaHeap})
	ms.mu.Unlock()

	m.mu.Lock()
	m.spaces[token] = ms
	m.mu.Unlock()
	log.Debugf("mm: new address space token=%d stack=[%#x, %#x) heap=%#x", token, l.StackBottom(), l.StackTop(), ms.heapBottom)
	return ms, nil
}

// Lookup returns the address space for token, or ESRCH.
func (m *Memory) Lookup(token Token) (*MemorySet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.spaces[token]
	if !ok {
		return nil, linuxerr.ESRCH
	}
	return ms, nil
}

// Release tears down the address space for token and frees its frames.
func (m *Memory) Release(token Token) {
	m.mu.Lock()
	ms, ok := m.spaces[token]
	delete(m.spaces, token)
	m.mu.Unlock()
	if ok {
		ms.destroy()
	}
}

// TranslateRange returns the chunks backing [addr, addr+length) in the
// address space named by token, for a user access of type at.
//
// The chunks are in increasing address order, each lies within one frame, and
// their lengths sum to length. If any byte of the range is unmapped or the
// access is not permitted, EFAULT is returned and no chunk is. Callers must
// consume every chunk: a value that crosses a page edge is split across frames
// that need not be adjacent.
func (m *Memory) TranslateRange(token Token, addr hostarch.Addr, length uint64, at hostarch.AccessType) ([][]byte, error) {
	ms, err := m.Lookup(token)
	if err != nil {
		return nil, err
	}
	return ms.TranslateRange(addr, length, at)
}
