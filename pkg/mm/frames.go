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
	"gvisor.dev/gvisor/pkg/sync"
)

// FrameNumber identifies a physical frame.
type FrameNumber uint64

// FrameStats describes frame pool usage.
type FrameStats struct {
	Total int
	InUse int
	Free  int
}

// Frames is a fixed-capacity pool of physical frames.
//
// Frames are handed out in increasing order until the pool has been touched
// once, after which freed frames are reused most-recently-freed first. The
// order is fully determined by the sequence of Alloc and Free calls.
type Frames struct {
	mu sync.Mutex

	// data holds frame contents, indexed by frame number. Entries are
	// allocated on first use.
	// +checklocks:mu
	data [][]byte

	// next is the lowest frame number never handed out.
	// +checklocks:mu
	next FrameNumber

	// recycled holds freed frames.
	// +checklocks:mu
	recycled []FrameNumber

	// inUse tracks frames currently allocated.
	// +checklocks:mu
	inUse map[FrameNumber]struct{}
}

// NewFrames creates a pool of count frames.
func NewFrames(count int) *Frames {
	return &Frames{
		data:  make([][]byte, count),
		inUse: make(map[FrameNumber]struct{}),
	}
}

// Alloc returns a zeroed frame, or ENOMEM when the pool is exhausted.
func (f *Frames) Alloc() (FrameNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var fn FrameNumber
	switch {
	case len(f.recycled) > 0:
		fn = f.recycled[len(f.recycled)-1]
		f.recycled = f.recycled[:len(f.recycled)-1]
		clear(f.data[fn])
	case int(f.next) < len(f.data):
		fn = f.next
		f.next++
		f.data[fn] = make([]byte, hostarch.PageSize)
	default:
		return 0, linuxerr.ENOMEM
	}
	f.inUse[fn] = struct{}{}
	return fn, nil
}

// Free returns fn to the pool. Freeing a frame that is not allocated panics.
func (f *Frames) Free(fn FrameNumber) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.inUse[fn]; !ok {
		panic("mm.Frames.Free: frame not allocated")
	}
	delete(f.inUse, fn)
	f.recycled = append(f.recycled, fn)
}

// Data returns the backing bytes of fn. The slice aliases the frame.
func (f *Frames) Data(fn FrameNumber) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[fn]
}

// Stats returns current usage.
func (f *Frames) Stats() FrameStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FrameStats{
		Total: len(f.data),
		InUse: len(f.inUse),
		Free:  len(f.data) - len(f.inUse),
	}
}
