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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gvisor.dev/gvisor/pkg/errors/linuxerr"
	"gvisor.dev/gvisor/pkg/hostarch"
)

const page = hostarch.PageSize

func newSpace(t *testing.T, frames int) (*Memory, *MemorySet) {
	t.Helper()
	m := NewMemory(frames)
	ms, err := m.NewAddressSpace(DefaultLayout())
	require.NoError(t, err)
	return m, ms
}

func TestFramesExhaustionAndReuse(t *testing.T) {
	f := NewFrames(2)
	a, err := f.Alloc()
	require.NoError(t, err)
	b, err := f.Alloc()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = f.Alloc()
	assert.ErrorIs(t, err, linuxerr.ENOMEM)

	f.Data(a)[0] = 0xaa
	f.Free(a)
	c, err := f.Alloc()
	require.NoError(t, err)
	assert.Equal(t, a, c)
	assert.Equal(t, byte(0), f.Data(c)[0], "reused frame must be zeroed")
	assert.Equal(t, FrameStats{Total: 2, InUse: 2, Free: 0}, f.Stats())
}

func TestFramesDoubleFreePanics(t *testing.T) {
	f := NewFrames(1)
	fn, err := f.Alloc()
	require.NoError(t, err)
	f.Free(fn)
	assert.Panics(t, func() { f.Free(fn) })
}

func TestPermissionAllows(t *testing.T) {
	rw := PermR | PermW | PermU
	assert.True(t, rw.Allows(hostarch.Write))
	assert.True(t, rw.Allows(hostarch.Read))
	assert.False(t, rw.Allows(hostarch.Execute))
	assert.False(t, (PermR | PermW).Allows(hostarch.Read), "kernel-only page")
	assert.Equal(t, "rw-u", rw.String())
	assert.False(t, MapPermission(1).Valid())
}

func TestNewAddressSpaceLayout(t *testing.T) {
	m, ms := newSpace(t, 16)
	l := DefaultLayout()

	assert.Equal(t, int(l.ImagePages+l.StackPages), ms.MappedPages())
	assert.Equal(t, l.StackTop(), ms.Brk())
	assert.Equal(t, l.StackTop(), ms.HeapBottom())

	_, ok := ms.Translate(l.StackBottom() - 1)
	assert.False(t, ok, "guard page must be unmapped")

	got, err := m.Lookup(ms.Token())
	require.NoError(t, err)
	assert.Same(t, ms, got)

	m.Release(ms.Token())
	_, err = m.Lookup(ms.Token())
	assert.ErrorIs(t, err, linuxerr.ESRCH)
	assert.Equal(t, 0, m.Frames().Stats().InUse)
}

func TestNewAddressSpaceOutOfFrames(t *testing.T) {
	m := NewMemory(3)
	_, err := m.NewAddressSpace(DefaultLayout())
	assert.ErrorIs(t, err, linuxerr.ENOMEM)
	assert.Equal(t, 0, m.Frames().Stats().InUse)
}

func TestInsertFramedArea(t *testing.T) {
	m, ms := newSpace(t, 16)
	const base hostarch.Addr = 0x1000_0000

	require.NoError(t, ms.InsertFramedArea(base, base+2*page, PermR|PermW|PermU, AreaMmap))
	assert.ErrorIs(t, ms.InsertFramedArea(base+page, base+3*page, PermR|PermU, AreaMmap), linuxerr.EEXIST)
	assert.ErrorIs(t, ms.InsertFramedArea(base, base, PermR|PermU, AreaMmap), linuxerr.EINVAL)
	assert.ErrorIs(t, ms.InsertFramedArea(UserTop, UserTop+page, PermR|PermU, AreaMmap), linuxerr.ENOMEM)

	inUse := m.Frames().Stats().InUse
	assert.ErrorIs(t, ms.InsertFramedArea(base+4*page, base+100*page, PermR|PermU, AreaMmap), linuxerr.ENOMEM)
	assert.Equal(t, inUse, m.Frames().Stats().InUse, "failed insert must not leak frames")
}

func TestTranslateRangeSplitsAtPageEdges(t *testing.T) {
	m, ms := newSpace(t, 16)
	addr := DefaultLayout().StackBottom() + page - 5

	chunks, err := m.TranslateRange(ms.Token(), addr, 16, hostarch.Write)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 5)
	assert.Len(t, chunks[1], 11)

	chunks, err = m.TranslateRange(ms.Token(), addr, 0, hostarch.Write)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTranslateRangeFaults(t *testing.T) {
	m, ms := newSpace(t, 16)
	l := DefaultLayout()

	_, err := m.TranslateRange(ms.Token(), l.StackTop()-8, 16, hostarch.Write)
	assert.ErrorIs(t, err, linuxerr.EFAULT, "tail runs into the unmapped heap")

	_, err = m.TranslateRange(ms.Token(), l.ImageBase, 8, hostarch.Write)
	assert.ErrorIs(t, err, linuxerr.EFAULT, "image is read-only")

	_, err = m.TranslateRange(ms.Token(), ^hostarch.Addr(0)-4, 16, hostarch.Read)
	assert.ErrorIs(t, err, linuxerr.EFAULT)

	_, err = m.TranslateRange(Token(999), l.StackBottom(), 8, hostarch.Read)
	assert.ErrorIs(t, err, linuxerr.ESRCH)
}

func TestCopyOutAcrossPages(t *testing.T) {
	m, ms := newSpace(t, 16)
	addr := DefaultLayout().StackBottom() + page - 3
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	n, err := CopyOut(m, ms.Token(), addr, src)
	require.NoError(t, err)
	assert.Equal(t, len(src), n)

	dst := make([]byte, len(src))
	n, err = CopyIn(m, ms.Token(), addr, dst)
	require.NoError(t, err)
	assert.Equal(t, len(src), n)
	assert.Equal(t, src, dst)
}

func TestCopyOutFaultWritesNothing(t *testing.T) {
	m, ms := newSpace(t, 16)
	top := DefaultLayout().StackTop()

	_, err := CopyOut(m, ms.Token(), top-4, []byte{9, 9, 9, 9, 9, 9, 9, 9})
	assert.ErrorIs(t, err, linuxerr.EFAULT)

	dst := make([]byte, 4)
	_, err = CopyIn(m, ms.Token(), top-4, dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, dst)
}

type record struct{ a, b uint64 }

func (r *record) SizeBytes() int { return 16 }

func (r *record) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint64(dst[0:], r.a)
	hostarch.ByteOrder.PutUint64(dst[8:], r.b)
	return dst[16:]
}

func TestCopyOutObject(t *testing.T) {
	m, ms := newSpace(t, 16)
	addr := DefaultLayout().StackBottom() + page - 8

	require.NoError(t, CopyOutObject(m, ms.Token(), addr, &record{a: 7, b: 11}))

	buf := make([]byte, 16)
	_, err := CopyIn(m, ms.Token(), addr, buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), hostarch.ByteOrder.Uint64(buf[0:]))
	assert.Equal(t, uint64(11), hostarch.ByteOrder.Uint64(buf[8:]))
}

func TestRemoveMmapRange(t *testing.T) {
	m, ms := newSpace(t, 16)
	const base hostarch.Addr = 0x2000_0000
	require.NoError(t, ms.InsertFramedArea(base, base+4*page, PermR|PermW|PermU, AreaMmap))
	inUse := m.Frames().Stats().InUse

	// Punch a hole in the middle.
	require.NoError(t, ms.RemoveMmapRange(base+page, base+3*page))
	assert.Equal(t, inUse-2, m.Frames().Stats().InUse)

	var mmaps []MapArea
	for _, a := range ms.Areas() {
		if a.Kind == AreaMmap {
			mmaps = append(mmaps, a)
		}
	}
	require.Len(t, mmaps, 2)
	assert.Equal(t, FloorVPN(base), mmaps[0].Start)
	assert.Equal(t, FloorVPN(base)+1, mmaps[0].End)
	assert.Equal(t, FloorVPN(base)+3, mmaps[1].Start)

	// The hole is no longer removable.
	assert.ErrorIs(t, ms.RemoveMmapRange(base, base+2*page), linuxerr.EINVAL)
	_, ok := ms.Translate(base)
	assert.True(t, ok, "failed unmap must not change the mapping")

	// Non-mmap areas are refused.
	assert.ErrorIs(t, ms.RemoveMmapRange(DefaultLayout().StackBottom(), DefaultLayout().StackTop()), linuxerr.EINVAL)
}

func TestChangeBrk(t *testing.T) {
	m, ms := newSpace(t, 16)
	bottom := ms.HeapBottom()
	inUse := m.Frames().Stats().InUse

	old, err := ms.ChangeBrk(100)
	require.NoError(t, err)
	assert.Equal(t, bottom, old)
	assert.Equal(t, bottom+100, ms.Brk())
	assert.Equal(t, inUse+1, m.Frames().Stats().InUse)

	_, err = CopyOut(m, ms.Token(), bottom+96, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	old, err = ms.ChangeBrk(page)
	require.NoError(t, err)
	assert.Equal(t, bottom+100, old)
	assert.Equal(t, inUse+2, m.Frames().Stats().InUse)

	old, err = ms.ChangeBrk(-page - 100)
	require.NoError(t, err)
	assert.Equal(t, bottom+100+page, old)
	assert.Equal(t, bottom, ms.Brk())
	assert.Equal(t, inUse, m.Frames().Stats().InUse)

	_, err = ms.ChangeBrk(-1)
	assert.ErrorIs(t, err, linuxerr.EINVAL)
	assert.Equal(t, bottom, ms.Brk())

	_, err = ms.ChangeBrk(100 * page)
	assert.ErrorIs(t, err, linuxerr.ENOMEM)
	assert.Equal(t, bottom, ms.Brk())
}

func TestChangeBrkIntoMapping(t *testing.T) {
	_, ms := newSpace(t, 16)
	bottom := ms.HeapBottom()
	require.NoError(t, ms.InsertFramedArea(bottom+page, bottom+2*page, PermR|PermU, AreaMmap))

	_, err := ms.ChangeBrk(page)
	require.NoError(t, err)
	_, err = ms.ChangeBrk(page)
	assert.ErrorIs(t, err, linuxerr.EEXIST)
	assert.Equal(t, bottom+page, ms.Brk())
}
