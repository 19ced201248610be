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

// Package rand provides a seeded pseudo-random source for generating
// reproducible workloads. It is not suitable for cryptographic use.
package rand

import (
	"encoding/binary"

	"gvisor.dev/gvisor/pkg/sync"
)

// Source is a ChaCha20-style block generator keyed by a 64-bit seed. The
// same seed always yields the same stream.
//
// Source is safe for concurrent use.
type Source struct {
	mu sync.Mutex

	// +checklocks:mu
	seed uint64

	// key is the ChaCha state: constants, key, block counter and nonce.
	// +checklocks:mu
	key [16]uint32

	// +checklocks:mu
	block uint64

	// pending holds unread bytes of the current block.
	// +checklocks:mu
	pending []byte
}

// NewSource returns a Source seeded with seed.
func NewSource(seed uint64) *Source {
	s := &Source{}
	s.Seed(seed)
	return s
}

// Seed resets s to the start of the stream for seed.
func (s *Source) Seed(seed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// "expand 32-byte k"
	s.key = [16]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}
	for i := 0; i < 8; i++ {
		s.key[4+i] = uint32(seed>>uint(i*4)) ^ uint32(i)*0x9e3779b9
	}
	s.key[14] = uint32(seed)
	s.key[15] = uint32(seed >> 32)
	s.seed = seed
	s.block = 0
	s.pending = nil
	s.setCounterLocked()
}

// Read implements io.Reader. It always fills p.
func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fillLocked(p)
	return len(p), nil
}

// Uint64 returns the next 64 bits of the stream.
func (s *Source) Uint64() uint64 {
	var b [8]byte
	s.mu.Lock()
	s.fillLocked(b[:])
	s.mu.Unlock()
	return binary.LittleEndian.Uint64(b[:])
}

// Intn returns a uniform value in [0, n). It panics if n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("rand: Intn with non-positive bound")
	}
	bound := uint64(n)
	// Reject the tail that would bias the modulo.
	limit := ^uint64(0) - ^uint64(0)%bound
	for {
		if v := s.Uint64(); v < limit {
			return int(v % bound)
		}
	}
}

// Range returns a uniform value in [lo, hi].
func (s *Source) Range(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + s.Intn(hi-lo+1)
}

// SourceState is a checkpoint of a Source.
type SourceState struct {
	Seed    uint64
	Block   uint64
	Pending []byte
}

// GetState returns a checkpoint of s.
func (s *Source) GetState() SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SourceState{
		Seed:    s.seed,
		Block:   s.block,
		Pending: append([]byte(nil), s.pending...),
	}
}

// SetState restores a checkpoint taken with GetState.
func (s *Source) SetState(st SourceState) {
	s.Seed(st.Seed)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = st.Block
	s.setCounterLocked()
	if len(st.Pending) > 0 {
		s.pending = append([]byte(nil), st.Pending...)
	}
}

// +checklocks:s.mu
func (s *Source) fillLocked(p []byte) {
	for len(p) > 0 {
		if len(s.pending) == 0 {
			out := s.nextBlockLocked()
			s.pending = out[:]
		}
		n := copy(p, s.pending)
		p = p[n:]
		s.pending = s.pending[n:]
	}
}

// +checklocks:s.mu
func (s *Source) setCounterLocked() {
	s.key[12] = uint32(s.block)
	s.key[13] = uint32(s.block >> 32)
}

// nextBlockLocked runs the 20-round block function and advances the counter.
//
// +checklocks:s.mu
func (s *Source) nextBlockLocked() [64]byte {
	x := s.key
	for i := 0; i < 10; i++ {
		quarter(&x[0], &x[4], &x[8], &x[12])
		quarter(&x[1], &x[5], &x[9], &x[13])
		quarter(&x[2], &x[6], &x[10], &x[14])
		quarter(&x[3], &x[7], &x[11], &x[15])
		quarter(&x[0], &x[5], &x[10], &x[15])
		quarter(&x[1], &x[6], &x[11], &x[12])
		quarter(&x[2], &x[7], &x[8], &x[13])
		quarter(&x[3], &x[4], &x[9], &x[14])
	}
	var out [64]byte
	for i := range x {
		binary.LittleEndian.PutUint32(out[i*4:], x[i]+s.key[i])
	}
	s.block++
	s.setCounterLocked()
	return out
}

func quarter(a, b, c, d *uint32) {
	*a += *b
	*d = rotl(*d^*a, 16)
	*c += *d
	*b = rotl(*b^*c, 12)
	*a += *b
	*d = rotl(*d^*a, 8)
	*c += *d
	*b = rotl(*b^*c, 7)
}

func rotl(x uint32, n uint) uint32 {
	return x<<n | x>>(32-n)
}
