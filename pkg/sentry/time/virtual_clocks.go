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

package time

import (
	"gvisor.dev/gvisor/pkg/sync"
)

// VirtualClocks is a Clock that only advances when told to. Given the same
// sequence of Advance calls it always reports the same times, which makes
// get_time results reproducible across runs.
type VirtualClocks struct {
	mu sync.RWMutex

	// now is the current time in microseconds since boot.
	// +checklocks:mu
	now uint64

	// +checklocks:mu
	listeners []TimeListener
}

// TimeListener is notified when virtual time advances.
type TimeListener interface {
	// OnTimeAdvance is called after time advanced by deltaUS microseconds.
	OnTimeAdvance(deltaUS uint64)
}

// VirtualClocksConfig contains configuration for VirtualClocks.
type VirtualClocksConfig struct {
	// InitialMicroseconds is the starting time. Defaults to 0.
	InitialMicroseconds uint64
}

// NewVirtualClocks creates a new VirtualClocks.
func NewVirtualClocks(cfg VirtualClocksConfig) *VirtualClocks {
	return &VirtualClocks{now: cfg.InitialMicroseconds}
}

// NowMicroseconds implements Clock.NowMicroseconds.
func (vc *VirtualClocks) NowMicroseconds() uint64 {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.now
}

// Advance moves time forward by deltaUS microseconds.
func (vc *VirtualClocks) Advance(deltaUS uint64) {
	if deltaUS == 0 {
		return
	}

	vc.mu.Lock()
	vc.now += deltaUS
	listeners := vc.listeners
	vc.mu.Unlock()

	// Notify listeners outside the lock.
	for _, l := range listeners {
		l.OnTimeAdvance(deltaUS)
	}
}

// GetState returns the current time for checkpointing.
func (vc *VirtualClocks) GetState() uint64 {
	return vc.NowMicroseconds()
}

// SetState restores the time from a checkpoint. Listeners are not notified.
func (vc *VirtualClocks) SetState(nowUS uint64) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.now = nowUS
}

// AddListener adds a listener that will be notified when time advances.
func (vc *VirtualClocks) AddListener(l TimeListener) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.listeners = append(vc.listeners, l)
}

// RemoveListener removes a previously added listener.
func (vc *VirtualClocks) RemoveListener(l TimeListener) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	for i, listener := range vc.listeners {
		if listener == l {
			vc.listeners = append(vc.listeners[:i:i], vc.listeners[i+1:]...)
			return
		}
	}
}

// Verify that VirtualClocks implements the Clock interface.
var _ Clock = (*VirtualClocks)(nil)
