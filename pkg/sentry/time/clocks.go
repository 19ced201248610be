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

// Package time provides the monotonic microsecond clocks read by the kernel.
package time

import (
	"time"
)

// Clock is a monotonic microsecond counter that starts at boot.
type Clock interface {
	// NowMicroseconds returns microseconds elapsed since boot.
	NowMicroseconds() uint64
}

// Config selects and configures a Clock.
type Config struct {
	// Virtual selects VirtualClocks instead of the host clock.
	Virtual bool

	// InitialMicroseconds is the starting value of a virtual clock.
	InitialMicroseconds uint64
}

// NewClock returns a VirtualClocks if cfg.Virtual is set, and a HostClock
// otherwise.
func NewClock(cfg Config) Clock {
	if cfg.Virtual {
		return NewVirtualClocks(VirtualClocksConfig{
			InitialMicroseconds: cfg.InitialMicroseconds,
		})
	}
	return NewHostClock()
}

// GetVirtualClocks returns c as a VirtualClocks, or nil if it is not one.
func GetVirtualClocks(c Clock) *VirtualClocks {
	vc, ok := c.(*VirtualClocks)
	if !ok {
		return nil
	}
	return vc
}

// HostClock reads the host monotonic clock.
type HostClock struct {
	boot time.Time
}

// NewHostClock returns a HostClock whose zero is now.
func NewHostClock() *HostClock {
	return &HostClock{boot: time.Now()}
}

// NowMicroseconds implements Clock.NowMicroseconds.
func (h *HostClock) NowMicroseconds() uint64 {
	return uint64(time.Since(h.boot).Microseconds())
}

var _ Clock = (*HostClock)(nil)
