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

// Package config holds the simulator's command-line configuration and the
// task manifest it boots from.
package config

import (
	"fmt"
	"time"

	"gvisor.dev/gvisor/runsc/flag"

	"github.com/nerdsane/strideos/pkg/sentry/kernel"
	sentrytime "github.com/nerdsane/strideos/pkg/sentry/time"
)

// Config holds global simulator configuration. It is built from flags.
type Config struct {
	// Debug enables debug logging.
	Debug bool

	// Frames is the number of physical frames.
	Frames int

	// HostClock uses the host monotonic clock instead of virtual time. Runs
	// are then no longer reproducible.
	HostClock bool

	// InitialTimeUS is the virtual clock reading at boot.
	InitialTimeUS uint64

	// SyscallAdvanceUS is how far virtual time moves per syscall.
	SyscallAdvanceUS uint64

	// Strace writes one span per syscall to stderr.
	Strace bool

	// Check evaluates the kernel properties after the run.
	Check bool

	// Timeout bounds a run. Zero means no limit.
	Timeout time.Duration
}

// RegisterFlags registers simulator flags on flagSet.
func RegisterFlags(flagSet *flag.FlagSet) {
	def := kernel.DefaultConfig()
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.Int("frames", def.Frames, "number of physical frames.")
	flagSet.Bool("host-clock", false, "use the host clock instead of virtual time. Runs are not reproducible.")
	flagSet.Uint64("initial-time-us", 0, "virtual clock reading at boot, in microseconds.")
	flagSet.Uint64("syscall-advance-us", def.SyscallAdvanceUS, "virtual time advance per syscall in microseconds.")
	flagSet.Bool("strace", false, "write a trace span per syscall to stderr.")
	flagSet.Bool("check", true, "check kernel properties after the run.")
	flagSet.Duration("timeout", time.Minute, "abort a run after this long. 0 disables the limit.")
}

// FromFlags creates a Config from flags registered with RegisterFlags.
func FromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{
		Debug:            get(flagSet, "debug").(bool),
		Frames:           get(flagSet, "frames").(int),
		HostClock:        get(flagSet, "host-clock").(bool),
		InitialTimeUS:    get(flagSet, "initial-time-us").(uint64),
		SyscallAdvanceUS: get(flagSet, "syscall-advance-us").(uint64),
		Strace:           get(flagSet, "strace").(bool),
		Check:            get(flagSet, "check").(bool),
		Timeout:          get(flagSet, "timeout").(time.Duration),
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func get(flagSet *flag.FlagSet, name string) any {
	return flag.Get(flagSet.Lookup(name).Value)
}

// Validate checks conf for values the kernel cannot run with.
func (c *Config) Validate() error {
	if c.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", c.Frames)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	return nil
}

// KernelConfig returns the kernel configuration described by c.
func (c *Config) KernelConfig() kernel.Config {
	return kernel.Config{
		Frames: c.Frames,
		Clock: sentrytime.Config{
			Virtual:             !c.HostClock,
			InitialMicroseconds: c.InitialTimeUS,
		},
		SyscallAdvanceUS: c.SyscallAdvanceUS,
	}
}
