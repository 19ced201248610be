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

// Package boot builds a kernel from a configuration and a manifest and runs
// it to completion.
package boot

import (
	"context"
	"fmt"
	"io"

	"gvisor.dev/gvisor/pkg/log"

	"github.com/nerdsane/strideos/ksim/config"
	"github.com/nerdsane/strideos/pkg/sentry/check"
	"github.com/nerdsane/strideos/pkg/sentry/kernel"
	"github.com/nerdsane/strideos/pkg/sentry/strace"
	"github.com/nerdsane/strideos/pkg/usr"
)

// Loader owns a booted kernel and everything attached to it.
type Loader struct {
	conf *config.Config
	k    *kernel.Kernel
	rec  *check.Recorder

	checker *check.Checker

	// traceShutdown flushes the syscall tracer, if one was installed.
	traceShutdown func(context.Context) error
}

// New boots a kernel and spawns every task in m. Syscall spans go to
// traceOut when conf.Strace is set.
func New(conf *config.Config, m *config.Manifest, traceOut io.Writer) (*Loader, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	k := kernel.New(conf.KernelConfig())
	l := &Loader{
		conf:    conf,
		k:       k,
		rec:     check.NewRecorder(k),
		checker: check.NewChecker(check.KernelProperties()...),
	}

	if conf.Strace {
		shutdown, err := strace.Init(traceOut, k.BootID().String())
		if err != nil {
			return nil, fmt.Errorf("starting syscall trace: %w", err)
		}
		l.traceShutdown = shutdown
	}

	for _, spec := range m.Tasks {
		prog, err := usr.Lookup(spec.Program)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", spec.Name, err)
		}
		layout := spec.MMLayout()
		for i := 0; i < spec.Replicas(); i++ {
			name := spec.ReplicaName(i)
			if _, err := k.Spawn(name, spec.Priority, layout, usr.Entry(prog, layout, spec.Arg)); err != nil {
				return nil, fmt.Errorf("spawning %q: %w", name, err)
			}
		}
	}
	log.Infof("boot: %d tasks spawned", len(k.Tasks()))
	return l, nil
}

// Kernel returns the booted kernel.
func (l *Loader) Kernel() *kernel.Kernel {
	return l.k
}

// AddProperty adds a property to check after the run.
func (l *Loader) AddProperty(p check.Property) {
	l.checker.Add(p)
}

// Report is the outcome of a run.
type Report struct {
	State  kernel.State            `json:"state"`
	Checks map[string]check.Result `json:"checks,omitempty"`
}

// Failed reports whether any property failed or any task exited non-zero.
func (r *Report) Failed() bool {
	for _, c := range r.Checks {
		if c.IsFail() {
			return true
		}
	}
	for _, t := range r.State.Tasks {
		if t.ExitCode != 0 {
			return true
		}
	}
	return false
}

// Run runs the kernel until every task has exited, ctx is done, or the
// configured timeout passes. On timeout, parked tasks are killed and their
// memory released, as described on kernel.Kernel.Run.
func (l *Loader) Run(ctx context.Context) (*Report, error) {
	if l.conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.conf.Timeout)
		defer cancel()
	}
	if l.traceShutdown != nil {
		defer func() {
			if err := l.traceShutdown(context.Background()); err != nil {
				log.Warningf("boot: flushing syscall trace: %v", err)
			}
		}()
	}

	if err := l.k.Run(ctx); err != nil {
		return nil, fmt.Errorf("running kernel: %w", err)
	}

	rep := &Report{State: l.k.State()}
	if l.conf.Check {
		rep.Checks = l.checker.CheckAll(check.Observe(l.k, l.rec))
		for name, r := range rep.Checks {
			if r.IsFail() {
				log.Warningf("boot: property %s failed: %s", name, r.Reason)
			}
		}
	}
	return rep, nil
}
