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

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/gvisor/runsc/cmd/util"
	"gvisor.dev/gvisor/runsc/flag"

	"github.com/nerdsane/strideos/ksim/boot"
	"github.com/nerdsane/strideos/ksim/config"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	// out receives the report. Defaults to stdout.
	out io.Writer
}

// Name implements subcommands.Command.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.
func (*Run) Synopsis() string {
	return "boot the tasks in a manifest and run them to completion"
}

// Usage implements subcommands.Command.
func (*Run) Usage() string {
	return `run [flags] <manifest.yaml>

Boots one task per manifest entry (or count replicas), runs until every task
has exited and prints the final kernel state as JSON.
`
}

// SetFlags implements subcommands.Command.
func (*Run) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	m, err := config.LoadManifest(f.Arg(0))
	if err != nil {
		return util.Errorf("%v", err)
	}
	l, err := boot.New(conf, m, os.Stderr)
	if err != nil {
		return util.Errorf("booting: %v", err)
	}
	rep, err := l.Run(ctx)
	if err != nil {
		return util.Errorf("%v", err)
	}
	if err := printJSON(r.out, rep); err != nil {
		return util.Errorf("writing report: %v", err)
	}
	if rep.Failed() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
