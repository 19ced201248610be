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
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/gvisor/runsc/cmd/util"
	"gvisor.dev/gvisor/runsc/flag"

	"github.com/nerdsane/strideos/ksim/boot"
	"github.com/nerdsane/strideos/ksim/config"
	"github.com/nerdsane/strideos/pkg/sentry/check"
)

// Share implements subcommands.Command for the "share" command.
type Share struct {
	opts      boot.ShareOptions
	minPrio   uint
	maxPrio   uint
	tolerance float64
	emit      bool

	// out receives the table. Defaults to stdout.
	out io.Writer
}

// Name implements subcommands.Command.
func (*Share) Name() string {
	return "share"
}

// Synopsis implements subcommands.Command.
func (*Share) Synopsis() string {
	return "measure how CPU share tracks priority on a generated workload"
}

// Usage implements subcommands.Command.
func (*Share) Usage() string {
	return `share [flags]

Spawns spinning tasks with seeded random priorities, runs them, and reports
each task's share of dispatches up to the first exit against its priority
share.
`
}

// SetFlags implements subcommands.Command.
func (s *Share) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&s.opts.Seed, "seed", 1, "seed for drawing priorities.")
	f.IntVar(&s.opts.Tasks, "tasks", 4, "number of tasks.")
	f.UintVar(&s.minPrio, "min-priority", 2, "smallest priority drawn.")
	f.UintVar(&s.maxPrio, "max-priority", 16, "largest priority drawn.")
	f.Int64Var(&s.opts.Yields, "yields", 1000, "yields per task before it exits.")
	f.Float64Var(&s.tolerance, "tolerance", 0.05, "allowed relative deviation from the priority share.")
	f.BoolVar(&s.emit, "emit", false, "print the generated manifest instead of running it.")
}

// Execute implements subcommands.Command.Execute.
func (s *Share) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	if s.minPrio > 0xff || s.maxPrio > 0xff {
		return util.Errorf("priorities must fit in 8 bits")
	}
	s.opts.MinPriority = uint8(s.minPrio)
	s.opts.MaxPriority = uint8(s.maxPrio)
	m, err := boot.ShareManifest(s.opts)
	if err != nil {
		return util.Errorf("%v", err)
	}
	if s.emit {
		out, err := m.Marshal()
		if err != nil {
			return util.Errorf("encoding manifest: %v", err)
		}
		output(s.out).Write(out)
		return subcommands.ExitSuccess
	}

	l, err := boot.New(conf, m, os.Stderr)
	if err != nil {
		return util.Errorf("booting: %v", err)
	}
	prop := check.ProportionalShare(s.tolerance)
	l.AddProperty(prop)
	rep, err := l.Run(ctx)
	if err != nil {
		return util.Errorf("%v", err)
	}

	res, ok := rep.Checks[prop.Name]
	if !ok {
		return util.Errorf("share not checked; run with -check")
	}
	if err := s.printTable(rep, res); err != nil {
		return util.Errorf("writing table: %v", err)
	}
	if rep.Failed() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (s *Share) printTable(rep *boot.Report, res check.Result) error {
	prioSum := 0
	for _, t := range rep.State.Tasks {
		prioSum += int(t.Priority)
	}

	w := tabwriter.NewWriter(output(s.out), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TID\tNAME\tPRIORITY\tWANT\tGOT\tDISPATCHES")
	for _, t := range rep.State.Tasks {
		got, _ := res.Detail[fmt.Sprint(t.TID)].(float64)
		fmt.Fprintf(w, "%d\t%s\t%d\t%.3f\t%.3f\t%d\n",
			t.TID, t.Name, t.Priority, float64(t.Priority)/float64(prioSum), got, t.Dispatches)
	}
	fmt.Fprintf(w, "\nproportional-share: %s", res.Status)
	if res.Reason != "" {
		fmt.Fprintf(w, " (%s)", res.Reason)
	}
	fmt.Fprintln(w)
	return w.Flush()
}
