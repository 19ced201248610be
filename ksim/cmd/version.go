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

	"github.com/google/subcommands"
	"gvisor.dev/gvisor/runsc/flag"

	"github.com/nerdsane/strideos/pkg/usr"
)

// version is set at link time.
var version = "dev"

// Version implements subcommands.Command for the "version" command.
type Version struct {
	out io.Writer
}

// Name implements subcommands.Command.
func (*Version) Name() string {
	return "version"
}

// Synopsis implements subcommands.Command.
func (*Version) Synopsis() string {
	return "print version and built-in programs"
}

// Usage implements subcommands.Command.
func (*Version) Usage() string {
	return "version\n"
}

// SetFlags implements subcommands.Command.
func (*Version) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (v *Version) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	fmt.Fprintf(output(v.out), "ksim version %s\nprograms: %v\n", version, usr.Names())
	return subcommands.ExitSuccess
}
