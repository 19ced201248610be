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

// Binary ksim boots user programs on the stride-scheduled kernel and reports
// how they ran.
package main

import (
	"context"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/runsc/flag"

	"github.com/nerdsane/strideos/ksim/cmd"
	"github.com/nerdsane/strideos/ksim/config"
)

func main() {
	fs := flag.NewFlagSet("ksim", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "ksim")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(new(cmd.Run), "")
	commander.Register(new(cmd.Share), "")
	commander.Register(new(cmd.Version), "")

	config.RegisterFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(int(subcommands.ExitUsageError))
	}
	conf, err := config.FromFlags(fs)
	if err != nil {
		log.Warningf("%v", err)
		os.Exit(int(subcommands.ExitUsageError))
	}
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	os.Exit(int(commander.Execute(context.Background(), conf)))
}
