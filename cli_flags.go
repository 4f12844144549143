// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"

	"github.com/peterbourgon/ff/v3"

	"go.opentelemetry.io/minitrace/minitrace"
)

// envVarPrefix is the prefix of environment variables setting global flags.
const envVarPrefix = "MINITRACE"

// Help strings for command line arguments
var (
	dataDirHelp = "Directory holding the per-user trigger and coverage files."
	uidHelp     = "User ID selecting the trigger and coverage files. " +
		"Defaults to the calling user."
	verboseModeHelp = "Enable verbose logging."
	versionHelp     = "Show version."
	configHelp      = "Path of an optional plain text file setting the global flags."
)

// globalFlags are shared by all subcommands.
type globalFlags struct {
	dataDir string
	uid     int
	verbose bool
	version bool
}

// tracerConfig returns the tracer configuration selected by the flags.
func (g *globalFlags) tracerConfig() minitrace.Config {
	cfg := minitrace.DefaultConfig()
	cfg.DataDir = g.dataDir
	cfg.UID = g.uid
	return cfg
}

func newRootFlagSet(g *globalFlags) *flag.FlagSet {
	defaults := minitrace.DefaultConfig()
	fs := flag.NewFlagSet("minitrace", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.String("config", "", configHelp)
	fs.StringVar(&g.dataDir, "data-dir", defaults.DataDir, dataDirHelp)
	fs.IntVar(&g.uid, "uid", defaults.UID, uidHelp)
	fs.BoolVar(&g.verbose, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&g.verbose, "verbose", false, verboseModeHelp)
	fs.BoolVar(&g.version, "version", false, versionHelp)

	return fs
}

func rootOptions() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix(envVarPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	}
}
