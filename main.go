// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// minitrace controls and analyzes execution coverage tracing of managed runtime
// processes through the per-user trigger and coverage files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// The following variables are set at link time using ldflags.
var (
	// version in vX.Y.Z{-N-abbrev} format (via git-describe --tags)
	version = "dev"
	// revision of the build
	revision = ""
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1
	// exitParseError matches what the flag package uses on parse errors.
	exitParseError exitCode = 2
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	log.SetReportCaller(false)
	log.SetFormatter(&log.TextFormatter{})

	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer cancel()

	root := newRootCmd(os.Stdout)
	if err := root.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		log.Errorf("Failure to parse arguments: %v", err)
		return exitParseError
	}

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitParseError
		}
		log.Errorf("%v", err)
		return exitFailure
	}
	return exitSuccess
}

// newRootCmd builds the command tree writing its results to stdout.
func newRootCmd(stdout io.Writer) *ffcli.Command {
	g := &globalFlags{}
	fs := newRootFlagSet(g)

	return &ffcli.Command{
		Name:       "minitrace",
		ShortUsage: "minitrace [global flags] <subcommand> [flags]",
		ShortHelp:  "Tool for controlling and analyzing coverage tracing",
		FlagSet:    fs,
		Options:    rootOptions(),
		Subcommands: []*ffcli.Command{
			newEnableCmd(g),
			newDisableCmd(g),
			newSummaryCmd(g, stdout),
			newArchiveCmd(g),
			newSimulateCmd(g, stdout),
		},
		Exec: func(context.Context, []string) error {
			if g.version {
				_, err := fmt.Fprintf(stdout, "%s %s\n", version, revision)
				return err
			}
			return flag.ErrHelp
		},
	}
}

// applyGlobals configures logging from g. Every subcommand calls it first.
func applyGlobals(g *globalFlags) {
	if g.verbose {
		log.SetLevel(log.DebugLevel)
	}
}
