// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/minitrace/report"
)

// triggerMode makes the trigger file readable by the traced application.
const triggerMode = 0o644

func newEnableCmd(g *globalFlags) *ffcli.Command {
	return &ffcli.Command{
		Name:       "enable",
		ShortUsage: "minitrace enable",
		ShortHelp:  "Create the trigger file so that tracing starts on the next request",
		Exec: func(context.Context, []string) error {
			applyGlobals(g)
			return enableTrigger(g.tracerConfig().TriggerPath())
		},
	}
}

func enableTrigger(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, triggerMode)
	if err != nil {
		return fmt.Errorf("failed to create trigger file: %w", err)
	}
	log.Infof("Created trigger file %s", path)
	return f.Close()
}

func newDisableCmd(g *globalFlags) *ffcli.Command {
	return &ffcli.Command{
		Name:       "disable",
		ShortUsage: "minitrace disable",
		ShortHelp:  "Remove the trigger file",
		Exec: func(context.Context, []string) error {
			applyGlobals(g)
			return disableTrigger(g.tracerConfig().TriggerPath())
		},
	}
}

func disableTrigger(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to remove trigger file: %w", err)
	}
	log.Infof("Removed trigger file %s", path)
	return nil
}

const summaryHelp = "Without arguments the coverage file of the selected user is read. " +
	"Files ending in " + report.ZstdSuffix + " are decompressed."

func newSummaryCmd(g *globalFlags, stdout io.Writer) *ffcli.Command {
	return &ffcli.Command{
		Name:       "summary",
		ShortUsage: "minitrace summary [coverage files...]",
		ShortHelp:  "Merge coverage files and print the coverage per method",
		LongHelp:   summaryHelp,
		Exec: func(ctx context.Context, paths []string) error {
			applyGlobals(g)
			if len(paths) == 0 {
				paths = []string{g.tracerConfig().CoveragePath()}
			}
			s, err := report.Load(ctx, paths...)
			if err != nil {
				return err
			}
			return report.WriteText(stdout, s)
		},
	}
}

type archiveCmd struct {
	g *globalFlags

	output string
	remove bool
}

func newArchiveCmd(g *globalFlags) *ffcli.Command {
	args := &archiveCmd{g: g}

	set := flag.NewFlagSet("archive", flag.ContinueOnError)
	set.StringVar(&args.output, "o", "", "Path of the compressed output file")
	set.BoolVar(&args.remove, "remove", false, "Remove the coverage file once archived")

	return &ffcli.Command{
		Name:       "archive",
		ShortUsage: "minitrace archive -o <out" + report.ZstdSuffix + "> [coverage file]",
		ShortHelp:  "Compress a coverage file",
		FlagSet:    set,
		Exec:       args.exec,
	}
}

func (cmd *archiveCmd) exec(_ context.Context, paths []string) error {
	applyGlobals(cmd.g)
	if cmd.output == "" {
		return errors.New("please specify the output file with `-o`")
	}

	var src string
	switch len(paths) {
	case 0:
		src = cmd.g.tracerConfig().CoveragePath()
	case 1:
		src = paths[0]
	default:
		return errors.New("only one coverage file can be archived at a time")
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(cmd.output, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err = report.Archive(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(cmd.output)
		return fmt.Errorf("failed to archive %s: %w", src, err)
	}
	if err = out.Close(); err != nil {
		return err
	}
	log.Infof("Archived %s to %s", src, cmd.output)

	if cmd.remove {
		return os.Remove(src)
	}
	return nil
}
