// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package minitrace // import "go.opentelemetry.io/minitrace/minitrace"

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"go.opentelemetry.io/minitrace/classfilter"
	"go.opentelemetry.io/minitrace/dumpfile"
)

const (
	// DefaultDataDir is the directory holding the trigger and coverage files.
	DefaultDataDir = "/data"
	// DefaultInstrumentationKey identifies the tracer to the instrumentation subsystem.
	DefaultInstrumentationKey = "MiniTracer"
)

// Config configures a Tracer.
type Config struct {
	// DataDir is the directory of the trigger and coverage files.
	DataDir string
	// UID selects the trigger and coverage files.
	UID int
	// PID is written to the envelope lines.
	PID int
	// SystemPrefix is the code container location prefix of platform classes, which are
	// never traced.
	SystemPrefix string
	// InstrumentationKey is passed to Enable/DisableMethodTracing.
	InstrumentationKey string

	// FS opens the coverage file. Defaults to dumpfile.OS.
	FS dumpfile.FS
	// Now returns the envelope timestamp. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the configuration for the calling process.
func DefaultConfig() Config {
	return Config{
		DataDir:            DefaultDataDir,
		UID:                unix.Getuid(),
		PID:                unix.Getpid(),
		SystemPrefix:       classfilter.DefaultSystemPrefix,
		InstrumentationKey: DefaultInstrumentationKey,
		FS:                 dumpfile.OS{},
		Now:                time.Now,
	}
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided.
func (cfg Config) Validate() error {
	if cfg.DataDir == "" {
		return errors.New("data directory must not be empty")
	}
	if cfg.UID < 0 {
		return fmt.Errorf("invalid uid %d", cfg.UID)
	}
	if cfg.PID <= 0 {
		return fmt.Errorf("invalid pid %d", cfg.PID)
	}
	if cfg.InstrumentationKey == "" {
		return errors.New("instrumentation key must not be empty")
	}
	return nil
}

// TriggerPath returns the path of the trigger file gating Start.
func (cfg Config) TriggerPath() string {
	return dumpfile.TriggerPath(cfg.DataDir, cfg.UID)
}

// CoveragePath returns the path of the coverage file.
func (cfg Config) CoveragePath() string {
	return dumpfile.CoveragePath(cfg.DataDir, cfg.UID)
}
