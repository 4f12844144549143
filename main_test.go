// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/minitrace/dumpfile"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newRootCmd(&out).ParseAndRun(context.Background(), args)
	return out.String(), err
}

func TestEnableDisable(t *testing.T) {
	dir := t.TempDir()
	trigger := dumpfile.TriggerPath(dir, 7)

	_, err := run(t, "-data-dir", dir, "-uid", "7", "enable")
	require.NoError(t, err)
	assert.FileExists(t, trigger)
	require.NoError(t, dumpfile.CheckTrigger(trigger))

	// Enabling twice keeps the file.
	_, err = run(t, "-data-dir", dir, "-uid", "7", "enable")
	require.NoError(t, err)

	_, err = run(t, "-data-dir", dir, "-uid", "7", "disable")
	require.NoError(t, err)
	assert.NoFileExists(t, trigger)

	_, err = run(t, "-data-dir", dir, "-uid", "7", "disable")
	require.NoError(t, err)
}

func TestEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MINITRACE_DATA_DIR", dir)
	t.Setenv("MINITRACE_UID", "9")

	_, err := run(t, "enable")
	require.NoError(t, err)
	assert.FileExists(t, dumpfile.TriggerPath(dir, 9))
}

func TestSimulateSummaryArchive(t *testing.T) {
	dir := t.TempDir()
	globals := []string{"-data-dir", dir, "-uid", "3"}

	out, err := run(t, append(globals, "simulate", "-cycles", "2", "-classes", "8",
		"-methods", "2")...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "processes: 1  starts: 2  dumps: 2  methods: "), out)
	assert.Contains(t, out, "com.example.sim.Class0")
	assert.NotContains(t, out, "android.sim")

	summary, err := run(t, append(globals, "summary")...)
	require.NoError(t, err)
	assert.Equal(t, out, summary)

	archive := filepath.Join(dir, "coverage.dat.zst")
	_, err = run(t, append(globals, "archive", "-o", archive)...)
	require.NoError(t, err)

	// The output file must not exist yet.
	_, err = run(t, append(globals, "archive", "-o", archive)...)
	require.Error(t, err)

	fromArchive, err := run(t, append(globals, "summary", archive)...)
	require.NoError(t, err)
	assert.Equal(t, out, fromArchive)

	_, err = run(t, append(globals, "archive")...)
	require.Error(t, err)
}

func TestSimulateInvalid(t *testing.T) {
	_, err := run(t, "-data-dir", t.TempDir(), "simulate", "-classes", "0")
	require.Error(t, err)
	_, err = run(t, "-data-dir", t.TempDir(), "simulate", "-cycles", "0")
	require.Error(t, err)
}

func TestRoot(t *testing.T) {
	out, err := run(t, "-version")
	require.NoError(t, err)
	assert.Equal(t, "dev \n", out)

	_, err = run(t)
	require.ErrorIs(t, err, flag.ErrHelp)
}
