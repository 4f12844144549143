// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package dumpfile

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "/data/mini_trace_10042_config.in", TriggerPath("/data", 10042))
	assert.Equal(t, "/data/mini_trace_10042_coverage.dat", CoveragePath("/data", 10042))
}

func TestCheckTrigger(t *testing.T) {
	dir := t.TempDir()
	path := TriggerPath(dir, 1)

	require.ErrorIs(t, CheckTrigger(path), ErrTriggerMissing)

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, CheckTrigger(path))

	if os.Geteuid() != 0 {
		require.NoError(t, os.Chmod(path, 0))
		require.ErrorIs(t, CheckTrigger(path), ErrTriggerUnreadable)
	}
}

func TestAppendCreatesAndAppends(t *testing.T) {
	path := CoveragePath(t.TempDir(), 7)
	w := NewWriter(OS{}, path)
	assert.Equal(t, path, w.Path())

	require.NoError(t, w.Append([]byte("Start\t1\t2\n")))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Start\t1\t2\n", string(first))

	require.NoError(t, w.Append([]byte("Dump\t1\t3\n")))
	all, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(all, first))
	assert.Equal(t, "Start\t1\t2\nDump\t1\t3\n", string(all))
}

func TestAppendOpenFailure(t *testing.T) {
	w := NewWriter(OS{}, filepath.Join(t.TempDir(), "missing", "cov.dat"))
	require.Error(t, w.Append([]byte("Dump\t1\t1\n")))
}

func TestConcurrentAppends(t *testing.T) {
	path := CoveragePath(t.TempDir(), 3)
	blob := bytes.Repeat([]byte("0123456789"), 1000)
	blob = append(blob, '\n')

	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			return NewWriter(OS{}, path).Append(blob)
		})
	}
	require.NoError(t, g.Wait())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat(blob, 8), data)
}

// memFile is an in-memory File that fails writes after limit bytes.
type memFile struct {
	mu      sync.Mutex
	data    []byte
	limit   int
	syncErr error
	closed  bool
}

func (m *memFile) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room := m.limit - len(m.data); room < len(p) {
		m.data = append(m.data, p[:max(room, 0)]...)
		return max(room, 0), errors.New("no space left on device")
	}
	m.data = append(m.data, p...)
	return len(p), nil
}

func (m *memFile) Size() (int64, error) { return int64(len(m.data)), nil }

func (m *memFile) Truncate(size int64) error {
	m.data = m.data[:size]
	return nil
}

func (m *memFile) Sync() error { return m.syncErr }

func (m *memFile) Close() error {
	m.closed = true
	return nil
}

type memFS struct {
	file    *memFile
	exists  bool
	created int
}

func (m *memFS) Exists(string) bool { return m.exists }

func (m *memFS) OpenAppend(string) (File, error) { return m.file, nil }

func (m *memFS) CreateEmpty(string) (File, error) {
	m.created++
	m.exists = true
	return m.file, nil
}

func TestAppendPartialWriteRollsBack(t *testing.T) {
	file := &memFile{data: []byte("Start\t1\t1\n"), limit: 15}
	fsys := &memFS{file: file, exists: true}

	err := NewWriter(fsys, "cov.dat").Append([]byte("Dump\t1\t2\n0x1\tT\tm\t()V\t\t2\t10\n"))
	require.ErrorIs(t, err, ErrPartialWrite)
	assert.Equal(t, "Start\t1\t1\n", string(file.data))
	assert.True(t, file.closed)
	assert.Zero(t, fsys.created)
}

func TestAppendSyncFailureKeepsData(t *testing.T) {
	file := &memFile{limit: 1 << 20, syncErr: errors.New("io error")}
	fsys := &memFS{file: file}

	err := NewWriter(fsys, "cov.dat").Append([]byte("Dump\t1\t2\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPartialWrite)
	assert.Equal(t, "Dump\t1\t2\n", string(file.data))
	assert.True(t, file.closed)
	assert.Equal(t, 1, fsys.created)
}

type shortWriter struct{ calls int }

func (s *shortWriter) Write(p []byte) (int, error) {
	s.calls++
	if s.calls > 3 {
		return 0, nil
	}
	return min(1, len(p)), nil
}

func TestWriteFully(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFully(&buf, []byte("abc")))
	assert.Equal(t, "abc", buf.String())

	require.ErrorIs(t, writeFully(&shortWriter{}, []byte("abcdef")), io.ErrShortWrite)
}
