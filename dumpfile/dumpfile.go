// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package dumpfile implements the per-user trigger and coverage files.
//
// The coverage file is shared by every traced process of a user and is strictly append
// only. Each dump is written as a single blob. A blob that could not be written completely
// is rolled back, so the file never contains a partial record.
package dumpfile // import "go.opentelemetry.io/minitrace/dumpfile"

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrTriggerMissing is returned by CheckTrigger if the trigger file does not exist.
	ErrTriggerMissing = errors.New("trigger file does not exist")
	// ErrTriggerUnreadable is returned by CheckTrigger if the trigger file exists but
	// can't be opened.
	ErrTriggerUnreadable = errors.New("trigger file exists but can't be opened")
	// ErrPartialWrite is returned by Writer.Append if a blob was not written completely.
	// The partial data has been removed from the file.
	ErrPartialWrite = errors.New("incomplete write")
)

// TriggerPath returns the path of the trigger file for uid in dir.
func TriggerPath(dir string, uid int) string {
	return filepath.Join(dir, fmt.Sprintf("mini_trace_%d_config.in", uid))
}

// CoveragePath returns the path of the coverage file for uid in dir.
func CoveragePath(dir string, uid int) string {
	return filepath.Join(dir, fmt.Sprintf("mini_trace_%d_coverage.dat", uid))
}

// CheckTrigger verifies that the trigger file at path exists and can be opened for
// reading. Its contents are not inspected.
func CheckTrigger(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrTriggerMissing
		}
		return fmt.Errorf("%w: %v", ErrTriggerUnreadable, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTriggerUnreadable, err)
	}
	return f.Close()
}

// File is an open coverage file.
type File interface {
	io.Writer
	// Size returns the current size of the file.
	Size() (int64, error)
	Truncate(size int64) error
	// Sync flushes written data to stable storage.
	Sync() error
	Close() error
}

// FS opens coverage files.
type FS interface {
	Exists(path string) bool
	// OpenAppend opens an existing file for writing at its end.
	OpenAppend(path string) (File, error)
	// CreateEmpty creates a new empty file.
	CreateEmpty(path string) (File, error)
}

// Writer appends blobs to one coverage file.
type Writer struct {
	fs   FS
	path string
}

// NewWriter returns a Writer for the file at path.
func NewWriter(fsys FS, path string) *Writer {
	return &Writer{fs: fsys, path: path}
}

// Path returns the path of the coverage file.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) open() (File, error) {
	if w.fs.Exists(w.path) {
		return w.fs.OpenAppend(w.path)
	}
	return w.fs.CreateEmpty(w.path)
}

// Append writes blob at the end of the coverage file, creating the file if needed.
//
// If the blob can't be written completely, the file is truncated back to its previous
// size and ErrPartialWrite is returned. If flushing or closing fails after a complete
// write, the written data stays in place and the error is returned.
func (w *Writer) Append(blob []byte) error {
	f, err := w.open()
	if err != nil {
		return fmt.Errorf("failed to open coverage data file %s: %w", w.path, err)
	}

	start, err := f.Size()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat coverage data file %s: %w", w.path, err)
	}

	if err = writeFully(f, blob); err != nil {
		w.erase(f, start)
		return fmt.Errorf("%w of coverage data file %s: %v", ErrPartialWrite, w.path, err)
	}

	syncErr := f.Sync()
	closeErr := f.Close()
	if err = errors.Join(syncErr, closeErr); err != nil {
		return fmt.Errorf("failed to flush coverage data file %s: %w", w.path, err)
	}
	return nil
}

// erase drops everything written after start and closes f.
func (w *Writer) erase(f File, start int64) {
	if err := f.Truncate(start); err != nil {
		log.Warnf("Failed to roll back coverage data file %s to %d bytes: %v",
			w.path, start, err)
	}
	if err := f.Close(); err != nil {
		log.Warnf("Failed to close coverage data file %s: %v", w.path, err)
	}
}

// writeFully writes all of data, retrying short writes.
func writeFully(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
