// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package dumpfile // import "go.opentelemetry.io/minitrace/dumpfile"

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

const fileMode = 0o644

// OS is the FS backed by the host file system.
//
// Files are locked exclusively while open, which serializes the appends of concurrently
// dumping processes of the same user.
type OS struct{}

// Compile time check for interface adherence
var _ FS = OS{}

func (OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OS) OpenAppend(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, fileMode)
	if err != nil {
		return nil, err
	}
	return lockFile(f)
}

func (o OS) CreateEmpty(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_EXCL, fileMode)
	if errors.Is(err, fs.ErrExist) {
		// Another process created the file in the meantime.
		return o.OpenAppend(path)
	}
	if err != nil {
		return nil, err
	}
	return lockFile(f)
}

type osFile struct {
	f    *os.File
	lock *flock.Flock
}

func lockFile(f *os.File) (*osFile, error) {
	lock := flock.New(f.Name())
	if err := lock.Lock(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", f.Name(), err)
	}
	return &osFile{f: f, lock: lock}, nil
}

func (o *osFile) Write(p []byte) (int, error) {
	return o.f.Write(p)
}

func (o *osFile) Size() (int64, error) {
	info, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (o *osFile) Truncate(size int64) error {
	return o.f.Truncate(size)
}

func (o *osFile) Sync() error {
	return unix.Fsync(int(o.f.Fd()))
}

func (o *osFile) Close() error {
	unlockErr := o.lock.Unlock()
	return errors.Join(o.f.Close(), unlockErr)
}
