// Package filelock coordinates processes sharing a queue directory and
// writes queue files so that a scan never sees them half written.
package filelock

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// TempPrefix starts the name of every file being written. Queue patterns
// never match it, so scans skip in-progress files.
const TempPrefix = ".tmp-"

type FileLock struct {
	flock *flock.Flock
	path  string
}

// New returns a lock on path. The file is created on first Lock.
func New(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// ForDir returns the lock guarding a queue directory. It lives next to the
// directory, not inside it, so purging the queue leaves it alone.
func ForDir(dir string) *FileLock {
	return New(strings.TrimRight(dir, "/") + ".lock")
}

func (fl *FileLock) Path() string { return fl.path }

// Lock blocks until the exclusive lock is held.
func (fl *FileLock) Lock() error {
	if err := fl.flock.Lock(); err != nil {
		return errors.Wrapf(err, "failed to acquire lock on %s", fl.path)
	}
	return nil
}

// TryLock reports false without blocking when another holder has the lock.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, errors.Wrapf(err, "failed to try lock on %s", fl.path)
	}
	return acquired, nil
}

func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return errors.Wrapf(err, "failed to release lock on %s", fl.path)
	}
	return nil
}

// AtomicWrite copies r into path through a temporary file in the same
// directory followed by a rename. On failure nothing is left at path.
func AtomicWrite(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)

	tempFile, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return 0, errors.Wrap(err, "failed to create temp file")
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	n, err := io.Copy(tempFile, r)
	if err != nil {
		return n, errors.Wrap(err, "failed to write temp file")
	}

	if err := tempFile.Sync(); err != nil {
		return n, errors.Wrap(err, "failed to sync temp file")
	}

	if err := tempFile.Close(); err != nil {
		return n, errors.Wrap(err, "failed to close temp file")
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return n, errors.Wrap(err, "failed to set permissions")
	}

	if err := os.Rename(tempPath, path); err != nil {
		return n, errors.Wrapf(err, "failed to rename temp file to %s", path)
	}

	tempFile = nil
	return n, nil
}
