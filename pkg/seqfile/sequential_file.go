// Package seqfile maintains a directory of uniquely numbered files as a
// durable FIFO queue.
//
// A producer reserves a number, writes the file PathFor returns and enqueues
// the number. A consumer dequeues numbers in order, processes the files and
// removes them. The queue itself lives in memory and is rebuilt from the
// directory contents by a scan, which runs automatically on first use.
package seqfile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

var logger = log.WithFields(log.Fields{
	"component": "seqfile",
})

//go:generate callbackgen -type SequentialFile
type SequentialFile struct {
	dir     string
	dirPerm os.FileMode
	pattern pathPattern
	walker  walker
	admit   AdmitFunc
	queue   *queue

	// scanMu serializes scans and guards scanned. Scans do their disk I/O
	// under scanMu only and the queue lock is taken once to merge the
	// result. Callbacks run after scanMu is released.
	scanMu  sync.Mutex
	scanned bool

	registry *Registry

	enqueueCallbacks []func(fileNum int)
	scanCallbacks    []func(count int)
}

// New creates a SequentialFile. The directory is not touched until the first
// scan.
func New(opts *Options) (*SequentialFile, error) {
	if opts == nil {
		return nil, errors.New("seqfile: options cannot be nil")
	}

	o := *opts
	if err := o.Validate(); err != nil {
		return nil, err
	}

	return &SequentialFile{
		dir:     o.Dir,
		dirPerm: o.DirPerm,
		pattern: pathPattern{
			pattern:    o.Pattern,
			ext:        o.Extension,
			maxPathLen: o.MaxPathLen,
		},
		walker: walker{maxPathLen: o.MaxPathLen},
		admit:  o.Admit,
		queue:  newQueue(),
	}, nil
}

// Dir returns the queue directory, never with a trailing separator.
func (s *SequentialFile) Dir() string { return s.dir }

func (s *SequentialFile) Pattern() string { return s.pattern.pattern }

func (s *SequentialFile) Extension() string { return s.pattern.ext }

// ScanDir rebuilds the queue from the directory, creating the directory if
// needed. Files are queued in directory order. Any queued numbers are
// dropped first, so callers must not scan while numbers are in flight.
func (s *SequentialFile) ScanDir() bool {
	s.scanMu.Lock()
	found, ok := s.scanLocked()
	var added int
	if ok {
		s.queue.reset()
		added = s.queue.merge(found, nil)
		s.scanned = true
	}
	s.scanMu.Unlock()

	if ok {
		s.EmitScan(added)
	}
	return ok
}

// Rescan appends files that appeared in the directory since the last scan,
// e.g. written by another process, behind everything already queued.
// Queued and reserved numbers are left alone, as is any number skip
// reports, though every number found still raises the high-water mark. skip
// runs under the queue lock and must not call back into the SequentialFile.
// It returns how many numbers were added.
func (s *SequentialFile) Rescan(skip func(fileNum int) bool) (int, bool) {
	s.scanMu.Lock()
	found, ok := s.scanLocked()
	var added int
	if ok {
		added = s.queue.merge(found, skip)
		s.scanned = true
	}
	s.scanMu.Unlock()

	if ok {
		s.EmitScan(added)
	}
	return added, ok
}

// ensureScanned runs the first scan. Until one succeeds every call retries,
// and numbers enqueued in the meantime stay ahead of what the scan finds.
func (s *SequentialFile) ensureScanned() {
	s.scanMu.Lock()
	if s.scanned {
		s.scanMu.Unlock()
		return
	}
	found, ok := s.scanLocked()
	var added int
	if ok {
		added = s.queue.merge(found, nil)
		s.scanned = true
	}
	s.scanMu.Unlock()

	if ok {
		s.EmitScan(added)
	}
}

// scanLocked lists the admitted file numbers in directory order. It leaves
// the queue alone.
func (s *SequentialFile) scanLocked() ([]int, bool) {
	if len(s.dir) <= 1 {
		logger.WithError(ErrUnconfiguredDir).Errorf("refusing to scan %q", s.dir)
		return nil, false
	}
	if len(s.dir) > s.pattern.maxPathLen {
		logger.WithError(ErrPathTooLong).Errorf("refusing to scan %s", s.dir)
		return nil, false
	}

	if !createDir(s.dir, s.dirPerm) {
		return nil, false
	}

	logger.Debugf("scanning %s with pattern %s", s.dir, s.pattern.pattern)

	entries, err := s.walker.readDir(s.dir)
	if err != nil {
		logger.WithError(err).Errorf("failed to open %s", s.dir)
		return nil, false
	}

	var found []int
	for _, ent := range entries {
		if !ent.Type().IsRegular() {
			continue
		}

		fileNum, ok := s.pattern.parse(ent.Name())
		if !ok {
			continue
		}

		if s.admit != nil && !s.admit(fileNum, ent.Name()) {
			logger.Debugf("scan rejected %s", ent.Name())
			continue
		}

		logger.Debugf("found %d %s", fileNum, ent.Name())
		found = append(found, fileNum)
	}
	return found, true
}

// Reserve returns a new unique file number. The reservation is in memory
// only; it is lost if nothing is written and enqueued under it.
func (s *SequentialFile) Reserve() int {
	s.ensureScanned()
	return s.queue.reserve()
}

// Enqueue appends fileNum to the tail of the queue.
func (s *SequentialFile) Enqueue(fileNum int) {
	if fileNum <= NoFile {
		logger.Warnf("ignoring enqueue of invalid file number %d", fileNum)
		return
	}

	s.ensureScanned()
	s.queue.push(fileNum)
	s.EmitEnqueue(fileNum)
}

// Dequeue returns the head of the queue, or NoFile if it is empty. The head
// is removed only when remove is true.
func (s *SequentialFile) Dequeue(remove bool) int {
	s.ensureScanned()

	fileNum := s.queue.pop(remove)
	if fileNum != NoFile {
		logger.Debugf("dequeue returned %d", fileNum)
	}
	return fileNum
}

// Peek returns the head of the queue without removing it.
func (s *SequentialFile) Peek() int {
	return s.Dequeue(false)
}

// RemoveSecond removes and returns the entry behind the head, leaving the
// head in place. Consumers use it to set aside a file while the head is
// still being confirmed.
func (s *SequentialFile) RemoveSecond() int {
	return s.RemoveNth(1)
}

// RemoveNth removes and returns the n-th queued number (0 is the head),
// preserving the order of the rest. NoFile if n is out of range.
func (s *SequentialFile) RemoveNth(n int) int {
	s.ensureScanned()

	fileNum := s.queue.removeNth(n)
	if fileNum != NoFile {
		logger.Debugf("removed entry %d: %d", n, fileNum)
	}
	return fileNum
}

// QueueLen returns the number of queued file numbers.
func (s *SequentialFile) QueueLen() int {
	return s.queue.len()
}

// LastFileNum returns the high-water mark.
func (s *SequentialFile) LastFileNum() int {
	return s.queue.lastFileNum()
}

// Pending returns a copy of the queued numbers, head first.
func (s *SequentialFile) Pending() []int {
	s.ensureScanned()
	return s.queue.snapshot()
}

func overrideExt(ext []string) *string {
	if len(ext) == 0 {
		return nil
	}
	return &ext[0]
}

// NameFor renders the filename for fileNum. An optional extension argument
// replaces the configured one; passing "" drops the extension.
func (s *SequentialFile) NameFor(fileNum int, ext ...string) (string, error) {
	return s.pattern.render(fileNum, overrideExt(ext))
}

// PathFor is Dir() + "/" + NameFor(fileNum, ext...).
func (s *SequentialFile) PathFor(fileNum int, ext ...string) (string, error) {
	return s.pattern.fullPath(s.dir, fileNum, overrideExt(ext))
}

// ParseName extracts the file number from a queue filename, applying the
// configured extension.
func (s *SequentialFile) ParseName(name string) (int, bool) {
	return s.pattern.parse(name)
}

// RemoveFileNum deletes the file for fileNum. With allExtensions every file
// under the directory whose name parses to fileNum is deleted, whatever its
// extension, which requires walking the directory.
func (s *SequentialFile) RemoveFileNum(fileNum int, allExtensions bool) error {
	if !allExtensions {
		path, err := s.PathFor(fileNum)
		if err != nil {
			logger.WithError(err).Errorf("cannot remove %d", fileNum)
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.WithError(err).Errorf("failed to remove %s", path)
			return errors.Wrapf(err, "remove %s", path)
		}
		logger.Debugf("removed %s", path)
		return nil
	}

	err := s.walker.forEachEntry(s.dir, func(path string, typ EntryType) error {
		if typ != EntryFile {
			return nil
		}
		if n, ok := s.pattern.parseNumber(filepath.Base(path)); !ok || n != fileNum {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.WithError(err).Errorf("failed to remove %s", path)
			return nil
		}
		logger.Debugf("removed %s", path)
		return nil
	})

	if errors.Is(err, ErrPathTooLong) {
		logger.WithError(err).Errorf("cannot remove %d", fileNum)
		return err
	}
	if err != nil {
		// nothing to walk
		logger.WithError(err).Warnf("could not walk %s", s.dir)
	}
	return nil
}

// RemoveAll deletes every entry under the directory, including files that
// do not match the pattern, and optionally the directory itself. The queue
// and high-water mark are reset so the next access rescans.
func (s *SequentialFile) RemoveAll(removeDir bool) error {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	err := s.walker.deleteAll(s.dir, removeDir)
	if errors.Is(err, ErrPathTooLong) {
		logger.WithError(err).Errorf("cannot remove all under %s", s.dir)
		return err
	}
	if err != nil {
		logger.WithError(err).Errorf("failed to remove all under %s", s.dir)
	}

	s.queue.reset()
	s.scanned = false
	return err
}

// Close detaches the SequentialFile from the registry that created it.
// Files on disk are left alone.
func (s *SequentialFile) Close() {
	if s.registry != nil {
		s.registry.remove(s)
	}
}

// CreateDirIfNecessary makes sure path is a directory. A plain file in the
// way is deleted. Only the last path element is created.
func CreateDirIfNecessary(path string) bool {
	return createDir(path, 0777)
}

func createDir(path string, perm os.FileMode) bool {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			logger.Debugf("%s exists and is a directory", path)
			return true
		}

		logger.Errorf("file in the way, deleting %s", path)
		if err := os.Remove(path); err != nil {
			logger.WithError(err).Errorf("failed to delete %s", path)
			return false
		}
	} else if !os.IsNotExist(err) {
		logger.WithError(err).Errorf("stat %s failed", path)
		return false
	}

	if err := os.Mkdir(path, perm); err != nil {
		logger.WithError(err).Errorf("mkdir %s failed", path)
		return false
	}

	logger.Infof("created dir %s", path)
	return true
}
