package shipper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/yhsiang/seqfile/pkg/filelock"
	"github.com/yhsiang/seqfile/pkg/seqfile"
)

// inboxFile is what a pass over the inbox remembers about a file.
type inboxFile struct {
	Name     string
	Size     int64
	Checksum string
}

func (f *inboxFile) calChecksum(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	f.Checksum, err = Checksum(file)
	return err
}

// InboxWatcher moves files dropped into a directory by other programs into
// a queue. A file is taken only once two consecutive passes saw the same
// size and checksum, so writers still busy with it are left alone.
//
//go:generate callbackgen -type InboxWatcher
type InboxWatcher struct {
	mu       sync.Mutex
	path     string
	ctx      context.Context
	queue    *seqfile.SequentialFile
	lock     *filelock.FileLock
	interval time.Duration
	files    map[string]inboxFile

	ingestCallbacks []func(fileNum int, name string)
}

func NewInboxWatcher(ctx context.Context, path string, queue *seqfile.SequentialFile, interval time.Duration) *InboxWatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &InboxWatcher{
		path:     strings.TrimRight(path, "/"),
		ctx:      ctx,
		queue:    queue,
		lock:     filelock.ForDir(queue.Dir()),
		interval: interval,
		files:    make(map[string]inboxFile),
	}
}

// WalkDir makes one pass over the inbox, ingesting every file that has not
// changed since the previous pass.
func (w *InboxWatcher) WalkDir() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.path)
	if err != nil {
		return errors.Wrapf(err, "read inbox %s", w.path)
	}

	var newFiles = make(map[string]inboxFile)
	for _, ent := range entries {
		if !ent.Type().IsRegular() || strings.HasPrefix(ent.Name(), ".") {
			continue
		}

		info, err := ent.Info()
		if err != nil {
			continue
		}

		file := inboxFile{Name: ent.Name(), Size: info.Size()}
		if err := file.calChecksum(filepath.Join(w.path, file.Name)); err != nil {
			logger.WithError(err).Warnf("cannot read inbox file %s", file.Name)
			continue
		}

		oldFile, seen := w.files[file.Name]
		if !seen || oldFile != file {
			newFiles[file.Name] = file
			continue
		}

		if err := w.ingest(file); err != nil {
			logger.WithError(err).Errorf("failed to ingest %s", file.Name)
			newFiles[file.Name] = file
		}
	}

	w.files = newFiles
	return nil
}

// catchUp makes the next reservation skip numbers other processes have
// written since the last scan, without queueing their files.
func catchUp(int) bool { return true }

func (w *InboxWatcher) ingest(file inboxFile) error {
	if err := w.lock.Lock(); err != nil {
		return err
	}
	defer w.lock.Unlock()

	w.queue.Rescan(catchUp)
	fileNum := w.queue.Reserve()
	dst, err := w.queue.PathFor(fileNum)
	if err != nil {
		return err
	}

	src := filepath.Join(w.path, file.Name)
	if err := os.Rename(src, dst); err != nil {
		// different filesystems: copy, then drop the original
		if err := copyInto(src, dst); err != nil {
			return err
		}
		if err := os.Remove(src); err != nil {
			logger.WithError(err).Warnf("ingested %s but could not remove it", src)
		}
	}

	w.queue.Enqueue(fileNum)
	logger.Infof("ingested %s as %d", file.Name, fileNum)
	w.EmitIngest(fileNum, file.Name)
	return nil
}

func copyInto(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = filelock.AtomicWrite(dst, in)
	return err
}

// Run walks the inbox every interval and whenever it changes, until the
// watcher's context is done.
func (w *InboxWatcher) Run() error {
	if !seqfile.CreateDirIfNecessary(w.path) {
		return errors.Errorf("cannot create inbox %s", w.path)
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create inbox watcher")
	}
	defer notify.Close()

	if err := notify.Add(w.path); err != nil {
		return errors.Wrapf(err, "watch %s", w.path)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.WalkDir(); err != nil {
		logger.WithError(err).Error("run error")
	}

	for {
		select {
		case <-w.ctx.Done():
			return nil

		case event, ok := <-notify.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			logger.Debugf("inbox event %s", event)
			// the walk that follows a quiet interval does the ingesting
			ticker.Reset(w.interval)
			if err := w.WalkDir(); err != nil {
				logger.WithError(err).Error("run error")
			}

		case err, ok := <-notify.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("inbox watch error")

		case <-ticker.C:
			if err := w.WalkDir(); err != nil {
				logger.WithError(err).Error("run error")
			}
		}
	}
}
