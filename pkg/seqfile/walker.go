package seqfile

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// EntryType discriminates the directory entries a walk reports.
type EntryType int

const (
	EntryFile EntryType = iota
	EntryDir
)

func (t EntryType) String() string {
	if t == EntryDir {
		return "dir"
	}
	return "file"
}

// VisitFunc is called for every plain file and directory found by a walk.
// Returning ErrStopWalk ends the walk without error.
type VisitFunc func(path string, typ EntryType) error

var ErrStopWalk = errors.New("seqfile: stop walk")

// walker traverses a directory tree depth first. Some flash filesystems
// invalidate an open directory iteration when an entry under it is removed,
// so no directory handle is ever held open while the caller mutates the tree:
// listings are snapshotted before visiting, and deleteAll re-opens the
// directory for every single removal.
type walker struct {
	maxPathLen int
}

func entryTypeOf(ent os.DirEntry) (EntryType, bool) {
	switch {
	case ent.Type().IsRegular():
		return EntryFile, true
	case ent.IsDir():
		return EntryDir, true
	default:
		return 0, false
	}
}

func (w walker) join(dir, name string) (string, error) {
	path := dir + "/" + name
	if len(path) > w.maxPathLen {
		return "", errors.Wrapf(ErrPathTooLong, "%s", path)
	}
	return path, nil
}

// readDir returns the entries of dir in filesystem order. The handle is
// closed before returning.
func (w walker) readDir(dir string) ([]os.DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}
	return entries, nil
}

// forEachEntry visits every plain file and directory under root. Children
// are visited before their directory. A path over the length ceiling aborts
// the walk with ErrPathTooLong.
func (w walker) forEachEntry(root string, visit VisitFunc) error {
	if len(root) > w.maxPathLen {
		return errors.Wrapf(ErrPathTooLong, "%s", root)
	}

	err := w.walk(root, visit)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func (w walker) walk(dir string, visit VisitFunc) error {
	entries, err := w.readDir(dir)
	if err != nil {
		return err
	}

	for _, ent := range entries {
		typ, ok := entryTypeOf(ent)
		if !ok {
			continue
		}

		path, err := w.join(dir, ent.Name())
		if err != nil {
			return err
		}

		if typ == EntryDir {
			if err := w.walk(path, visit); err != nil {
				return err
			}
		}

		if err := visit(path, typ); err != nil {
			return err
		}
	}

	return nil
}

// findLeaf returns the first removable entry under dir: anything that is not
// a directory (symlinks are not followed), or a directory that has nothing
// left in it.
func (w walker) findLeaf(dir string) (string, bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return "", false, err
	}

	var ent os.DirEntry
	batch, err := f.ReadDir(1)
	switch {
	case err == io.EOF:
	case err != nil:
		f.Close()
		return "", false, errors.Wrapf(err, "read dir %s", dir)
	default:
		ent = batch[0]
	}

	// the handle must be gone before the caller removes anything
	if err := f.Close(); err != nil {
		return "", false, errors.Wrapf(err, "close dir %s", dir)
	}
	if ent == nil {
		return "", false, nil
	}

	path, err := w.join(dir, ent.Name())
	if err != nil {
		return "", false, err
	}

	if ent.IsDir() {
		leaf, found, err := w.findLeaf(path)
		if err != nil {
			return "", false, err
		}
		if found {
			return leaf, true, nil
		}
	}
	return path, true, nil
}

// deleteAll removes everything under root one leaf at a time, re-opening the
// tree after every removal. This is quadratic in the number of entries.
// A missing root is not an error.
func (w walker) deleteAll(root string, removeRoot bool) error {
	if len(root) > w.maxPathLen {
		return errors.Wrapf(ErrPathTooLong, "%s", root)
	}

	for {
		leaf, found, err := w.findLeaf(root)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if !found {
			break
		}

		if err := os.Remove(leaf); err != nil {
			return errors.Wrapf(err, "remove %s", leaf)
		}
		logger.Debugf("removed %s", leaf)
	}

	if removeRoot {
		if err := os.Remove(root); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove dir %s", root)
		}
	}
	return nil
}
