package seqfile

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// AdmitFunc decides whether a file found by a directory scan joins the
// queue. It may remove the file (e.g. a partially written one) but must not
// call back into queue operations of the same SequentialFile.
type AdmitFunc func(fileNum int, name string) bool

// Options configures a SequentialFile.
type Options struct {
	// Dir is the queue directory. Only its last element is ever created.
	Dir string

	// Pattern renders and parses file numbers. Default "%08d".
	Pattern string

	// Extension is appended after a "." when not empty, and required of
	// scanned files.
	Extension string

	// MaxPathLen caps the length of every path composed. Default 255.
	MaxPathLen int

	// DirPerm is used when the queue directory is created. Default 0777.
	DirPerm os.FileMode

	// Admit filters scanned files. nil admits everything.
	Admit AdmitFunc
}

// DefaultOptions returns options for a queue in dir with no extension.
func DefaultOptions(dir string) *Options {
	return &Options{
		Dir:        dir,
		Pattern:    DefaultPattern,
		MaxPathLen: DefaultMaxPathLen,
		DirPerm:    0777,
	}
}

// Validate fills zero values with defaults and checks the pattern.
func (o *Options) Validate() error {
	if o.Pattern == "" {
		o.Pattern = DefaultPattern
	}
	if o.MaxPathLen <= 0 {
		o.MaxPathLen = DefaultMaxPathLen
	}
	if o.DirPerm == 0 {
		o.DirPerm = 0777
	}
	if strings.ContainsRune(o.Extension, '/') {
		return errors.Errorf("seqfile: extension %q contains a separator", o.Extension)
	}
	o.Extension = strings.TrimPrefix(o.Extension, ".")
	o.Dir = normalizeDir(o.Dir)

	return ValidatePattern(o.Pattern)
}

// normalizeDir strips trailing separators. "/" becomes "", which scans
// refuse.
func normalizeDir(dir string) string {
	return strings.TrimRight(dir, "/")
}
