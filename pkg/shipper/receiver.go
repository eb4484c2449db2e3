package shipper

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/yhsiang/seqfile/pkg/filelock"
	"github.com/yhsiang/seqfile/pkg/seqfile"
)

var ErrChecksumMismatch = errors.New("checksum mismatch")
var ErrSizeMismatch = errors.New("size mismatch")

// Receiver stores incoming files in a spool queue under fresh numbers.
type Receiver struct {
	spool *seqfile.SequentialFile
}

func NewReceiver(spool *seqfile.SequentialFile) *Receiver {
	return &Receiver{spool: spool}
}

func (r *Receiver) Spool() *seqfile.SequentialFile { return r.spool }

// Store writes the content of file to the spool and enqueues it. The file
// becomes visible under its final name only once complete. When file
// carries a size or checksum they are verified first.
func (r *Receiver) Store(file File, content io.Reader) (int, error) {
	fileNum := r.spool.Reserve()
	path, err := r.spool.PathFor(fileNum)
	if err != nil {
		return seqfile.NoFile, err
	}

	hash := md5.New()
	n, err := filelock.AtomicWrite(path, io.TeeReader(content, hash))
	if err != nil {
		return seqfile.NoFile, errors.Wrapf(err, "store %s", file.Name)
	}

	if file.Size > 0 && n != file.Size {
		os.Remove(path)
		return seqfile.NoFile, errors.Wrapf(ErrSizeMismatch, "%s: got %d bytes, want %d", file.Name, n, file.Size)
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	if file.Checksum != "" && sum != file.Checksum {
		os.Remove(path)
		return seqfile.NoFile, errors.Wrapf(ErrChecksumMismatch, "%s: got %s, want %s", file.Name, sum, file.Checksum)
	}

	r.spool.Enqueue(fileNum)
	logger.Infof("stored %s as %s", file.Name, path)
	return fileNum, nil
}
