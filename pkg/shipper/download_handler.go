package shipper

import (
	"context"
	"net/http"
	"strconv"

	"github.com/yhsiang/seqfile/pkg/seqfile"
)

type downloadHandler struct {
	context context.Context
	spool   *seqfile.SequentialFile
}

// ServeHTTP serves a spooled file by its number, e.g. GET /files/42.
func (d *downloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fileNum, err := strconv.Atoi(r.PathValue("num"))
	if err != nil || fileNum <= seqfile.NoFile {
		http.Error(w, "invalid file number", http.StatusBadRequest)
		return
	}

	path, err := d.spool.PathFor(fileNum)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}
