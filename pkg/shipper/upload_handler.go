package shipper

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
)

type uploadHandler struct {
	context  context.Context
	receiver *Receiver
	maxSize  int64
}

type uploadResponse struct {
	FileNum int    `json:"fileNum,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (u *uploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if u.maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, u.maxSize)
	}

	err := r.ParseMultipartForm(5 * 1024 * 1024)
	if err != nil {
		logger.WithError(err).Error("failed to parse")
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.WithError(err).Error("failed to read file")
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: err.Error()})
		return
	}
	defer file.Close()

	fileNum, err := u.receiver.Store(File{
		Name:     filepath.Base(header.Filename),
		Size:     header.Size,
		Checksum: r.FormValue("checksum"),
	}, file)
	if err != nil {
		logger.WithError(err).Error("failed to store upload")
		writeJSON(w, http.StatusUnprocessableEntity, uploadResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{FileNum: fileNum})
}
