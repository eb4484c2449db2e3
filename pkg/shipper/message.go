package shipper

import (
	"crypto/md5"
	"encoding/hex"
	"io"
)

const (
	CommandPut = "put"
	CommandAck = "ack"
	CommandNak = "nak"
)

// File describes one queue file in transit. Size and Checksum let the
// receiver reject truncated or corrupted content.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	FileNum  int    `json:"fileNum,omitempty"`
}

// Message is the text frame exchanged over the websocket. A put is followed
// by exactly one binary frame with the content.
type Message struct {
	Command string `json:"command"`
	File    *File  `json:"file,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Checksum returns the hex md5 of everything read from r.
func Checksum(r io.Reader) (string, error) {
	hash := md5.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
