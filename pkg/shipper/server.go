package shipper

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/yhsiang/seqfile/pkg/seqfile"
)

// NewServer returns a SyncServer that stores every file shipped to it in
// spool and acknowledges it.
func NewServer(ctx context.Context, addr string, spool *seqfile.SequentialFile, maxUploadSize int64) *SyncServer {
	receiver := NewReceiver(spool)
	server := NewSyncServer(ctx, addr, receiver, maxUploadSize)

	server.OnMessage(func(conn *SyncConnection, message []byte) {
		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.WithError(err).Error("failed to decode json")
			return
		}

		switch msg.Command {
		case CommandPut:
			if msg.File == nil {
				conn.WriteJSON(Message{Command: CommandNak, Error: "put without file"})
				return
			}
			logger.Debugf("announced %s (%d bytes)", msg.File.Name, msg.File.Size)
			conn.setPending(msg.File)
		default:
			logger.Warnf("unknown command %q", msg.Command)
		}
	})

	server.OnBinaryMessage(func(conn *SyncConnection, message []byte) {
		file := conn.takePending()
		if file == nil {
			logger.Warn("content without a put, dropping")
			conn.WriteJSON(Message{Command: CommandNak, Error: "content without put"})
			return
		}

		fileNum, err := receiver.Store(*file, bytes.NewReader(message))
		if err != nil {
			logger.WithError(err).Errorf("failed to store %s", file.Name)
			conn.WriteJSON(Message{Command: CommandNak, File: file, Error: err.Error()})
			return
		}

		file.FileNum = fileNum
		if err := conn.WriteJSON(Message{Command: CommandAck, File: file}); err != nil {
			logger.WithError(err).Error("failed to send ack")
		}
	})

	spool.OnEnqueue(func(fileNum int) {
		logger.Debugf("spool %s has %d files", spool.Dir(), spool.QueueLen())
	})

	return server
}
