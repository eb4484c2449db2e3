package shipper

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

type SyncConnection struct {
	mu sync.Mutex
	*websocket.Conn
	context context.Context
	server  *SyncServer

	// pending is the file announced by the last put, waiting for its content
	pending *File
}

// read dispatches frames from the client to the server callbacks until the
// connection fails or ctx is done.
func (c *SyncConnection) read(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgType, message, err := c.ReadMessage()
		if err != nil {
			return err
		}

		if len(message) == 0 {
			continue
		}

		switch msgType {
		case websocket.TextMessage:
			c.server.EmitMessage(c, message)
		case websocket.BinaryMessage:
			c.server.EmitBinaryMessage(c, message)
		}
	}
}

func (c *SyncConnection) setPending(file *File) {
	c.mu.Lock()
	c.pending = file
	c.mu.Unlock()
}

func (c *SyncConnection) takePending() *File {
	c.mu.Lock()
	defer c.mu.Unlock()

	file := c.pending
	c.pending = nil
	return file
}

func (c *SyncConnection) WriteJSON(data interface{}) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.WriteMessage(websocket.TextMessage, msg)
}
