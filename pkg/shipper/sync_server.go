package shipper

import (
	"context"
	"net/http"

	"github.com/apex/log"
)

var logger = log.WithFields(log.Fields{
	"component": "shipper",
})

//go:generate callbackgen -type SyncServer
type SyncServer struct {
	*http.Server

	receiver *Receiver

	messageCallbacks       []func(conn *SyncConnection, message []byte)
	binaryMessageCallbacks []func(conn *SyncConnection, message []byte)
}

// NewSyncServer routes the websocket endpoint and the plain HTTP upload and
// download endpoints to the receiver's spool.
func NewSyncServer(ctx context.Context, addr string, receiver *Receiver, maxUploadSize int64) *SyncServer {
	var server = &SyncServer{
		Server: &http.Server{
			Addr: addr,
		},
		receiver: receiver,
	}

	var mux = http.NewServeMux()
	mux.Handle("/ws", &syncHandler{
		context: ctx,
		server:  server,
	})

	mux.Handle("POST /upload", &uploadHandler{
		context:  ctx,
		receiver: receiver,
		maxSize:  maxUploadSize,
	})

	mux.Handle("GET /files/{num}", &downloadHandler{
		context: ctx,
		spool:   receiver.Spool(),
	})

	server.Server.Handler = mux
	return server
}
