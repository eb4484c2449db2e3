package shipper

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

type syncHandler struct {
	context context.Context
	server  *SyncServer
}

func (h *syncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rawConn, err := h.upgradeConn(w, r)
	if err != nil {
		logger.WithError(err).Error("failed to upgrade connection")
		return
	}
	defer rawConn.Close()

	var ctx = r.Context()
	var conn = &SyncConnection{
		Conn:    rawConn,
		context: ctx,
		server:  h.server,
	}

	logger.Infof("client connected from %s", r.RemoteAddr)
	if err := conn.read(ctx); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			logger.WithError(err).Warnf("client %s disconnected", r.RemoteAddr)
		}
	}
}

func (h *syncHandler) upgradeConn(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	var upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	return upgrader.Upgrade(w, r, nil)
}
