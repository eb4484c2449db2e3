package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const DefaultWriteTimeout = 30 * time.Second
const DefaultReadTimeout = 30 * time.Second

var ErrReconnectContextDone = errors.New("reconnect canceled due to context done")
var ErrReconnectFailed = errors.New("failed to reconnect")
var ErrConnectionLost = errors.New("connection lost")

var logger = log.WithFields(log.Fields{
	"component": "websocket",
})

type Message struct {
	Type int
	Body []byte
}

//go:generate callbackgen -type WebSocketClient
type WebSocketClient struct {
	Url           string
	conn          *websocket.Conn
	Dialer        *websocket.Dialer
	requestHeader http.Header

	messageCallbacks    []func(m Message)
	connectCallbacks    []func(client *WebSocketClient)
	disconnectCallbacks []func(client *WebSocketClient)

	cancel       func()
	mu           sync.Mutex
	connected    bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	pingInterval time.Duration

	backoff *backoff.ExponentialBackOff
}

func New(url string, requestHeader http.Header) *WebSocketClient {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	return &WebSocketClient{
		Url:           url,
		Dialer:        websocket.DefaultDialer,
		readTimeout:   DefaultReadTimeout,
		writeTimeout:  DefaultWriteTimeout,
		requestHeader: requestHeader,
		backoff:       b,
	}
}

func (c *WebSocketClient) setConn(conn *websocket.Conn) {
	conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		timeout := c.readTimeout
		c.mu.Unlock()
		return conn.SetReadDeadline(time.Now().Add(timeout))
	})

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.EmitConnect(c)
}

func (c *WebSocketClient) SetReadTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readTimeout = timeout
}

func (c *WebSocketClient) SetWriteTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeTimeout = timeout
}

func (c *WebSocketClient) SetPingInterval(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingInterval = interval
}

func (c *WebSocketClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Reconnect dials until it succeeds or ctx is done.
func (c *WebSocketClient) Reconnect(ctx context.Context) {
	for {
		err := c.reconnect(ctx)
		if err == nil || err == ErrReconnectContextDone {
			return
		}
	}
}

// Connect dials the server and starts the read loop. If the first dial
// fails the error is returned and the read loop keeps reconnecting.
func (c *WebSocketClient) Connect(basectx context.Context) error {
	// the client keeps its own context so Close can shut the loop down
	ctx, cancel := context.WithCancel(basectx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	conn, _, err := c.Dialer.DialContext(ctx, c.Url, c.requestHeader)
	if err == nil {
		c.setConn(conn)
	}

	go c.listen(ctx)

	return err
}

func (c *WebSocketClient) reconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrReconnectContextDone
	default:
	}

	logger.Warnf("reconnecting to %q", c.Url)
	conn, _, err := c.Dialer.DialContext(ctx, c.Url, c.requestHeader)
	if err != nil {
		dur := c.backoff.NextBackOff()
		logger.WithError(err).Warnf("failed to dial %s, wait for %v", c.Url, dur)

		select {
		case <-ctx.Done():
			return ErrReconnectContextDone
		case <-time.After(dur):
		}
		return ErrReconnectFailed
	}

	logger.Infof("reconnected to %q", c.Url)
	c.backoff.Reset()
	c.setConn(conn)

	return nil
}

func (c *WebSocketClient) readMessages() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrConnectionLost
	}
	timeout := c.readTimeout
	conn := c.conn
	c.mu.Unlock()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	msgtype, message, err := conn.ReadMessage()
	if err != nil {
		return err
	}

	c.EmitMessage(Message{msgtype, message})
	return nil
}

func (c *WebSocketClient) listen(ctx context.Context) {
	go c.keepalive(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.readMessages(); err != nil {
			if ctx.Err() != nil {
				return
			}
			if err != ErrConnectionLost {
				logger.WithError(err).Warn("read failed, reconnecting")
			}
			c.SetDisconnected()
			c.Reconnect(ctx)
		}
	}
}

func (c *WebSocketClient) keepalive(ctx context.Context) {
	c.mu.Lock()
	pingInterval := c.pingInterval
	if pingInterval == 0 {
		pingInterval = c.readTimeout / 2
	}
	c.mu.Unlock()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.connected {
				c.mu.Unlock()
				continue
			}
			conn := c.conn
			writeTimeout := c.writeTimeout
			c.mu.Unlock()

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout)); err != nil {
				logger.WithError(err).Warn("failed to write ping message")
			}
		}
	}
}

func (c *WebSocketClient) SetDisconnected() {
	c.mu.Lock()
	closed := false
	if c.conn != nil {
		closed = true
		c.conn.Close()
	}
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	if closed {
		c.EmitDisconnect(c)
	}
}

func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	// leave the listen goroutine before closing the connection; cancel is
	// nil when Close is called before Connect
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.SetDisconnected()

	return nil
}

func (c *WebSocketClient) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func (c *WebSocketClient) WriteBinaryMessage(data []byte) error {
	return c.WriteMessage(websocket.BinaryMessage, data)
}

func (c *WebSocketClient) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrConnectionLost
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
