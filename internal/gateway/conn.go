package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one bidirectional message channel to a client. ReadMessage is
// called from a single goroutine; WriteJSON and Close may be called from
// any goroutine.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// wsConn adapts a gorilla connection to Conn and keeps it alive with pings.
type wsConn struct {
	id        string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(id string, conn *websocket.Conn, maxMessageSize int64) *wsConn {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c := &wsConn{id: id, conn: conn, done: make(chan struct{})}
	go c.pingLoop()
	return c
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			slog.Warn("websocket read error", "session", c.id, "error", err)
		}
		return nil, err
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	return data, nil
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.Debug("websocket ping failed", "session", c.id, "error", err)
				return
			}
		}
	}
}
