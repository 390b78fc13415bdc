package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"netpulse/internal/logger"
)

const writeWait = 5 * time.Second

// Client represents a websocket client connection.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *logger.Logger
}

func NewClient(conn *websocket.Conn, log *logger.Logger) *Client {
	return &Client{conn: conn, log: log}
}

// Send writes a text frame to the connection.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("websocket send failed", "remote", c.conn.RemoteAddr().String(), "error", err)
		return err
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}
