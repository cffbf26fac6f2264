package realtime

import (
	"fmt"
	"sync"
	"time"

	"scrap-pickup/logger"

	"github.com/gofiber/websocket/v2"
)

// Sink is the write side of a live connection. *websocket.Conn satisfies it;
// tests substitute a fake.
type Sink interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const (
	sendBufferSize = 32
	writeDeadline  = 3 * time.Second
)

// Client is one live connection with its identity and a bounded outbound
// buffer. Writes go through Enqueue, which never blocks the caller.
type Client struct {
	UserID uint
	Role   string

	id        string
	conn      Sink
	send      chan []byte
	closeOnce sync.Once
	closeChan chan struct{}
}

// NewClient wraps a connection for hub registration.
func NewClient(conn Sink, userID uint, role string, id string) *Client {
	return &Client{
		UserID:    userID,
		Role:      role,
		id:        id,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		closeChan: make(chan struct{}),
	}
}

// WritePump drains the outbound buffer onto the connection. Run it in its
// own goroutine; it returns when the client is closed.
func (c *Client) WritePump() {
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warning(fmt.Sprintf("[realtime] %s write error: %v", c.id, err))
				c.shutdown()
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

// Enqueue buffers a frame for delivery. A slow consumer whose buffer is full
// loses the frame rather than blocking the committing operation.
func (c *Client) Enqueue(msg []byte) {
	select {
	case c.send <- msg:
	case <-c.closeChan:
	default:
		logger.Warning(fmt.Sprintf("[realtime] %s send buffer full, dropping frame", c.id))
	}
}

// Closed reports whether the client has been shut down.
func (c *Client) Closed() bool {
	select {
	case <-c.closeChan:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.conn.Close()
	})
}
