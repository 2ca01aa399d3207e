package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/fathima-sithara/realtime-service/internal/metrics"
)

// Client is one live websocket connection bound to a user. A user may
// hold any number of clients at once (multi-device).
type Client struct {
	ID     string
	UserID string

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	once    sync.Once
}

func newClient(userID string, conn *websocket.Conn, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      uuid.NewString(),
		UserID:  userID,
		conn:    conn,
		send:    make(chan []byte, 256),
		limiter: limiter,
	}
}

// enqueue hands an encoded event to the write pump without blocking;
// a slow client loses events rather than stalling the sender.
func (c *Client) enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		metrics.EventsDropped.Inc()
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() { close(c.send) })
}

func (c *Client) writePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
