package realtime

import (
	"sync"

	"github.com/rs/xid"
)

// DefaultQueueSize is the per-client send buffer.
const DefaultQueueSize = 64

// Client is one connected socket. The Hub writes encoded frames into its
// queue; the connection's writer goroutine drains it.
type Client struct {
	id     string
	userID string
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for userID with a queue of the given size.
func NewClient(userID string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		id:     xid.New().String(),
		userID: userID,
		send:   make(chan []byte, queueSize),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Messages is closed once the client is unregistered.
func (c *Client) Messages() <-chan []byte { return c.send }

// enqueue never blocks. It reports false when the message was dropped.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
