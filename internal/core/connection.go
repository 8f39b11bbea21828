package core

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultEventBuffer is the per-connection outbound event buffer size.
const DefaultEventBuffer = 16

// Connection is one live transport session for one device of one user.
// It is created on successful handshake, owned by the registry for its
// lifetime, and never persisted.
type Connection struct {
	ID     string
	UserID int64
	Events chan *Event

	mu     sync.Mutex
	joined map[string]struct{}
	closed bool
}

// NewConnection constructs a connection handle for an authenticated user.
func NewConnection(userID int64, buffer int) *Connection {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		Events: make(chan *Event, buffer),
		joined: make(map[string]struct{}),
	}
}

// Push enqueues an event without blocking. Returns false when the event was
// dropped because the consumer is slow; durable state is recovered via
// catch-up queries, so drops are never fatal.
func (c *Connection) Push(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// JoinedChannels returns a snapshot of the channels this connection joined.
func (c *Connection) JoinedChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	channels := make([]string, 0, len(c.joined))
	for ch := range c.joined {
		channels = append(channels, ch)
	}
	return channels
}

// addJoined records a channel subscription. Returns false if already joined
// or if the connection has been closed; closed connections can never acquire
// new subscriptions.
func (c *Connection) addJoined(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if _, ok := c.joined[channelID]; ok {
		return false
	}
	c.joined[channelID] = struct{}{}
	return true
}

func (c *Connection) removeJoined(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joined, channelID)
}

// drainJoined marks the connection closed, then empties and returns the
// joined set. Used on disconnect so cleanup is bounded by the channels
// actually joined; the closed mark guarantees no concurrent join can
// resubscribe the connection after the drain.
func (c *Connection) drainJoined() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	channels := make([]string, 0, len(c.joined))
	for ch := range c.joined {
		channels = append(channels, ch)
	}
	c.joined = make(map[string]struct{})
	return channels
}

// isClosed reports whether the connection has been torn down.
func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
