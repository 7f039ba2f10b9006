package realtime

import (
	"sync"

	"arrienda/internal/domain/chat"
)

const channelBuffer = 64

// Channel is one user's subscription handle: a buffered event stream plus the
// observable status. It is owned by whoever opened it and must be closed on
// teardown; closing is idempotent.
type Channel struct {
	userID string
	events chan chat.Event

	mu     sync.Mutex
	status chat.SubscriptionStatus
	closed bool

	closeOnce sync.Once
}

func newChannel(userID string) *Channel {
	return &Channel{
		userID: userID,
		events: make(chan chat.Event, channelBuffer),
		status: chat.StatusSubscribing,
	}
}

// UserID identifies the subscriber.
func (c *Channel) UserID() string { return c.userID }

// Events is the stream of change events routed to this user. The channel is
// closed on teardown.
func (c *Channel) Events() <-chan chat.Event { return c.events }

// Status returns the current subscription state.
func (c *Channel) Status() chat.SubscriptionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return chat.StatusDisconnected
	}
	return c.status
}

func (c *Channel) setStatus(status chat.SubscriptionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.status = status
}

// deliver enqueues an event without blocking the dispatcher. A full buffer
// drops the event: a stale incremental is harmless because the next refresh
// treats the store snapshot as ground truth.
func (c *Channel) deliver(ev chat.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	// non-blocking, serialized with Close by the mutex
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Close tears the channel down. Safe to call repeatedly and from any
// goroutine.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.events)
		c.mu.Unlock()
	})
}
