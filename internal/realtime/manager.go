package realtime

import (
	"errors"
	"log/slog"
	"sync"

	"arrienda/internal/domain/chat"
	"arrienda/internal/inbox"
)

var ErrUserRequired = errors.New("realtime: user id is required")

// Manager multiplexes the change-event feed into per-user channels. Each
// authenticated user holds at most one live channel: opening a new one first
// tears down the old one, so duplicate subscriptions cannot leak.
//
// The manager is explicitly constructed and injected, with an Open/CloseAll
// lifecycle; there is no package-level instance.
type Manager struct {
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*Channel
	healthy  bool
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:   logger,
		channels: make(map[string]*Channel),
	}
}

// Open creates the channel for a user, replacing any existing one. Anonymous
// sessions get no channel.
func (m *Manager) Open(userID string) (inbox.Subscription, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	ch := newChannel(userID)

	m.mu.Lock()
	prev := m.channels[userID]
	m.channels[userID] = ch
	if m.healthy {
		ch.setStatus(chat.StatusSubscribed)
	}
	m.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	if m.logger != nil {
		m.logger.Info("realtime channel opened", "user_id", userID, "status", ch.Status())
	}
	return ch, nil
}

// Close tears down the user's channel if present.
func (m *Manager) Close(userID string) {
	m.mu.Lock()
	ch := m.channels[userID]
	delete(m.channels, userID)
	m.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

// CloseAll tears down every channel, regardless of connection status.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	channels := m.channels
	m.channels = make(map[string]*Channel)
	m.mu.Unlock()
	for _, ch := range channels {
		ch.Close()
	}
}

// Dispatch routes one event to the channels it concerns:
//
//   - message.insert goes to participants other than the sender
//   - message.update (read-receipt echo) goes to the sender only
//   - conversation.update goes to all participants
func (m *Manager) Dispatch(ev chat.Event) {
	sender := inbox.MessageSender(ev.New)
	for _, userID := range ev.Participants {
		switch ev.Type {
		case chat.EventMessageInsert:
			if userID == sender {
				continue
			}
		case chat.EventMessageUpdate:
			if userID != sender {
				continue
			}
		case chat.EventConversationUpdate:
		default:
			return
		}
		m.mu.Lock()
		ch := m.channels[userID]
		m.mu.Unlock()
		if ch == nil {
			continue
		}
		if !ch.deliver(ev) && m.logger != nil {
			m.logger.Warn("realtime event dropped", "user_id", userID, "type", ev.Type)
		}
	}
}

// MarkSubscribed flips the feed healthy and promotes every channel to
// subscribed. Called when the feed (re)establishes its consumer session.
func (m *Manager) MarkSubscribed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = true
	for _, ch := range m.channels {
		ch.setStatus(chat.StatusSubscribed)
	}
}

// MarkUnhealthy propagates a feed failure to all channels. Subscribed
// channels time out; channels still subscribing observe a channel error.
func (m *Manager) MarkUnhealthy(status chat.SubscriptionStatus) {
	if status != chat.StatusChannelError && status != chat.StatusTimedOut {
		status = chat.StatusChannelError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = false
	for _, ch := range m.channels {
		next := status
		if ch.Status() == chat.StatusSubscribing && status == chat.StatusTimedOut {
			next = chat.StatusChannelError
		}
		ch.setStatus(next)
	}
}

// Healthy reports whether the underlying feed currently delivers events.
func (m *Manager) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}
