package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"arrienda/internal/domain/chat"
)

const previewLimit = 120

// Producer is the broker surface used to hand off notifications.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Preferences gates delivery per recipient.
type Preferences interface {
	NewMessageEnabled(ctx context.Context, userID string) (bool, error)
}

// Notifier hands new-message notifications to the notifications topic, where
// the delivery workers (email, push) pick them up. In-app realtime delivery
// does not go through here; it rides the change-event feed.
type Notifier struct {
	producer Producer
	prefs    Preferences
	topic    string
	logger   *slog.Logger
	now      func() time.Time
}

func New(producer Producer, prefs Preferences, topic string, logger *slog.Logger) *Notifier {
	return &Notifier{
		producer: producer,
		prefs:    prefs,
		topic:    topic,
		logger:   logger,
		now:      time.Now,
	}
}

type newMessagePayload struct {
	Kind       string       `json:"kind"`
	Recipient  string       `json:"recipient_id"`
	ThreadID   string       `json:"thread_id"`
	Sender     chat.UserRef `json:"sender"`
	Preview    string       `json:"preview"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NotifyNewMessage enqueues one notification, skipped silently when the
// recipient disabled new-message notifications.
func (n *Notifier) NotifyNewMessage(ctx context.Context, recipientID, threadID string, sender chat.UserRef, preview string) error {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return errors.New("notify: recipient is required")
	}
	if n.prefs != nil {
		enabled, err := n.prefs.NewMessageEnabled(ctx, recipientID)
		if err != nil {
			// Preference lookups failing must not drop notifications.
			if n.logger != nil {
				n.logger.Warn("notification preference lookup failed", "recipient", recipientID, "error", err)
			}
		} else if !enabled {
			return nil
		}
	}

	payload := newMessagePayload{
		Kind:       "chat.new_message",
		Recipient:  recipientID,
		ThreadID:   threadID,
		Sender:     sender,
		Preview:    trimPreview(preview),
		OccurredAt: n.now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	headers := map[string]string{"kind": payload.Kind}
	if err := n.producer.Publish(ctx, n.topic, recipientID, body, headers); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	if n.logger != nil {
		n.logger.Debug("notification enqueued", "recipient", recipientID, "thread_id", threadID)
	}
	return nil
}

func trimPreview(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= previewLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLimit-1]) + "…"
}
