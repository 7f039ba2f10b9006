package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"arrienda/internal/domain/chat"
	"arrienda/internal/inbox"
)

// Producer is the broker surface the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Publisher writes change events onto the feed topics. Events are keyed by
// thread id so every event of one conversation lands on the same partition
// and replays in order.
type Publisher struct {
	producer           Producer
	messagesTopic      string
	conversationsTopic string
}

func NewPublisher(producer Producer, messagesTopic, conversationsTopic string) *Publisher {
	return &Publisher{
		producer:           producer,
		messagesTopic:      messagesTopic,
		conversationsTopic: conversationsTopic,
	}
}

// Publish routes the event to its topic by kind.
func (p *Publisher) Publish(ctx context.Context, ev chat.Event) error {
	var topic string
	switch ev.Type {
	case chat.EventMessageInsert, chat.EventMessageUpdate:
		topic = p.messagesTopic
	case chat.EventConversationUpdate:
		topic = p.conversationsTopic
	default:
		return fmt.Errorf("realtime: unknown event type %q", ev.Type)
	}

	key := inbox.MessageThread(ev.New)
	if key == "" {
		key = inbox.ThreadIdentity(ev.New)
	}
	if key == "" {
		return errors.New("realtime: event carries no thread identity")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime: encode event: %w", err)
	}
	headers := map[string]string{"event_type": ev.Type}
	return p.producer.Publish(ctx, topic, key, payload, headers)
}
