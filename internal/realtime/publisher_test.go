package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"arrienda/internal/domain/chat"
)

type capturingProducer struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
	calls   int
}

func (p *capturingProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.calls++
	p.topic = topic
	p.key = key
	p.payload = payload
	p.headers = headers
	return nil
}

func TestPublishRoutesByEventType(t *testing.T) {
	cases := []struct {
		name      string
		ev        chat.Event
		wantTopic string
		wantKey   string
	}{
		{
			name: "message insert",
			ev: chat.Event{
				Type: chat.EventMessageInsert,
				New:  map[string]any{"id": "m-1", "thread_id": "t-1", "sender_id": "u-1"},
			},
			wantTopic: "chat.messages",
			wantKey:   "t-1",
		},
		{
			name: "read echo",
			ev: chat.Event{
				Type: chat.EventMessageUpdate,
				New:  map[string]any{"id": "m-1", "thread_id": "t-1", "is_read": true},
			},
			wantTopic: "chat.messages",
			wantKey:   "t-1",
		},
		{
			name: "conversation update",
			ev: chat.Event{
				Type: chat.EventConversationUpdate,
				New:  map[string]any{"id": "t-2", "participants": []string{"u-1", "u-2"}},
			},
			wantTopic: "chat.conversations",
			wantKey:   "t-2",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			producer := &capturingProducer{}
			pub := NewPublisher(producer, "chat.messages", "chat.conversations")

			if err := pub.Publish(context.Background(), tc.ev); err != nil {
				t.Fatalf("publish: %v", err)
			}
			if producer.topic != tc.wantTopic {
				t.Errorf("topic = %q, want %q", producer.topic, tc.wantTopic)
			}
			if producer.key != tc.wantKey {
				t.Errorf("key = %q, want %q", producer.key, tc.wantKey)
			}
			if producer.headers["event_type"] != tc.ev.Type {
				t.Errorf("event_type header = %q, want %q", producer.headers["event_type"], tc.ev.Type)
			}

			var decoded chat.Event
			if err := json.Unmarshal(producer.payload, &decoded); err != nil {
				t.Fatalf("payload is not valid JSON: %v", err)
			}
			if decoded.Type != tc.ev.Type {
				t.Errorf("decoded type = %q, want %q", decoded.Type, tc.ev.Type)
			}
		})
	}
}

func TestPublishRejectsUnroutableEvents(t *testing.T) {
	pub := NewPublisher(&capturingProducer{}, "chat.messages", "chat.conversations")

	if err := pub.Publish(context.Background(), chat.Event{Type: "message.delete"}); err == nil {
		t.Error("unknown event type must fail")
	}
	err := pub.Publish(context.Background(), chat.Event{Type: chat.EventMessageInsert, New: map[string]any{"content": "hola"}})
	if err == nil {
		t.Error("event without thread identity must fail")
	}
}
