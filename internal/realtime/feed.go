package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/IBM/sarama"

	"arrienda/internal/domain/chat"
	"arrienda/internal/infra/broker/kafka"
)

// FeedConfig describes the Kafka topics carrying change events.
type FeedConfig struct {
	Brokers            []string
	GroupID            string
	MessagesTopic      string
	ConversationsTopic string
}

// Feed consumes the message and conversation change topics and fans events
// out through the Manager. One Run call corresponds to one consumer-group
// session; the supervisor restarts it on failure.
type Feed struct {
	cfg     FeedConfig
	manager *Manager
	logger  *slog.Logger
}

func NewFeed(cfg FeedConfig, manager *Manager, logger *slog.Logger) *Feed {
	return &Feed{cfg: cfg, manager: manager, logger: logger}
}

// Run blocks until the consumer fails or ctx is canceled. Channel statuses
// track the session: subscribed once the group session is set up, timed_out
// or channel_error when it drops.
func (f *Feed) Run(ctx context.Context) error {
	consumer, err := kafka.NewConsumer(f.cfg.Brokers, f.cfg.GroupID, nil, feedHandler{feed: f}, f.manager.MarkSubscribed)
	if err != nil {
		f.manager.MarkUnhealthy(chat.StatusChannelError)
		return err
	}
	defer consumer.Close()

	err = consumer.Run(ctx, []string{f.cfg.MessagesTopic, f.cfg.ConversationsTopic})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.manager.MarkUnhealthy(classifyFeedError(err))
	return err
}

func classifyFeedError(err error) chat.SubscriptionStatus {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, sarama.ErrRequestTimedOut) {
		return chat.StatusTimedOut
	}
	return chat.StatusChannelError
}

type feedHandler struct {
	feed *Feed
}

// Handle decodes one change event and dispatches it. A malformed record is
// logged and skipped so it never stalls the partition.
func (h feedHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev chat.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		if h.feed.logger != nil {
			h.feed.logger.Warn("dropping undecodable change event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
		return nil
	}
	if ev.Type == "" {
		return nil
	}
	h.feed.manager.Dispatch(ev)
	return nil
}
