package chat

// Event kinds carried on the change-event feed.
const (
	EventMessageInsert      = "message.insert"
	EventMessageUpdate      = "message.update"
	EventConversationUpdate = "conversation.update"
)

// Event is the wire envelope for a change event. New and Old are kept untyped
// because producers disagree on field naming; the inbox normalizer owns the
// mapping to canonical records. Participants routes the event to subscriber
// channels without inspecting the payload.
type Event struct {
	Type         string         `json:"type"`
	New          map[string]any `json:"new,omitempty"`
	Old          map[string]any `json:"old,omitempty"`
	Participants []string       `json:"participants,omitempty"`
}

// SubscriptionStatus mirrors the realtime channel lifecycle. Only Subscribed
// is healthy; ChannelError and TimedOut are signals for the reconnect
// supervisor.
type SubscriptionStatus string

const (
	StatusSubscribing  SubscriptionStatus = "subscribing"
	StatusSubscribed   SubscriptionStatus = "subscribed"
	StatusChannelError SubscriptionStatus = "channel_error"
	StatusTimedOut     SubscriptionStatus = "timed_out"
	StatusDisconnected SubscriptionStatus = "disconnected"
)

// Healthy reports whether the subscription is delivering events.
func (s SubscriptionStatus) Healthy() bool {
	return s == StatusSubscribed
}
