package inbox

import (
	"fmt"
	"log/slog"
	"time"

	"arrienda/internal/domain/chat"
)

// FallbackDisplayName replaces a counterpart name that is absent under every
// known alias.
const FallbackDisplayName = "Usuario"

// Normalizer converts untyped event and API payloads, whose fields may arrive
// in snake_case or camelCase or be partially absent, into canonical thread and
// message records. Every field has a defensive default; only a record with no
// derivable identity is rejected.
type Normalizer struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger, now: time.Now}
}

var (
	threadIDAliases  = []string{"id", "thread_id", "threadId", "conversation_id", "conversationId"}
	messageIDAliases = []string{"id", "message_id", "messageId"}
	senderAliases    = []string{"sender_id", "senderId", "from", "user_id", "userId"}
	contentAliases   = []string{"content", "text", "body"}
	createdAtAliases = []string{"created_at", "createdAt"}
	updatedAtAliases = []string{"updated_at", "updatedAt", "last_message_at", "lastMessageAt"}
	isReadAliases    = []string{"is_read", "isRead", "read"}
	unreadAliases    = []string{"unread_count", "unreadCount", "unread"}
	nameAliases      = []string{"display_name", "displayName", "name", "full_name", "fullName"}
	avatarAliases    = []string{"avatar_url", "avatarUrl", "avatar", "photo_url", "photoUrl"}
	otherUserAliases = []string{"other_user", "otherUser", "user"}
	lastMsgAliases   = []string{"last_message", "lastMessage"}
	propertyAliases  = []string{"property", "listing"}
	coverAliases     = []string{"cover_url", "coverUrl", "cover_image", "coverImage", "image_url", "imageUrl"}
	titleAliases     = []string{"title", "name"}
)

// Thread builds a canonical thread from a raw payload. The second return is
// false when no identity could be derived under any alias.
func (n *Normalizer) Thread(raw map[string]any) (chat.Thread, bool) {
	if raw == nil {
		return chat.Thread{}, false
	}
	id := stringField(raw, threadIDAliases...)
	if id == "" {
		return chat.Thread{}, false
	}
	t := chat.Thread{
		ID:           id,
		Participants: stringSliceField(raw, "participants"),
		UnreadCount:  intField(raw, unreadAliases...),
		UpdatedAt:    timeField(raw, n.now(), updatedAtAliases...),
	}
	if t.UnreadCount < 0 {
		t.UnreadCount = 0
	}
	t.OtherUser = n.userRef(mapField(raw, otherUserAliases...))
	if lm := mapField(raw, lastMsgAliases...); lm != nil {
		if msg, ok := n.Message(lm, ""); ok {
			t.LastMessage = &chat.MessageRef{
				ID:        msg.ID,
				SenderID:  msg.SenderID,
				Content:   msg.Content,
				CreatedAt: msg.CreatedAt,
			}
		}
	}
	if p := mapField(raw, propertyAliases...); p != nil {
		if pid := stringField(p, "id", "property_id", "propertyId", "listing_id", "listingId"); pid != "" {
			t.Property = &chat.PropertyRef{
				ID:       pid,
				Title:    stringField(p, titleAliases...),
				CoverURL: stringField(p, coverAliases...),
			}
		}
	}
	return t, true
}

// Message builds a canonical message. IsMine is derived against
// currentUserID; pass an empty id when the viewer is unknown.
func (n *Normalizer) Message(raw map[string]any, currentUserID string) (chat.Message, bool) {
	if raw == nil {
		return chat.Message{}, false
	}
	id := stringField(raw, messageIDAliases...)
	if id == "" {
		return chat.Message{}, false
	}
	sender := stringField(raw, senderAliases...)
	return chat.Message{
		ID:        id,
		ThreadID:  stringField(raw, "thread_id", "threadId", "conversation_id", "conversationId"),
		SenderID:  sender,
		Content:   stringField(raw, contentAliases...),
		CreatedAt: timeField(raw, n.now(), createdAtAliases...),
		IsRead:    boolField(raw, isReadAliases...),
		IsMine:    currentUserID != "" && sender == currentUserID,
	}, true
}

// Threads normalizes a batch. Falsy entries, entries with no identity and
// entries that panic during field extraction are skipped; a bad record never
// aborts the rest of the batch.
func (n *Normalizer) Threads(raws []map[string]any) []chat.Thread {
	out := make([]chat.Thread, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		t, ok := n.safeThread(i, raw)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (n *Normalizer) safeThread(index int, raw map[string]any) (t chat.Thread, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if n.logger != nil {
				n.logger.Warn("skipping malformed thread payload", "index", index, "panic", r)
			}
			t, ok = chat.Thread{}, false
		}
	}()
	return n.Thread(raw)
}

// ThreadIdentity extracts a thread id from an event payload without full
// normalization.
func ThreadIdentity(raw map[string]any) string {
	if raw == nil {
		return ""
	}
	return stringField(raw, threadIDAliases...)
}

// MessageThread extracts the owning thread id from a message payload.
func MessageThread(raw map[string]any) string {
	if raw == nil {
		return ""
	}
	return stringField(raw, "thread_id", "threadId", "conversation_id", "conversationId")
}

// MessageSender extracts the sender id from a message payload.
func MessageSender(raw map[string]any) string {
	if raw == nil {
		return ""
	}
	return stringField(raw, senderAliases...)
}

func (n *Normalizer) userRef(raw map[string]any) chat.UserRef {
	ref := chat.UserRef{DisplayName: FallbackDisplayName}
	if raw == nil {
		return ref
	}
	ref.ID = stringField(raw, "id", "user_id", "userId")
	if name := stringField(raw, nameAliases...); name != "" {
		ref.DisplayName = name
	}
	ref.AvatarURL = stringField(raw, avatarAliases...)
	return ref
}

func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case fmt.Stringer:
			// ids often arrive as UUID values
			if str := s.String(); str != "" {
				return str
			}
		}
	}
	return ""
}

func intField(raw map[string]any, keys ...string) int {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

func boolField(raw map[string]any, keys ...string) bool {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func timeField(raw map[string]any, fallback time.Time, keys ...string) time.Time {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			if !t.IsZero() {
				return t
			}
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed
			}
		case float64:
			if t > 0 {
				return time.Unix(int64(t), 0).UTC()
			}
		}
	}
	return fallback
}

func mapField(raw map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if m, ok := v.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func stringSliceField(raw map[string]any, key string) []string {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// MessageIsRead reads the read flag from a message payload, reporting whether
// it was present under any alias.
func MessageIsRead(raw map[string]any) (value, present bool) {
	if raw == nil {
		return false, false
	}
	for _, key := range isReadAliases {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if b, ok := v.(bool); ok {
			return b, true
		}
	}
	return false, false
}

// MessageIdentity extracts a message id from an event payload.
func MessageIdentity(raw map[string]any) string {
	if raw == nil {
		return ""
	}
	return stringField(raw, messageIDAliases...)
}
