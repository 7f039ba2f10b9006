package dto

import (
	"time"

	"arrienda/internal/domain/chat"
)

// ThreadCounterpart is the other participant as shown in the inbox.
type ThreadCounterpart struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ThreadProperty is the listing snapshot a thread is tied to.
type ThreadProperty struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	CoverURL string `json:"cover_url,omitempty"`
}

// ThreadLastMessage is the last-message preview carried by a thread summary.
type ThreadLastMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadSummary is one inbox row.
type ThreadSummary struct {
	ID          string             `json:"id"`
	OtherUser   ThreadCounterpart  `json:"other_user"`
	LastMessage *ThreadLastMessage `json:"last_message,omitempty"`
	UnreadCount int                `json:"unread_count"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Property    *ThreadProperty    `json:"property,omitempty"`
}

// ThreadList is the ordered inbox collection.
type ThreadList struct {
	Items []ThreadSummary `json:"items"`
	Total int             `json:"total"`
}

// ChatMessage is a single message payload.
type ChatMessage struct {
	ID          string           `json:"id"`
	ThreadID    string           `json:"thread_id"`
	SenderID    string           `json:"sender_id"`
	Content     string           `json:"content"`
	Attachments []chat.Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	IsRead      bool             `json:"is_read"`
	IsMine      bool             `json:"is_mine"`
}

// ChatMessageList is a paginated message list, oldest last.
type ChatMessageList struct {
	Items      []ChatMessage `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// InboxStatus reports the realtime subscription health for a user session.
type InboxStatus struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	LastError string `json:"last_error,omitempty"`
}

// ThreadFromDomain maps a denormalized thread into its transport shape.
func ThreadFromDomain(t chat.Thread) ThreadSummary {
	out := ThreadSummary{
		ID: t.ID,
		OtherUser: ThreadCounterpart{
			ID:          t.OtherUser.ID,
			DisplayName: t.OtherUser.DisplayName,
			AvatarURL:   t.OtherUser.AvatarURL,
		},
		UnreadCount: t.UnreadCount,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.LastMessage != nil {
		out.LastMessage = &ThreadLastMessage{
			ID:        t.LastMessage.ID,
			SenderID:  t.LastMessage.SenderID,
			Content:   t.LastMessage.Content,
			CreatedAt: t.LastMessage.CreatedAt,
		}
	}
	if t.Property != nil {
		out.Property = &ThreadProperty{ID: t.Property.ID, Title: t.Property.Title, CoverURL: t.Property.CoverURL}
	}
	return out
}

// ThreadsFromDomain maps a whole inbox, preserving order.
func ThreadsFromDomain(threads []chat.Thread) ThreadList {
	items := make([]ThreadSummary, 0, len(threads))
	for _, t := range threads {
		items = append(items, ThreadFromDomain(t))
	}
	return ThreadList{Items: items, Total: len(items)}
}

// MessageFromDomain maps a message into its transport shape.
func MessageFromDomain(m chat.Message) ChatMessage {
	return ChatMessage{
		ID:          m.ID,
		ThreadID:    m.ThreadID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		Attachments: m.Attachments,
		CreatedAt:   m.CreatedAt,
		IsRead:      m.IsRead,
		IsMine:      m.IsMine,
	}
}
