package chat

import (
	"errors"
	"time"
)

var (
	ErrThreadNotFound  = errors.New("chat: thread not found")
	ErrNotParticipant  = errors.New("chat: not a thread participant")
	ErrContentRequired = errors.New("chat: message content is required")
	ErrSelfThread      = errors.New("chat: cannot start a thread with yourself")
)

// UserRef is the denormalized counterpart snapshot shown inside a thread.
type UserRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// PropertyRef is the denormalized listing snapshot a thread may be tied to.
type PropertyRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	CoverURL string `json:"cover_url,omitempty"`
}

// MessageRef is the last-message snapshot carried by a thread.
type MessageRef struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Thread is the canonical inbox view of a conversation between exactly two
// users. UnreadCount is derived for the viewing user and only resets to zero
// through an explicit read action on that thread.
type Thread struct {
	ID           string       `json:"id"`
	Participants []string     `json:"participants"`
	OtherUser    UserRef      `json:"other_user"`
	LastMessage  *MessageRef  `json:"last_message,omitempty"`
	UnreadCount  int          `json:"unread_count"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Property     *PropertyRef `json:"property,omitempty"`
}

// Attachment is a stored binary referenced by a message.
type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

/// Message is append-only: no content edits are modeled, only the IsRead flag
// transitions false to true. IsMine is derived against the viewing user and
// never persisted.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	SenderID    string       `json:"sender_id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	IsRead      bool         `json:"is_read"`
	IsMine      bool         `json:"is_mine"`
}

// ThreadRecord is the persisted thread row, before per-user denormalization.
type ThreadRecord struct {
	ID                  string
	PropertyID          string
	Participants        []string
	CreatedAt           time.Time
	LastMessageAt       time.Time
	LastMessageID       string
	LastMessageSenderID string
	LastMessageText     string
}

// UpdatedAt reports the thread's last activity, falling back to creation time.
func (r ThreadRecord) UpdatedAt() time.Time {
	if !r.LastMessageAt.IsZero() {
		return r.LastMessageAt
	}
	return r.CreatedAt
}

// OtherParticipant returns the counterpart of userID, empty when userID is not
// a participant of the record.
func (r ThreadRecord) OtherParticipant(userID string) string {
	other := ""
	found := false
	for _, p := range r.Participants {
		if p == userID {
			found = true
			continue
		}
		other = p
	}
	if !found {
		return ""
	}
	return other
}

// HasParticipant reports whether userID takes part in the thread.
func (r ThreadRecord) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ReadMarker is a per-user read position inside a thread.
type ReadMarker struct {
	ThreadID          string
	UserID            string
	LastReadMessageID string
	UpdatedAt         time.Time
}
