package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainchat "arrienda/internal/domain/chat"
	domainproperty "arrienda/internal/domain/property"
	"arrienda/internal/inbox"
)

// Store is the persistence surface for threads, messages and read markers.
type Store interface {
	GetThread(ctx context.Context, id string) (*domainchat.ThreadRecord, error)
	FindThreadByProperty(ctx context.Context, propertyID string, participants []string) (*domainchat.ThreadRecord, error)
	CreateThread(ctx context.Context, propertyID string, participants []string, now time.Time) (*domainchat.ThreadRecord, error)
	ListThreads(ctx context.Context, userID string) ([]domainchat.ThreadRecord, error)
	AddMessage(ctx context.Context, threadID, senderID, content string, attachments []domainchat.Attachment, at time.Time) (*domainchat.Message, error)
	ListMessages(ctx context.Context, threadID string, limit int, before string) ([]domainchat.Message, error)
	MarkThreadRead(ctx context.Context, threadID, userID, lastReadMessageID string, at time.Time) error
	ReadMarker(ctx context.Context, threadID, userID string) (domainchat.ReadMarker, error)
	ListReadMarkers(ctx context.Context, userID string) (map[string]domainchat.ReadMarker, error)
	CountUnread(ctx context.Context, threadID, userID, lastReadMessageID string) (int, error)
}

// ProfileReader resolves counterpart display snapshots.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (domainchat.UserRef, error)
}

// EventSink receives change events for the realtime feed.
type EventSink interface {
	Publish(ctx context.Context, ev domainchat.Event) error
}

// Notifier pushes out-of-band notifications for new messages.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, recipientID string, threadID string, sender domainchat.UserRef, preview string) error
}

// Service composes the inbox and messaging operations on top of the thread
// store. Every mutation emits a change event; subscribers reconcile from the
// feed rather than from the mutation response.
type Service struct {
	Store      Store
	Profiles   ProfileReader
	Properties domainproperty.Repository
	Events     EventSink
	Notify     Notifier
	Logger     *slog.Logger
}

// Threads assembles the user's inbox: one denormalized summary per thread,
// newest activity first, ties broken by thread id ascending.
func (s *Service) Threads(ctx context.Context, userID string) ([]domainchat.Thread, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domainchat.ErrNotParticipant
	}
	records, err := s.Store.ListThreads(ctx, userID)
	if err != nil {
		return nil, err
	}
	markers, err := s.Store.ListReadMarkers(ctx, userID)
	if err != nil {
		return nil, err
	}

	threads := make([]domainchat.Thread, 0, len(records))
	for _, rec := range records {
		threads = append(threads, s.summarize(ctx, rec, userID, markers[rec.ID]))
	}
	return threads, nil
}

func (s *Service) summarize(ctx context.Context, rec domainchat.ThreadRecord, userID string, marker domainchat.ReadMarker) domainchat.Thread {
	t := domainchat.Thread{
		ID:           rec.ID,
		Participants: append([]string(nil), rec.Participants...),
		UpdatedAt:    rec.UpdatedAt(),
	}

	otherID := rec.OtherParticipant(userID)
	t.OtherUser = s.counterpart(ctx, otherID)

	if rec.LastMessageID != "" {
		t.LastMessage = &domainchat.MessageRef{
			ID:        rec.LastMessageID,
			SenderID:  rec.LastMessageSenderID,
			Content:   rec.LastMessageText,
			CreatedAt: rec.LastMessageAt,
		}
	}

	unread, err := s.Store.CountUnread(ctx, rec.ID, userID, marker.LastReadMessageID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("unread count failed", "thread_id", rec.ID, "error", err)
		}
	} else {
		t.UnreadCount = unread
	}

	if rec.PropertyID != "" && s.Properties != nil {
		if p, err := s.Properties.ByID(ctx, domainproperty.ID(rec.PropertyID)); err == nil {
			t.Property = &domainchat.PropertyRef{ID: string(p.ID), Title: p.Title, CoverURL: p.CoverURL}
		}
	}
	return t
}

// counterpart resolves the other participant's display snapshot, degrading to
// the generic fallback name when no profile exists.
func (s *Service) counterpart(ctx context.Context, userID string) domainchat.UserRef {
	ref := domainchat.UserRef{ID: userID, DisplayName: inbox.FallbackDisplayName}
	if userID == "" || s.Profiles == nil {
		return ref
	}
	profile, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return ref
	}
	if strings.TrimSpace(profile.DisplayName) != "" {
		ref.DisplayName = profile.DisplayName
	}
	ref.AvatarURL = profile.AvatarURL
	return ref
}

// StartThreadParams describes a contact request against a property listing.
type StartThreadParams struct {
	UserID      string
	OtherUserID string
	PropertyID  string
}

// StartThread finds or creates the conversation between two users about a
// property. Creating an already existing thread returns the existing one.
func (s *Service) StartThread(ctx context.Context, params StartThreadParams) (domainchat.Thread, error) {
	userID := strings.TrimSpace(params.UserID)
	otherID := strings.TrimSpace(params.OtherUserID)
	if userID == "" || otherID == "" {
		return domainchat.Thread{}, domainchat.ErrNotParticipant
	}
	if userID == otherID {
		return domainchat.Thread{}, domainchat.ErrSelfThread
	}
	propertyID := strings.TrimSpace(params.PropertyID)
	if propertyID != "" && s.Properties != nil {
		if _, err := s.Properties.ByID(ctx, domainproperty.ID(propertyID)); err != nil {
			return domainchat.Thread{}, err
		}
	}

	participants := []string{userID, otherID}
	rec, err := s.Store.FindThreadByProperty(ctx, propertyID, participants)
	if err != nil && !errors.Is(err, domainchat.ErrThreadNotFound) {
		return domainchat.Thread{}, err
	}
	created := false
	if rec == nil {
		rec, err = s.Store.CreateThread(ctx, propertyID, participants, time.Now())
		if err != nil {
			return domainchat.Thread{}, err
		}
		created = true
	}

	if created {
		s.publish(ctx, domainchat.Event{
			Type:         domainchat.EventConversationUpdate,
			New:          threadRow(rec),
			Participants: rec.Participants,
		})
		if s.Logger != nil {
			s.Logger.Info("thread created", "thread_id", rec.ID, "property_id", rec.PropertyID)
		}
	}

	marker, err := s.Store.ReadMarker(ctx, rec.ID, userID)
	if err != nil {
		marker = domainchat.ReadMarker{ThreadID: rec.ID, UserID: userID}
	}
	return s.summarize(ctx, *rec, userID, marker), nil
}

// SendParams carries one outgoing message.
type SendParams struct {
	UserID      string
	ThreadID    string
	Content     string
	Attachments []domainchat.Attachment
}

// SendMessage appends a message and emits the insert plus the conversation
// bump on the feed. The recipient is notified out of band when their
// preferences allow it.
func (s *Service) SendMessage(ctx context.Context, params SendParams) (*domainchat.Message, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" && len(params.Attachments) == 0 {
		return nil, domainchat.ErrContentRequired
	}
	rec, err := s.authorizedThread(ctx, params.ThreadID, params.UserID)
	if err != nil {
		return nil, err
	}

	msg, err := s.Store.AddMessage(ctx, rec.ID, params.UserID, content, params.Attachments, time.Now())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domainchat.Event{
		Type:         domainchat.EventMessageInsert,
		New:          messageRow(msg),
		Participants: rec.Participants,
	})
	s.publish(ctx, domainchat.Event{
		Type:         domainchat.EventConversationUpdate,
		New:          threadRowAfterMessage(rec, msg),
		Participants: rec.Participants,
	})

	if recipient := rec.OtherParticipant(params.UserID); recipient != "" && s.Notify != nil {
		sender := s.counterpart(ctx, params.UserID)
		if err := s.Notify.NotifyNewMessage(ctx, recipient, rec.ID, sender, msg.Content); err != nil && s.Logger != nil {
			s.Logger.Warn("message notification failed", "thread_id", rec.ID, "recipient", recipient, "error", err)
		}
	}

	msg.IsMine = true
	return msg, nil
}

// Messages returns a page of thread history, newest first. Read receipts on
// the caller's own messages reflect the counterpart's read marker.
func (s *Service) Messages(ctx context.Context, userID, threadID string, limit int, before string) ([]domainchat.Message, error) {
	rec, err := s.authorizedThread(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.Store.ListMessages(ctx, rec.ID, limit, before)
	if err != nil {
		return nil, err
	}

	ownMarker, err := s.Store.ReadMarker(ctx, rec.ID, userID)
	if err != nil {
		ownMarker = domainchat.ReadMarker{}
	}
	var otherMarker domainchat.ReadMarker
	if otherID := rec.OtherParticipant(userID); otherID != "" {
		if m, err := s.Store.ReadMarker(ctx, rec.ID, otherID); err == nil {
			otherMarker = m
		}
	}

	for i := range msgs {
		msgs[i].IsMine = msgs[i].SenderID == userID
		marker := ownMarker
		if msgs[i].IsMine {
			marker = otherMarker
		}
		msgs[i].IsRead = readAt(msgs[i], marker)
	}
	return msgs, nil
}

// MarkRead advances the caller's read marker to the newest message and echoes
// a message.update so the counterpart's read receipt flips. Marking a thread
// with nothing unread still upserts the marker and emits no event.
func (s *Service) MarkRead(ctx context.Context, userID, threadID string) error {
	rec, err := s.authorizedThread(ctx, threadID, userID)
	if err != nil {
		return err
	}
	if rec.LastMessageID == "" {
		return nil
	}

	marker, err := s.Store.ReadMarker(ctx, rec.ID, userID)
	if err == nil && marker.LastReadMessageID == rec.LastMessageID {
		return nil
	}
	if err := s.Store.MarkThreadRead(ctx, rec.ID, userID, rec.LastMessageID, time.Now()); err != nil {
		return err
	}

	// The read receipt only concerns messages the counterpart sent.
	if rec.LastMessageSenderID != "" && rec.LastMessageSenderID != userID {
		s.publish(ctx, domainchat.Event{
			Type: domainchat.EventMessageUpdate,
			New: map[string]any{
				"id":        rec.LastMessageID,
				"thread_id": rec.ID,
				"sender_id": rec.LastMessageSenderID,
				"is_read":   true,
			},
			Old:          map[string]any{"is_read": false},
			Participants: []string{rec.LastMessageSenderID},
		})
	}
	return nil
}

func (s *Service) authorizedThread(ctx context.Context, threadID, userID string) (*domainchat.ThreadRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domainchat.ErrNotParticipant
	}
	rec, err := s.Store.GetThread(ctx, strings.TrimSpace(threadID))
	if err != nil {
		return nil, err
	}
	if !rec.HasParticipant(userID) {
		return nil, domainchat.ErrNotParticipant
	}
	return rec, nil
}

func (s *Service) publish(ctx context.Context, ev domainchat.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, ev); err != nil && s.Logger != nil {
		s.Logger.Error("change event publish failed", "type", ev.Type, "error", err)
	}
}

// readAt reports whether a message is covered by a read marker. The marker
// either names the message directly or postdates its creation.
func readAt(msg domainchat.Message, marker domainchat.ReadMarker) bool {
	if marker.LastReadMessageID == msg.ID {
		return true
	}
	if marker.UpdatedAt.IsZero() {
		return false
	}
	return !msg.CreatedAt.After(marker.UpdatedAt)
}

func messageRow(msg *domainchat.Message) map[string]any {
	row := map[string]any{
		"id":         msg.ID,
		"thread_id":  msg.ThreadID,
		"sender_id":  msg.SenderID,
		"content":    msg.Content,
		"created_at": msg.CreatedAt,
		"is_read":    false,
	}
	if len(msg.Attachments) > 0 {
		row["attachments"] = msg.Attachments
	}
	return row
}

func threadRow(rec *domainchat.ThreadRecord) map[string]any {
	row := map[string]any{
		"id":           rec.ID,
		"participants": rec.Participants,
		"updated_at":   rec.UpdatedAt(),
	}
	if rec.PropertyID != "" {
		row["property_id"] = rec.PropertyID
	}
	return row
}

func threadRowAfterMessage(rec *domainchat.ThreadRecord, msg *domainchat.Message) map[string]any {
	row := threadRow(rec)
	row["updated_at"] = msg.CreatedAt
	row["last_message_id"] = msg.ID
	row["last_message_sender_id"] = msg.SenderID
	row["last_message_text"] = msg.Content
	return row
}
