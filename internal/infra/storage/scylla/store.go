package scylla

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"arrienda/internal/domain/chat"
)

const unreadScanLimit = 100

// Store wraps Scylla queries for threads, messages and read markers. It is
// the authoritative side of the inbox: unread counts and ordering are always
// derivable from here.
type Store struct {
	session *gocql.Session
	logger  *slog.Logger
}

// NewStore builds a Store.
func NewStore(session *gocql.Session, logger *slog.Logger) *Store {
	return &Store{session: session, logger: logger}
}

// GetThread returns a thread by its identifier.
func (s *Store) GetThread(ctx context.Context, id string) (*chat.ThreadRecord, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	uuid, err := gocql.ParseUUID(strings.TrimSpace(id))
	if err != nil {
		return nil, chat.ErrThreadNotFound
	}
	var (
		propertyID    string
		participants  []string
		createdAt     time.Time
		lastMessageAt time.Time
		lastMessageID gocql.UUID
		lastSenderID  string
		lastText      string
	)
	if err := s.session.
		Query(`SELECT id, property_id, participants, created_at, last_message_at, last_message_id, last_message_sender_id, last_message_text FROM threads WHERE id = ? LIMIT 1`, uuid).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&uuid, &propertyID, &participants, &createdAt, &lastMessageAt, &lastMessageID, &lastSenderID, &lastText); err != nil {
		if err == gocql.ErrNotFound {
			return nil, chat.ErrThreadNotFound
		}
		return nil, err
	}
	rec := threadRecord(uuid, propertyID, participants, createdAt, lastMessageAt, lastMessageID, lastSenderID, lastText)
	return &rec, nil
}

// FindThreadByProperty locates an existing thread for a property and
// participant pair.
func (s *Store) FindThreadByProperty(ctx context.Context, propertyID string, participants []string) (*chat.ThreadRecord, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	normalized := normalizeParticipants(participants)
	iter := s.session.
		Query(`SELECT id, property_id, participants, created_at, last_message_at, last_message_id, last_message_sender_id, last_message_text FROM threads WHERE property_id = ? ALLOW FILTERING`, propertyID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	var (
		id            gocql.UUID
		prop          string
		storedParts   []string
		createdAt     time.Time
		lastMessageAt time.Time
		lastMessageID gocql.UUID
		lastSenderID  string
		lastText      string
	)
	for iter.Scan(&id, &prop, &storedParts, &createdAt, &lastMessageAt, &lastMessageID, &lastSenderID, &lastText) {
		if sameParticipants(storedParts, normalized) {
			rec := threadRecord(id, prop, storedParts, createdAt, lastMessageAt, lastMessageID, lastSenderID, lastText)
			if err := iter.Close(); err != nil {
				return nil, err
			}
			return &rec, nil
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return nil, chat.ErrThreadNotFound
}

// CreateThread inserts a new thread entry.
func (s *Store) CreateThread(ctx context.Context, propertyID string, participants []string, now time.Time) (*chat.ThreadRecord, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	id := gocql.TimeUUID()
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	normalized := normalizeParticipants(participants)
	if err := s.session.
		Query(`INSERT INTO threads (id, property_id, participants, created_at, last_message_at, last_message_text) VALUES (?, ?, ?, ?, ?, ?)`,
			id, propertyID, normalized, now, now, "").
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return nil, err
	}
	return &chat.ThreadRecord{
		ID:            id.String(),
		PropertyID:    propertyID,
		Participants:  normalized,
		CreatedAt:     now,
		LastMessageAt: now,
	}, nil
}

// ListThreads returns the user's threads ordered by last activity descending,
// ties broken by id ascending.
func (s *Store) ListThreads(ctx context.Context, userID string) ([]chat.ThreadRecord, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT id, property_id, participants, created_at, last_message_at, last_message_id, last_message_sender_id, last_message_text FROM threads WHERE participants CONTAINS ? ALLOW FILTERING`, userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	var (
		id            gocql.UUID
		prop          string
		participants  []string
		createdAt     time.Time
		lastMessageAt time.Time
		lastMessageID gocql.UUID
		lastSenderID  string
		lastText      string
	)
	threads := make([]chat.ThreadRecord, 0)
	for iter.Scan(&id, &prop, &participants, &createdAt, &lastMessageAt, &lastMessageID, &lastSenderID, &lastText) {
		threads = append(threads, threadRecord(id, prop, participants, createdAt, lastMessageAt, lastMessageID, lastSenderID, lastText))
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	sort.SliceStable(threads, func(i, j int) bool {
		a, b := threads[i].UpdatedAt(), threads[j].UpdatedAt()
		if a.Equal(b) {
			return threads[i].ID < threads[j].ID
		}
		return a.After(b)
	})
	return threads, nil
}

// AddMessage appends a message and updates the thread activity snapshot.
func (s *Store) AddMessage(ctx context.Context, threadID, senderID, content string, attachments []chat.Attachment, at time.Time) (*chat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	tid, err := gocql.ParseUUID(strings.TrimSpace(threadID))
	if err != nil {
		return nil, chat.ErrThreadNotFound
	}
	snippet := trimSnippet(content, 500)
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	messageID := gocql.TimeUUID()
	if err := s.session.
		Query(`INSERT INTO messages (thread_id, message_id, sender_id, content, attachments, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			tid, messageID, senderID, content, encodeAttachments(attachments), at).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return nil, err
	}
	// best-effort update of the last-message snapshot
	if err := s.session.
		Query(`UPDATE threads SET last_message_at = ?, last_message_id = ?, last_message_sender_id = ?, last_message_text = ? WHERE id = ?`,
			at, messageID, senderID, snippet, tid).
		WithContext(ctx).
		Consistency(gocql.One).
		Exec(); err != nil && s.logger != nil {
		s.logger.Warn("failed to update last message meta", "error", err, "thread_id", threadID)
	}
	return &chat.Message{
		ID:          messageID.String(),
		ThreadID:    threadID,
		SenderID:    senderID,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   at,
	}, nil
}

// ListMessages returns messages newest first with optional cursor.
func (s *Store) ListMessages(ctx context.Context, threadID string, limit int, before string) ([]chat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	tid, err := gocql.ParseUUID(strings.TrimSpace(threadID))
	if err != nil {
		return nil, chat.ErrThreadNotFound
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var iter *gocql.Iter
	if cursor := strings.TrimSpace(before); cursor != "" {
		beforeID, err := gocql.ParseUUID(cursor)
		if err != nil {
			return nil, errors.New("scylla: invalid before cursor")
		}
		iter = s.session.
			Query(`SELECT thread_id, message_id, sender_id, content, attachments, created_at FROM messages WHERE thread_id = ? AND message_id < ? ORDER BY message_id DESC LIMIT ?`,
				tid, beforeID, limit).
			WithContext(ctx).
			Consistency(gocql.One).
			Iter()
	} else {
		iter = s.session.
			Query(`SELECT thread_id, message_id, sender_id, content, attachments, created_at FROM messages WHERE thread_id = ? ORDER BY message_id DESC LIMIT ?`,
				tid, limit).
			WithContext(ctx).
			Consistency(gocql.One).
			Iter()
	}

	messages := make([]chat.Message, 0, limit)
	var (
		scanThread  gocql.UUID
		messageID   gocql.UUID
		sender      string
		content     string
		attachments []string
		createdAt   time.Time
	)
	for iter.Scan(&scanThread, &messageID, &sender, &content, &attachments, &createdAt) {
		messages = append(messages, chat.Message{
			ID:          messageID.String(),
			ThreadID:    scanThread.String(),
			SenderID:    sender,
			Content:     content,
			Attachments: decodeAttachments(attachments),
			CreatedAt:   createdAt,
		})
		attachments = nil
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkThreadRead upserts the read position for a user. Marking a thread with
// nothing unread is a no-op upsert, never an error.
func (s *Store) MarkThreadRead(ctx context.Context, threadID, userID, lastReadMessageID string, at time.Time) error {
	if s.session == nil {
		return errors.New("scylla session not initialized")
	}
	tid, err := gocql.ParseUUID(strings.TrimSpace(threadID))
	if err != nil {
		return chat.ErrThreadNotFound
	}
	var lastRead gocql.UUID
	if trimmed := strings.TrimSpace(lastReadMessageID); trimmed != "" {
		lastRead, err = gocql.ParseUUID(trimmed)
		if err != nil {
			return errors.New("scylla: invalid last read message id")
		}
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.session.
		Query(`INSERT INTO thread_reads (user_id, thread_id, last_read_message_id, updated_at) VALUES (?, ?, ?, ?)`,
			userID, tid, lastRead, at).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec()
}

// ReadMarker returns one user's read position in a thread. A missing row is
// a zero marker, not an error.
func (s *Store) ReadMarker(ctx context.Context, threadID, userID string) (chat.ReadMarker, error) {
	marker := chat.ReadMarker{ThreadID: threadID, UserID: userID}
	if s.session == nil {
		return marker, errors.New("scylla session not initialized")
	}
	tid, err := gocql.ParseUUID(strings.TrimSpace(threadID))
	if err != nil {
		return marker, chat.ErrThreadNotFound
	}
	var (
		lastRead  gocql.UUID
		updatedAt time.Time
	)
	err = s.session.
		Query(`SELECT last_read_message_id, updated_at FROM thread_reads WHERE user_id = ? AND thread_id = ?`, userID, tid).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&lastRead, &updatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return marker, nil
		}
		return marker, err
	}
	marker.LastReadMessageID = lastRead.String()
	marker.UpdatedAt = updatedAt
	return marker, nil
}

// ListReadMarkers returns the user's read positions keyed by thread id.
func (s *Store) ListReadMarkers(ctx context.Context, userID string) (map[string]chat.ReadMarker, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT user_id, thread_id, last_read_message_id, updated_at FROM thread_reads WHERE user_id = ?`, userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	result := make(map[string]chat.ReadMarker)
	var (
		readUserID string
		threadID   gocql.UUID
		lastRead   gocql.UUID
		updatedAt  time.Time
	)
	for iter.Scan(&readUserID, &threadID, &lastRead, &updatedAt) {
		result[threadID.String()] = chat.ReadMarker{
			ThreadID:          threadID.String(),
			UserID:            readUserID,
			LastReadMessageID: lastRead.String(),
			UpdatedAt:         updatedAt,
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountUnread counts messages in the thread that are newer than the read
// marker and not sent by the user. The scan is capped; inbox badges do not
// need exact counts past the cap.
func (s *Store) CountUnread(ctx context.Context, threadID, userID, lastReadMessageID string) (int, error) {
	if s.session == nil {
		return 0, errors.New("scylla session not initialized")
	}
	tid, err := gocql.ParseUUID(strings.TrimSpace(threadID))
	if err != nil {
		return 0, chat.ErrThreadNotFound
	}

	var iter *gocql.Iter
	if trimmed := strings.TrimSpace(lastReadMessageID); trimmed != "" && !isZeroUUID(trimmed) {
		lastRead, err := gocql.ParseUUID(trimmed)
		if err != nil {
			return 0, errors.New("scylla: invalid read marker")
		}
		iter = s.session.
			Query(`SELECT sender_id FROM messages WHERE thread_id = ? AND message_id > ? LIMIT ?`, tid, lastRead, unreadScanLimit).
			WithContext(ctx).
			Consistency(gocql.One).
			Iter()
	} else {
		iter = s.session.
			Query(`SELECT sender_id FROM messages WHERE thread_id = ? LIMIT ?`, tid, unreadScanLimit).
			WithContext(ctx).
			Consistency(gocql.One).
			Iter()
	}

	count := 0
	var sender string
	for iter.Scan(&sender) {
		if sender != userID {
			count++
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	return count, nil
}

func threadRecord(id gocql.UUID, propertyID string, participants []string, createdAt, lastMessageAt time.Time, lastMessageID gocql.UUID, lastSenderID, lastText string) chat.ThreadRecord {
	rec := chat.ThreadRecord{
		ID:                  id.String(),
		PropertyID:          propertyID,
		Participants:        append([]string(nil), participants...),
		CreatedAt:           createdAt,
		LastMessageAt:       lastMessageAt,
		LastMessageSenderID: lastSenderID,
		LastMessageText:     lastText,
	}
	if !isZeroUUID(lastMessageID.String()) {
		rec.LastMessageID = lastMessageID.String()
	}
	return rec
}

func encodeAttachments(attachments []chat.Attachment) []string {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]string, 0, len(attachments))
	for _, a := range attachments {
		raw, err := json.Marshal(a)
		if err != nil {
			continue
		}
		out = append(out, string(raw))
	}
	return out
}

func decodeAttachments(raw []string) []chat.Attachment {
	if len(raw) == 0 {
		return nil
	}
	out := make([]chat.Attachment, 0, len(raw))
	for _, item := range raw {
		var a chat.Attachment
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

func trimSnippet(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}

func isZeroUUID(id string) bool {
	return id == "" || id == "00000000-0000-0000-0000-000000000000"
}

func normalizeParticipants(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sameParticipants(a, b []string) bool {
	aNorm := normalizeParticipants(a)
	bNorm := normalizeParticipants(b)
	if len(aNorm) != len(bNorm) {
		return false
	}
	for i := range aNorm {
		if aNorm[i] != bNorm[i] {
			return false
		}
	}
	return true
}
