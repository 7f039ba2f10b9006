package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domainchat "arrienda/internal/domain/chat"
	domainproperty "arrienda/internal/domain/property"
	"arrienda/internal/infra/storage/memory"
)

type memStore struct {
	mu      sync.Mutex
	seq     int
	records map[string]*domainchat.ThreadRecord
	msgs    map[string][]domainchat.Message
	markers map[string]domainchat.ReadMarker
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]*domainchat.ThreadRecord),
		msgs:    make(map[string][]domainchat.Message),
		markers: make(map[string]domainchat.ReadMarker),
	}
}

func markerKey(userID, threadID string) string { return userID + "|" + threadID }

func (s *memStore) GetThread(_ context.Context, id string) (*domainchat.ThreadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domainchat.ErrThreadNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *memStore) FindThreadByProperty(_ context.Context, propertyID string, participants []string) (*domainchat.ThreadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.PropertyID != propertyID {
			continue
		}
		if rec.HasParticipant(participants[0]) && rec.HasParticipant(participants[1]) {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, domainchat.ErrThreadNotFound
}

func (s *memStore) CreateThread(_ context.Context, propertyID string, participants []string, now time.Time) (*domainchat.ThreadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	rec := &domainchat.ThreadRecord{
		ID:           fmt.Sprintf("t-%d", s.seq),
		PropertyID:   propertyID,
		Participants: append([]string(nil), participants...),
		CreatedAt:    now,
	}
	s.records[rec.ID] = rec
	clone := *rec
	return &clone, nil
}

func (s *memStore) ListThreads(_ context.Context, userID string) ([]domainchat.ThreadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domainchat.ThreadRecord
	for _, rec := range s.records {
		if rec.HasParticipant(userID) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *memStore) AddMessage(_ context.Context, threadID, senderID, content string, attachments []domainchat.Attachment, at time.Time) (*domainchat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[threadID]
	if !ok {
		return nil, domainchat.ErrThreadNotFound
	}
	s.seq++
	msg := domainchat.Message{
		ID:          fmt.Sprintf("m-%d", s.seq),
		ThreadID:    threadID,
		SenderID:    senderID,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   at,
	}
	s.msgs[threadID] = append(s.msgs[threadID], msg)
	rec.LastMessageAt = at
	rec.LastMessageID = msg.ID
	rec.LastMessageSenderID = senderID
	rec.LastMessageText = content
	clone := msg
	return &clone, nil
}

func (s *memStore) ListMessages(_ context.Context, threadID string, limit int, _ string) ([]domainchat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.msgs[threadID]
	out := make([]domainchat.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (s *memStore) MarkThreadRead(_ context.Context, threadID, userID, lastReadMessageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[markerKey(userID, threadID)] = domainchat.ReadMarker{
		ThreadID:          threadID,
		UserID:            userID,
		LastReadMessageID: lastReadMessageID,
		UpdatedAt:         at,
	}
	return nil
}

func (s *memStore) ReadMarker(_ context.Context, threadID, userID string) (domainchat.ReadMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.markers[markerKey(userID, threadID)]; ok {
		return m, nil
	}
	return domainchat.ReadMarker{ThreadID: threadID, UserID: userID}, nil
}

func (s *memStore) ListReadMarkers(_ context.Context, userID string) (map[string]domainchat.ReadMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domainchat.ReadMarker)
	for _, m := range s.markers {
		if m.UserID == userID {
			out[m.ThreadID] = m
		}
	}
	return out, nil
}

func (s *memStore) CountUnread(_ context.Context, threadID, userID, lastReadMessageID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	seenMarker := lastReadMessageID == ""
	for _, msg := range s.msgs[threadID] {
		if !seenMarker {
			if msg.ID == lastReadMessageID {
				seenMarker = true
			}
			continue
		}
		if msg.SenderID != userID {
			count++
		}
	}
	return count, nil
}

type fakeProfiles struct {
	refs map[string]domainchat.UserRef
}

func (f *fakeProfiles) Get(_ context.Context, userID string) (domainchat.UserRef, error) {
	if ref, ok := f.refs[userID]; ok {
		return ref, nil
	}
	return domainchat.UserRef{}, errors.New("profile not found")
}

type recordingSink struct {
	mu     sync.Mutex
	events []domainchat.Event
}

func (r *recordingSink) Publish(_ context.Context, ev domainchat.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) byType(kind string) []domainchat.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domainchat.Event
	for _, ev := range r.events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

type recordingNotifier struct {
	mu         sync.Mutex
	recipients []string
	previews   []string
}

func (r *recordingNotifier) NotifyNewMessage(_ context.Context, recipientID, _ string, _ domainchat.UserRef, preview string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipients = append(r.recipients, recipientID)
	r.previews = append(r.previews, preview)
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore, *recordingSink, *recordingNotifier) {
	t.Helper()
	store := newMemStore()
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	props := memory.NewPropertyRepository()
	p, err := domainproperty.New(domainproperty.CreateParams{
		ID:      "p-1",
		OwnerID: "u-owner",
		Title:   "Casa en Posadas",
	})
	if err != nil {
		t.Fatalf("property fixture: %v", err)
	}
	if err := props.Save(context.Background(), p); err != nil {
		t.Fatalf("save property: %v", err)
	}

	svc := &Service{
		Store: store,
		Profiles: &fakeProfiles{refs: map[string]domainchat.UserRef{
			"u-owner": {ID: "u-owner", DisplayName: "Inmobiliaria Norte"},
		}},
		Properties: props,
		Events:     sink,
		Notify:     notifier,
	}
	return svc, store, sink, notifier
}

func TestStartThreadCreatesAndAnnounces(t *testing.T) {
	svc, _, sink, _ := newTestService(t)

	thread, err := svc.StartThread(context.Background(), StartThreadParams{
		UserID:      "u-1",
		OtherUserID: "u-owner",
		PropertyID:  "p-1",
	})
	if err != nil {
		t.Fatalf("start thread: %v", err)
	}
	if thread.OtherUser.DisplayName != "Inmobiliaria Norte" {
		t.Errorf("counterpart = %q, want the profile name", thread.OtherUser.DisplayName)
	}
	if thread.Property == nil || thread.Property.ID != "p-1" {
		t.Errorf("property = %+v, want snapshot of p-1", thread.Property)
	}
	if got := sink.byType(domainchat.EventConversationUpdate); len(got) != 1 {
		t.Errorf("conversation events = %d, want 1", len(got))
	}
}

func TestStartThreadReusesExisting(t *testing.T) {
	svc, _, sink, _ := newTestService(t)
	params := StartThreadParams{UserID: "u-1", OtherUserID: "u-owner", PropertyID: "p-1"}

	first, err := svc.StartThread(context.Background(), params)
	if err != nil {
		t.Fatalf("start thread: %v", err)
	}
	second, err := svc.StartThread(context.Background(), params)
	if err != nil {
		t.Fatalf("restart thread: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("got two threads %q and %q, want reuse", first.ID, second.ID)
	}
	if got := sink.byType(domainchat.EventConversationUpdate); len(got) != 1 {
		t.Errorf("conversation events = %d, reuse must not re-announce", len(got))
	}
}

func TestStartThreadRejectsSelf(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.StartThread(context.Background(), StartThreadParams{UserID: "u-1", OtherUserID: "u-1"})
	if !errors.Is(err, domainchat.ErrSelfThread) {
		t.Errorf("err = %v, want ErrSelfThread", err)
	}
}

func TestStartThreadUnknownProperty(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.StartThread(context.Background(), StartThreadParams{UserID: "u-1", OtherUserID: "u-2", PropertyID: "missing"})
	if !errors.Is(err, domainproperty.ErrNotFound) {
		t.Errorf("err = %v, want property.ErrNotFound", err)
	}
}

func TestSendMessagePublishesAndNotifies(t *testing.T) {
	svc, _, sink, notifier := newTestService(t)
	thread, err := svc.StartThread(context.Background(), StartThreadParams{UserID: "u-1", OtherUserID: "u-owner", PropertyID: "p-1"})
	if err != nil {
		t.Fatalf("start thread: %v", err)
	}

	msg, err := svc.SendMessage(context.Background(), SendParams{UserID: "u-1", ThreadID: thread.ID, Content: "hola"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !msg.IsMine {
		t.Error("sent message must be mine")
	}

	inserts := sink.byType(domainchat.EventMessageInsert)
	if len(inserts) != 1 {
		t.Fatalf("insert events = %d, want 1", len(inserts))
	}
	if len(inserts[0].Participants) != 2 {
		t.Errorf("insert routed to %v, want both participants", inserts[0].Participants)
	}
	if got := sink.byType(domainchat.EventConversationUpdate); len(got) != 2 {
		t.Errorf("conversation events = %d, want create plus bump", len(got))
	}
	if len(notifier.recipients) != 1 || notifier.recipients[0] != "u-owner" {
		t.Errorf("notified %v, want only the counterpart", notifier.recipients)
	}
}

func TestSendMessageValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	thread, _ := svc.StartThread(context.Background(), StartThreadParams{UserID: "u-1", OtherUserID: "u-owner", PropertyID: "p-1"})

	if _, err := svc.SendMessage(context.Background(), SendParams{UserID: "u-1", ThreadID: thread.ID, Content: "   "}); !errors.Is(err, domainchat.ErrContentRequired) {
		t.Errorf("blank content: err = %v, want ErrContentRequired", err)
	}
	if _, err := svc.SendMessage(context.Background(), SendParams{UserID: "u-intruder", ThreadID: thread.ID, Content: "hola"}); !errors.Is(err, domainchat.ErrNotParticipant) {
		t.Errorf("outsider: err = %v, want ErrNotParticipant", err)
	}
	if _, err := svc.SendMessage(context.Background(), SendParams{UserID: "u-1", ThreadID: "missing", Content: "hola"}); !errors.Is(err, domainchat.ErrThreadNotFound) {
		t.Errorf("missing thread: err = %v, want ErrThreadNotFound", err)
	}
}

func TestAttachmentOnlyMessageIsAllowed(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	thread, _ := svc.StartThread(context.Background(), StartThreadParams{UserID: "u-1", OtherUserID: "u-owner", PropertyID: "p-1"})

	msg, err := svc.SendMessage(context.Background(), SendParams{
		UserID:      "u-1",
		ThreadID:    thread.ID,
		Attachments: []domainchat.Attachment{{URL: "https://cdn/file.pdf", Name: "plano.pdf"}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(msg.Attachments) != 1 {
		t.Errorf("attachments = %d, want 1", len(msg.Attachments))
	}
}

func TestThreadsUnreadAndFallbackName(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	// u-anon has no profile on record
	thread, err := svc.StartThread(context.Background(), StartThreadParams{UserID: "u-1", OtherUserID: "u-anon", PropertyID: ""})
	if err != nil {
		t.Fatalf("start thread: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), SendParams{UserID: "u-anon", ThreadID: thread.ID, Content: "consulta"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	threads, err := svc.Threads(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("threads: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(threads))
	}
	if threads[0].UnreadCount != 1 {
		t.Errorf("unread = %d, want 1", threads[0].UnreadCount)
	}
	if threads[0].OtherUser.DisplayName != "Usuario" {
		t.Errorf("counterpart = %q, want fallback Usuario", threads[0].OtherUser.DisplayName)
	}

	if err := svc.MarkRead(context.Background(), "u-1", thread.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	threads, _ = svc.Threads(context.Background(), "u-1")
	if threads[0].UnreadCount != 0 {
		t.Errorf("unread after read = %d, want 0", threads[0].UnreadCount)
	}
}

func TestMarkReadEchoesAtMostOnce(t *testing.T) {
	svc, _, sink, _ := newTestService(t)
	thread, _ := svc.StartThread(context.Background(), StartThreadParams{UserID: "u-1", OtherUserID: "u-owner", PropertyID: "p-1"})
	if _, err := svc.SendMessage(context.Background(), SendParams{UserID: "u-owner", ThreadID: thread.ID, Content: "hola"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := svc.MarkRead(context.Background(), "u-1", thread.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	echoes := sink.byType(domainchat.EventMessageUpdate)
	if len(echoes) != 1 {
		t.Fatalf("echo events = %d, want 1", len(echoes))
	}
	if got := echoes[0].Participants; len(got) != 1 || got[0] != "u-owner" {
		t.Errorf("echo routed to %v, want only the author", got)
	}

	// repeating the read with nothing new must not echo again
	if err := svc.MarkRead(context.Background(), "u-1", thread.ID); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if got := sink.byType(domainchat.EventMessageUpdate); len(got) != 1 {
		t.Errorf("echo events after repeat = %d, want still 1", len(got))
	}
}

func TestMarkReadOwnLastMessageDoesNotEcho(t *testing.T) {
	svc, _, sink, _ := newTestService(t)
	thread, _ := svc.StartThread(context.Background(), StartThreadParams{UserID: "u-1", OtherUserID: "u-owner", PropertyID: "p-1"})
	if _, err := svc.SendMessage(context.Background(), SendParams{UserID: "u-1", ThreadID: thread.ID, Content: "hola"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := svc.MarkRead(context.Background(), "u-1", thread.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if got := sink.byType(domainchat.EventMessageUpdate); len(got) != 0 {
		t.Errorf("echo events = %d, own messages need no receipt", len(got))
	}
}

func TestMessagesDeriveOwnershipAndReceipts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	thread, _ := svc.StartThread(context.Background(), StartThreadParams{UserID: "u-1", OtherUserID: "u-owner", PropertyID: "p-1"})
	if _, err := svc.SendMessage(context.Background(), SendParams{UserID: "u-1", ThreadID: thread.ID, Content: "hola"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	// counterpart reads the thread
	if err := svc.MarkRead(context.Background(), "u-owner", thread.ID); err != nil {
		t.Fatalf("counterpart read: %v", err)
	}

	msgs, err := svc.Messages(context.Background(), "u-1", thread.ID, 50, "")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if !msgs[0].IsMine {
		t.Error("own message must report IsMine")
	}
	if !msgs[0].IsRead {
		t.Error("message covered by the counterpart marker must report IsRead")
	}

	if _, err := svc.Messages(context.Background(), "u-intruder", thread.ID, 50, ""); !errors.Is(err, domainchat.ErrNotParticipant) {
		t.Errorf("outsider: err = %v, want ErrNotParticipant", err)
	}
}
