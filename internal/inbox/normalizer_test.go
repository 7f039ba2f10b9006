package inbox

import (
	"testing"
	"time"
)

type panickingID struct{}

func (panickingID) String() string { panic("corrupt id value") }

func TestThreadNormalizesAliasedFields(t *testing.T) {
	n := NewNormalizer(nil)
	raw := map[string]any{
		"threadId":  "t-1",
		"updatedAt": "2026-03-01T10:00:00Z",
		"otherUser": map[string]any{
			"id":          "u-2",
			"displayName": "Carla",
			"avatarUrl":   "https://cdn/avatar.png",
		},
		"unreadCount": float64(3),
		"lastMessage": map[string]any{
			"id":        "m-9",
			"senderId":  "u-2",
			"text":      "hola",
			"createdAt": "2026-03-01T09:59:00Z",
		},
		"listing": map[string]any{
			"id":       "p-7",
			"title":    "Casa en Posadas",
			"coverUrl": "https://cdn/cover.jpg",
		},
	}

	thread, ok := n.Thread(raw)
	if !ok {
		t.Fatal("expected thread to normalize")
	}
	if thread.ID != "t-1" {
		t.Errorf("ID = %q, want t-1", thread.ID)
	}
	if thread.OtherUser.DisplayName != "Carla" {
		t.Errorf("DisplayName = %q, want Carla", thread.OtherUser.DisplayName)
	}
	if thread.UnreadCount != 3 {
		t.Errorf("UnreadCount = %d, want 3", thread.UnreadCount)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !thread.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", thread.UpdatedAt, want)
	}
	if thread.LastMessage == nil || thread.LastMessage.Content != "hola" {
		t.Errorf("LastMessage = %+v, want content hola", thread.LastMessage)
	}
	if thread.Property == nil || thread.Property.ID != "p-7" {
		t.Errorf("Property = %+v, want id p-7", thread.Property)
	}
}

func TestThreadCounterpartFallsBackToUsuario(t *testing.T) {
	n := NewNormalizer(nil)

	cases := []struct {
		name string
		raw  map[string]any
	}{
		{"missing other user", map[string]any{"id": "t-1"}},
		{"empty name", map[string]any{"id": "t-1", "other_user": map[string]any{"id": "u-2", "display_name": ""}}},
		{"nil name", map[string]any{"id": "t-1", "other_user": map[string]any{"id": "u-2", "display_name": nil}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			thread, ok := n.Thread(tc.raw)
			if !ok {
				t.Fatal("expected thread to normalize")
			}
			if thread.OtherUser.DisplayName != FallbackDisplayName {
				t.Errorf("DisplayName = %q, want %q", thread.OtherUser.DisplayName, FallbackDisplayName)
			}
		})
	}
}

func TestThreadRejectsMissingIdentity(t *testing.T) {
	n := NewNormalizer(nil)
	if _, ok := n.Thread(map[string]any{"updated_at": "2026-03-01T10:00:00Z"}); ok {
		t.Error("thread without any id alias must be rejected")
	}
	if _, ok := n.Thread(nil); ok {
		t.Error("nil payload must be rejected")
	}
}

func TestThreadsSkipsMalformedRecords(t *testing.T) {
	n := NewNormalizer(nil)
	raws := []map[string]any{
		{"id": "t-1"},
		{"id": panickingID{}}, // field extraction panics, record is skipped
		nil,
		{"no_identity": true},
		{"id": "t-2"},
	}

	threads := n.Threads(raws)
	if len(threads) != 2 {
		t.Fatalf("got %d threads, want 2", len(threads))
	}
	if threads[0].ID != "t-1" || threads[1].ID != "t-2" {
		t.Errorf("surviving ids = %q, %q", threads[0].ID, threads[1].ID)
	}
}

func TestMessageIsReadReportsPresence(t *testing.T) {
	if _, present := MessageIsRead(map[string]any{"id": "m-1"}); present {
		t.Error("absent flag must not report presence")
	}
	if v, present := MessageIsRead(map[string]any{"isRead": true}); !present || !v {
		t.Errorf("isRead alias: got (%v, %v), want (true, true)", v, present)
	}
	if v, present := MessageIsRead(map[string]any{"read": false}); !present || v {
		t.Errorf("read alias: got (%v, %v), want (false, true)", v, present)
	}
}

func TestMessageDerivesIsMine(t *testing.T) {
	n := NewNormalizer(nil)
	raw := map[string]any{"id": "m-1", "sender_id": "u-1", "content": "hola"}

	mine, ok := n.Message(raw, "u-1")
	if !ok || !mine.IsMine {
		t.Errorf("got IsMine=%v ok=%v, want mine", mine.IsMine, ok)
	}
	other, _ := n.Message(raw, "u-2")
	if other.IsMine {
		t.Error("message from another sender must not be mine")
	}
	anon, _ := n.Message(raw, "")
	if anon.IsMine {
		t.Error("unknown viewer must never own a message")
	}
}

func TestTimeFieldFormats(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		raw  map[string]any
		want time.Time
	}{
		{"rfc3339", map[string]any{"created_at": "2026-03-01T10:00:00Z"}, want},
		{"time value", map[string]any{"created_at": want}, want},
		{"unix seconds", map[string]any{"created_at": float64(want.Unix())}, want},
		{"garbage", map[string]any{"created_at": "not a time"}, fallback},
		{"absent", map[string]any{}, fallback},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := timeField(tc.raw, fallback, createdAtAliases...)
			if !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
