package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"arrienda/internal/domain/chat"
)

type fakeFetcher struct {
	mu      sync.Mutex
	threads []chat.Thread
	err     error
	calls   int
}

func (f *fakeFetcher) Threads(_ context.Context, _ string) ([]chat.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]chat.Thread(nil), f.threads...), nil
}

func (f *fakeFetcher) set(threads []chat.Thread, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads = threads
	f.err = err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func at(hour int) time.Time {
	return time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC)
}

func TestRefreshOrdersByActivityThenID(t *testing.T) {
	fetch := &fakeFetcher{threads: []chat.Thread{
		{ID: "t-b", UpdatedAt: at(9)},
		{ID: "t-c", UpdatedAt: at(11)},
		{ID: "t-a", UpdatedAt: at(9)},
		{ID: "t-d", UpdatedAt: at(10)},
	}}
	rec := NewReconciler("u-1", fetch, nil)

	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got := rec.Threads()
	wantOrder := []string{"t-c", "t-d", "t-a", "t-b"}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d threads, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	fetch := &fakeFetcher{threads: []chat.Thread{{ID: "t-1", UpdatedAt: at(9)}}}
	rec := NewReconciler("u-1", fetch, nil)

	_ = rec.Refresh(context.Background())
	first := rec.Threads()
	_ = rec.Refresh(context.Background())
	second := rec.Threads()

	if len(first) != len(second) || first[0].ID != second[0].ID {
		t.Errorf("repeated refresh changed the snapshot: %+v vs %+v", first, second)
	}
}

func TestRefreshErrorKeepsSnapshotAndSetsLastError(t *testing.T) {
	fetch := &fakeFetcher{threads: []chat.Thread{{ID: "t-1", UpdatedAt: at(9)}}}
	rec := NewReconciler("u-1", fetch, nil)
	_ = rec.Refresh(context.Background())

	fetch.set(nil, errors.New("store down"))
	if err := rec.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if got := rec.Threads(); len(got) != 1 {
		t.Errorf("failed refresh dropped the snapshot: %+v", got)
	}
	if rec.LastError() == nil {
		t.Error("LastError must surface the failure")
	}

	fetch.set([]chat.Thread{{ID: "t-1", UpdatedAt: at(9)}}, nil)
	_ = rec.Refresh(context.Background())
	if rec.LastError() != nil {
		t.Error("LastError must clear after a successful refresh")
	}
}

func TestApplyInsertFromCounterpartRefreshes(t *testing.T) {
	fetch := &fakeFetcher{}
	rec := NewReconciler("u-1", fetch, nil)

	changed := rec.Apply(context.Background(), chat.Event{
		Type: chat.EventMessageInsert,
		New:  map[string]any{"id": "m-1", "thread_id": "t-1", "sender_id": "u-2"},
	})
	if !changed || fetch.callCount() != 1 {
		t.Errorf("changed=%v calls=%d, want refresh on counterpart insert", changed, fetch.callCount())
	}
}

func TestApplyOwnInsertIsIgnored(t *testing.T) {
	fetch := &fakeFetcher{}
	rec := NewReconciler("u-1", fetch, nil)

	changed := rec.Apply(context.Background(), chat.Event{
		Type: chat.EventMessageInsert,
		New:  map[string]any{"id": "m-1", "thread_id": "t-1", "sender_id": "u-1"},
	})
	if changed || fetch.callCount() != 0 {
		t.Errorf("changed=%v calls=%d, own insert must not refetch", changed, fetch.callCount())
	}
}

func TestApplyReadEchoRefreshesAtMostOnce(t *testing.T) {
	fetch := &fakeFetcher{}
	rec := NewReconciler("u-1", fetch, nil)
	echo := chat.Event{
		Type: chat.EventMessageUpdate,
		New:  map[string]any{"id": "m-1", "thread_id": "t-1", "sender_id": "u-1", "is_read": true},
	}

	if changed := rec.Apply(context.Background(), echo); !changed {
		t.Error("first read echo must refresh")
	}
	if changed := rec.Apply(context.Background(), echo); changed {
		t.Error("duplicate read echo must be ignored")
	}
	if fetch.callCount() != 1 {
		t.Errorf("calls = %d, want exactly 1", fetch.callCount())
	}
}

func TestApplyReadEchoUsesOldRecordFallback(t *testing.T) {
	fetch := &fakeFetcher{}
	rec := NewReconciler("u-1", fetch, nil)

	// Old record already carried is_read=true, so nothing flipped.
	changed := rec.Apply(context.Background(), chat.Event{
		Type: chat.EventMessageUpdate,
		New:  map[string]any{"id": "m-1", "sender_id": "u-1", "is_read": true},
		Old:  map[string]any{"is_read": true},
	})
	if changed || fetch.callCount() != 0 {
		t.Errorf("changed=%v calls=%d, unchanged flag must not refetch", changed, fetch.callCount())
	}
}

func TestApplyUpdateForForeignMessageIsIgnored(t *testing.T) {
	fetch := &fakeFetcher{}
	rec := NewReconciler("u-1", fetch, nil)

	changed := rec.Apply(context.Background(), chat.Event{
		Type: chat.EventMessageUpdate,
		New:  map[string]any{"id": "m-1", "sender_id": "u-2", "is_read": true},
	})
	if changed || fetch.callCount() != 0 {
		t.Errorf("changed=%v calls=%d, receipts for another sender are irrelevant", changed, fetch.callCount())
	}
}

func TestApplyConversationUpdateAlwaysRefreshes(t *testing.T) {
	fetch := &fakeFetcher{}
	rec := NewReconciler("u-1", fetch, nil)
	ev := chat.Event{
		Type: chat.EventConversationUpdate,
		New:  map[string]any{"id": "t-1", "updated_at": "2026-03-01T10:00:00Z"},
	}

	rec.Apply(context.Background(), ev)
	rec.Apply(context.Background(), ev)
	if fetch.callCount() != 2 {
		t.Errorf("calls = %d, conversation updates always resync", fetch.callCount())
	}
}

func TestApplyUnknownEventIsIgnored(t *testing.T) {
	fetch := &fakeFetcher{}
	rec := NewReconciler("u-1", fetch, nil)

	if changed := rec.Apply(context.Background(), chat.Event{Type: "message.delete"}); changed {
		t.Error("unknown event types must be ignored")
	}
	if fetch.callCount() != 0 {
		t.Errorf("calls = %d, want 0", fetch.callCount())
	}
}

func TestReadDedupStateStaysBounded(t *testing.T) {
	fetch := &fakeFetcher{}
	rec := NewReconciler("u-1", fetch, nil)

	for i := 0; i < readSeenLimit+32; i++ {
		rec.Apply(context.Background(), chat.Event{
			Type: chat.EventMessageUpdate,
			New:  map[string]any{"id": fmt.Sprintf("m-%d", i), "sender_id": "u-1", "is_read": true},
			Old:  map[string]any{"is_read": false},
		})
	}

	rec.mu.Lock()
	tracked := len(rec.readSeen)
	rec.mu.Unlock()
	if tracked > readSeenLimit {
		t.Errorf("tracked receipts = %d, must stay within %d", tracked, readSeenLimit)
	}

	// recent messages keep their dedup guard after eviction of old ones
	calls := fetch.callCount()
	latest := fmt.Sprintf("m-%d", readSeenLimit+31)
	rec.Apply(context.Background(), chat.Event{
		Type: chat.EventMessageUpdate,
		New:  map[string]any{"id": latest, "sender_id": "u-1", "is_read": true},
		Old:  map[string]any{"is_read": false},
	})
	if fetch.callCount() != calls {
		t.Errorf("calls = %d, repeated echo for a tracked message must not refetch", fetch.callCount())
	}
}
