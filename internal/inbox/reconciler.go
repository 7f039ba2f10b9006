package inbox

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"arrienda/internal/domain/chat"
)

// Fetcher loads the authoritative thread list for a user. Refreshes are
// idempotent reads; the store owns canonical state.
type Fetcher interface {
	Threads(ctx context.Context, userID string) ([]chat.Thread, error)
}

// Reconciler owns the session's ordered thread list and applies incremental
// change events. It deliberately falls back to a full fetch-and-replace
// whenever incremental state cannot be computed cheaply: re-deriving unread
// counts and ordering from the store avoids divergence.
type Reconciler struct {
	userID string
	fetch  Fetcher
	logger *slog.Logger

	mu         sync.Mutex
	threads    []chat.Thread
	readSeen   map[string]bool
	readOrder  []string
	nextGen    uint64
	appliedGen uint64
	lastErr    error
}

// readSeenLimit bounds the read-receipt dedup state. Sessions outliving this
// many tracked messages forget the oldest first; a stale echo for a forgotten
// message costs one redundant refresh, not a correctness violation.
const readSeenLimit = 1024

func NewReconciler(userID string, fetch Fetcher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		userID:   userID,
		fetch:    fetch,
		logger:   logger,
		readSeen: make(map[string]bool),
	}
}

// Apply folds one change event into the thread list, refreshing from the
// store when needed. It reports whether a refresh ran.
func (r *Reconciler) Apply(ctx context.Context, ev chat.Event) bool {
	switch ev.Type {
	case chat.EventMessageInsert:
		if MessageSender(ev.New) == r.userID {
			// own sends are reconciled by the echo update
			return false
		}
		r.refresh(ctx)
		return true
	case chat.EventMessageUpdate:
		if s := MessageSender(ev.New); s != "" && s != r.userID {
			// read receipts matter only for own sends
			return false
		}
		if !r.readFlagChanged(ev) {
			return false
		}
		r.refresh(ctx)
		return true
	case chat.EventConversationUpdate:
		// ordering depends on updated_at, always resync
		r.refresh(ctx)
		return true
	default:
		if r.logger != nil {
			r.logger.Debug("ignoring unknown event type", "type", ev.Type)
		}
		return false
	}
}

// readFlagChanged guards against redundant read-receipt echoes: an UPDATE
// whose is_read matches the previously known value must not refetch.
func (r *Reconciler) readFlagChanged(ev chat.Event) bool {
	msgID := MessageIdentity(ev.New)
	if msgID == "" {
		return false
	}
	isRead, present := MessageIsRead(ev.New)
	if !present {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, tracked := r.readSeen[msgID]
	known := tracked
	if !known {
		if old, oldPresent := MessageIsRead(ev.Old); oldPresent {
			prev, known = old, true
		}
	}
	r.readSeen[msgID] = isRead
	if !tracked {
		r.readOrder = append(r.readOrder, msgID)
		if len(r.readOrder) > readSeenLimit {
			oldest := r.readOrder[0]
			r.readOrder = r.readOrder[1:]
			delete(r.readSeen, oldest)
		}
	}
	if known && prev == isRead {
		return false
	}
	return true
}

// Refresh replaces the thread list with the store's view. Overlapping
// refreshes resolve independently; only the newest one wins.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.nextGen++
	gen := r.nextGen
	r.mu.Unlock()

	threads, err := r.fetch.Threads(ctx, r.userID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.lastErr = err
		return err
	}
	if gen < r.appliedGen {
		// a newer refresh already landed
		return nil
	}
	r.appliedGen = gen
	sortThreads(threads)
	r.threads = threads
	r.lastErr = nil
	return nil
}

func (r *Reconciler) refresh(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil && r.logger != nil {
		r.logger.Error("inbox refresh failed", "user_id", r.userID, "error", err)
	}
}

// Threads returns a copy of the current ordered thread list.
func (r *Reconciler) Threads() []chat.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Thread(nil), r.threads...)
}

// LastError surfaces the most recent refresh failure, cleared by the next
// successful refresh.
func (r *Reconciler) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// sortThreads orders by last activity descending; ties break by thread id
// ascending so the result is deterministic.
func sortThreads(threads []chat.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].UpdatedAt.Equal(threads[j].UpdatedAt) {
			return threads[i].ID < threads[j].ID
		}
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
}
