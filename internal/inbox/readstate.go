package inbox

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultVisibilityDelay is how long a freshly arrived message stays unread
// while the viewer is on the thread. The delay lets the message render before
// its read flag flips, so the unread styling does not flash and vanish.
const DefaultVisibilityDelay = 1500 * time.Millisecond

// Marker persists the read position of a thread for a user.
type Marker interface {
	MarkRead(ctx context.Context, userID, threadID string) error
}

// ReadState tracks which thread the user is actively viewing and marks it
// read when messages arrive there. Mark-as-read is at-most-once: a failed
// call is logged, never retried in-band, and the next successful inbox
// refresh re-derives unread state from the store.
type ReadState struct {
	userID string
	mark   Marker
	delay  time.Duration
	logger *slog.Logger

	// afterMark runs after a successful mark, typically a refresh trigger.
	afterMark func()

	mu      sync.Mutex
	viewing string
}

func NewReadState(userID string, mark Marker, delay time.Duration, logger *slog.Logger) *ReadState {
	if delay <= 0 {
		delay = DefaultVisibilityDelay
	}
	return &ReadState{
		userID: userID,
		mark:   mark,
		delay:  delay,
		logger: logger,
	}
}

// OnMarked registers a callback invoked after each successful mark.
func (s *ReadState) OnMarked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterMark = fn
}

// SetViewing records the thread the user has open.
func (s *ReadState) SetViewing(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = threadID
}

// ClearViewing is called when the user navigates away from a thread.
func (s *ReadState) ClearViewing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = ""
}

// Viewing returns the currently open thread id, empty when none.
func (s *ReadState) Viewing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewing
}

// OnNewMessage schedules a mark-as-read when the message landed in the thread
// the user is viewing. The scheduled action still fires if the user navigates
// away before the delay elapses; marking a closed thread read is harmless.
func (s *ReadState) OnNewMessage(threadID string) {
	if threadID == "" || s.Viewing() != threadID {
		return
	}
	time.AfterFunc(s.delay, func() {
		if err := s.mark.MarkRead(context.Background(), s.userID, threadID); err != nil {
			if s.logger != nil {
				s.logger.Error("mark as read failed", "user_id", s.userID, "thread_id", threadID, "error", err)
			}
			return
		}
		s.mu.Lock()
		after := s.afterMark
		s.mu.Unlock()
		if after != nil {
			after()
		}
	})
}
