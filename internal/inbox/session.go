package inbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"arrienda/internal/domain/chat"
)

var (
	ErrUserRequired  = errors.New("inbox: user id is required")
	ErrNotSubscribed = errors.New("inbox: session has no subscription")
)

// Subscription is a live per-user realtime channel handle.
type Subscription interface {
	Events() <-chan chat.Event
	Status() chat.SubscriptionStatus
	Close()
}

// Opener creates subscriptions; opening a new one for a user tears down any
// existing channel for that user.
type Opener interface {
	Open(userID string) (Subscription, error)
}

// SessionConfig wires a Session's collaborators.
type SessionConfig struct {
	UserID          string
	Fetch           Fetcher
	Mark            Marker
	Opener          Opener
	VisibilityDelay time.Duration
	Logger          *slog.Logger
}

// Session is one user's realtime inbox: the read-through thread-list cache,
// the read-state synchronizer and the subscription lifecycle behind a single
// facade. Sessions are explicitly constructed and owned by their creator, so
// tests can run isolated instances without shared state.
type Session struct {
	userID string
	rec    *Reconciler
	read   *ReadState
	opener Opener
	logger *slog.Logger

	mu     sync.Mutex
	sub    Subscription
	done   chan struct{}
	closed bool

	lisMu     sync.Mutex
	updates   chan struct{}
	listeners map[int]chan struct{}
	lisSeq    int
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.UserID == "" {
		// subscriptions are never created for anonymous sessions
		return nil, ErrUserRequired
	}
	if cfg.Fetch == nil || cfg.Mark == nil || cfg.Opener == nil {
		return nil, errors.New("inbox: fetcher, marker and opener are required")
	}
	s := &Session{
		userID:    cfg.UserID,
		rec:       NewReconciler(cfg.UserID, cfg.Fetch, cfg.Logger),
		read:      NewReadState(cfg.UserID, cfg.Mark, cfg.VisibilityDelay, cfg.Logger),
		opener:    cfg.Opener,
		logger:    cfg.Logger,
		updates:   make(chan struct{}, 1),
		listeners: make(map[int]chan struct{}),
	}
	s.read.OnMarked(func() {
		if err := s.RefreshInbox(context.Background()); err != nil && s.logger != nil {
			s.logger.Error("post-mark refresh failed", "user_id", s.userID, "error", err)
		}
	})
	return s, nil
}

// Start loads the initial inbox snapshot and opens the realtime channel.
func (s *Session) Start(ctx context.Context) error {
	if err := s.RefreshInbox(ctx); err != nil {
		return err
	}
	return s.Reconnect(ctx)
}

// Reconnect tears down the current subscription and opens a fresh one.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNotSubscribed
	}
	if s.sub != nil {
		s.sub.Close()
	}
	if s.done != nil {
		<-s.done
	}
	sub, err := s.opener.Open(s.userID)
	if err != nil {
		s.sub = nil
		s.done = nil
		s.mu.Unlock()
		return err
	}
	done := make(chan struct{})
	s.sub = sub
	s.done = done
	s.mu.Unlock()

	go s.run(sub, done)
	s.notify()
	return nil
}

func (s *Session) run(sub Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.Events() {
		s.handle(ev)
	}
}

func (s *Session) handle(ev chat.Event) {
	changed := s.rec.Apply(context.Background(), ev)
	if ev.Type == chat.EventMessageInsert {
		s.read.OnNewMessage(MessageThread(ev.New))
	}
	if changed {
		s.notify()
	}
}

// RefreshInbox is an idempotent full resync from the store.
func (s *Session) RefreshInbox(ctx context.Context) error {
	err := s.rec.Refresh(ctx)
	s.notify()
	return err
}

// MarkAsRead marks the thread read, best effort. On success the inbox is
// resynced so the unread count reflects the store.
func (s *Session) MarkAsRead(ctx context.Context, threadID string) error {
	if err := s.read.mark.MarkRead(ctx, s.userID, threadID); err != nil {
		if s.logger != nil {
			s.logger.Error("mark as read failed", "user_id", s.userID, "thread_id", threadID, "error", err)
		}
		return err
	}
	return s.RefreshInbox(ctx)
}

// Threads returns the reconciled thread list snapshot.
func (s *Session) Threads() []chat.Thread {
	return s.rec.Threads()
}

// LastError surfaces the latest refresh failure as a transient error state.
func (s *Session) LastError() error {
	return s.rec.LastError()
}

// ConnectionStatus reports the subscription health.
func (s *Session) ConnectionStatus() chat.SubscriptionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return chat.StatusDisconnected
	}
	return s.sub.Status()
}

// IsConnected reports whether the channel is healthy.
func (s *Session) IsConnected() bool {
	return s.ConnectionStatus().Healthy()
}

// SetViewing records the thread the user has open.
func (s *Session) SetViewing(threadID string) { s.read.SetViewing(threadID) }

// ClearViewing is called when the user navigates away.
func (s *Session) ClearViewing() { s.read.ClearViewing() }

// Updates signals snapshot changes; delivery is coalescing. The channel is
// shared, so consumers that each need their own signal use Subscribe instead.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Subscribe registers a dedicated update listener. Each open connection gets
// its own coalescing channel so concurrent consumers do not steal signals
// from one another. The returned cancel releases the listener.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.lisMu.Lock()
	id := s.lisSeq
	s.lisSeq++
	s.listeners[id] = ch
	s.lisMu.Unlock()
	return ch, func() {
		s.lisMu.Lock()
		delete(s.listeners, id)
		s.lisMu.Unlock()
	}
}

// Close tears the subscription down unconditionally, regardless of connection
// status, so no listener leaks past the owning session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
}

func (s *Session) notify() {
	signalUpdate(s.updates)
	s.lisMu.Lock()
	for _, ch := range s.listeners {
		signalUpdate(ch)
	}
	s.lisMu.Unlock()
}

func signalUpdate(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
