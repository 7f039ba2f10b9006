package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"arrienda/internal/domain/chat"
)

// DefaultOnlineWindow is how recent the last heartbeat must be for a user to
// count as online.
const DefaultOnlineWindow = 2 * time.Minute

// Tracker records activity heartbeats in Redis and derives online state from
// them. Keys are refreshed on every heartbeat and never deleted, so the last
// seen timestamp survives the user going offline.
type Tracker struct {
	client *goredis.Client
	window time.Duration
	now    func() time.Time
}

// NewTracker wires the tracker against a Redis client. A non-positive window
// falls back to DefaultOnlineWindow.
func NewTracker(client *goredis.Client, window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultOnlineWindow
	}
	return &Tracker{client: client, window: window, now: time.Now}
}

// NewClient dials Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

func presenceKey(userID string) string {
	return "presence:last:" + userID
}

// Heartbeat records activity for a user. Called on every authenticated
// request and on each realtime frame.
func (t *Tracker) Heartbeat(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("presence: user id is required")
	}
	now := t.now().UTC()
	return t.client.Set(ctx, presenceKey(userID), now.Format(time.RFC3339Nano), 0).Err()
}

// Get returns the presence snapshot for a user. Users with no recorded
// heartbeat are offline with no last seen timestamp.
func (t *Tracker) Get(ctx context.Context, userID string) (chat.Presence, error) {
	p := chat.Presence{UserID: userID}
	raw, err := t.client.Get(ctx, presenceKey(userID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return p, nil
		}
		return p, fmt.Errorf("presence: get %s: %w", userID, err)
	}
	last, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return p, fmt.Errorf("presence: parse timestamp for %s: %w", userID, err)
	}
	p.LastActivity = last
	p.LastSeen = &last
	p.IsOnline = t.now().UTC().Sub(last) <= t.window
	return p, nil
}
