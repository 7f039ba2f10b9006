package chat

import "time"

// Presence is the ephemeral online state of a user, derived from activity
// heartbeats. Records are refreshed, never deleted; IsOnline is computed from
// how recent the last activity was.
type Presence struct {
	UserID       string     `json:"user_id"`
	IsOnline     bool       `json:"is_online"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
	LastActivity time.Time  `json:"last_activity,omitzero"`
}
