package inbox

import "sync"

// Registry tracks the live inbox session per user. Registering a new session
// for a user closes the previous one, mirroring the one-channel-per-user rule
// of the realtime layer.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Put installs the session for its user, closing any prior one.
func (r *Registry) Put(userID string, s *Session) {
	r.mu.Lock()
	prev := r.sessions[userID]
	r.sessions[userID] = s
	r.mu.Unlock()
	if prev != nil && prev != s {
		prev.Close()
	}
}

// Get returns the live session for a user, nil when none.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// Remove drops the session if it is still the registered one and closes it.
func (r *Registry) Remove(userID string, s *Session) {
	r.mu.Lock()
	if r.sessions[userID] == s {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()
	s.Close()
}

// CloseAll tears down every registered session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
