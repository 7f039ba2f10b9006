package memory

import (
	"context"
	"strings"
	"sync"

	"arrienda/internal/domain/auth"
	"arrienda/internal/domain/user"
)

// UserRepository is an in-memory implementation of user.Repository.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[user.ID]*user.User
	byEmail map[string]user.ID
}

// NewUserRepository builds an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[user.ID]*user.User),
		byEmail: make(map[string]user.ID),
	}
}

// ByID returns a user or user.ErrNotFound.
func (r *UserRepository) ByID(ctx context.Context, id user.ID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

// ByEmail resolves a user by normalized email.
func (r *UserRepository) ByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, user.ErrNotFound
	}
	clone := *r.byID[id]
	return &clone, nil
}

// Save stores/updates a user entry.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *u
	r.byID[u.ID] = &clone
	r.byEmail[normalizeEmail(u.Email)] = u.ID
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SessionStore keeps opaque-token sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[auth.Token]*auth.Session
}

// NewSessionStore builds an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[auth.Token]*auth.Session)}
}

// Save stores the session keyed by token.
func (s *SessionStore) Save(ctx context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *session
	s.sessions[session.Token] = &clone
	return nil
}

// Get resolves a session or auth.ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, token auth.Token) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	clone := *session
	return &clone, nil
}

// Delete removes a session, used by logout.
func (s *SessionStore) Delete(ctx context.Context, token auth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// DeleteByUser drops every session owned by a user, used when an account is
// blocked.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID user.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}
