package session

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using in-memory storage. A per-user index in
// creation order gives the concurrency supervisor O(1) oldest-first listing.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	userIndex map[uuid.UUID][]string
	ticker    *time.Ticker
	done      chan struct{}
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	store := &MemoryStore{
		sessions:  make(map[string]*Session),
		userIndex: make(map[uuid.UUID][]string),
		done:      make(chan struct{}),
	}

	if cleanupInterval > 0 {
		store.ticker = time.NewTicker(cleanupInterval)
		go store.cleanupLoop()
	}

	return store
}

// Create stores a new session.
func (m *MemoryStore) Create(ctx context.Context, session *Session) error {
	if session == nil || session.Token == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.Token]; exists {
		return ErrConflict
	}

	m.sessions[session.Token] = copySession(session)
	if session.UserID != nil {
		m.userIndex[*session.UserID] = append(m.userIndex[*session.UserID], session.Token)
	}
	return nil
}

// Get retrieves a session by token.
func (m *MemoryStore) Get(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[token]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		m.mu.Lock()
		m.removeLocked(token)
		m.mu.Unlock()
		return nil, ErrSessionExpired
	}

	return copySession(session), nil
}

// Update updates an existing session.
func (m *MemoryStore) Update(ctx context.Context, session *Session) error {
	if session == nil || session.Token == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, exists := m.sessions[session.Token]
	if !exists {
		return ErrSessionNotFound
	}

	// An Update cannot change the owning principal; the user index only
	// moves on Create/Replace/Delete.
	if prev.UserID == nil && session.UserID != nil {
		m.userIndex[*session.UserID] = append(m.userIndex[*session.UserID], session.Token)
	}

	m.sessions[session.Token] = copySession(session)
	return nil
}

// UpdateActivity updates only the last activity time.
func (m *MemoryStore) UpdateActivity(ctx context.Context, token string, lastActivity time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[token]
	if !exists {
		return ErrSessionNotFound
	}

	session.LastActivityAt = lastActivity
	return nil
}

// Delete removes a session by token.
func (m *MemoryStore) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(token)
	return nil
}

// DeleteExpired removes all expired sessions.
func (m *MemoryStore) DeleteExpired(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for token, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			m.removeLocked(token)
		}
	}

	return nil
}

// Replace atomically swaps oldToken for the replacement record. Both the
// removal of the old entry and the insertion of the new one happen under a
// single critical section, so readers observe one identifier or the other.
func (m *MemoryStore) Replace(ctx context.Context, oldToken string, replacement *Session) error {
	if replacement == nil || replacement.Token == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old, exists := m.sessions[oldToken]
	if !exists {
		return ErrSessionNotFound
	}
	if _, exists := m.sessions[replacement.Token]; exists {
		return ErrConflict
	}

	// The replacement takes over the old token's index slot so per-user
	// listing stays in creation order across regenerations.
	if old.UserID != nil && replacement.UserID != nil && *old.UserID == *replacement.UserID {
		tokens := m.userIndex[*old.UserID]
		if i := slices.Index(tokens, oldToken); i >= 0 {
			tokens[i] = replacement.Token
		} else {
			m.userIndex[*old.UserID] = append(tokens, replacement.Token)
		}
		delete(m.sessions, oldToken)
		m.sessions[replacement.Token] = copySession(replacement)
		return nil
	}

	m.removeLocked(oldToken)
	m.sessions[replacement.Token] = copySession(replacement)
	if replacement.UserID != nil {
		m.userIndex[*replacement.UserID] = append(m.userIndex[*replacement.UserID], replacement.Token)
	}
	return nil
}

// ListByUser returns the user's sessions in creation order, oldest first.
func (m *MemoryStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := m.userIndex[userID]
	sessions := make([]*Session, 0, len(tokens))
	for _, token := range tokens {
		if session, ok := m.sessions[token]; ok && !session.IsExpired() {
			sessions = append(sessions, copySession(session))
		}
	}
	return sessions, nil
}

// DeleteByUser removes all sessions for a specific user.
func (m *MemoryStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, token := range slices.Clone(m.userIndex[userID]) {
		m.removeLocked(token)
	}
	delete(m.userIndex, userID)
	return nil
}

// removeLocked deletes a session and its index entry. Caller holds the lock.
func (m *MemoryStore) removeLocked(token string) {
	session, exists := m.sessions[token]
	if !exists {
		return
	}
	delete(m.sessions, token)

	if session.UserID != nil {
		tokens := m.userIndex[*session.UserID]
		tokens = slices.DeleteFunc(tokens, func(t string) bool { return t == token })
		if len(tokens) == 0 {
			delete(m.userIndex, *session.UserID)
		} else {
			m.userIndex[*session.UserID] = tokens
		}
	}
}

// Close stops the cleanup goroutine.
func (m *MemoryStore) Close() error {
	if m.ticker != nil {
		m.ticker.Stop()
		close(m.done)
	}
	return nil
}

// cleanupLoop runs periodic cleanup of expired sessions.
func (m *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-m.ticker.C:
			_ = m.DeleteExpired(context.Background())
		case <-m.done:
			return
		}
	}
}

// copySession returns a deep enough copy that callers cannot mutate stored
// state through the returned pointer.
func copySession(session *Session) *Session {
	cp := *session
	if session.Data != nil {
		cp.Data = make(map[string]any, len(session.Data))
		maps.Copy(cp.Data, session.Data)
	}
	if session.CSRF != nil {
		token := *session.CSRF
		cp.CSRF = &token
	}
	return &cp
}
