package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for session persistence. Implementations must
// make Replace atomic: an observer sees either the old identifier or the new
// one, never a torn intermediate state, and a failed Replace leaves the old
// session fully usable.
type Store interface {
	// Create stores a new session
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by token
	Get(ctx context.Context, token string) (*Session, error)

	// Update updates an existing session
	Update(ctx context.Context, session *Session) error

	// UpdateActivity updates only the last activity time
	UpdateActivity(ctx context.Context, token string, lastActivity time.Time) error

	// Delete removes a session by token
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes all expired sessions
	DeleteExpired(ctx context.Context) error

	// Replace atomically swaps oldToken for the fully-built replacement
	// record. The old token must exist; after return it is invalid for any
	// operation.
	Replace(ctx context.Context, oldToken string, replacement *Session) error

	// ListByUser returns the user's active sessions ordered by creation time,
	// oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error)

	// DeleteByUser removes all sessions for a specific user
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
