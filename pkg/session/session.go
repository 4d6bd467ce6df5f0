package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionguard/pkg/csrf"
)

// Role drives regeneration intervals and concurrency caps.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
)

// hourBucketFormat keys the regeneration rate ceiling by calendar hour.
const hourBucketFormat = "2006-01-02T15"

// Session represents one authenticated (or anonymous) browsing context.
//
// ID is the stable logical identity of the session; Token is the opaque,
// cryptographically random identifier the store is addressed by and the
// value that rotates on regeneration. Fingerprint is bound on first use
// and never changes afterwards: a mismatch destroys the session.
type Session struct {
	ID     uuid.UUID  `json:"id"`
	Token  string     `json:"token"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Role   Role       `json:"role"`

	Fingerprint string `json:"fingerprint,omitempty"`

	// Last-observed client signals, updated on every verified request.
	IP                   string `json:"ip,omitempty"`
	UserAgent            string `json:"user_agent,omitempty"`
	IPChangeCount        int    `json:"ip_change_count,omitempty"`
	UserAgentChangeCount int    `json:"user_agent_change_count,omitempty"`

	Data map[string]any `json:"data,omitempty"`
	CSRF *csrf.Token    `json:"csrf,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	LastRequestAt  time.Time `json:"last_request_at,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`

	// Regeneration bookkeeping. RegenBucket/RegenBucketCount implement the
	// fixed calendar-hour rate ceiling.
	LastRegeneratedAt time.Time `json:"last_regenerated_at,omitempty"`
	RegenerationCount int       `json:"regeneration_count,omitempty"`
	RegenBucket       string    `json:"regen_bucket,omitempty"`
	RegenBucketCount  int       `json:"regen_bucket_count,omitempty"`
}

// NewSession creates a new session record.
func NewSession(token string, userID *uuid.UUID, role Role, fingerprint, ip, userAgent string, ttl time.Duration) *Session {
	now := time.Now()
	if role == "" {
		role = RoleAnonymous
	}
	return &Session{
		ID:             uuid.New(),
		Token:          token,
		UserID:         userID,
		Role:           role,
		Fingerprint:    fingerprint,
		IP:             ip,
		UserAgent:      userAgent,
		Data:           make(map[string]any),
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ttl),
	}
}

// IsAuthenticated returns true if the session has a user ID.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.UserID != nil
}

// IsAdmin returns true for privileged sessions.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s != nil && time.Now().After(s.ExpiresAt)
}

// Get retrieves a value from session data.
func (s *Session) Get(key string) (any, bool) {
	if s == nil || s.Data == nil {
		return nil, false
	}
	val, ok := s.Data[key]
	return val, ok
}

// GetString retrieves a string value from session data.
func (s *Session) GetString(key string) (string, bool) {
	val, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// Set stores a value in session data.
func (s *Session) Set(key string, value any) {
	if s == nil {
		return
	}
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = value
}

// Delete removes a value from session data.
func (s *Session) Delete(key string) {
	if s == nil || s.Data == nil {
		return
	}
	delete(s.Data, key)
}

// Touch updates the last activity time.
func (s *Session) Touch() {
	if s == nil {
		return
	}
	s.LastActivityAt = time.Now()
}

// SinceRegeneration returns the elapsed time since the identifier was last
// rotated, falling back to session age when it never was.
func (s *Session) SinceRegeneration(now time.Time) time.Duration {
	if s.LastRegeneratedAt.IsZero() {
		return now.Sub(s.CreatedAt)
	}
	return now.Sub(s.LastRegeneratedAt)
}

// RegenerationsThisHour returns the count recorded in the current
// calendar-hour bucket. A bucket from a previous hour counts as zero.
func (s *Session) RegenerationsThisHour(now time.Time) int {
	if s.RegenBucket != now.Format(hourBucketFormat) {
		return 0
	}
	return s.RegenBucketCount
}

// countRegeneration records one regeneration in the current hour bucket.
func (s *Session) countRegeneration(now time.Time) {
	bucket := now.Format(hourBucketFormat)
	if s.RegenBucket != bucket {
		s.RegenBucket = bucket
		s.RegenBucketCount = 0
	}
	s.RegenBucketCount++
	s.RegenerationCount++
	s.LastRegeneratedAt = now
}
