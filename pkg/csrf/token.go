package csrf

import (
	"crypto/subtle"
	"time"
)

// Token is a per-session anti-forgery secret with a fixed lifetime.
// A session holds at most one valid token at a time.
type Token struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the token lifetime has elapsed.
func (t *Token) IsExpired() bool {
	return t == nil || time.Now().After(t.ExpiresAt)
}

// Matches compares the presented value against the token in constant time.
// Expired tokens never match.
func (t *Token) Matches(presented string) bool {
	if t == nil || t.Value == "" || presented == "" || t.IsExpired() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t.Value), []byte(presented)) == 1
}
