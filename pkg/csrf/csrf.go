package csrf

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

const tokenBytes = 32

// Manager issues and validates per-session CSRF tokens.
type Manager struct {
	ttl         time.Duration
	rotateOnUse bool
	formField   string
	headerName  string
	queryParam  string
}

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithRotateOnUse mints a replacement token immediately after each
// successful validation, invalidating the old one for resubmits.
func WithRotateOnUse(rotate bool) Option {
	return func(m *Manager) {
		m.rotateOnUse = rotate
	}
}

// WithFormField sets the hidden form field name tokens are read from.
func WithFormField(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.formField = name
		}
	}
}

// WithHeaderName sets the request header tokens are read from.
func WithHeaderName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.headerName = name
		}
	}
}

// WithQueryParam sets the query parameter tokens are read from.
func WithQueryParam(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.queryParam = name
		}
	}
}

// New creates a token manager with a one hour TTL and rotation disabled
// unless overridden.
func New(opts ...Option) *Manager {
	m := &Manager{
		ttl:        time.Hour,
		formField:  "csrf_token",
		headerName: "X-CSRF-Token",
		queryParam: "csrf_token",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// GetOrCreate returns the current token when it is still valid, otherwise
// mints a fresh one. Calling it twice without an intervening validation
// returns the same token both times.
func (m *Manager) GetOrCreate(current *Token) (*Token, error) {
	if current != nil && !current.IsExpired() {
		return current, nil
	}
	return m.mint()
}

// Validate checks the presented value against the current token in constant
// time. On success with rotate-on-use enabled, a replacement token is
// returned and the old one must be discarded by the caller; otherwise the
// current token is returned unchanged. Expired or mismatched values fail.
func (m *Manager) Validate(current *Token, presented string) (bool, *Token, error) {
	if !current.Matches(presented) {
		return false, current, nil
	}

	if m.rotateOnUse {
		replacement, err := m.mint()
		if err != nil {
			// Validation itself succeeded; surface the mint failure so the
			// caller can decide whether to keep the old token.
			return true, current, err
		}
		return true, replacement, nil
	}

	return true, current, nil
}

func (m *Manager) mint() (*Token, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Join(ErrTokenGeneration, err)
	}

	now := time.Now()
	return &Token{
		Value:     base64.RawURLEncoding.EncodeToString(b),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}, nil
}
