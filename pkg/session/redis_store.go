package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Session records live under
// "<prefix>token:<token>" with a TTL matching the session expiry; a per-user
// sorted set under "<prefix>user:<id>" scored by creation time gives the
// concurrency supervisor oldest-first listing.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the default "sessionguard:" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}

	s := &RedisStore{
		client: client,
		prefix: "sessionguard:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) tokenKey(token string) string {
	return s.prefix + "token:" + token
}

func (s *RedisStore) userKey(userID uuid.UUID) string {
	return s.prefix + "user:" + userID.String()
}

// Create stores a new session.
func (s *RedisStore) Create(ctx context.Context, session *Session) error {
	if session == nil || session.Token == "" {
		return ErrInvalidSession
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Join(ErrInvalidSession, err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	ok, err := s.client.SetNX(ctx, s.tokenKey(session.Token), payload, ttl).Result()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrConflict
	}

	if session.UserID != nil {
		if err := s.client.ZAdd(ctx, s.userKey(*session.UserID), redis.Z{
			Score:  float64(session.CreatedAt.UnixNano()),
			Member: session.Token,
		}).Err(); err != nil {
			return errors.Join(ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Get retrieves a session by token.
func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	payload, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, errors.Join(ErrInvalidSession, err)
	}

	if session.IsExpired() {
		_ = s.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Update updates an existing session, keeping its expiry-driven TTL.
func (s *RedisStore) Update(ctx context.Context, session *Session) error {
	if session == nil || session.Token == "" {
		return ErrInvalidSession
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Join(ErrInvalidSession, err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	ok, err := s.client.SetXX(ctx, s.tokenKey(session.Token), payload, ttl).Result()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateActivity updates only the last activity time.
func (s *RedisStore) UpdateActivity(ctx context.Context, token string, lastActivity time.Time) error {
	session, err := s.Get(ctx, token)
	if err != nil {
		return err
	}

	session.LastActivityAt = lastActivity
	return s.Update(ctx, session)
}

// Delete removes a session by token.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	// Fetch first so the user index entry can be removed alongside the key.
	payload, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	var session Session
	userID := (*uuid.UUID)(nil)
	if json.Unmarshal(payload, &session) == nil {
		userID = session.UserID
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.tokenKey(token))
	if userID != nil {
		pipe.ZRem(ctx, s.userKey(*userID), token)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteExpired is satisfied by Redis key TTLs; stale user index entries are
// pruned lazily by ListByUser.
func (s *RedisStore) DeleteExpired(ctx context.Context) error {
	return nil
}

// Replace atomically swaps oldToken for the replacement record using an
// optimistic WATCH transaction on the old key. If anything touches the old
// session concurrently the transaction aborts and the old identifier stays
// valid.
func (s *RedisStore) Replace(ctx context.Context, oldToken string, replacement *Session) error {
	if replacement == nil || replacement.Token == "" {
		return ErrInvalidSession
	}

	payload, err := json.Marshal(replacement)
	if err != nil {
		return errors.Join(ErrInvalidSession, err)
	}

	ttl := time.Until(replacement.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	swap := func(tx *redis.Tx) error {
		if err := tx.Get(ctx, s.tokenKey(oldToken)).Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return err
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.tokenKey(replacement.Token), payload, ttl)
			pipe.Del(ctx, s.tokenKey(oldToken))
			if replacement.UserID != nil {
				userKey := s.userKey(*replacement.UserID)
				pipe.ZRem(ctx, userKey, oldToken)
				pipe.ZAdd(ctx, userKey, redis.Z{
					Score:  float64(replacement.CreatedAt.UnixNano()),
					Member: replacement.Token,
				})
			}
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, swap, s.tokenKey(oldToken))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, redis.TxFailedErr):
		return errors.Join(ErrRegenerationFailed, err)
	default:
		return errors.Join(ErrStoreUnavailable, err)
	}
}

// ListByUser returns the user's sessions ordered by creation time, oldest
// first. Index entries whose session key has expired are pruned on the way.
func (s *RedisStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	tokens, err := s.client.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	sessions := make([]*Session, 0, len(tokens))
	for _, token := range tokens {
		session, err := s.Get(ctx, token)
		switch {
		case err == nil:
			sessions = append(sessions, session)
		case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionExpired):
			_ = s.client.ZRem(ctx, s.userKey(userID), token).Err()
		default:
			return nil, err
		}
	}
	return sessions, nil
}

// DeleteByUser removes all sessions for a specific user.
func (s *RedisStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	tokens, err := s.client.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	pipe := s.client.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, s.tokenKey(token))
	}
	pipe.Del(ctx, s.userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
