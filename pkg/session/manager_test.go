package session_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionguard/pkg/secevent"
	"github.com/dmitrymomot/sessionguard/pkg/session"
)

type testEnv struct {
	manager *session.Manager
	store   *session.MemoryStore
	events  *secevent.MemoryStorage
}

func newTestEnv(t *testing.T, mutate func(*session.Config)) *testEnv {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.CleanupInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}

	store := session.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	events := secevent.NewMemoryStorage()

	manager := session.New(
		session.WithConfig(cfg),
		session.WithStore(store),
		session.WithRecorder(secevent.NewRecorder(events)),
		// Fingerprints come from a test header so user-agent changes can be
		// exercised as risk signals without tripping the hijack check.
		session.WithFingerprint(func(r *http.Request) string {
			return r.Header.Get("X-Test-Fingerprint")
		}),
	)

	return &testEnv{manager: manager, store: store, events: events}
}

func newRequest(token string) *http.Request {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Test-Fingerprint", "device-a")
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.RemoteAddr = "192.0.2.1:1111"
	if token != "" {
		r.AddCookie(&http.Cookie{Name: "sguard", Value: token})
	}
	return r
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "sguard" {
			return c.Value
		}
	}
	t.Fatal("no session cookie set")
	return ""
}

func TestManager_Ensure(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	t.Run("creates anonymous session with bound fingerprint", func(t *testing.T) {
		w := httptest.NewRecorder()
		sess, err := env.manager.Ensure(ctx, w, newRequest(""))
		require.NoError(t, err)

		assert.False(t, sess.IsAuthenticated())
		assert.Equal(t, session.RoleAnonymous, sess.Role)
		assert.Equal(t, "device-a", sess.Fingerprint)
		assert.Equal(t, "192.0.2.1", sess.IP)
		assert.Equal(t, sess.Token, sessionCookie(t, w))
	})

	t.Run("returns existing session on repeat", func(t *testing.T) {
		w1 := httptest.NewRecorder()
		first, err := env.manager.Ensure(ctx, w1, newRequest(""))
		require.NoError(t, err)

		w2 := httptest.NewRecorder()
		second, err := env.manager.Ensure(ctx, w2, newRequest(first.Token))
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Token, second.Token)
	})
}

func TestManager_Verify_Hijack(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	sess, err := env.manager.Ensure(ctx, w, newRequest(""))
	require.NoError(t, err)

	// Same token presented from a different client.
	hijacked := newRequest(sess.Token)
	hijacked.Header.Set("X-Test-Fingerprint", "device-b")

	w2 := httptest.NewRecorder()
	got, outcome, err := env.manager.Verify(ctx, w2, hijacked)

	assert.Nil(t, got)
	assert.Equal(t, session.OutcomeDestroy, outcome)
	assert.ErrorIs(t, err, session.ErrHijackSuspected)

	// The session is gone even though every other risk factor was clean.
	_, err = env.store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	events := env.events.EventsOfType(secevent.TypeHijackDetected)
	require.Len(t, events, 1)
	assert.Equal(t, "fingerprint mismatch", events[0].Description)
}

func TestManager_Verify_ConcurrentFirstUseBind(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// A session whose fingerprint was never bound, as left behind by a
	// client that did not send one on creation.
	sess := session.NewSession(uuid.New().String(), nil, session.RoleAnonymous, "", "192.0.2.1", "Mozilla/5.0", time.Hour)
	require.NoError(t, env.store.Create(ctx, sess))

	outcomes := make([]session.Outcome, 2)
	errs := make([]error, 2)
	devices := []string{"device-a", "device-b"}

	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := newRequest(sess.Token)
			r.Header.Set("X-Test-Fingerprint", devices[i])
			w := httptest.NewRecorder()
			_, outcomes[i], errs[i] = env.manager.Verify(ctx, w, r)
		}()
	}
	wg.Wait()

	// Exactly one client wins the binding; the other must be treated as
	// a hijacker regardless of interleaving.
	winner, loser := 0, 1
	if outcomes[1] == session.OutcomeContinue {
		winner, loser = 1, 0
	}
	assert.Equal(t, session.OutcomeContinue, outcomes[winner])
	require.NoError(t, errs[winner])
	assert.Equal(t, session.OutcomeDestroy, outcomes[loser])
	assert.ErrorIs(t, errs[loser], session.ErrHijackSuspected)

	require.Len(t, env.events.EventsOfType(secevent.TypeHijackDetected), 1)
	_, err := env.store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestManager_Verify_HighRiskRegeneratesImmediately(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	userID := uuid.New()
	sess, err := env.manager.Authenticate(ctx, w, newRequest(""), userID, session.RoleUser)
	require.NoError(t, err)

	// IP change (3) + UA change (4) + suspicious activity (3) = 10: rotate
	// now even though the session is only milliseconds old.
	risky := newRequest(sess.Token)
	risky.RemoteAddr = "198.51.100.7:2222"
	risky.Header.Set("User-Agent", "curl/8.5.0")

	w2 := httptest.NewRecorder()
	got, outcome, err := env.manager.Verify(ctx, w2, risky, session.WithSuspiciousActivity())
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeContinue, outcome)

	require.NotNil(t, got)
	assert.NotEqual(t, sess.Token, got.Token)
	assert.Equal(t, sess.ID, got.ID, "logical identity survives rotation")
	assert.Equal(t, got.Token, sessionCookie(t, w2))

	// The old identifier is dead for any further use.
	_, err = env.store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	require.Len(t, env.events.EventsOfType(secevent.TypeRegenerated), 1)
}

func TestManager_Verify_RegenerationGuard(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	userID := uuid.New()
	sess, err := env.manager.Authenticate(ctx, w, newRequest(""), userID, session.RoleUser)
	require.NoError(t, err)

	risky := func() *http.Request {
		r := newRequest(sess.Token)
		r.RemoteAddr = "198.51.100.7:2222"
		r.Header.Set("User-Agent", "curl/8.5.0")
		return r
	}

	w1 := httptest.NewRecorder()
	first, outcome, err := env.manager.Verify(ctx, w1, risky(), session.WithSuspiciousActivity())
	require.NoError(t, err)
	require.Equal(t, session.OutcomeContinue, outcome)
	require.NotEqual(t, sess.Token, first.Token)

	// A second request still presenting the retired token arrives right
	// behind the first: it must observe the identifier the first produced,
	// not a second rotation and not a login bounce.
	w2 := httptest.NewRecorder()
	second, outcome, err := env.manager.Verify(ctx, w2, risky(), session.WithSuspiciousActivity())
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeContinue, outcome)
	assert.Equal(t, first.Token, second.Token)

	assert.Len(t, env.events.EventsOfType(secevent.TypeRegenerated), 1)
}

func TestManager_Verify_RateLimited(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	userID := uuid.New()
	sess, err := env.manager.Authenticate(ctx, w, newRequest(""), userID, session.RoleAdmin)
	require.NoError(t, err)

	// Fill the current hour bucket and make the admin interval due.
	stored, err := env.store.Get(ctx, sess.Token)
	require.NoError(t, err)
	stored.RegenBucket = time.Now().Format("2006-01-02T15")
	stored.RegenBucketCount = 50
	stored.LastRegeneratedAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, env.store.Update(ctx, stored))

	w2 := httptest.NewRecorder()
	got, outcome, err := env.manager.Verify(ctx, w2, newRequest(sess.Token))
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeContinue, outcome)

	// The identifier did not rotate; the skip was recorded instead.
	assert.Equal(t, sess.Token, got.Token)
	assert.Empty(t, env.events.EventsOfType(secevent.TypeRegenerated))
	require.Len(t, env.events.EventsOfType(secevent.TypeRateLimited), 1)
}

func TestManager_Verify_AdminInterval(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	userID := uuid.New()
	sess, err := env.manager.Authenticate(ctx, w, newRequest(""), userID, session.RoleAdmin)
	require.NoError(t, err)

	// Not due yet.
	w2 := httptest.NewRecorder()
	got, outcome, err := env.manager.Verify(ctx, w2, newRequest(sess.Token))
	require.NoError(t, err)
	require.Equal(t, session.OutcomeContinue, outcome)
	assert.Equal(t, sess.Token, got.Token)

	// Age the session past the admin interval.
	stored, err := env.store.Get(ctx, sess.Token)
	require.NoError(t, err)
	stored.LastRegeneratedAt = time.Now().Add(-4 * time.Minute)
	require.NoError(t, env.store.Update(ctx, stored))

	w3 := httptest.NewRecorder()
	got, outcome, err = env.manager.Verify(ctx, w3, newRequest(sess.Token))
	require.NoError(t, err)
	require.Equal(t, session.OutcomeContinue, outcome)
	assert.NotEqual(t, sess.Token, got.Token)
}

func TestManager_Verify_Expired(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	sess, err := env.manager.Ensure(ctx, w, newRequest(""))
	require.NoError(t, err)

	stored, err := env.store.Get(ctx, sess.Token)
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, env.store.Update(ctx, stored))

	w2 := httptest.NewRecorder()
	_, outcome, err := env.manager.Verify(ctx, w2, newRequest(sess.Token))
	assert.Equal(t, session.OutcomeDestroy, outcome)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	require.Len(t, env.events.EventsOfType(secevent.TypeDestroyed), 1)
}

func TestManager_Verify_DriftThreshold(t *testing.T) {
	env := newTestEnv(t, func(cfg *session.Config) {
		cfg.IPChangeThreshold = 1
	})
	ctx := context.Background()

	w := httptest.NewRecorder()
	userID := uuid.New()
	sess, err := env.manager.Authenticate(ctx, w, newRequest(""), userID, session.RoleUser)
	require.NoError(t, err)

	// First address change is tolerated.
	moved := newRequest(sess.Token)
	moved.RemoteAddr = "198.51.100.7:2222"
	w2 := httptest.NewRecorder()
	_, outcome, err := env.manager.Verify(ctx, w2, moved)
	require.NoError(t, err)
	require.Equal(t, session.OutcomeContinue, outcome)

	// Second change breaches the threshold.
	movedAgain := newRequest(sess.Token)
	movedAgain.RemoteAddr = "203.0.113.9:3333"
	w3 := httptest.NewRecorder()
	_, outcome, err = env.manager.Verify(ctx, w3, movedAgain)
	assert.Equal(t, session.OutcomeDestroy, outcome)
	assert.ErrorIs(t, err, session.ErrHijackSuspected)

	events := env.events.EventsOfType(secevent.TypeHijackDetected)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Description, "drift")
}

type brokenStore struct {
	*session.MemoryStore
}

func (b brokenStore) Get(ctx context.Context, token string) (*session.Session, error) {
	return nil, errors.New("store down")
}

func TestManager_Verify_FailsClosed(t *testing.T) {
	events := secevent.NewMemoryStorage()
	inner := session.NewMemoryStore(0)
	t.Cleanup(func() { _ = inner.Close() })

	cfg := session.DefaultConfig()
	cfg.CleanupInterval = 0
	manager := session.New(
		session.WithConfig(cfg),
		session.WithStore(brokenStore{inner}),
		session.WithRecorder(secevent.NewRecorder(events)),
		session.WithFingerprint(func(r *http.Request) string { return "device-a" }),
	)

	w := httptest.NewRecorder()
	_, outcome, err := manager.Verify(context.Background(), w, newRequest("some-token"))

	// An unverifiable store must never be trusted.
	assert.Equal(t, session.OutcomeDestroy, outcome)
	assert.ErrorIs(t, err, session.ErrStoreUnavailable)
	require.Len(t, events.EventsOfType(secevent.TypeHijackDetected), 1)
}

type replaceFailStore struct {
	*session.MemoryStore
}

func (s replaceFailStore) Replace(ctx context.Context, oldToken string, replacement *session.Session) error {
	return errors.New("replace down")
}

func TestManager_Verify_RegenerationFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	events := secevent.NewMemoryStorage()
	inner := session.NewMemoryStore(0)
	t.Cleanup(func() { _ = inner.Close() })

	var logs bytes.Buffer
	cfg := session.DefaultConfig()
	cfg.CleanupInterval = 0
	manager := session.New(
		session.WithConfig(cfg),
		session.WithStore(replaceFailStore{inner}),
		session.WithRecorder(secevent.NewRecorder(events)),
		session.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		session.WithFingerprint(func(r *http.Request) string {
			return r.Header.Get("X-Test-Fingerprint")
		}),
	)

	w := httptest.NewRecorder()
	sess, err := manager.Authenticate(ctx, w, newRequest(""), uuid.New(), session.RoleAdmin)
	require.NoError(t, err)

	// Make rotation due so Verify attempts the replacement.
	stored, err := inner.Get(ctx, sess.Token)
	require.NoError(t, err)
	stored.LastRegeneratedAt = time.Now().Add(-4 * time.Minute)
	require.NoError(t, inner.Update(ctx, stored))

	w2 := httptest.NewRecorder()
	got, outcome, err := manager.Verify(ctx, w2, newRequest(sess.Token))
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeContinue, outcome)

	// The request proceeds on the old identifier, which stays usable, and
	// the failure is visible in the logs rather than swallowed.
	assert.Equal(t, sess.Token, got.Token)
	_, err = inner.Get(ctx, sess.Token)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(logs.String(), "session regeneration failed"))
	assert.Empty(t, events.EventsOfType(secevent.TypeRegenerated))
}

type countingStore struct {
	*session.MemoryStore
	updates    int
	activities int
}

func (s *countingStore) Update(ctx context.Context, sess *session.Session) error {
	s.updates++
	return s.MemoryStore.Update(ctx, sess)
}

func (s *countingStore) UpdateActivity(ctx context.Context, token string, at time.Time) error {
	s.activities++
	return s.MemoryStore.UpdateActivity(ctx, token, at)
}

func TestManager_Verify_ActivityPersistence(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: session.NewMemoryStore(0)}
	t.Cleanup(func() { _ = store.Close() })

	cfg := session.DefaultConfig()
	cfg.CleanupInterval = 0
	manager := session.New(
		session.WithConfig(cfg),
		session.WithStore(store),
		session.WithRecorder(secevent.NewRecorder(secevent.NewMemoryStorage())),
		session.WithFingerprint(func(r *http.Request) string {
			return r.Header.Get("X-Test-Fingerprint")
		}),
	)

	w := httptest.NewRecorder()
	sess, err := manager.Ensure(ctx, w, newRequest(""))
	require.NoError(t, err)

	t.Run("clean repeat within the threshold writes nothing", func(t *testing.T) {
		w2 := httptest.NewRecorder()
		_, outcome, err := manager.Verify(ctx, w2, newRequest(sess.Token))
		require.NoError(t, err)
		require.Equal(t, session.OutcomeContinue, outcome)
		assert.Equal(t, 0, store.updates)
		assert.Equal(t, 0, store.activities)
	})

	t.Run("stale activity is refreshed with the cheap write", func(t *testing.T) {
		stored, err := store.MemoryStore.Get(ctx, sess.Token)
		require.NoError(t, err)
		stored.LastActivityAt = time.Now().Add(-10 * time.Minute)
		require.NoError(t, store.MemoryStore.Update(ctx, stored))

		w2 := httptest.NewRecorder()
		_, outcome, err := manager.Verify(ctx, w2, newRequest(sess.Token))
		require.NoError(t, err)
		require.Equal(t, session.OutcomeContinue, outcome)
		assert.Equal(t, 0, store.updates)
		assert.Equal(t, 1, store.activities)

		stored, err = store.MemoryStore.Get(ctx, sess.Token)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), stored.LastActivityAt, time.Minute)
	})

	t.Run("client drift forces a full rewrite", func(t *testing.T) {
		moved := newRequest(sess.Token)
		moved.RemoteAddr = "198.51.100.7:2222"
		w2 := httptest.NewRecorder()
		_, outcome, err := manager.Verify(ctx, w2, moved)
		require.NoError(t, err)
		require.Equal(t, session.OutcomeContinue, outcome)
		assert.Equal(t, 1, store.updates)
		assert.Equal(t, 1, store.activities)
	})
}

func TestManager_Authenticate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	t.Run("retires the pre-auth token", func(t *testing.T) {
		w := httptest.NewRecorder()
		anon, err := env.manager.Ensure(ctx, w, newRequest(""))
		require.NoError(t, err)

		w2 := httptest.NewRecorder()
		userID := uuid.New()
		authed, err := env.manager.Authenticate(ctx, w2, newRequest(anon.Token), userID, session.RoleUser)
		require.NoError(t, err)

		assert.NotEqual(t, anon.Token, authed.Token)
		assert.Equal(t, session.RoleUser, authed.Role)

		_, err = env.store.Get(ctx, anon.Token)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("admin logins respect the concurrency cap", func(t *testing.T) {
		adminID := uuid.New()

		var tokens []string
		for range 3 {
			w := httptest.NewRecorder()
			sess, err := env.manager.Authenticate(ctx, w, newRequest(""), adminID, session.RoleAdmin)
			require.NoError(t, err)
			tokens = append(tokens, sess.Token)
		}

		sessions, err := env.store.ListByUser(ctx, adminID)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, tokens[1], sessions[0].Token)
		assert.Equal(t, tokens[2], sessions[1].Token)

		require.Len(t, env.events.EventsOfType(secevent.TypeCapEvicted), 1)
	})
}

func TestManager_CSRF(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	sess, err := env.manager.Ensure(ctx, w, newRequest(""))
	require.NoError(t, err)

	t.Run("token is minted lazily and persisted", func(t *testing.T) {
		value, err := env.manager.CSRFToken(ctx, sess)
		require.NoError(t, err)
		assert.NotEmpty(t, value)

		stored, err := env.store.Get(ctx, sess.Token)
		require.NoError(t, err)
		require.NotNil(t, stored.CSRF)
		assert.Equal(t, value, stored.CSRF.Value)

		// Idempotent until validated.
		again, err := env.manager.CSRFToken(ctx, sess)
		require.NoError(t, err)
		assert.Equal(t, value, again)
	})

	t.Run("valid token passes", func(t *testing.T) {
		value, err := env.manager.CSRFToken(ctx, sess)
		require.NoError(t, err)

		r := newRequest(sess.Token)
		r.Header.Set("X-CSRF-Token", value)
		ok, err := env.manager.ValidateCSRF(ctx, r, sess)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("forged token is rejected and recorded", func(t *testing.T) {
		r := newRequest(sess.Token)
		r.Header.Set("X-CSRF-Token", "forged")
		ok, err := env.manager.ValidateCSRF(ctx, r, sess)
		require.NoError(t, err)
		assert.False(t, ok)
		require.NotEmpty(t, env.events.EventsOfType(secevent.TypeCSRFRejected))
	})
}

func TestManager_SetGetValue(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	require.NoError(t, env.manager.Set(ctx, w, newRequest(""), "locale", "de"))
	token := sessionCookie(t, w)

	v, ok := env.manager.GetValue(ctx, newRequest(token), "locale")
	require.True(t, ok)
	assert.Equal(t, "de", v)

	_, ok = env.manager.GetValue(ctx, newRequest(token), "missing")
	assert.False(t, ok)
}

func TestManager_Destroy(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	sess, err := env.manager.Ensure(ctx, w, newRequest(""))
	require.NoError(t, err)

	w2 := httptest.NewRecorder()
	require.NoError(t, env.manager.Destroy(ctx, w2, newRequest(sess.Token)))

	_, err = env.store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	require.Len(t, env.events.EventsOfType(secevent.TypeDestroyed), 1)

	// The clearing cookie is expired.
	cookies := w2.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestManager_RevokeUser(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	for range 2 {
		w := httptest.NewRecorder()
		_, err := env.manager.Authenticate(ctx, w, newRequest(""), userID, session.RoleUser)
		require.NoError(t, err)
	}

	require.NoError(t, env.manager.RevokeUser(ctx, userID))

	sessions, err := env.store.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
