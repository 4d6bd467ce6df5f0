package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/sessionguard/pkg/clientip"
	"github.com/dmitrymomot/sessionguard/pkg/csrf"
	"github.com/dmitrymomot/sessionguard/pkg/fingerprint"
	"github.com/dmitrymomot/sessionguard/pkg/risk"
	"github.com/dmitrymomot/sessionguard/pkg/secevent"
)

// FingerprintFunc generates a client fingerprint from the request.
type FingerprintFunc func(r *http.Request) string

// SuspicionFunc is an external lookup flagging suspicious activity for the
// request, e.g. repeated failed authentications from its IP.
type SuspicionFunc func(r *http.Request) bool

// LocationFunc is an optional geolocation verdict for the request. A nil
// result means the signal is unavailable and contributes nothing to the
// risk score.
type LocationFunc func(r *http.Request) *bool

// Manager runs the per-request session security pipeline: fingerprint
// validation, risk scoring, adaptive identifier regeneration, CSRF token
// lifecycle, and concurrency capping for privileged principals.
type Manager struct {
	store      Store
	transport  Transport
	config     Config
	policy     *Policy
	scorer     *risk.Scorer
	csrfMgr    *csrf.Manager
	recorder   *secevent.Recorder
	supervisor *Supervisor

	fingerprintFunc FingerprintFunc
	suspicionFunc   SuspicionFunc
	locationFunc    LocationFunc

	logger *slog.Logger

	locks      keyedMutex
	regenGroup singleflight.Group

	// recentRegens maps a retired token to its replacement for the guard
	// window, so a request racing a just-finished regeneration observes the
	// new identifier instead of a dead one.
	recentRegens sync.Map // string -> regenRecord
}

type regenRecord struct {
	session *Session
	at      time.Time
}

// New creates a session security manager with the given options.
func New(opts ...Option) *Manager {
	m := &Manager{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = NewMemoryStore(m.config.CleanupInterval)
	}
	if m.transport == nil {
		m.transport = NewCookieTransport(m.config.CookieName, m.config.SecureCookies)
	}
	if m.recorder == nil {
		m.recorder = secevent.NewRecorder(secevent.NewMemoryStorage())
	}
	if m.scorer == nil {
		m.scorer = risk.NewScorer(risk.WithBusinessHours(m.config.BusinessHoursStart, m.config.BusinessHoursEnd))
	}
	if m.csrfMgr == nil {
		m.csrfMgr = csrf.New(csrf.WithTTL(m.config.CSRFTokenTTL), csrf.WithRotateOnUse(m.config.CSRFRotateOnUse))
	}
	if m.fingerprintFunc == nil {
		m.fingerprintFunc = fingerprint.Generate
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.policy = NewPolicy(m.config)
	m.supervisor = NewSupervisor(m.store, m.recorder, m.config)

	return m
}

// Config returns the manager's effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Supervisor returns the concurrency supervisor, exposed for callers that
// admit sessions created outside this manager.
func (m *Manager) Supervisor() *Supervisor {
	return m.supervisor
}

// Verify runs the security pipeline for an inbound request and returns the
// session alongside an enumerated outcome:
//
//   - OutcomeContinue: the session is valid (possibly under a freshly
//     rotated identifier, already written to the transport).
//   - OutcomeDestroy: the session was destroyed: fingerprint mismatch,
//     drift threshold breach, expiry, or an unverifiable store (fail
//     closed). The caller must force re-authentication.
//   - OutcomeReject: no usable session was presented; nothing was destroyed.
func (m *Manager) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request, opts ...VerifyOption) (*Session, Outcome, error) {
	vo := applyVerifyOptions(opts)

	token, err := m.transport.GetToken(r)
	if err != nil || token == "" {
		return nil, OutcomeReject, ErrSessionNotFound
	}

	// The fetch-validate-update below is a per-session critical section:
	// the first-use fingerprint bind and the drift counters are lost
	// updates without it, and two unbound racers would both pass the
	// fatal check.
	unlock := m.locks.Lock(token)
	defer unlock()

	sess, err := m.getWithTimeout(ctx, token)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		// A parallel request may have just rotated this identifier; hand the
		// caller the replacement instead of bouncing them to login.
		if replacement, ok := m.recentReplacement(token); ok {
			sess = replacement
			if terr := m.transport.SetToken(w, sess.Token, m.idleTimeout(sess)); terr != nil {
				return nil, OutcomeReject, terr
			}
			return sess, OutcomeContinue, nil
		}
		_ = m.transport.ClearToken(w)
		return nil, OutcomeReject, ErrSessionNotFound
	case errors.Is(err, ErrSessionExpired):
		_ = m.transport.ClearToken(w)
		m.recorder.Record(ctx, secevent.TypeDestroyed,
			secevent.WithSessionID(token),
			secevent.WithIP(clientip.GetIP(r)),
			secevent.WithDescription("session expired"),
		)
		return nil, OutcomeDestroy, ErrSessionExpired
	case err != nil:
		// Unverifiable store: fail closed rather than trusting the token.
		m.failClosed(ctx, w, token, clientip.GetIP(r), err)
		return nil, OutcomeDestroy, errors.Join(ErrStoreUnavailable, err)
	}

	now := time.Now()
	currentIP := clientip.GetIP(r)
	currentUA := r.UserAgent()

	// Fingerprint check is fatal on mismatch regardless of any other
	// signal; binding happens only on the first request after creation.
	mutated := false
	fp := m.fingerprintFunc(r)
	if sess.Fingerprint == "" {
		sess.Fingerprint = fp
		mutated = true
	} else if subtle.ConstantTimeCompare([]byte(fp), []byte(sess.Fingerprint)) != 1 {
		m.destroySuspected(ctx, w, sess, currentIP, "fingerprint mismatch")
		return nil, OutcomeDestroy, ErrHijackSuspected
	}

	// Score before the drift counters absorb the new values.
	score := m.scorer.Score(risk.Signals{
		StoredIP:            sess.IP,
		CurrentIP:           currentIP,
		StoredUserAgent:     sess.UserAgent,
		CurrentUserAgent:    currentUA,
		PrivilegeEscalation: vo.privilegeChange,
		SuspiciousActivity:  vo.suspicious || (m.suspicionFunc != nil && m.suspicionFunc(r)),
		UnfamiliarLocation:  vo.locationOr(m.locationFunc, r),
		Now:                 now,
		LastRequestAt:       sess.LastRequestAt,
	})

	if sess.IP != "" && currentIP != "" && sess.IP != currentIP {
		sess.IPChangeCount++
		mutated = true
	}
	if sess.UserAgent != "" && currentUA != "" && sess.UserAgent != currentUA {
		sess.UserAgentChangeCount++
		mutated = true
	}
	sess.IP = currentIP
	sess.UserAgent = currentUA

	if m.driftExceeded(sess) {
		m.destroySuspected(ctx, w, sess, currentIP, "client drift threshold exceeded")
		return nil, OutcomeDestroy, ErrHijackSuspected
	}

	lastActivity := sess.LastActivityAt
	sess.LastRequestAt = now
	sess.LastActivityAt = now

	// Full rewrites are reserved for material changes; plain activity is
	// persisted at most once per ActivityUpdateThreshold.
	switch {
	case mutated:
		if err := m.updateWithTimeout(ctx, sess); err != nil {
			m.failClosed(ctx, w, sess.Token, currentIP, err)
			return nil, OutcomeDestroy, errors.Join(ErrStoreUnavailable, err)
		}
	case now.Sub(lastActivity) >= m.config.ActivityUpdateThreshold:
		if err := m.updateActivityWithTimeout(ctx, sess.Token, now); err != nil {
			m.failClosed(ctx, w, sess.Token, currentIP, err)
			return nil, OutcomeDestroy, errors.Join(ErrStoreUnavailable, err)
		}
	}

	decision := m.policy.Decide(score, sess.Role, sess.SinceRegeneration(now), vo.privilegeChange, sess.RegenerationsThisHour(now))
	switch decision {
	case DecisionRateLimited:
		m.recorder.Record(ctx, secevent.TypeRateLimited,
			secevent.WithUserID(principalID(sess)),
			secevent.WithSessionID(sess.ID.String()),
			secevent.WithIP(currentIP),
			secevent.WithDescription("regeneration ceiling of %d per hour reached", m.config.MaxRegenerationsPerHour),
		)

	case DecisionRegenerate:
		replacement, err := m.regenerate(ctx, sess, score)
		if err != nil {
			// The old identifier stays valid; the policy retries on the
			// next qualifying request.
			m.logger.ErrorContext(ctx, "session regeneration failed",
				"error", err,
				"session_id", sess.ID.String(),
			)
			break
		}
		sess = replacement
		if err := m.transport.SetToken(w, sess.Token, m.idleTimeout(sess)); err != nil {
			return sess, OutcomeContinue, err
		}
	}

	return sess, OutcomeContinue, nil
}

// Ensure returns the verified session for the request, creating a fresh
// anonymous one when none exists. Destroyed sessions are not resurrected.
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	sess, outcome, err := m.Verify(ctx, w, r)
	if err == nil && outcome == OutcomeContinue {
		return sess, nil
	}
	if outcome == OutcomeDestroy && !errors.Is(err, ErrSessionExpired) {
		return nil, err
	}

	sess, err = m.createSession(ctx, nil, RoleAnonymous, r)
	if err != nil {
		return nil, err
	}

	if err := m.transport.SetToken(w, sess.Token, m.idleTimeout(sess)); err != nil {
		sctx, cancel := m.storeCtx(ctx)
		defer cancel()
		_ = m.store.Delete(sctx, sess.Token)
		return nil, err
	}

	return sess, nil
}

// Get retrieves the session for the request without running the security
// pipeline or mutating any state.
func (m *Manager) Get(ctx context.Context, r *http.Request) (*Session, error) {
	token, err := m.transport.GetToken(r)
	if err != nil {
		return nil, err
	}
	return m.getWithTimeout(ctx, token)
}

// Authenticate issues a fresh authenticated session for the principal,
// retiring any session the request presented, and admits it against the
// role's concurrency cap.
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request, userID uuid.UUID, role Role) (*Session, error) {
	if role == "" || role == RoleAnonymous {
		role = RoleUser
	}

	// The pre-auth token must not survive login (session fixation).
	if old, err := m.transport.GetToken(r); err == nil && old != "" {
		sctx, cancel := m.storeCtx(ctx)
		_ = m.store.Delete(sctx, old)
		cancel()
	}

	sess, err := m.createSession(ctx, &userID, role, r)
	if err != nil {
		return nil, err
	}

	sctx, cancel := m.storeCtx(ctx)
	defer cancel()
	if _, err := m.supervisor.Admit(sctx, userID, role, sess.Token); err != nil {
		return nil, err
	}

	if err := m.transport.SetToken(w, sess.Token, m.idleTimeout(sess)); err != nil {
		_ = m.store.Delete(sctx, sess.Token)
		return nil, err
	}

	return sess, nil
}

// Destroy deletes the request's session and clears the transport.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	token, err := m.transport.GetToken(r)
	if err == nil && token != "" {
		sctx, cancel := m.storeCtx(ctx)
		defer cancel()

		if sess, err := m.store.Get(sctx, token); err == nil {
			m.recorder.Record(ctx, secevent.TypeDestroyed,
				secevent.WithUserID(principalID(sess)),
				secevent.WithSessionID(sess.ID.String()),
				secevent.WithIP(clientip.GetIP(r)),
				secevent.WithDescription("explicit logout"),
			)
		}
		_ = m.store.Delete(sctx, token)
	}

	return m.transport.ClearToken(w)
}

// Set stores a value in the session payload and persists it, creating a
// session when the request carries none.
func (m *Manager) Set(ctx context.Context, w http.ResponseWriter, r *http.Request, key string, value any) error {
	sess, err := m.Ensure(ctx, w, r)
	if err != nil {
		return err
	}

	sess.Set(key, value)
	return m.updateWithTimeout(ctx, sess)
}

// GetValue retrieves a value from the session payload.
func (m *Manager) GetValue(ctx context.Context, r *http.Request, key string) (any, bool) {
	sess, err := m.Get(ctx, r)
	if err != nil {
		return nil, false
	}

	return sess.Get(key)
}

// RevokeUser destroys every session belonging to the principal.
func (m *Manager) RevokeUser(ctx context.Context, userID uuid.UUID) error {
	sctx, cancel := m.storeCtx(ctx)
	defer cancel()

	if err := m.store.DeleteByUser(sctx, userID); err != nil {
		return err
	}

	m.recorder.Record(ctx, secevent.TypeDestroyed,
		secevent.WithUserID(userID.String()),
		secevent.WithDescription("all sessions revoked"),
	)
	return nil
}

// CSRFToken returns the session's anti-forgery token value, minting one
// lazily when absent or expired and persisting the change.
func (m *Manager) CSRFToken(ctx context.Context, sess *Session) (string, error) {
	unlock := m.locks.Lock(sess.Token)
	defer unlock()

	token, err := m.csrfMgr.GetOrCreate(sess.CSRF)
	if err != nil {
		return "", err
	}

	if token != sess.CSRF {
		sess.CSRF = token
		if err := m.updateWithTimeout(ctx, sess); err != nil {
			return "", errors.Join(ErrStoreUnavailable, err)
		}
	}

	return token.Value, nil
}

// ValidateCSRF checks the token presented by a state-changing request. A
// failed check records a csrf_rejected event and returns false; the caller
// must reject the surrounding request. With rotate-on-use enabled, success
// persists the replacement token.
func (m *Manager) ValidateCSRF(ctx context.Context, r *http.Request, sess *Session) (bool, error) {
	unlock := m.locks.Lock(sess.Token)
	defer unlock()

	presented := m.csrfMgr.FromRequest(r)
	ok, next, err := m.csrfMgr.Validate(sess.CSRF, presented)
	if !ok {
		m.recorder.Record(ctx, secevent.TypeCSRFRejected,
			secevent.WithUserID(principalID(sess)),
			secevent.WithSessionID(sess.ID.String()),
			secevent.WithIP(clientip.GetIP(r)),
			secevent.WithDescription("csrf token missing, expired, or mismatched"),
		)
		return false, nil
	}
	if err != nil {
		return true, err
	}

	if next != sess.CSRF {
		sess.CSRF = next
		if err := m.updateWithTimeout(ctx, sess); err != nil {
			return true, errors.Join(ErrStoreUnavailable, err)
		}
	}
	return true, nil
}

// regenerate rotates the session identifier. Attempts for the same old
// token are single-flighted, and a rotation finished within the guard
// window satisfies later attempts with the identifier it produced.
func (m *Manager) regenerate(ctx context.Context, sess *Session, score int) (*Session, error) {
	oldToken := sess.Token

	v, err, _ := m.regenGroup.Do(oldToken, func() (any, error) {
		sctx, cancel := m.storeCtx(ctx)
		defer cancel()

		// Re-read inside the flight: a request that lost the race sees the
		// store state left by the winner.
		current, err := m.store.Get(sctx, oldToken)
		if errors.Is(err, ErrSessionNotFound) {
			if replacement, ok := m.recentReplacement(oldToken); ok {
				return replacement, nil
			}
			return nil, errors.Join(ErrRegenerationFailed, err)
		}
		if err != nil {
			return nil, errors.Join(ErrRegenerationFailed, err)
		}

		now := time.Now()
		if now.Sub(current.LastRegeneratedAt) < m.config.RegenerationGuardWindow {
			return current, nil
		}

		token, err := generateToken()
		if err != nil {
			return nil, errors.Join(ErrRegenerationFailed, err)
		}

		// Build the replacement fully before publishing it; Replace is
		// all-or-nothing, so a failure leaves the old record usable.
		replacement := m.buildReplacement(current, token, now)
		if err := m.store.Replace(sctx, oldToken, replacement); err != nil {
			return nil, errors.Join(ErrRegenerationFailed, err)
		}

		m.rememberReplacement(oldToken, replacement)
		m.recorder.Record(ctx, secevent.TypeRegenerated,
			secevent.WithUserID(principalID(replacement)),
			secevent.WithSessionID(replacement.ID.String()),
			secevent.WithIP(replacement.IP),
			secevent.WithDescription("session id regenerated (risk score %d, rotation %d)", score, replacement.RegenerationCount),
		)

		return replacement, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// buildReplacement snapshots the whitelisted payload of the old record into
// a fresh one under the new token. Principal, role, issued-at, CSRF token,
// fingerprint, drift counters, and the configured data keys survive;
// everything else is dropped with the old identifier.
func (m *Manager) buildReplacement(old *Session, token string, now time.Time) *Session {
	idle, maxLifetime := m.config.GetTimeouts(old.IsAuthenticated())

	replacement := &Session{
		ID:                   old.ID,
		Token:                token,
		UserID:               old.UserID,
		Role:                 old.Role,
		Fingerprint:          old.Fingerprint,
		IP:                   old.IP,
		UserAgent:            old.UserAgent,
		IPChangeCount:        old.IPChangeCount,
		UserAgentChangeCount: old.UserAgentChangeCount,
		Data:                 make(map[string]any),
		CSRF:                 old.CSRF,
		CreatedAt:            old.CreatedAt,
		LastActivityAt:       now,
		LastRequestAt:        now,
		ExpiresAt:            calculateExpiry(old.CreatedAt, now, idle, maxLifetime),
		RegenerationCount:    old.RegenerationCount,
		RegenBucket:          old.RegenBucket,
		RegenBucketCount:     old.RegenBucketCount,
	}

	for _, key := range m.config.PreservedKeys {
		if v, ok := old.Data[key]; ok {
			replacement.Data[key] = v
		}
	}

	replacement.countRegeneration(now)
	return replacement
}

// createSession creates and stores a new session bound to the request's
// fingerprint and client signals.
func (m *Manager) createSession(ctx context.Context, userID *uuid.UUID, role Role, r *http.Request) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	idle, maxLifetime := m.config.GetTimeouts(userID != nil)
	now := time.Now()
	ttl := calculateExpiry(now, now, idle, maxLifetime).Sub(now)

	sess := NewSession(token, userID, role, m.fingerprintFunc(r), clientip.GetIP(r), r.UserAgent(), ttl)

	sctx, cancel := m.storeCtx(ctx)
	defer cancel()
	if err := m.store.Create(sctx, sess); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	return sess, nil
}

// destroySuspected tears down a session on hijack suspicion and records the
// hijack_detected event. Destruction is best effort: an unreachable store
// cannot keep the token alive longer than its own timeout anyway.
func (m *Manager) destroySuspected(ctx context.Context, w http.ResponseWriter, sess *Session, ip, reason string) {
	sctx, cancel := m.storeCtx(ctx)
	defer cancel()

	_ = m.store.Delete(sctx, sess.Token)
	_ = m.transport.ClearToken(w)

	m.recorder.Record(ctx, secevent.TypeHijackDetected,
		secevent.WithUserID(principalID(sess)),
		secevent.WithSessionID(sess.ID.String()),
		secevent.WithIP(ip),
		secevent.WithDescription("%s", reason),
	)
}

// failClosed treats an unverifiable store as hijack suspicion: the token is
// retired rather than trusted.
func (m *Manager) failClosed(ctx context.Context, w http.ResponseWriter, token, ip string, cause error) {
	sctx, cancel := m.storeCtx(ctx)
	defer cancel()

	_ = m.store.Delete(sctx, token)
	_ = m.transport.ClearToken(w)

	m.recorder.Record(ctx, secevent.TypeHijackDetected,
		secevent.WithIP(ip),
		secevent.WithDescription("session unverifiable, failing closed: %v", cause),
	)
}

func (m *Manager) driftExceeded(sess *Session) bool {
	if t := m.config.IPChangeThreshold; t > 0 && sess.IPChangeCount > t {
		return true
	}
	if t := m.config.UserAgentChangeThreshold; t > 0 && sess.UserAgentChangeCount > t {
		return true
	}
	return false
}

func (m *Manager) rememberReplacement(oldToken string, replacement *Session) {
	now := time.Now()
	m.recentRegens.Store(oldToken, regenRecord{session: replacement, at: now})

	// Lazy pruning keeps the map bounded without a background sweeper.
	m.recentRegens.Range(func(key, value any) bool {
		if rec, ok := value.(regenRecord); ok && now.Sub(rec.at) > m.config.RegenerationGuardWindow {
			m.recentRegens.Delete(key)
		}
		return true
	})
}

func (m *Manager) recentReplacement(oldToken string) (*Session, bool) {
	value, ok := m.recentRegens.Load(oldToken)
	if !ok {
		return nil, false
	}
	rec, ok := value.(regenRecord)
	if !ok || time.Since(rec.at) > m.config.RegenerationGuardWindow {
		return nil, false
	}
	return rec.session, true
}

func (m *Manager) getWithTimeout(ctx context.Context, token string) (*Session, error) {
	sctx, cancel := m.storeCtx(ctx)
	defer cancel()
	return m.store.Get(sctx, token)
}

func (m *Manager) updateActivityWithTimeout(ctx context.Context, token string, at time.Time) error {
	sctx, cancel := m.storeCtx(ctx)
	defer cancel()
	return m.store.UpdateActivity(sctx, token, at)
}

func (m *Manager) updateWithTimeout(ctx context.Context, sess *Session) error {
	sctx, cancel := m.storeCtx(ctx)
	defer cancel()
	return m.store.Update(sctx, sess)
}

// storeCtx bounds a store operation so nothing in the pipeline can block
// indefinitely; on expiry the caller fails closed.
func (m *Manager) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.config.StoreTimeout)
}

func (m *Manager) idleTimeout(sess *Session) time.Duration {
	idle, _ := m.config.GetTimeouts(sess.IsAuthenticated())
	return idle
}

func principalID(sess *Session) string {
	if sess == nil || sess.UserID == nil {
		return ""
	}
	return sess.UserID.String()
}

// calculateExpiry returns the next expiry time (min of idle and max lifetime).
func calculateExpiry(createdAt, now time.Time, idle, maxLifetime time.Duration) time.Time {
	idleExpiry := now.Add(idle)
	maxExpiry := createdAt.Add(maxLifetime)

	if maxExpiry.Before(idleExpiry) {
		return maxExpiry
	}
	return idleExpiry
}

// generateToken creates a cryptographically secure token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
