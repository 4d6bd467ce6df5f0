package session

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/sessionguard/pkg/csrf"
	"github.com/dmitrymomot/sessionguard/pkg/risk"
	"github.com/dmitrymomot/sessionguard/pkg/secevent"
)

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithStore sets a custom session store.
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithTransport sets a custom session transport.
func WithTransport(transport Transport) Option {
	return func(m *Manager) {
		m.transport = transport
	}
}

// WithConfig sets custom configuration.
func WithConfig(config Config) Option {
	return func(m *Manager) {
		m.config = config
	}
}

// WithLogger sets the logger used for pipeline diagnostics that are not
// security events, e.g. failed regeneration attempts.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = log
	}
}

// WithRecorder sets the security event recorder.
func WithRecorder(recorder *secevent.Recorder) Option {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// WithScorer sets a custom risk scorer.
func WithScorer(scorer *risk.Scorer) Option {
	return func(m *Manager) {
		m.scorer = scorer
	}
}

// WithCSRFManager sets a custom CSRF token manager.
func WithCSRFManager(mgr *csrf.Manager) Option {
	return func(m *Manager) {
		m.csrfMgr = mgr
	}
}

// WithFingerprint sets the fingerprint function.
func WithFingerprint(fn FingerprintFunc) Option {
	return func(m *Manager) {
		m.fingerprintFunc = fn
	}
}

// WithSuspicionLookup wires an external suspicious-activity lookup into the
// risk scorer, e.g. a failed-auth counter keyed by client IP.
func WithSuspicionLookup(fn SuspicionFunc) Option {
	return func(m *Manager) {
		m.suspicionFunc = fn
	}
}

// WithLocationLookup wires an optional geolocation verdict into the risk
// scorer. Returning nil means "no signal" and contributes nothing.
func WithLocationLookup(fn LocationFunc) Option {
	return func(m *Manager) {
		m.locationFunc = fn
	}
}

// verifyOptions carries per-request caller flags into the pipeline.
type verifyOptions struct {
	privilegeChange bool
	suspicious      bool
	location        *bool
}

// VerifyOption passes per-request context into Manager.Verify.
type VerifyOption func(*verifyOptions)

// WithPrivilegeChange flags the request as elevating the principal's
// privileges, shortening the regeneration interval and raising the risk
// score.
func WithPrivilegeChange() VerifyOption {
	return func(vo *verifyOptions) {
		vo.privilegeChange = true
	}
}

// WithSuspiciousActivity flags the request as suspicious based on a lookup
// the caller already performed.
func WithSuspiciousActivity() VerifyOption {
	return func(vo *verifyOptions) {
		vo.suspicious = true
	}
}

// WithUnfamiliarLocation supplies a geolocation verdict for this request,
// overriding any manager-level location lookup.
func WithUnfamiliarLocation(unfamiliar bool) VerifyOption {
	return func(vo *verifyOptions) {
		vo.location = &unfamiliar
	}
}

func applyVerifyOptions(opts []VerifyOption) verifyOptions {
	var vo verifyOptions
	for _, opt := range opts {
		opt(&vo)
	}
	return vo
}

// locationOr resolves the location signal: an explicit per-request verdict
// wins over the manager-level lookup; absent both, there is no signal.
func (vo verifyOptions) locationOr(fn LocationFunc, r *http.Request) *bool {
	if vo.location != nil {
		return vo.location
	}
	if fn != nil {
		return fn(r)
	}
	return nil
}
