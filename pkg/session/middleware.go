package session

import (
	"errors"
	"net/http"
)

// stateChangingMethods are the HTTP methods that require a CSRF check.
var stateChangingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Secure runs the verification pipeline for every request. A destroyed or
// missing session yields 401; a valid one (possibly under a freshly rotated
// identifier) is injected into the request context.
func (m *Manager) Secure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, outcome, _ := m.Verify(r.Context(), w, r)
		if outcome != OutcomeContinue {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// EnsureSession guarantees a session exists, creating an anonymous one when
// the request carries none.
func (m *Manager) EnsureSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Ensure(r.Context(), w, r)
		if err != nil {
			if errors.Is(err, ErrHijackSuspected) || errors.Is(err, ErrStoreUnavailable) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Error(w, "Session error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireAuth rejects requests without an authenticated session.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return m.Secure(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := MustFromContext(r.Context())
		if !sess.IsAuthenticated() {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireRole rejects authenticated sessions below the given role.
func (m *Manager) RequireRole(role Role, next http.Handler) http.Handler {
	return m.Secure(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := MustFromContext(r.Context())
		if sess.Role != role {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// WithCSRF validates the anti-forgery token on state-changing requests.
// The session must already be in the request context (run after Secure or
// EnsureSession). Failed checks reject the request with 403.
func (m *Manager) WithCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !stateChangingMethods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		sess, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		valid, err := m.ValidateCSRF(r.Context(), r, sess)
		if err != nil || !valid {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
