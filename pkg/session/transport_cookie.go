package session

import (
	"net/http"
	"time"
)

// CookieTransport carries the session token in a browser cookie. The cookie
// is HttpOnly with SameSite=Strict and no fixed expiry, so it is cleared at
// browser close; "remember me" semantics are a collaborator's concern.
type CookieTransport struct {
	cookieName    string
	secureCookies bool
}

// NewCookieTransport creates a cookie-based transport. The Secure flag is
// set when secureCookies is enabled.
func NewCookieTransport(cookieName string, secureCookies bool) *CookieTransport {
	return &CookieTransport{
		cookieName:    cookieName,
		secureCookies: secureCookies,
	}
}

// GetToken extracts the session token from the cookie.
func (t *CookieTransport) GetToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(t.cookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrSessionNotFound
	}
	return cookie.Value, nil
}

// SetToken stores the session token in a cookie. The ttl parameter is
// ignored for cookies: the token is session-scoped client-side and expiry
// is enforced server-side by the store.
func (t *CookieTransport) SetToken(w http.ResponseWriter, token string, ttl time.Duration) error {
	http.SetCookie(w, &http.Cookie{
		Name:     t.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   t.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// ClearToken removes the session cookie.
func (t *CookieTransport) ClearToken(w http.ResponseWriter) error {
	http.SetCookie(w, &http.Cookie{
		Name:     t.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   t.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}
