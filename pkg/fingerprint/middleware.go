package fingerprint

import "net/http"

// Middleware computes the request fingerprint once and injects it into the
// request context so downstream handlers avoid re-hashing the headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp := Generate(r)
		ctx := SetFingerprintToContext(r.Context(), fp)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
