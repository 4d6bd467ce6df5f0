// Package csrf manages per-session anti-forgery tokens for state-changing
// requests.
//
// Each session carries at most one valid token. Tokens are minted lazily on
// first access, expire after a fixed TTL (one hour by default), and compare
// in constant time. With rotate-on-use enabled, a successful validation
// immediately mints a replacement so the spent token cannot be replayed on
// a resubmit.
//
// Presented tokens are accepted from a hidden form field, a custom header,
// or a query parameter, in that precedence order:
//
//	mgr := csrf.New(csrf.WithTTL(time.Hour), csrf.WithRotateOnUse(true))
//
//	token, err := mgr.GetOrCreate(sess.CSRF)
//	// render token.Value into the form
//
//	ok, next, err := mgr.Validate(sess.CSRF, mgr.FromRequest(r))
//	// on !ok the surrounding request must be rejected (HTTP 403)
//
// The package is storage-agnostic: it operates on Token values and leaves
// persistence to the session layer.
package csrf
