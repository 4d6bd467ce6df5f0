package fingerprint

import "context"

type fingerprintContextKey struct{}

// SetFingerprintToContext stores a fingerprint in the context.
func SetFingerprintToContext(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, fingerprintContextKey{}, fingerprint)
}

// GetFingerprintFromContext retrieves a fingerprint previously stored by
// the middleware; returns an empty string when absent.
func GetFingerprintFromContext(ctx context.Context) string {
	fingerprint, _ := ctx.Value(fingerprintContextKey{}).(string)
	return fingerprint
}
