package session

import "errors"

var (
	// ErrSessionNotFound indicates no session was found for the token
	ErrSessionNotFound = errors.New("session.not_found")

	// ErrSessionExpired indicates the session has expired
	ErrSessionExpired = errors.New("session.expired")

	// ErrInvalidSession indicates a malformed or nil session record
	ErrInvalidSession = errors.New("session.invalid")

	// ErrHijackSuspected indicates a fingerprint mismatch or drift threshold breach
	ErrHijackSuspected = errors.New("session.hijack_suspected")

	// ErrRegenerationFailed indicates the identifier swap could not complete;
	// the old session remains valid
	ErrRegenerationFailed = errors.New("session.regeneration_failed")

	// ErrStoreUnavailable indicates a store operation failed or timed out;
	// callers must fail closed
	ErrStoreUnavailable = errors.New("session.store_unavailable")

	// ErrTokenGeneration indicates token generation failed
	ErrTokenGeneration = errors.New("session.token_generation_failed")

	// ErrConflict indicates the replacement token already exists in the store
	ErrConflict = errors.New("session.token_conflict")

	// ErrNoTransport indicates no transport is configured
	ErrNoTransport = errors.New("session.no_transport")
)
