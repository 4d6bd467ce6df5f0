// Package fingerprint derives a deterministic client fingerprint from an
// incoming HTTP request, used to detect session reuse from a different
// client (session hijacking).
//
// The fingerprint combines relatively stable request attributes (the
// User-Agent string, Accept* headers, and a canonicalised ordering of
// common header names) and feeds them into a SHA-256 hash. The first
// 16 bytes are returned as a 32-character hexadecimal string suitable
// for binding to a session record.
//
// The client IP address is intentionally NOT part of the fingerprint:
// legitimate clients change addresses (mobile networks, VPNs, corporate
// egress pools), so address drift is scored as a risk signal elsewhere
// rather than treated as proof of hijacking.
//
// # Usage
//
// Basic generation:
//
//	fp := fingerprint.Generate(r) // *http.Request
//
// Validating against a stored value (constant-time):
//
//	if !fingerprint.Validate(r, session.Fingerprint) {
//	    // treat as hijack suspicion: destroy the session
//	}
//
// Using the provided middleware:
//
//	http.Handle("/", fingerprint.Middleware(yourHandler))
//
// Within handlers the value can be retrieved from the context:
//
//	fp := fingerprint.GetFingerprintFromContext(r.Context())
//
// All functions are side-effect-free and never return errors; hashing is
// deterministic and fast enough for per-request use.
package fingerprint
