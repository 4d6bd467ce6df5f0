// Package session protects authenticated browsing contexts against
// hijacking, over-concurrency, and stale-identifier replay.
//
// Every request flows through Manager.Verify, which chains four concerns:
//
//  1. Fingerprint validation: the client fingerprint bound at first use
//     must match on every later request; a mismatch destroys the session
//     and records a hijack_detected event. This is fatal and never retried.
//  2. Risk scoring: IP and user-agent drift, privilege escalation,
//     external suspicion lookups, off-hours access, geolocation, and
//     request bursts combine into a 0-20 score (pkg/risk).
//  3. Adaptive regeneration: the Policy maps (score, role, elapsed time,
//     hourly rotation count) to a decision. High-risk requests rotate the
//     identifier immediately, admin sessions on a short schedule, everyone
//     else on a relaxed one; a per-hour ceiling converts runaway rotation
//     into rate_limited events instead of store write storms. The swap is
//     atomic: the replacement record is fully built before the old token
//     is retired, concurrent attempts are single-flighted, and a failed
//     swap leaves the old session valid.
//  4. Drift accounting: IP/user-agent change counters accumulate for the
//     session's lifetime; breaching a configured threshold is treated the
//     same as a fingerprint mismatch.
//
// Callers branch on the returned Outcome (Continue, Destroy, Reject)
// rather than inspecting errors.
//
// Session creation for authenticated principals goes through
// Manager.Authenticate, which admits the new session against a
// per-role concurrency cap: privileged principals exceeding the cap have
// their oldest session evicted (cap_evicted event).
//
// CSRF tokens ride on the session record; Manager.CSRFToken and
// Manager.ValidateCSRF drive their lifecycle (pkg/csrf), and the WithCSRF
// middleware rejects state-changing requests with missing or stale tokens.
//
// Storage is pluggable behind the Store interface: MemoryStore for tests
// and single-process apps, RedisStore for shared deployments. All store
// operations are bounded by Config.StoreTimeout; an unverifiable store
// fails closed.
//
// Minimal wiring:
//
//	recorder := secevent.NewRecorder(secevent.NewWriterStorage(auditLog))
//	manager := session.New(
//	    session.WithConfig(cfg),
//	    session.WithRecorder(recorder),
//	)
//
//	mux.Handle("/admin/", manager.RequireRole(session.RoleAdmin,
//	    manager.WithCSRF(adminHandler)))
package session
