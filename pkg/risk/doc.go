// Package risk implements an additive 0-20 heuristic estimating how likely
// the current request indicates a compromised or anomalous session.
//
// Each factor contributes a fixed weight when its trigger condition holds:
// IP drift, user-agent drift, caller-flagged privilege escalation, external
// suspicious-activity lookups, off-hours access, unfamiliar geolocation, and
// request bursts. The sum is clamped to 20.
//
// Optional signals (geolocation, failed-auth lookups) are modelled as
// explicitly absent values so a missing upstream service degrades the score
// rather than failing the call.
//
//	scorer := risk.NewScorer(risk.WithBusinessHours(9, 17))
//	score := scorer.Score(risk.Signals{
//	    StoredIP:  sess.IP,
//	    CurrentIP: clientip.GetIP(r),
//	})
//
// The score feeds the session regeneration policy: higher scores shorten the
// interval between session identifier rotations, and a score of 10 or more
// forces an immediate rotation.
package risk
