package session

import "time"

// Risk score thresholds for the regeneration schedule.
const (
	// scoreImmediate forces regeneration regardless of elapsed time.
	scoreImmediate = 10
	// scoreSuspicious shortens the interval to SuspiciousInterval.
	scoreSuspicious = 6
)

// Decision is the outcome of a regeneration policy evaluation.
type Decision int

const (
	// DecisionSkip means the required interval has not elapsed.
	DecisionSkip Decision = iota
	// DecisionRegenerate means the identifier must be rotated now.
	DecisionRegenerate
	// DecisionRateLimited means regeneration is due but the hourly ceiling
	// was hit; the identifier stays and a rate_limited event is recorded.
	DecisionRateLimited
)

func (d Decision) String() string {
	switch d {
	case DecisionRegenerate:
		return "regenerate"
	case DecisionRateLimited:
		return "rate_limited"
	default:
		return "skip"
	}
}

// Policy decides when a session identifier should be rotated. It maps
// (risk score, role, elapsed time, hourly regeneration count) to a Decision,
// enforcing a per-hour regeneration ceiling so that triggered rotation can
// never be weaponised into a write storm against the store.
type Policy struct {
	suspiciousInterval      time.Duration
	adminInterval           time.Duration
	privilegeChangeInterval time.Duration
	normalInterval          time.Duration
	maxPerHour              int
}

// NewPolicy creates a policy from the configured intervals.
func NewPolicy(cfg Config) *Policy {
	return &Policy{
		suspiciousInterval:      cfg.SuspiciousInterval,
		adminInterval:           cfg.AdminInterval,
		privilegeChangeInterval: cfg.PrivilegeChangeInterval,
		normalInterval:          cfg.NormalInterval,
		maxPerHour:              cfg.MaxRegenerationsPerHour,
	}
}

// Decide evaluates whether the session identifier should rotate now.
//
// Interval selection, in priority order: score >= 10 regenerates
// immediately; score >= 6 uses the suspicious interval; admin sessions use
// the admin interval; an explicit privilege-change flag uses its own
// shortened interval; everything else uses the normal interval. The hourly
// ceiling applies last and converts a due regeneration into
// DecisionRateLimited rather than blocking the request.
func (p *Policy) Decide(score int, role Role, elapsed time.Duration, privilegeChange bool, hourlyCount int) Decision {
	var required time.Duration
	switch {
	case score >= scoreImmediate:
		required = 0
	case score >= scoreSuspicious:
		required = p.suspiciousInterval
	case role == RoleAdmin:
		required = p.adminInterval
	case privilegeChange:
		required = p.privilegeChangeInterval
	default:
		required = p.normalInterval
	}

	if elapsed < required {
		return DecisionSkip
	}

	if p.maxPerHour > 0 && hourlyCount >= p.maxPerHour {
		return DecisionRateLimited
	}

	return DecisionRegenerate
}
