package risk

import "time"

// Factor weights. Scores are additive and clamped to MaxScore.
const (
	WeightIPChange            = 3
	WeightUserAgentChange     = 4
	WeightPrivilegeEscalation = 5
	WeightSuspiciousActivity  = 3
	WeightOffHours            = 2
	WeightUnfamiliarLocation  = 2
	WeightBurst               = 2

	// MaxScore is the upper bound of any computed score.
	MaxScore = 20
)

// Signals carries the per-request inputs to the scorer. Stored values come
// from the session record, current values from the inbound request. Optional
// external signals (geolocation, failed-auth lookups) default to "no signal"
// and contribute zero when absent.
type Signals struct {
	StoredIP  string
	CurrentIP string

	StoredUserAgent  string
	CurrentUserAgent string

	// PrivilegeEscalation is set by the caller when the request elevates the
	// principal's privileges (role change, sudo-mode entry).
	PrivilegeEscalation bool

	// SuspiciousActivity reflects an external lookup, e.g. repeated failed
	// authentication attempts from the current IP.
	SuspiciousActivity bool

	// UnfamiliarLocation is an optional geolocation verdict. A nil pointer
	// means the signal is unavailable and contributes nothing.
	UnfamiliarLocation *bool

	// Now is the evaluation time; zero means time.Now().
	Now time.Time

	// LastRequestAt is the previous request timestamp on this session, used
	// for the burst check. Zero means no previous request is known.
	LastRequestAt time.Time
}

// Scorer computes an integer risk score in [0, MaxScore] from request and
// session signals. Scoring is deterministic and side-effect-free.
type Scorer struct {
	businessStart int
	businessEnd   int
	burstWindow   time.Duration
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithBusinessHours sets the inclusive-start, exclusive-end local-hour window
// considered normal working hours. Access outside the window adds
// WeightOffHours to the score.
func WithBusinessHours(startHour, endHour int) Option {
	return func(s *Scorer) {
		s.businessStart = startHour
		s.businessEnd = endHour
	}
}

// WithBurstWindow sets the minimum gap between requests below which the
// burst factor triggers.
func WithBurstWindow(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.burstWindow = d
		}
	}
}

// NewScorer creates a scorer with a 08:00-18:00 business window and a one
// second burst window unless overridden.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		businessStart: 8,
		businessEnd:   18,
		burstWindow:   time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score evaluates the signals and returns a value in [0, MaxScore].
func (s *Scorer) Score(sig Signals) int {
	now := sig.Now
	if now.IsZero() {
		now = time.Now()
	}

	score := 0

	if sig.StoredIP != "" && sig.CurrentIP != "" && sig.StoredIP != sig.CurrentIP {
		score += WeightIPChange
	}

	if sig.StoredUserAgent != "" && sig.CurrentUserAgent != "" && sig.StoredUserAgent != sig.CurrentUserAgent {
		score += WeightUserAgentChange
	}

	if sig.PrivilegeEscalation {
		score += WeightPrivilegeEscalation
	}

	if sig.SuspiciousActivity {
		score += WeightSuspiciousActivity
	}

	if hour := now.Hour(); hour < s.businessStart || hour >= s.businessEnd {
		score += WeightOffHours
	}

	if sig.UnfamiliarLocation != nil && *sig.UnfamiliarLocation {
		score += WeightUnfamiliarLocation
	}

	if !sig.LastRequestAt.IsZero() && now.Sub(sig.LastRequestAt) < s.burstWindow {
		score += WeightBurst
	}

	return min(score, MaxScore)
}
