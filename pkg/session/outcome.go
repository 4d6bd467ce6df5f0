package session

// Outcome is the enumerated result of the per-request verification
// pipeline. Callers branch on it instead of inspecting error values.
type Outcome int

const (
	// OutcomeContinue means the session is valid and the request proceeds.
	OutcomeContinue Outcome = iota

	// OutcomeDestroy means the session was destroyed (hijack suspicion,
	// expiry, or an unverifiable store); the caller must force
	// re-authentication.
	OutcomeDestroy

	// OutcomeReject means the request must be rejected without destroying
	// the session, e.g. a missing token or failed CSRF check.
	OutcomeReject
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDestroy:
		return "destroy"
	case OutcomeReject:
		return "reject"
	default:
		return "continue"
	}
}
