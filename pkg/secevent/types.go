package secevent

import (
	"fmt"
	"time"
)

// EventType classifies a security-relevant session transition.
type EventType string

const (
	TypeRegenerated    EventType = "regenerated"
	TypeHijackDetected EventType = "hijack_detected"
	TypeCapEvicted     EventType = "cap_evicted"
	TypeRateLimited    EventType = "rate_limited"
	TypeCSRFRejected   EventType = "csrf_rejected"
	TypeDestroyed      EventType = "destroyed"
)

// Event is a single immutable audit record. Events are append-only; nothing
// in this module mutates or deletes them once stored.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	UserID      string    `json:"user_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	IP          string    `json:"ip,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks that the event carries the required fields.
func (e *Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: type is required", ErrEventValidation)
	}
	return nil
}
