package secevent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Storage persists events. Implementations must treat the log as
// append-only.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// Recorder appends security events to a Storage backend. Persistence
// failures never propagate to the caller: the event is written to a local
// fallback logger instead, so a broken sink cannot take down the request
// path it is meant to audit.
type Recorder struct {
	storage  Storage
	fallback *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithFallbackLogger sets the logger used when the storage backend fails.
func WithFallbackLogger(log *slog.Logger) Option {
	return func(r *Recorder) {
		if log != nil {
			r.fallback = log
		}
	}
}

// NewRecorder creates a recorder backed by the given storage.
func NewRecorder(storage Storage, opts ...Option) *Recorder {
	if storage == nil {
		panic("secevent: storage cannot be nil")
	}

	r := &Recorder{
		storage:  storage,
		fallback: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EventOption decorates an event during recording.
type EventOption func(*Event)

// WithUserID attaches the principal id.
func WithUserID(userID string) EventOption {
	return func(e *Event) {
		e.UserID = userID
	}
}

// WithSessionID attaches the session id.
func WithSessionID(sessionID string) EventOption {
	return func(e *Event) {
		e.SessionID = sessionID
	}
}

// WithIP attaches the observed client address.
func WithIP(ip string) EventOption {
	return func(e *Event) {
		e.IP = ip
	}
}

// WithDescription attaches a free-text description.
func WithDescription(format string, args ...any) EventOption {
	return func(e *Event) {
		if len(args) == 0 {
			e.Description = format
			return
		}
		e.Description = fmt.Sprintf(format, args...)
	}
}

// Record appends one event. It never returns an error and never panics on
// the caller's happy path; storage failures degrade to the fallback logger.
func (r *Recorder) Record(ctx context.Context, typ EventType, opts ...EventOption) {
	event := Event{
		ID:        uuid.New().String(),
		Type:      typ,
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		r.logFallback(event, err)
		return
	}

	if err := r.storage.Store(ctx, event); err != nil {
		r.logFallback(event, err)
	}
}

func (r *Recorder) logFallback(event Event, err error) {
	r.fallback.Error("security event sink unavailable",
		slog.Any("error", err),
		slog.String("event_type", string(event.Type)),
		slog.String("user_id", event.UserID),
		slog.String("session_id", event.SessionID),
		slog.String("ip", event.IP),
		slog.String("description", event.Description),
	)
}
