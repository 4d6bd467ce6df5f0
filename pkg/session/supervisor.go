package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionguard/pkg/secevent"
)

// Supervisor enforces the per-principal concurrency cap. Admissions for the
// same principal are serialized so two near-simultaneous logins cannot both
// slip under the cap.
type Supervisor struct {
	store    Store
	recorder *secevent.Recorder
	config   Config
	locks    keyedMutex
}

// NewSupervisor creates a concurrency supervisor over the given store.
func NewSupervisor(store Store, recorder *secevent.Recorder, cfg Config) *Supervisor {
	if store == nil {
		panic("session: supervisor store cannot be nil")
	}
	return &Supervisor{
		store:    store,
		recorder: recorder,
		config:   cfg,
	}
}

// Admit registers a freshly created session for the principal and evicts the
// oldest sessions beyond the role's cap, recording a cap_evicted event for
// each. The new session must already exist in the store. Returns the evicted
// tokens, oldest first.
//
// Postcondition: the principal holds at most MaxConcurrent(role) sessions.
func (s *Supervisor) Admit(ctx context.Context, userID uuid.UUID, role Role, newToken string) ([]string, error) {
	capacity := s.config.MaxConcurrent(role)
	if capacity <= 0 {
		return nil, nil
	}

	unlock := s.locks.Lock(userID.String())
	defer unlock()

	sessions, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	excess := len(sessions) - capacity
	if excess <= 0 {
		return nil, nil
	}

	var evicted []string
	for _, sess := range sessions {
		if excess == 0 {
			break
		}
		// Never evict the session being admitted, even when clocks collide.
		if sess.Token == newToken {
			continue
		}

		if err := s.store.Delete(ctx, sess.Token); err != nil {
			return evicted, err
		}
		excess--
		evicted = append(evicted, sess.Token)

		if s.recorder != nil {
			s.recorder.Record(ctx, secevent.TypeCapEvicted,
				secevent.WithUserID(userID.String()),
				secevent.WithSessionID(sess.ID.String()),
				secevent.WithIP(sess.IP),
				secevent.WithDescription("concurrent session cap reached for role %s", role),
			)
		}
	}

	return evicted, nil
}
