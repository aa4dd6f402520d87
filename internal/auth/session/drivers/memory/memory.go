// Package memory is the in-process Tracker driver. Suitable for single
// instance deployments and tests; a multi-instance deployment should use the
// redis driver so attempts survive load balancing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/corvid-labs/facegate/internal/auth/domain"
	"github.com/corvid-labs/facegate/internal/auth/session"
)

type Tracker struct {
	mu       sync.Mutex
	attempts map[string]domain.PendingAttempt
	sessions map[string]domain.Session

	now func() time.Time
}

var _ session.Tracker = (*Tracker)(nil)

func New() *Tracker {
	return &Tracker{
		attempts: make(map[string]domain.PendingAttempt),
		sessions: make(map[string]domain.Session),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

func (t *Tracker) CreateAttempt(ctx context.Context, a domain.PendingAttempt) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// One live attempt per user: the new login supersedes the old one.
	for id, prev := range t.attempts {
		if prev.UserID == a.UserID {
			delete(t.attempts, id)
		}
	}

	t.attempts[a.ID] = a
	return nil
}

// liveAttempt returns the attempt if present and unexpired, reaping it
// otherwise. Caller holds the lock.
func (t *Tracker) liveAttempt(id string) (domain.PendingAttempt, bool) {
	a, ok := t.attempts[id]
	if !ok {
		return domain.PendingAttempt{}, false
	}
	if a.Expired(t.now()) {
		delete(t.attempts, id)
		return domain.PendingAttempt{}, false
	}
	return a, true
}

func (t *Tracker) GetAttempt(ctx context.Context, id string) (domain.PendingAttempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.liveAttempt(id)
	if !ok {
		return domain.PendingAttempt{}, session.ErrNotFound
	}
	return a, nil
}

func (t *Tracker) RecordAttemptFailure(ctx context.Context, id string, max int) (int, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.liveAttempt(id)
	if !ok {
		return 0, false, session.ErrNotFound
	}

	a.Attempts++
	if a.Attempts >= max {
		delete(t.attempts, id)
		return a.Attempts, true, nil
	}
	t.attempts[id] = a
	return a.Attempts, false, nil
}

func (t *Tracker) ConsumeAttempt(ctx context.Context, id string) (domain.PendingAttempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.liveAttempt(id)
	if !ok {
		return domain.PendingAttempt{}, session.ErrNotFound
	}
	delete(t.attempts, id)
	return a, nil
}

func (t *Tracker) DeleteAttempt(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, id)
	return nil
}

func (t *Tracker) CreateSession(ctx context.Context, s domain.Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.ID] = s
	return nil
}

func (t *Tracker) liveSession(id string) (domain.Session, bool) {
	s, ok := t.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	if t.now().After(s.ExpiresAt) {
		delete(t.sessions, id)
		return domain.Session{}, false
	}
	return s, true
}

func (t *Tracker) GetSession(ctx context.Context, id string) (domain.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.liveSession(id)
	if !ok {
		return domain.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (t *Tracker) MarkFaceVerified(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.liveSession(id)
	if !ok {
		return session.ErrNotFound
	}
	s.FaceVerified = true
	t.sessions[id] = s
	return nil
}

func (t *Tracker) ConsumeFaceVerified(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.liveSession(id)
	if !ok {
		return false, session.ErrNotFound
	}
	was := s.FaceVerified
	s.FaceVerified = false
	t.sessions[id] = s
	return was, nil
}

func (t *Tracker) DeleteSession(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
	return nil
}

func (t *Tracker) Ping(ctx context.Context) error { return nil }

func (t *Tracker) Close() error { return nil }

// Sweep reaps expired records. Called periodically by the housekeeping
// service so abandoned attempts don't accumulate between lookups.
func (t *Tracker) Sweep() (removed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, a := range t.attempts {
		if a.Expired(now) {
			delete(t.attempts, id)
			removed++
		}
	}
	for id, s := range t.sessions {
		if now.After(s.ExpiresAt) {
			delete(t.sessions, id)
			removed++
		}
	}
	return removed
}
