// Package redis is the Tracker driver for multi-instance deployments. Every
// record carries its own expiry timestamp; the key TTL carries a one second
// grace so a record is still readable at its exact expiry instant.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/corvid-labs/facegate/internal/auth/domain"
	"github.com/corvid-labs/facegate/internal/auth/session"
	"github.com/redis/go-redis/v9"
)

const (
	attemptKeyPrefix     = "fg:attempt:"
	userAttemptKeyPrefix = "fg:userattempt:"
	sessionKeyPrefix     = "fg:session:"

	// optimistic lock retries for WATCH/MULTI sequences
	maxTxRetries = 4
)

type Tracker struct {
	rdb *redis.Client

	now func() time.Time
}

var _ session.Tracker = (*Tracker)(nil)

func New(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

func attemptKey(id string) string { return attemptKeyPrefix + id }
func sessionKey(id string) string { return sessionKeyPrefix + id }

// userAttemptKey points at the user's single live attempt, so a new login
// can supersede the old one without scanning.
func userAttemptKey(userID string) string { return userAttemptKeyPrefix + userID }

func backendErr(err error) error {
	return fmt.Errorf("%w: %v", session.ErrBackend, err)
}

func (t *Tracker) ttlFor(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(t.now()) + time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (t *Tracker) CreateAttempt(ctx context.Context, a domain.PendingAttempt) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	idxKey := userAttemptKey(a.UserID)
	ttl := t.ttlFor(a.ExpiresAt)

	for range maxTxRetries {
		err := t.rdb.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := tx.Get(ctx, idxKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return backendErr(err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if prev != "" && prev != a.ID {
					pipe.Del(ctx, attemptKey(prev))
				}
				pipe.Set(ctx, attemptKey(a.ID), data, ttl)
				pipe.Set(ctx, idxKey, a.ID, ttl)
				return nil
			})
			return err
		}, idxKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue // a concurrent login for the same user, retry
		}
		if err != nil {
			return err
		}
		return nil
	}
	return backendErr(redis.TxFailedErr)
}

func (t *Tracker) getAttempt(ctx context.Context, c redis.Cmdable, id string) (domain.PendingAttempt, error) {
	data, err := c.Get(ctx, attemptKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PendingAttempt{}, session.ErrNotFound
		}
		return domain.PendingAttempt{}, backendErr(err)
	}

	var a domain.PendingAttempt
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.PendingAttempt{}, err
	}
	if a.Expired(t.now()) {
		_ = c.Del(ctx, attemptKey(id)).Err()
		return domain.PendingAttempt{}, session.ErrNotFound
	}
	return a, nil
}

func (t *Tracker) GetAttempt(ctx context.Context, id string) (domain.PendingAttempt, error) {
	return t.getAttempt(ctx, t.rdb, id)
}

func (t *Tracker) RecordAttemptFailure(ctx context.Context, id string, max int) (int, bool, error) {
	key := attemptKey(id)

	var (
		attempts  int
		destroyed bool
	)
	for range maxTxRetries {
		err := t.rdb.Watch(ctx, func(tx *redis.Tx) error {
			a, err := t.getAttempt(ctx, tx, id)
			if err != nil {
				return err
			}

			a.Attempts++
			attempts = a.Attempts
			if a.Attempts >= max {
				destroyed = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			data, err := json.Marshal(a)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, t.ttlFor(a.ExpiresAt))
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue // key changed under us, retry
		}
		if err != nil {
			return 0, false, err
		}
		return attempts, destroyed, nil
	}
	return 0, false, backendErr(redis.TxFailedErr)
}

func (t *Tracker) ConsumeAttempt(ctx context.Context, id string) (domain.PendingAttempt, error) {
	key := attemptKey(id)

	for range maxTxRetries {
		var consumed domain.PendingAttempt
		err := t.rdb.Watch(ctx, func(tx *redis.Tx) error {
			a, err := t.getAttempt(ctx, tx, id)
			if err != nil {
				return err
			}
			consumed = a

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue // a concurrent consumer won, re-read to confirm
		}
		if err != nil {
			return domain.PendingAttempt{}, err
		}
		return consumed, nil
	}
	return domain.PendingAttempt{}, backendErr(redis.TxFailedErr)
}

func (t *Tracker) DeleteAttempt(ctx context.Context, id string) error {
	if err := t.rdb.Del(ctx, attemptKey(id)).Err(); err != nil {
		return backendErr(err)
	}
	return nil
}

func (t *Tracker) CreateSession(ctx context.Context, s domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := t.rdb.Set(ctx, sessionKey(s.ID), data, t.ttlFor(s.ExpiresAt)).Err(); err != nil {
		return backendErr(err)
	}
	return nil
}

func (t *Tracker) getSession(ctx context.Context, c redis.Cmdable, id string) (domain.Session, error) {
	data, err := c.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, session.ErrNotFound
		}
		return domain.Session{}, backendErr(err)
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Session{}, err
	}
	if t.now().After(s.ExpiresAt) {
		_ = c.Del(ctx, sessionKey(id)).Err()
		return domain.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (t *Tracker) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return t.getSession(ctx, t.rdb, id)
}

func (t *Tracker) MarkFaceVerified(ctx context.Context, id string) error {
	return t.updateFaceVerified(ctx, id, true, nil)
}

func (t *Tracker) ConsumeFaceVerified(ctx context.Context, id string) (bool, error) {
	var was bool
	err := t.updateFaceVerified(ctx, id, false, &was)
	return was, err
}

func (t *Tracker) updateFaceVerified(ctx context.Context, id string, value bool, prev *bool) error {
	key := sessionKey(id)

	for range maxTxRetries {
		err := t.rdb.Watch(ctx, func(tx *redis.Tx) error {
			s, err := t.getSession(ctx, tx, id)
			if err != nil {
				return err
			}
			if prev != nil {
				*prev = s.FaceVerified
			}
			s.FaceVerified = value

			data, err := json.Marshal(s)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, t.ttlFor(s.ExpiresAt))
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return backendErr(redis.TxFailedErr)
}

func (t *Tracker) DeleteSession(ctx context.Context, id string) error {
	if err := t.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return backendErr(err)
	}
	return nil
}

func (t *Tracker) Ping(ctx context.Context) error {
	if err := t.rdb.Ping(ctx).Err(); err != nil {
		return backendErr(err)
	}
	return nil
}

func (t *Tracker) Close() error { return t.rdb.Close() }
