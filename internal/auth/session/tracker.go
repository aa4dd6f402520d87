// Package session tracks the ephemeral state of the login flow: pending
// attempts awaiting a second factor, and fully authenticated sessions. The
// state is deliberately kept out of the database so a restart (or a Redis
// flush) invalidates in-flight logins without touching user records.
package session

import (
	"context"
	"errors"

	"github.com/corvid-labs/facegate/internal/auth/domain"
)

var (
	ErrNotFound = errors.New("session: not found")
	ErrBackend  = errors.New("session: backend unavailable")
)

// Tracker is implemented by the memory and redis drivers.
//
// Expired records behave as absent: Get returns ErrNotFound and the driver
// is free to reap them lazily.
type Tracker interface {
	// CreateAttempt stores a pending attempt keyed by its ID. The record
	// lives until consumed, destroyed or expired per ExpiresAt. A user has
	// at most one live attempt: creating a new one invalidates any prior
	// attempt for the same UserID, so a fresh login supersedes an
	// in-flight one.
	CreateAttempt(ctx context.Context, a domain.PendingAttempt) error

	// GetAttempt returns a live pending attempt.
	GetAttempt(ctx context.Context, id string) (domain.PendingAttempt, error)

	// RecordAttemptFailure atomically increments the failure count. When
	// the count reaches max the attempt is destroyed and destroyed is true.
	RecordAttemptFailure(ctx context.Context, id string, max int) (attempts int, destroyed bool, err error)

	// ConsumeAttempt removes the attempt. Exactly one concurrent caller
	// succeeds; the rest get ErrNotFound. This is what makes an attempt
	// single-use.
	ConsumeAttempt(ctx context.Context, id string) (domain.PendingAttempt, error)

	// DeleteAttempt removes the attempt unconditionally.
	DeleteAttempt(ctx context.Context, id string) error

	// CreateSession stores an authenticated session until ExpiresAt.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns a live session.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// MarkFaceVerified sets the session's one-shot biometric marker.
	MarkFaceVerified(ctx context.Context, id string) error

	// ConsumeFaceVerified atomically clears the biometric marker and
	// reports whether it was set. Exactly one concurrent caller observes
	// true.
	ConsumeFaceVerified(ctx context.Context, id string) (bool, error)

	// DeleteSession revokes a session (logout).
	DeleteSession(ctx context.Context, id string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
