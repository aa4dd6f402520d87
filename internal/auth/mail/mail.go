// Package mail delivers second-factor codes out of band. Implementations
// exist for SMTP (email) and a log-only sink used for development and for
// SMS-style delivery where no gateway is configured.
package mail

import (
	"context"
	"errors"
)

// ErrDispatch wraps any delivery failure. Callers treat it as non-fatal:
// the login attempt stays open so the user can retry or fall back, but the
// failure is reported in the challenge response.
var ErrDispatch = errors.New("mail: dispatch failed")

// Dispatcher sends a login code to a destination (email address or phone
// number, depending on the implementation).
type Dispatcher interface {
	SendCode(ctx context.Context, to, code string) error
}
