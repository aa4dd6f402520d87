package domain

import "time"

// Supported second-factor methods. The method is fixed when the attempt is
// created and cannot be switched mid-flight.
const (
	MethodTOTP  = "totp"
	MethodEmail = "email"
	MethodSMS   = "sms"
)

// MaxVerifyAttempts is the number of failed second-factor submissions a
// pending attempt tolerates before it is destroyed.
const MaxVerifyAttempts = 5

// PendingAttemptTTL bounds the whole window between a correct password and a
// correct second factor.
const PendingAttemptTTL = 5 * time.Minute

// ChallengeResponse is returned after a successful password check, while the
// second factor is still outstanding.
type ChallengeResponse struct {
	AttemptToken string `json:"attempt_token"` // ULID reference token
	Method       string `json:"method"`
	Delivery     string `json:"delivery,omitempty"` // "sent" or "failed" for delivered codes
	ExpiresIn    int64  `json:"expires_in"`         // seconds until the attempt lapses
}

// PendingAttempt is a half-finished login: the password was correct, the
// second factor has not been presented yet. Stored in the attempt tracker,
// never in the database.
type PendingAttempt struct {
	ID            string    // ULID (the attempt_token)
	UserID        string    // user this attempt belongs to
	Method        string    // MethodTOTP, MethodEmail or MethodSMS
	Code          string    // delivered code; empty for TOTP
	CodeExpiresAt time.Time // zero for TOTP
	Attempts      int       // failed verification count
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the attempt window has lapsed. The boundary
// instant itself is still valid.
func (a *PendingAttempt) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
