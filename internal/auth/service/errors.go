package service

import "errors"

var (
	// ErrInvalidCredentials covers both unknown username and wrong password
	// so responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrUserAlreadyExists signals a duplicate username at registration.
	ErrUserAlreadyExists = errors.New("user_already_exists")

	// ErrInvalidOrExpiredCode covers wrong codes, expired delivered codes
	// and out-of-window TOTP submissions alike.
	ErrInvalidOrExpiredCode = errors.New("invalid_or_expired_code")

	// ErrTooManyAttempts means the pending attempt burned all its failures
	// and was destroyed. The user must log in again.
	ErrTooManyAttempts = errors.New("too_many_attempts")

	// ErrNoPendingAttempt means the attempt token is unknown, expired or
	// already consumed.
	ErrNoPendingAttempt = errors.New("no_pending_attempt")

	// ErrNoSession means the bearer's session was revoked or expired.
	ErrNoSession = errors.New("no_session")

	// ErrFaceNotEnrolled means the account has no biometric template.
	ErrFaceNotEnrolled = errors.New("face_not_enrolled")

	// ErrForbidden means the caller lacks every role a resource requires.
	ErrForbidden = errors.New("forbidden")

	// ErrUnsupportedMethod means the requested second-factor method is not
	// one of totp, email or sms, or the account cannot answer it.
	ErrUnsupportedMethod = errors.New("unsupported_method")
)
