package domain

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	Phone        string // E.164-ish, used for SMS code delivery; may be empty
	PasswordHash string // argon2 encoded
	TOTPSecret   *string // base32 encoded (nullable, set when TOTP is enrolled)
	FaceTemplate *string // JSON-encoded embedding vector (nullable)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasTOTP reports whether the user can answer a TOTP challenge.
func (u *User) HasTOTP() bool {
	return u.TOTPSecret != nil && *u.TOTPSecret != ""
}

// HasFaceTemplate reports whether a biometric template is enrolled.
func (u *User) HasFaceTemplate() bool {
	return u.FaceTemplate != nil && *u.FaceTemplate != ""
}
