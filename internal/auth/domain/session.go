package domain

import "time"

// Session is a fully authenticated login, stored server-side so a logout
// revokes it immediately regardless of the bearer token's lifetime.
type Session struct {
	ID           string    // ULID, carried in the token's sid claim
	UserID       string
	Username     string
	Roles        []string  // snapshot taken at login
	AMR          []string  // e.g. ["pwd", "totp"]
	FaceVerified bool      // one-shot marker set by a successful face check
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// TokenResponse is what a completed login returns.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // always "Bearer"
	ExpiresIn   int64  `json:"expires_in"` // seconds until expiry
}
