package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/corvid-labs/facegate/internal/auth/domain"
	"github.com/corvid-labs/facegate/internal/auth/mail"
	"github.com/corvid-labs/facegate/internal/auth/otp"
	"github.com/corvid-labs/facegate/internal/auth/session"
	"github.com/corvid-labs/facegate/internal/auth/store"
	"github.com/corvid-labs/facegate/pkg/cryptox"
	"github.com/corvid-labs/facegate/pkg/idx"
	"github.com/corvid-labs/facegate/pkg/jwtx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

// AMR values carried into the session and its token.
const (
	AMRPassword = "pwd"
	AMRTOTP     = "totp"
	AMREmail    = "email"
	AMRSMS      = "sms"
)

// LoginService runs the staged login flow: password first, then exactly one
// second factor, then session issuance.
type LoginService struct {
	Store   store.Store
	Tracker session.Tracker
	Signer  jwtx.Signer

	Issuer     string
	SessionTTL time.Duration

	// Dispatchers for delivered-code methods. Either may be nil, which
	// disables that method.
	Email mail.Dispatcher
	SMS   mail.Dispatcher

	// Now is swappable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *LoginService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *LoginService) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return jwtx.DefaultSessionTTL
}

// SubmitCredentials is stage one. A correct username/password pair opens a
// pending attempt bound to a single second-factor method and, for delivered
// methods, sends the code. Wrong username and wrong password are
// indistinguishable to the caller.
func (s *LoginService) SubmitCredentials(
	ctx context.Context,
	username, password, method string,
) (*domain.ChallengeResponse, error) {
	log := slogx.FromContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so the miss is not observable.
			_ = cryptox.VerifyPassword(password, decoyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		return nil, ErrInvalidCredentials
	}

	method, err = s.resolveMethod(&user, method)
	if err != nil {
		return nil, err
	}

	now := s.now()
	attempt := domain.PendingAttempt{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Method:    method,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.PendingAttemptTTL),
	}

	delivery := ""
	if method == domain.MethodEmail || method == domain.MethodSMS {
		code, err := otp.GenerateDeliveredCode()
		if err != nil {
			return nil, err
		}
		attempt.Code = code
		attempt.CodeExpiresAt = now.Add(otp.DeliveredCodeTTL)

		delivery = "sent"
		if err := s.dispatchCode(ctx, &user, method, code); err != nil {
			// The attempt stays open; the user may retry delivery by
			// starting over or complete it with a code they received
			// through support channels.
			log.Warn("login code dispatch failed", "method", method, "error", err)
			delivery = "failed"
		}
	}

	if err := s.Tracker.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	log.Info("second factor challenge issued",
		"user_id", user.ID,
		"method", method,
	)

	return &domain.ChallengeResponse{
		AttemptToken: attempt.ID,
		Method:       method,
		Delivery:     delivery,
		ExpiresIn:    int64(domain.PendingAttemptTTL.Seconds()),
	}, nil
}

// decoyHash is a real argon2 encoding of a throwaway password, used to keep
// response timing flat for unknown usernames.
const decoyHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func (s *LoginService) resolveMethod(user *domain.User, method string) (string, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = domain.MethodTOTP
	}

	switch method {
	case domain.MethodTOTP:
		if !user.HasTOTP() {
			return "", ErrUnsupportedMethod
		}
	case domain.MethodEmail:
		if s.Email == nil || user.Email == "" {
			return "", ErrUnsupportedMethod
		}
	case domain.MethodSMS:
		if s.SMS == nil || user.Phone == "" {
			return "", ErrUnsupportedMethod
		}
	default:
		return "", ErrUnsupportedMethod
	}
	return method, nil
}

func (s *LoginService) dispatchCode(ctx context.Context, user *domain.User, method, code string) error {
	switch method {
	case domain.MethodEmail:
		return s.Email.SendCode(ctx, user.Email, code)
	case domain.MethodSMS:
		return s.SMS.SendCode(ctx, user.Phone, code)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

// VerifySecondFactor is stage two. A correct code consumes the attempt and
// issues a session; a wrong one burns a failure, destroying the attempt at
// the cap. The method was fixed when the attempt was created and the
// submitted code is always checked against that method only.
func (s *LoginService) VerifySecondFactor(
	ctx context.Context,
	attemptToken, code string,
) (*domain.TokenResponse, error) {
	log := slogx.FromContext(ctx)

	attemptToken = strings.TrimSpace(attemptToken)
	if attemptToken == "" || strings.TrimSpace(code) == "" {
		return nil, ErrNoPendingAttempt
	}

	attempt, err := s.Tracker.GetAttempt(ctx, attemptToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoPendingAttempt
		}
		return nil, err
	}

	now := s.now()
	if err := s.checkCode(ctx, &attempt, code, now); err != nil {
		attempts, destroyed, ferr := s.Tracker.RecordAttemptFailure(ctx, attemptToken, domain.MaxVerifyAttempts)
		if ferr != nil && !errors.Is(ferr, session.ErrNotFound) {
			return nil, ferr
		}
		if destroyed {
			log.Warn("pending attempt destroyed after repeated failures",
				"user_id", attempt.UserID,
				"attempts", attempts,
			)
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidOrExpiredCode
	}

	// Single use: only one concurrent correct submission may win.
	attempt, err = s.Tracker.ConsumeAttempt(ctx, attemptToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoPendingAttempt
		}
		return nil, err
	}

	return s.issueSession(ctx, &attempt, now)
}

func (s *LoginService) checkCode(ctx context.Context, attempt *domain.PendingAttempt, code string, now time.Time) error {
	switch attempt.Method {
	case domain.MethodTOTP:
		user, err := s.Store.Users().GetUserByID(ctx, attempt.UserID)
		if err != nil {
			return err
		}
		if !user.HasTOTP() {
			return otp.ErrInvalidOrExpiredCode
		}
		return otp.VerifyTOTP(code, *user.TOTPSecret, now)
	default:
		return otp.VerifyDeliveredCode(code, attempt.Code, attempt.CodeExpiresAt, now)
	}
}

func (s *LoginService) issueSession(ctx context.Context, attempt *domain.PendingAttempt, now time.Time) (*domain.TokenResponse, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, attempt.UserID)
	if err != nil {
		return nil, err
	}

	roles, err := s.Store.Users().ListRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	ttl := s.sessionTTL()
	sess := domain.Session{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Username:  user.Username,
		Roles:     roles,
		AMR:       []string{AMRPassword, attempt.Method},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.Tracker.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	claims := jwtx.NewSessionClaims(
		user.ID, sess.ID,
		roles, sess.AMR,
		ttl, s.Issuer, user.Username, now,
	)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		_ = s.Tracker.DeleteSession(ctx, sess.ID)
		return nil, err
	}

	log.Info("login completed",
		"user_id", user.ID,
		"session_id", sess.ID,
		"amr", sess.AMR,
	)

	return &domain.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	}, nil
}

// Authenticate resolves a bearer token to its live session. A valid
// signature is not enough: the server-side record must still exist, so
// logout revokes access immediately.
func (s *LoginService) Authenticate(ctx context.Context, verifier jwtx.Verifier, token string) (domain.Session, error) {
	claims, err := verifier.Verify(token)
	if err != nil {
		return domain.Session{}, ErrNoSession
	}

	sess, err := s.Tracker.GetSession(ctx, claims.SID)
	if err != nil {
		return domain.Session{}, ErrNoSession
	}
	return sess, nil
}

// Logout revokes the session. Revoking an unknown session is not an error.
func (s *LoginService) Logout(ctx context.Context, sessionID string) error {
	log := slogx.FromContext(ctx)

	if err := s.Tracker.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	log.Info("session revoked", "session_id", sessionID)
	return nil
}
