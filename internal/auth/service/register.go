package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/corvid-labs/facegate/internal/auth/domain"
	"github.com/corvid-labs/facegate/internal/auth/face"
	"github.com/corvid-labs/facegate/internal/auth/otp"
	"github.com/corvid-labs/facegate/internal/auth/store"
	"github.com/corvid-labs/facegate/pkg/cryptox"
	"github.com/corvid-labs/facegate/pkg/idx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

var ErrInvalidRegistration = errors.New("invalid_registration")

// RegisterService creates accounts. Every new account gets a TOTP secret
// provisioned up front and the default user role. When an Extractor is
// configured, a registration may carry a face image to enroll the biometric
// template right away.
type RegisterService struct {
	Store     store.Store
	Issuer    string
	Extractor face.Extractor
}

type RegisterRequest struct {
	Username string
	Email    string
	Phone    string
	Password string

	// FaceImage optionally enrolls a biometric template with the account.
	// An image without a detectable face is skipped, not an error.
	FaceImage []byte
}

// RegisterResponse carries the enrollment material the client shows once:
// the TOTP secret and its otpauth:// URL for QR rendering.
type RegisterResponse struct {
	UserID     string `json:"user_id"`
	TOTPSecret string `json:"totp_secret"`
	TOTPURL    string `json:"totp_url"`
}

func (s *RegisterService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	log := slogx.FromContext(ctx)

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrInvalidRegistration
	}

	email := strings.TrimSpace(req.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidRegistration
		}
	}

	hash, err := cryptox.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	key, err := otp.NewTOTPKey(s.Issuer, username)
	if err != nil {
		return nil, err
	}
	secret := key.Secret()

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		TOTPSecret:   &secret,
	}

	if len(req.FaceImage) > 0 && s.Extractor != nil {
		tmpl, err := s.Extractor.Extract(ctx, req.FaceImage)
		switch {
		case errors.Is(err, face.ErrNoFaceDetected):
			log.Warn("no usable face in registration image, skipping enrollment",
				"username", username)
		case err != nil:
			return nil, err
		default:
			encoded, err := tmpl.Encode()
			if err != nil {
				return nil, err
			}
			user.FaceTemplate = &encoded
		}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}

		role, err := tx.Roles().GetRoleByName(ctx, domain.RoleUser)
		if err != nil {
			return err
		}
		return tx.Users().AssignRole(ctx, user.ID, role.ID)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	log.Info("user registered", "user_id", user.ID, "username", username)

	return &RegisterResponse{
		UserID:     user.ID,
		TOTPSecret: secret,
		TOTPURL:    key.URL(),
	}, nil
}
