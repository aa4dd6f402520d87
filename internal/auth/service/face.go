package service

import (
	"context"
	"errors"

	"github.com/corvid-labs/facegate/internal/auth/face"
	"github.com/corvid-labs/facegate/internal/auth/session"
	"github.com/corvid-labs/facegate/internal/auth/store"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

// FaceService enrolls biometric templates and verifies presented faces
// against them. A successful verification marks the caller's session; the
// marker is consumed by the first biometric-gated resource access.
type FaceService struct {
	Store     store.Store
	Tracker   session.Tracker
	Extractor face.Extractor
}

// Enroll extracts a template from the image and stores it on the account,
// replacing any previous template.
func (s *FaceService) Enroll(ctx context.Context, userID string, image []byte) error {
	log := slogx.FromContext(ctx)

	tmpl, err := s.Extractor.Extract(ctx, image)
	if err != nil {
		return err
	}

	encoded, err := tmpl.Encode()
	if err != nil {
		return err
	}
	if err := s.Store.Users().UpdateFaceTemplate(ctx, userID, encoded); err != nil {
		return err
	}

	log.Info("face template enrolled", "user_id", userID)
	return nil
}

// Verify compares the presented image against the session owner's enrolled
// template and, on a match, sets the session's one-shot marker.
func (s *FaceService) Verify(ctx context.Context, sessionID string, image []byte) error {
	log := slogx.FromContext(ctx)

	sess, err := s.Tracker.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrNoSession
		}
		return err
	}

	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if !user.HasFaceTemplate() {
		return ErrFaceNotEnrolled
	}

	enrolled, err := face.DecodeTemplate(*user.FaceTemplate)
	if err != nil {
		return err
	}

	candidate, err := s.Extractor.Extract(ctx, image)
	if err != nil {
		return err
	}

	if err := face.Match(enrolled, candidate); err != nil {
		log.Warn("face verification failed", "user_id", user.ID)
		return err
	}

	if err := s.Tracker.MarkFaceVerified(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrNoSession
		}
		return err
	}

	log.Info("face verified", "user_id", user.ID, "session_id", sessionID)
	return nil
}

// ConsumeVerification claims the one-shot marker for a biometric-gated
// resource. Exactly one access succeeds per verification.
func (s *FaceService) ConsumeVerification(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.Tracker.ConsumeFaceVerified(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return false, ErrNoSession
		}
		return false, err
	}
	return ok, nil
}
