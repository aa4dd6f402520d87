package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corvid-labs/facegate/internal/auth/face"
	"github.com/corvid-labs/facegate/internal/auth/service"
	"github.com/corvid-labs/facegate/pkg/httpx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

type FaceHandler struct {
	Service *service.FaceService
}

type faceRequest struct {
	// Image is the captured frame, base64 encoded.
	Image string `json:"image"`
}

func (req *faceRequest) decode() ([]byte, error) {
	if req.Image == "" {
		return nil, errors.New("empty image")
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

// HandleEnroll handles POST /v1/face/enroll: stores the caller's biometric
// template, replacing any existing one.
func (h *FaceHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req faceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Request body must be valid JSON.")
		return
	}
	image, err := req.decode()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Image must be base64 encoded.")
		return
	}

	userID := httpx.UserIDFromContext(ctx)
	if err := h.Service.Enroll(ctx, userID, image); err != nil {
		if errors.Is(err, face.ErrNoFaceDetected) {
			httpx.WriteError(w, http.StatusUnprocessableEntity,
				"no_face_detected", "No usable face was found in the image.")
			return
		}
		log.Error("face enrollment failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Enrollment could not be completed.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleVerify handles POST /v1/face/verify: compares the presented face to
// the enrolled template and, on a match, arms the session's one-shot marker.
func (h *FaceHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req faceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Request body must be valid JSON.")
		return
	}
	image, err := req.decode()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Image must be base64 encoded.")
		return
	}

	sessionID := httpx.SessionIDFromContext(ctx)
	err = h.Service.Verify(ctx, sessionID, image)
	switch {
	case errors.Is(err, face.ErrNoFaceDetected):
		httpx.WriteError(w, http.StatusUnprocessableEntity,
			"no_face_detected", "No usable face was found in the image.")
		return
	case errors.Is(err, face.ErrFaceMismatch):
		httpx.WriteError(w, http.StatusForbidden,
			"face_mismatch", "The face does not match the enrolled template.")
		return
	case errors.Is(err, service.ErrFaceNotEnrolled):
		httpx.WriteError(w, http.StatusConflict,
			"face_not_enrolled", "No biometric template is enrolled for this account.")
		return
	case errors.Is(err, service.ErrNoSession):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_token", "The session is invalid or has been revoked.")
		return
	case err != nil:
		log.Error("face verification failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Verification could not be processed.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"verified": true})
}
