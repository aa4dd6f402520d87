package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corvid-labs/facegate/internal/auth/service"
	"github.com/corvid-labs/facegate/pkg/httpx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

type RegisterHandler struct {
	Service *service.RegisterService
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`

	// FaceImage is an optional captured frame, base64 encoded, to enroll
	// the biometric template at account creation.
	FaceImage string `json:"face_image,omitempty"`
}

// HandleRegister handles POST /v1/register. Responds with the one-time TOTP
// enrollment material on success.
func (h *RegisterHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Request body must be valid JSON.")
		return
	}

	var faceImage []byte
	if req.FaceImage != "" {
		var err error
		faceImage, err = base64.StdEncoding.DecodeString(req.FaceImage)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest,
				"invalid_request", "Face image must be base64 encoded.")
			return
		}
	}

	resp, err := h.Service.Register(ctx, service.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		FaceImage: faceImage,
	})
	switch {
	case errors.Is(err, service.ErrInvalidRegistration):
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Username and password are required, and the email must be well formed.")
		return
	case errors.Is(err, service.ErrUserAlreadyExists):
		httpx.WriteError(w, http.StatusConflict,
			"user_already_exists", "That username or email is taken.")
		return
	case err != nil:
		log.Error("registration failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Registration could not be completed.")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, resp)
}
