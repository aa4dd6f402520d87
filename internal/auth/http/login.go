package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corvid-labs/facegate/internal/auth/service"
	"github.com/corvid-labs/facegate/pkg/httpx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

type LoginHandler struct {
	Service *service.LoginService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Method   string `json:"method,omitempty"`
}

// HandleLogin handles POST /v1/login: the password stage. A success opens a
// pending attempt and returns its token; it never returns an access token.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Request body must be valid JSON.")
		return
	}

	challenge, err := h.Service.SubmitCredentials(ctx, req.Username, req.Password, req.Method)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Username or password is incorrect.")
		return
	case errors.Is(err, service.ErrUnsupportedMethod):
		httpx.WriteError(w, http.StatusBadRequest,
			"unsupported_method", "The requested second factor is not available for this account.")
		return
	case err != nil:
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Login could not be processed.")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, challenge)
}

type verifyRequest struct {
	AttemptToken string `json:"attempt_token"`
	Code         string `json:"code"`
}

// HandleVerify handles POST /v1/login/verify: the second-factor stage.
func (h *LoginHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Request body must be valid JSON.")
		return
	}

	tokens, err := h.Service.VerifySecondFactor(ctx, req.AttemptToken, req.Code)
	switch {
	// A missing attempt and a bad code share one response, so a replayed
	// code does not reveal that it was once correct.
	case errors.Is(err, service.ErrNoPendingAttempt),
		errors.Is(err, service.ErrInvalidOrExpiredCode):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_or_expired_code", "The code is incorrect, expired or was already used.")
		return
	case errors.Is(err, service.ErrTooManyAttempts):
		httpx.WriteError(w, http.StatusUnauthorized,
			"too_many_attempts", "Too many failed codes. Start the login again.")
		return
	case err != nil:
		log.Error("second factor verification failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Verification could not be processed.")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokens)
}

// HandleLogout handles POST /v1/logout. Requires authentication; revokes the
// caller's own session.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	sessionID := httpx.SessionIDFromContext(ctx)
	if sessionID == "" {
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_token", "No session to revoke.")
		return
	}

	if err := h.Service.Logout(ctx, sessionID); err != nil {
		log.Error("logout failed", "session_id", sessionID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Logout could not be processed.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
