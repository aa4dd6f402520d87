package http

import (
	"errors"
	"net/http"

	"github.com/corvid-labs/facegate/internal/auth/service"
	"github.com/corvid-labs/facegate/pkg/httpx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

// ResourceHandler serves the protected demonstration resources. Role checks
// happen in middleware; the vault additionally claims the session's one-shot
// face-verification marker.
type ResourceHandler struct {
	Face *service.FaceService
}

// HandleProtected handles GET /v1/protected: any authenticated session.
func (h *ResourceHandler) HandleProtected(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "authenticated",
		"username": ctx.Value(httpx.CtxKeyUsername),
		"roles":    httpx.RolesFromContext(ctx),
	})
}

// HandleVault handles GET /v1/vault: requires a face verification performed
// after login. Each verification admits exactly one vault access.
func (h *ResourceHandler) HandleVault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if h.Face == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"biometrics_unavailable", "Biometric verification is not configured.")
		return
	}

	sessionID := httpx.SessionIDFromContext(ctx)
	ok, err := h.Face.ConsumeVerification(ctx, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrNoSession) {
			httpx.WriteError(w, http.StatusUnauthorized,
				"invalid_token", "The session is invalid or has been revoked.")
			return
		}
		log.Error("vault access check failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Access could not be checked.")
		return
	}
	if !ok {
		httpx.WriteError(w, http.StatusForbidden,
			"face_verification_required", "Verify your face before accessing the vault.")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "vault unlocked",
	})
}

// HandleAdmin handles GET /v1/admin. The admin role requirement is enforced
// by RequireAnyRole in the route chain.
func (h *ResourceHandler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "admin area",
		"username": ctx.Value(httpx.CtxKeyUsername),
	})
}
