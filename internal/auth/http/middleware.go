package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/corvid-labs/facegate/pkg/cryptox"
	"github.com/corvid-labs/facegate/pkg/httpx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

// authn verifies the bearer token and resolves it to a live session. The
// session's identity and role snapshot are injected into the request
// context for downstream middleware and handlers.
func (r *Router) authn() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			token := bearerToken(req)
			if token == "" {
				httpx.WriteError(w, http.StatusUnauthorized,
					"invalid_token", "Missing or malformed Authorization header.")
				return
			}

			sess, err := r.LoginService.Authenticate(req.Context(), r.verifier, token)
			if err != nil {
				slogx.FromContext(req.Context()).Debug("rejected bearer token",
					slog.String("token_fingerprint", cryptox.FingerprintToken(token)))
				httpx.WriteError(w, http.StatusUnauthorized,
					"invalid_token", "The session is invalid or has been revoked.")
				return
			}

			ctx := req.Context()
			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, sess.UserID)
			ctx = context.WithValue(ctx, httpx.CtxKeyUsername, sess.Username)
			ctx = context.WithValue(ctx, httpx.CtxKeyRoles, sess.Roles)
			ctx = context.WithValue(ctx, httpx.CtxKeySessionID, sess.ID)

			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func bearerToken(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
