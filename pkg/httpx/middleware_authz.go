package httpx

import "net/http"

// RoleAuthorizer decides whether a held role set satisfies a requirement.
// The service layer's authorization gate is the only implementation.
type RoleAuthorizer interface {
	Allowed(held, required []string) bool
}

// RequireAnyRole admits the caller when the gate accepts their role
// snapshot against the requirement. Denials return a generic 403 so a
// caller cannot probe which role guards which resource.
func RequireAnyRole(gate RoleAuthorizer, required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate.Allowed(RolesFromContext(r.Context()), required) {
				next.ServeHTTP(w, r)
				return
			}

			WriteError(w, http.StatusForbidden, "forbidden", "You do not have access to this resource.")
		})
	}
}
