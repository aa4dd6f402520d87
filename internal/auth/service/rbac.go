package service

// AuthorizationGate answers "may this role set access this resource".
// Authorization is a pure set intersection over the session's role snapshot;
// no database access happens per request.
type AuthorizationGate struct{}

// Allowed reports whether the held roles satisfy the requirement. An empty
// requirement means the resource is authenticated-only.
func (AuthorizationGate) Allowed(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(held))
	for _, r := range held {
		have[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; ok {
			return true
		}
	}
	return false
}

// Check is Allowed with an error result, for call sites that propagate it.
func (g AuthorizationGate) Check(held, required []string) error {
	if !g.Allowed(held, required) {
		return ErrForbidden
	}
	return nil
}
