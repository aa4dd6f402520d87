package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/corvid-labs/facegate/internal/auth/domain"
	"github.com/corvid-labs/facegate/internal/auth/service"
	"github.com/corvid-labs/facegate/internal/auth/session"
	"github.com/corvid-labs/facegate/internal/auth/store"
	"github.com/corvid-labs/facegate/pkg/httpx"
	"github.com/corvid-labs/facegate/pkg/jwtx"
	"github.com/corvid-labs/facegate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store   store.Store
	tracker session.Tracker
	authz   service.AuthorizationGate

	LoginService    *service.LoginService
	RegisterService *service.RegisterService
	FaceService     *service.FaceService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	tracker session.Tracker,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		tracker:      tracker,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) ApplyRoutes() {
	r.registerAccounts()
	r.registerLogin()
	r.registerFace()
	r.registerResources()
	r.registerSystem()
}

func (r *Router) registerAccounts() {
	h := &RegisterHandler{Service: r.RegisterService}

	r.Mux.Handle("POST /v1/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{Service: r.LoginService}

	// Credential and code submissions get the strict profile: these are
	// the brute-forceable endpoints.
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/login/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerFace() {
	if r.FaceService == nil {
		// No extractor configured; biometric endpoints are absent.
		return
	}
	h := &FaceHandler{Service: r.FaceService}

	r.Mux.Handle("POST /v1/face/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/face/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			r.authn(),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerResources() {
	h := &ResourceHandler{Face: r.FaceService}

	r.Mux.Handle("GET /v1/protected",
		httpx.Chain(http.HandlerFunc(h.HandleProtected),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/vault",
		httpx.Chain(http.HandlerFunc(h.HandleVault),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/admin",
		httpx.Chain(http.HandlerFunc(h.HandleAdmin),
			r.authn(),
			httpx.RequireAnyRole(r.authz, domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.tracker),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
