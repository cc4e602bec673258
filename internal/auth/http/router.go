package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/service"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/httpx"
	"github.com/activitymaster/clubauth/pkg/metrics"
	"github.com/activitymaster/clubauth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *keys.KeyStore
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store               store.Store
	TokenService        *service.TokenService
	AuthService         *service.AuthService
	UserService         *service.UserService
	TwoFactorService    *service.TwoFactorService
	ClubService         *service.ClubService
	RBACService         *service.RBACService
	VerificationService *service.VerificationService
	KeyRotationService  *service.KeyRotationService
}

func NewRouter(
	ks *keys.KeyStore,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         ks,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerTwoFactor()
	r.registerClubs()
	r.registerVerification()
	r.registerKeyRotation()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	// POST /login - strict rate limit (credential attempts)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			RequireApplicationID(),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /2fa - strict rate limit (code guessing)
	r.Mux.Handle("POST /v1/auth/2fa",
		httpx.Chain(http.HandlerFunc(h.HandleTwoFactor),
			RequireApplicationID(),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh - moderate rate limit
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			RequireApplicationID(),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /logout - moderate rate limit
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			RequireApplicationID(),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /forgot-password - strict rate limit (enumeration + mail abuse)
	r.Mux.Handle("POST /v1/auth/forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /reset-password - exchanges the mailed link for a step token
	r.Mux.Handle("GET /v1/auth/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPasswordExchange),
			RequireApplicationID(),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /reset-password - strict rate limit
	r.Mux.Handle("POST /v1/auth/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			RequireApplicationID(),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	// POST /users - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /verify-email - link target from the verification mail
	r.Mux.Handle("GET /v1/users/verify-email",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyEmail),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /resend-verification - strict rate limit (mail abuse)
	r.Mux.Handle("POST /v1/users/resend-verification",
		httpx.Chain(http.HandlerFunc(h.HandleResendVerification),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Authenticated account endpoints - lenient rate limit by user
	r.Mux.Handle("GET /v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			RequireApplicationID(),
			RequireAccessToken(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/users/me/change-password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			RequireApplicationID(),
			RequireAccessToken(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleDeleteAccount),
			RequireApplicationID(),
			RequireAccessToken(r.TokenService),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{
		TwoFactorService: r.TwoFactorService,
		UserService:      r.UserService,
	}

	authed := func(next http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(next,
			RequireApplicationID(),
			RequireAccessToken(r.TokenService),
			httpx.RateLimitByUser(limit),
		)
	}

	r.Mux.Handle("GET /v1/2fa/methods", authed(h.HandleListMethods, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/2fa/totp/enroll", authed(h.HandleTOTPEnroll, httpx.ModerateLimit))

	// Confirm is strict: it accepts authenticator codes
	r.Mux.Handle("POST /v1/2fa/totp/confirm", authed(h.HandleTOTPConfirm, httpx.StrictLimit))
	r.Mux.Handle("DELETE /v1/2fa/totp", authed(h.HandleTOTPRemove, httpx.StrictLimit))
}

func (r *Router) registerClubs() {
	h := &ClubsHandler{ClubService: r.ClubService}

	authed := func(next http.HandlerFunc, mws ...httpx.Middleware) http.Handler {
		chain := []httpx.Middleware{
			RequireApplicationID(),
			RequireAccessToken(r.TokenService),
		}
		chain = append(chain, mws...)
		chain = append(chain, httpx.RateLimitByUser(httpx.ModerateLimit))
		return httpx.Chain(next, chain...)
	}

	// Any authenticated member can found a club; they become its owner.
	r.Mux.Handle("POST /v1/clubs", authed(h.HandleCreateClub))

	r.Mux.Handle("GET /v1/clubs/{club_id}/roles",
		authed(h.HandleListRoles,
			RequireClubPermission(r.RBACService, domain.PermReadRoles)))
	r.Mux.Handle("POST /v1/clubs/{club_id}/roles",
		authed(h.HandleCreateRole,
			RequireClubPermission(r.RBACService, domain.PermModifyRoles)))
	r.Mux.Handle("PUT /v1/clubs/{club_id}/roles/{role_id}/permissions",
		authed(h.HandleUpdateRolePermissions,
			RequireClubPermission(r.RBACService, domain.PermModifyRoles)))
	r.Mux.Handle("DELETE /v1/clubs/{club_id}/roles/{role_id}",
		authed(h.HandleDeleteRole,
			RequireClubPermission(r.RBACService, domain.PermDeleteRoles)))

	r.Mux.Handle("POST /v1/clubs/{club_id}/members/{user_id}/roles",
		authed(h.HandleAssignRole,
			RequireClubPermission(r.RBACService, domain.PermModifyEmployees)))
	r.Mux.Handle("DELETE /v1/clubs/{club_id}/members/{user_id}/roles/{role_id}",
		authed(h.HandleRemoveRole,
			RequireClubPermission(r.RBACService, domain.PermModifyEmployees)))
}

func (r *Router) registerVerification() {
	h := &VerificationHandler{VerificationService: r.VerificationService}

	authed := func(next http.HandlerFunc, mws ...httpx.Middleware) http.Handler {
		chain := []httpx.Middleware{
			RequireApplicationID(),
			RequireAccessToken(r.TokenService),
		}
		chain = append(chain, mws...)
		chain = append(chain, httpx.RateLimitByUser(httpx.ModerateLimit))
		return httpx.Chain(next, chain...)
	}

	r.Mux.Handle("POST /v1/verification", authed(h.HandleSubmit))
	r.Mux.Handle("GET /v1/verification", authed(h.HandleStatus))

	// Reviewer endpoints are reserved for system accounts.
	r.Mux.Handle("GET /v1/verification/{user_id}/document",
		authed(h.HandleReveal, RequireSystemUser(r.UserService)))
	r.Mux.Handle("POST /v1/verification/{user_id}/review",
		authed(h.HandleReview, RequireSystemUser(r.UserService)))
}

func (r *Router) registerKeyRotation() {
	h := &KeyRotationHandler{KeyRotationService: r.KeyRotationService}

	r.Mux.Handle("POST /v1/system/rotate-totp-key",
		httpx.Chain(http.HandlerFunc(h.HandleRotateTOTPKey),
			RequireApplicationID(),
			RequireAccessToken(r.TokenService),
			RequireSystemUser(r.UserService),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may
	// poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", metrics.Handler())
}
