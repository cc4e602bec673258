package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/service"
	"github.com/activitymaster/clubauth/pkg/httpx"
	"github.com/activitymaster/clubauth/pkg/slogx"
)

// RequireApplicationID rejects requests without a well-formed
// X-Application-ID header before any token work happens. The header value
// feeds the audience check downstream.
func RequireApplicationID() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			appID := r.Header.Get("X-Application-ID")
			if _, err := uuid.Parse(appID); err != nil {
				writeDomainError(w, r, domain.ErrInvalidApplicationID)
				return
			}

			ctx := context.WithValue(r.Context(), httpx.CtxKeyApplicationID, appID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAccessToken verifies the bearer access token against the caller's
// application id and injects the user id and claims into the context.
func RequireAccessToken(tokens *service.TokenService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := bearerToken(r)
			if !ok {
				writeDomainError(w, r, domain.ErrInvalidToken)
				return
			}

			claims, err := tokens.Verify(ctx, raw, domain.TokenAccess, httpx.ApplicationIDFromContext(ctx))
			if err != nil {
				slogx.FromContext(ctx).Warn("access token rejected", "err", err)
				writeDomainError(w, r, domain.ErrInvalidToken)
				return
			}

			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, claims.Subject)
			ctx = context.WithValue(ctx, httpx.CtxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireClubPermission gates a handler on the caller's role in the club
// named by the {club_id} path segment.
func RequireClubPermission(rbac *service.RBACService, permission string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			clubID := r.PathValue("club_id")
			if clubID == "" {
				writeBadRequest(w, "missing club id")
				return
			}

			userID := httpx.UserIDFromContext(ctx)
			if err := rbac.RequirePermission(ctx, userID, clubID, permission); err != nil {
				writeDomainError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSystemUser restricts a handler to accounts flagged as system
// operators.
func RequireSystemUser(users *service.UserService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			user, err := users.GetUser(ctx, httpx.UserIDFromContext(ctx))
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			if !user.IsSystem {
				writeDomainError(w, r, domain.ErrInsufficientPermission)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return token, token != ""
}
