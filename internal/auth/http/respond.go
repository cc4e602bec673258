package http

import (
	"errors"
	"net/http"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/pkg/httpx"
	"github.com/activitymaster/clubauth/pkg/slogx"
)

// writeDomainError maps the service error taxonomy onto HTTP statuses.
// Internal errors log the cause and leak only a correlation id.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var internal *domain.InternalError
	if errors.As(err, &internal) {
		slogx.FromContext(r.Context()).Error("internal error",
			"correlation_id", internal.CorrelationID.String(),
			"err", internal.Err,
		)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Something went wrong. Reference: "+internal.CorrelationID.String())
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_credentials", "Invalid email or password.")
	case errors.Is(err, domain.ErrEmailNotVerified):
		httpx.WriteError(w, http.StatusForbidden,
			"email_not_verified", "Confirm your email address before logging in.")
	case errors.Is(err, domain.ErrInvalidApplicationID):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_application_id", "A valid X-Application-ID header is required.")
	case errors.Is(err, domain.ErrInvalidToken):
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_token", "The token is invalid or expired.")
	case errors.Is(err, domain.ErrInvalidCode):
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_code", "The provided code is not valid.")
	case errors.Is(err, domain.ErrTooManyAttempts):
		httpx.WriteError(w, http.StatusTooManyRequests,
			"too_many_attempts", "Too many attempts. Try again later.")
	case errors.Is(err, domain.ErrInsufficientPermission):
		httpx.WriteError(w, http.StatusForbidden,
			"insufficient_permission", "You are not allowed to perform this action.")
	case errors.Is(err, domain.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "user_not_found", "")
	case errors.Is(err, domain.ErrRoleNotFound):
		httpx.WriteError(w, http.StatusNotFound, "role_not_found", "")
	case errors.Is(err, domain.ErrPermissionNotFound):
		httpx.WriteError(w, http.StatusNotFound, "permission_not_found", "")
	case errors.Is(err, domain.ErrAlreadyExists):
		httpx.WriteError(w, http.StatusConflict, "already_exists", "")
	default:
		slogx.FromContext(r.Context()).Error("unmapped error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
	}
}

func writeBadRequest(w http.ResponseWriter, description string) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", description)
}
