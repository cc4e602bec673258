package domain

import (
	"errors"
	"fmt"

	"github.com/activitymaster/clubauth/pkg/idx"
)

// The closed error taxonomy every service method resolves to. Handlers map
// these to HTTP statuses; anything outside the list is a bug.
var (
	// ErrInvalidCredentials covers bad email/password pairs and also
	// unknown accounts, so responses never confirm whether an email is
	// registered.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailNotVerified rejects logins before the address is confirmed.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrInvalidApplicationID rejects requests whose application id fails
	// the audience check or is missing entirely.
	ErrInvalidApplicationID = errors.New("invalid application id")

	// ErrInvalidToken collapses every token failure mode: bad signature,
	// expiry, wrong class, revoked row, recomputed audience mismatch.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidCode rejects wrong 2FA codes that have not yet tripped
	// the attempt limit.
	ErrInvalidCode = errors.New("invalid code")

	// ErrTooManyAttempts fires when 2FA failures or reset requests exceed
	// their rolling limits.
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrInsufficientPermission means the caller's club role does not
	// grant the checked permission or outrank the target.
	ErrInsufficientPermission = errors.New("insufficient permission")

	ErrUserNotFound       = errors.New("user not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrAlreadyExists      = errors.New("already exists")
)

// InternalError wraps an unexpected failure with a correlation id that is
// safe to hand to clients. The underlying cause stays in the logs.
type InternalError struct {
	CorrelationID idx.ID
	Err           error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error [%s]: %v", e.CorrelationID, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Internal tags err with a fresh correlation id. A nil err passes through.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return &InternalError{CorrelationID: idx.New(), Err: err}
}
