package http

import (
	"net/http"

	"github.com/activitymaster/clubauth/internal/auth/service"
)

// KeyRotationHandler exposes the TOTP key rotation as an operator
// endpoint. Reserved for system accounts.
type KeyRotationHandler struct {
	KeyRotationService *service.KeyRotationService
}

// HandleRotateTOTPKey handles POST /v1/system/rotate-totp-key. Every
// sealed authenticator secret is re-sealed under a fresh key; the key
// file is only replaced once the last secret has been rewritten.
func (h *KeyRotationHandler) HandleRotateTOTPKey(w http.ResponseWriter, r *http.Request) {
	if err := h.KeyRotationService.RotateTOTPKey(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
