package http

import (
	"encoding/json"
	"net/http"

	"github.com/activitymaster/clubauth/internal/auth/service"
	"github.com/activitymaster/clubauth/pkg/httpx"
)

// TwoFactorHandler manages TOTP enrollment for authenticated users.
type TwoFactorHandler struct {
	TwoFactorService *service.TwoFactorService
	UserService      *service.UserService
}

// HandleListMethods handles GET /v1/2fa/methods.
func (h *TwoFactorHandler) HandleListMethods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	factors, err := h.TwoFactorService.ListMethods(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	type methodInfo struct {
		Method     string `json:"method"`
		DeviceName string `json:"device_name,omitempty"`
	}
	out := make([]methodInfo, 0, len(factors))
	for _, f := range factors {
		out = append(out, methodInfo{Method: string(f.Method), DeviceName: f.DeviceName})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"methods": out})
}

type totpEnrollRequest struct {
	DeviceName string `json:"device_name"`
}

// HandleTOTPEnroll handles POST /v1/2fa/totp/enroll.
func (h *TwoFactorHandler) HandleTOTPEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	var req totpEnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}

	user, err := h.UserService.GetUser(ctx, userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	enrollment, err := h.TwoFactorService.BeginTOTPEnrollment(ctx, userID, user.Email, req.DeviceName)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// The secret is shown exactly once.
	httpx.WriteJSON(w, http.StatusOK, enrollment)
}

type totpConfirmRequest struct {
	Code string `json:"code"`
}

// HandleTOTPConfirm handles POST /v1/2fa/totp/confirm.
func (h *TwoFactorHandler) HandleTOTPConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req totpConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}

	backupCodes, err := h.TwoFactorService.ConfirmTOTPEnrollment(ctx, httpx.UserIDFromContext(ctx), req.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"backup_codes": backupCodes})
}

type totpRemoveRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// HandleTOTPRemove handles DELETE /v1/2fa/totp. Removal re-proves both the
// password and device possession.
func (h *TwoFactorHandler) HandleTOTPRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req totpRemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if req.Password == "" || req.Code == "" {
		writeBadRequest(w, "password and code are required")
		return
	}

	err := h.TwoFactorService.RemoveTOTP(ctx, httpx.UserIDFromContext(ctx), req.Password, req.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
