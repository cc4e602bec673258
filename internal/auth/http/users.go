package http

import (
	"encoding/json"
	"net/http"

	"github.com/activitymaster/clubauth/internal/auth/service"
	"github.com/activitymaster/clubauth/pkg/httpx"
)

// UsersHandler covers registration and account self-service.
type UsersHandler struct {
	UserService *service.UserService
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type userResponse struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
}

// HandleRegister handles POST /v1/users.
func (h *UsersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}
	if len(req.Password) < 12 {
		writeBadRequest(w, "password must be at least 12 characters")
		return
	}

	user, err := h.UserService.Register(ctx, req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, userResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	})
}

// HandleVerifyEmail handles GET /v1/users/verify-email.
func (h *UsersHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	linkToken := r.URL.Query().Get("token")
	if linkToken == "" {
		writeBadRequest(w, "token query parameter is required")
		return
	}

	if err := h.UserService.VerifyEmail(r.Context(), linkToken); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

// HandleResendVerification handles POST /v1/users/resend-verification.
func (h *UsersHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	if err := h.UserService.ResendVerification(r.Context(), req.Email); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleMe handles GET /v1/users/me.
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.UserService.GetUser(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse{
		ID:         user.ID,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Email:      user.Email,
		IsVerified: user.IsVerified,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChangePassword handles POST /v1/users/me/change-password.
func (h *UsersHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeBadRequest(w, "current_password and new_password are required")
		return
	}
	if len(req.NewPassword) < 12 {
		writeBadRequest(w, "password must be at least 12 characters")
		return
	}

	err := h.UserService.ChangePassword(ctx, httpx.UserIDFromContext(ctx),
		req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// HandleDeleteAccount handles DELETE /v1/users/me.
func (h *UsersHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeBadRequest(w, "password is required")
		return
	}

	if err := h.UserService.DeleteAccount(ctx, httpx.UserIDFromContext(ctx), req.Password); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
