package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/service"
	"github.com/activitymaster/clubauth/pkg/httpx"
	"github.com/activitymaster/clubauth/pkg/slogx"
)

// AuthHandler covers login, token exchange and password recovery.
type AuthHandler struct {
	AuthService *service.AuthService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	SecurityToken string   `json:"security_token"`
	Methods       []string `json:"methods"`
}

type twoFactorRequest struct {
	SecurityToken string `json:"security_token"`
	Method        string `json:"method"`
	Code          string `json:"code"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func pairResponse(pair domain.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	}
}

// HandleLogin handles POST /v1/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	result, err := h.AuthService.Login(ctx, req.Email, req.Password,
		httpx.ApplicationIDFromContext(ctx), httpx.IPKeyExtractor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	methods := make([]string, 0, len(result.Methods))
	for _, m := range result.Methods {
		methods = append(methods, string(m))
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		SecurityToken: result.SecurityToken,
		Methods:       methods,
	})
}

// HandleTwoFactor handles POST /v1/auth/2fa.
func (h *AuthHandler) HandleTwoFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req twoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if req.SecurityToken == "" || req.Code == "" {
		writeBadRequest(w, "security_token and code are required")
		return
	}

	method := domain.TwoFactorMethod(req.Method)
	if method != domain.TwoFactorEmail && method != domain.TwoFactorTOTP {
		writeBadRequest(w, "method must be \"email\" or \"totp\"")
		return
	}

	pair, err := h.AuthService.CompleteTwoFactor(ctx, req.SecurityToken,
		httpx.ApplicationIDFromContext(ctx), method, req.Code, httpx.IPKeyExtractor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pairResponse(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefresh handles POST /v1/auth/refresh.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	pair, err := h.AuthService.Refresh(ctx, req.RefreshToken,
		httpx.ApplicationIDFromContext(ctx), httpx.IPKeyExtractor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pairResponse(pair))
}

// HandleLogout handles POST /v1/auth/logout. The bearer access token names
// the pair being revoked.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, ok := bearerToken(r)
	if !ok {
		writeDomainError(w, r, domain.ErrInvalidToken)
		return
	}

	err := h.AuthService.Logout(ctx, raw, httpx.ApplicationIDFromContext(ctx), httpx.IPKeyExtractor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// HandleForgotPassword handles POST /v1/auth/forgot-password.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	err := h.AuthService.ForgotPassword(ctx, req.Email, httpx.IPKeyExtractor(r))
	if errors.Is(err, domain.ErrInvalidCredentials) {
		// An unknown address gets the same response as a known one.
		slogx.FromContext(ctx).Info("password reset for unknown email")
	} else if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleResetPasswordExchange handles GET /v1/auth/reset-password. It
// trades the emailed link for a short-lived step token.
func (h *AuthHandler) HandleResetPasswordExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	linkToken := r.URL.Query().Get("token")
	if linkToken == "" {
		writeBadRequest(w, "token query parameter is required")
		return
	}

	securityToken, err := h.AuthService.ExchangeResetLink(ctx, linkToken, httpx.ApplicationIDFromContext(ctx))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"security_token": securityToken})
}

type resetPasswordRequest struct {
	SecurityToken string `json:"security_token"`
	NewPassword   string `json:"new_password"`
}

// HandleResetPassword handles POST /v1/auth/reset-password.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if req.SecurityToken == "" || req.NewPassword == "" {
		writeBadRequest(w, "security_token and new_password are required")
		return
	}

	err := h.AuthService.ResetPassword(ctx, req.SecurityToken,
		httpx.ApplicationIDFromContext(ctx), req.NewPassword, httpx.IPKeyExtractor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
