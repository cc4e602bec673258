package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/activitymaster/clubauth/internal/auth/audit"
	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/activitymaster/clubauth/pkg/idx"
	"github.com/activitymaster/clubauth/pkg/metrics"
)

const (
	// PasswordResetLinkTTL bounds the emailed reset link, not the step
	// token minted from it.
	PasswordResetLinkTTL = 300 * time.Second

	// ForgotPasswordCooldown is the minimum gap between reset emails for
	// one account.
	ForgotPasswordCooldown = 5 * time.Minute

	// EmailVerifyLinkTTL bounds the address confirmation link sent at
	// registration.
	EmailVerifyLinkTTL = 24 * time.Hour
)

// Mailer delivers transactional mail. The service only ever hands it
// short-lived secrets; storage and retries are the implementation's
// problem.
type Mailer interface {
	SendTwoFactorCode(ctx context.Context, to, code string) error
	SendVerificationLink(ctx context.Context, to, link string) error
	SendPasswordResetLink(ctx context.Context, to, link string) error
}

// LoginResult is the outcome of a successful first factor: a five-minute
// step token and the second factors able to finish the login.
type LoginResult struct {
	SecurityToken string
	Methods       []domain.TwoFactorMethod
}

// AuthService drives the login, refresh, logout and password recovery
// flows, delegating token and factor mechanics to the focused services.
type AuthService struct {
	Store     store.Store
	Tokens    *TokenService
	TwoFactor *TwoFactorService
	Keys      *keys.KeyStore
	Sink      *audit.Sink
	Mailer    Mailer

	// PublicBaseURL prefixes links embedded in outgoing mail.
	PublicBaseURL string
}

func validateApplicationID(applicationID string) error {
	if _, err := uuid.Parse(applicationID); err != nil {
		return domain.ErrInvalidApplicationID
	}
	return nil
}

// Login checks the first factor and opens a two-factor challenge. The
// email-verified gate runs before the password check so an unverified
// account gets a actionable error instead of a generic rejection.
func (s *AuthService) Login(ctx context.Context, email, password, applicationID, ip string) (LoginResult, error) {
	if err := validateApplicationID(applicationID); err != nil {
		return LoginResult{}, err
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.LoginAttempts.WithLabelValues("invalid").Inc()
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, domain.Internal(err)
	}

	// Anonymized rows keep their hash for referential integrity and
	// system accounts never hold interactive sessions; neither may pass
	// the first factor.
	if user.IsAnonymized || user.IsSystem {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	if !user.IsVerified {
		metrics.LoginAttempts.WithLabelValues("unverified").Inc()
		return LoginResult{}, domain.ErrEmailNotVerified
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		s.Sink.RecordAuth(user.ID, domain.AuthPassword, ip, false, "wrong password")
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	securityToken, err := s.Tokens.IssueSecurityToken(ctx, user.ID, applicationID, []string{domain.AMRTwoFactor})
	if err != nil {
		return LoginResult{}, err
	}

	factors, err := s.TwoFactor.ListMethods(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	methods := make([]domain.TwoFactorMethod, 0, len(factors))
	hasTOTP := false
	for _, f := range factors {
		methods = append(methods, f.Method)
		if f.Method == domain.TwoFactorTOTP {
			hasTOTP = true
		}
	}

	// Email is the implicit second factor when nothing stronger is
	// enrolled. The challenge replaces any code from an earlier login.
	if !hasTOTP {
		code, err := s.TwoFactor.CreateEmailChallenge(ctx, user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		if err := s.Mailer.SendTwoFactorCode(ctx, user.Email, code); err != nil {
			return LoginResult{}, domain.Internal(err)
		}
		if len(methods) == 0 {
			methods = append(methods, domain.TwoFactorEmail)
		}
	}

	s.Sink.RecordAuth(user.ID, domain.AuthPassword, ip, true, "")
	metrics.LoginAttempts.WithLabelValues("ok").Inc()

	return LoginResult{SecurityToken: securityToken, Methods: methods}, nil
}

// CompleteTwoFactor redeems a step token plus a second-factor code for an
// access/refresh pair. The step token is burned on success, and on an
// email lockout, so a locked challenge cannot be ridden out.
func (s *AuthService) CompleteTwoFactor(ctx context.Context, securityToken, applicationID string, method domain.TwoFactorMethod, code, ip string) (domain.TokenPair, error) {
	if err := validateApplicationID(applicationID); err != nil {
		return domain.TokenPair{}, err
	}

	claims, err := s.Tokens.Verify(ctx, securityToken, domain.TokenSecurity, applicationID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !claims.HasAMR(domain.AMRTwoFactor) {
		return domain.TokenPair{}, domain.ErrInvalidToken
	}
	userID := claims.Subject

	authMethod := domain.AuthEmail
	switch method {
	case domain.TwoFactorEmail:
		err = s.TwoFactor.VerifyEmailCode(ctx, userID, code)
		if errors.Is(err, domain.ErrTooManyAttempts) {
			if revokeErr := s.Tokens.Revoke(ctx, claims.ID); revokeErr != nil {
				return domain.TokenPair{}, revokeErr
			}
		}
	case domain.TwoFactorTOTP:
		authMethod = domain.AuthTOTP
		err = s.TwoFactor.VerifyTOTPCode(ctx, userID, code)
	default:
		err = domain.ErrInvalidCode
	}
	if err != nil {
		s.Sink.RecordAuth(userID, authMethod, ip, false, "")
		return domain.TokenPair{}, err
	}

	if err := s.Tokens.Revoke(ctx, claims.ID); err != nil {
		return domain.TokenPair{}, err
	}

	pair, err := s.Tokens.IssueAuthTokens(ctx, userID, applicationID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Sink.RecordAuth(userID, authMethod, ip, true, "")
	s.Sink.RecordAuth(userID, domain.AuthTokenCreate, ip, true, "")
	return pair, nil
}

// Refresh exchanges a live refresh token for a new pair. The old pair is
// revoked by audience before the new one is minted, so the refresh token
// is single-use.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, applicationID, ip string) (domain.TokenPair, error) {
	if err := validateApplicationID(applicationID); err != nil {
		return domain.TokenPair{}, err
	}

	claims, err := s.Tokens.Verify(ctx, refreshToken, domain.TokenRefresh, applicationID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.Tokens.RevokeAudience(ctx, claims.Subject, claims.SoleAudience()); err != nil {
		return domain.TokenPair{}, err
	}

	pair, err := s.Tokens.IssueAuthTokens(ctx, claims.Subject, applicationID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Sink.RecordAuth(claims.Subject, domain.AuthTokenRefresh, ip, true, "")
	return pair, nil
}

// Logout revokes the caller's access/refresh pair.
func (s *AuthService) Logout(ctx context.Context, accessToken, applicationID, ip string) error {
	if err := validateApplicationID(applicationID); err != nil {
		return err
	}

	claims, err := s.Tokens.Verify(ctx, accessToken, domain.TokenAccess, applicationID)
	if err != nil {
		return err
	}

	if err := s.Tokens.RevokeAudience(ctx, claims.Subject, claims.SoleAudience()); err != nil {
		return err
	}

	s.Sink.RecordAuth(claims.Subject, domain.AuthLogout, ip, true, "")
	return nil
}

// ForgotPassword emails a short-lived reset link. At most one email per
// account per cooldown window; the attempt is logged synchronously so the
// window holds even under concurrent requests.
func (s *AuthService) ForgotPassword(ctx context.Context, email, ip string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrInvalidCredentials
		}
		return domain.Internal(err)
	}
	if user.IsAnonymized || user.IsSystem {
		return domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	recent, err := s.Store.Audit().CountRecentAuthLogs(ctx, user.ID, domain.AuthForgotPassword, now.Add(-ForgotPasswordCooldown))
	if err != nil {
		return domain.Internal(err)
	}
	if recent > 0 {
		return domain.ErrTooManyAttempts
	}

	if err := s.Store.Audit().CreateAuthLog(ctx, newAuthLog(user.ID, domain.AuthForgotPassword, ip, true, "")); err != nil {
		return domain.Internal(err)
	}

	link := cryptox.SignLink(s.Keys.LinkKey(), user.ID, now.Add(PasswordResetLinkTTL))
	resetURL := fmt.Sprintf("%s/v1/auth/reset-password?token=%s", s.PublicBaseURL, link)
	if err := s.Mailer.SendPasswordResetLink(ctx, user.Email, resetURL); err != nil {
		return domain.Internal(err)
	}
	return nil
}

// ExchangeResetLink trades a valid reset link for a step token scoped to
// password replacement.
func (s *AuthService) ExchangeResetLink(ctx context.Context, linkToken, applicationID string) (string, error) {
	if err := validateApplicationID(applicationID); err != nil {
		return "", err
	}

	userID, err := cryptox.VerifyLink(s.Keys.LinkKey(), linkToken, time.Now().UTC())
	if err != nil {
		return "", domain.ErrInvalidToken
	}

	return s.Tokens.IssueSecurityToken(ctx, userID, applicationID, []string{domain.AMRResetPassword})
}

// ResetPassword replaces the password under a reset-scoped step token and
// revokes every token the user holds, ending all live sessions.
func (s *AuthService) ResetPassword(ctx context.Context, securityToken, applicationID, newPassword, ip string) error {
	if err := validateApplicationID(applicationID); err != nil {
		return err
	}

	claims, err := s.Tokens.Verify(ctx, securityToken, domain.TokenSecurity, applicationID)
	if err != nil {
		return err
	}
	if !claims.HasAMR(domain.AMRResetPassword) {
		return domain.ErrInvalidToken
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return domain.Internal(err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, claims.Subject, hash); err != nil {
		return domain.Internal(err)
	}
	if err := s.Tokens.RevokeAll(ctx, claims.Subject); err != nil {
		return err
	}

	s.Sink.RecordAudit(claims.Subject, "password_reset", domain.AuditUser, true, "")
	return nil
}

func newAuthLog(userID string, method domain.AuthMethod, ip string, status bool, details string) domain.AuthLog {
	return domain.AuthLog{
		ID:        idx.New().String(),
		UserID:    userID,
		Method:    method,
		IPAddress: ip,
		Status:    status,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}
