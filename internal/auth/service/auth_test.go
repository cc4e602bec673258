package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/activitymaster/clubauth/pkg/jwtx"
)

const testPassword = "correct horse battery staple"

func newAuthService(t *testing.T) (*AuthService, *captureMailer) {
	t.Helper()

	st := newTestStore(t)
	ks := newTestKeys(t)
	mailer := &captureMailer{}

	tokens := &TokenService{Keys: ks, Store: st, Issuer: "clubauth-test"}
	twoFactor := &TwoFactorService{Keys: ks, Store: st, Issuer: "clubauth-test"}

	return &AuthService{
		Store:         st,
		Tokens:        tokens,
		TwoFactor:     twoFactor,
		Keys:          ks,
		Sink:          newTestSink(t, st),
		Mailer:        mailer,
		PublicBaseURL: "https://auth.example.com",
	}, mailer
}

func registerVerifiedUser(t *testing.T, svc *AuthService, email string) domain.User {
	t.Helper()
	return createTestUser(t, svc.Store, email, testPassword, true)
}

func linkQueryToken(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestLoginWithEmailSecondFactor(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newAuthService(t)
	user := registerVerifiedUser(t, svc, "login@example.com")

	result, err := svc.Login(ctx, user.Email, testPassword, testApplicationID, "203.0.113.7")
	require.NoError(t, err)
	require.Equal(t, []domain.TwoFactorMethod{domain.TwoFactorEmail}, result.Methods)
	require.NotEmpty(t, result.SecurityToken)

	code := mailer.lastCode(t)
	pair, err := svc.CompleteTwoFactor(ctx, result.SecurityToken, testApplicationID, domain.TwoFactorEmail, code, "203.0.113.7")
	require.NoError(t, err)

	claims, err := svc.Tokens.Verify(ctx, pair.AccessToken, domain.TokenAccess, testApplicationID)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)

	// The step token is burned by the exchange.
	_, err = svc.CompleteTwoFactor(ctx, result.SecurityToken, testApplicationID, domain.TwoFactorEmail, code, "203.0.113.7")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestLoginRejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)
	registerVerifiedUser(t, svc, "known@example.com")
	createTestUser(t, svc.Store, "unverified@example.com", testPassword, false)

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", testPassword, testApplicationID, "")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "known@example.com", "not the password", testApplicationID, "")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unverified email", func(t *testing.T) {
		_, err := svc.Login(ctx, "unverified@example.com", testPassword, testApplicationID, "")
		require.ErrorIs(t, err, domain.ErrEmailNotVerified)
	})

	t.Run("bad application id", func(t *testing.T) {
		_, err := svc.Login(ctx, "known@example.com", testPassword, "not-a-uuid", "")
		require.ErrorIs(t, err, domain.ErrInvalidApplicationID)
	})

	t.Run("anonymized account", func(t *testing.T) {
		user := registerVerifiedUser(t, svc, "former@example.com")
		require.NoError(t, svc.Store.Users().AnonymizeUser(ctx, user.ID))

		// The anonymized row keeps its hash and verified flag, so the
		// rewritten address with the old password must still be refused.
		_, err := svc.Login(ctx, "anonymized-"+user.ID, testPassword, testApplicationID, "")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("system account", func(t *testing.T) {
		user := registerVerifiedUser(t, svc, "operator@example.com")
		require.NoError(t, svc.Store.Users().SetSystemFlag(ctx, user.ID, true))

		_, err := svc.Login(ctx, user.Email, testPassword, testApplicationID, "")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})
}

func TestForgotPasswordRejectsFlaggedAccounts(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newAuthService(t)

	anon := registerVerifiedUser(t, svc, "gone@example.com")
	require.NoError(t, svc.Store.Users().AnonymizeUser(ctx, anon.ID))
	require.ErrorIs(t, svc.ForgotPassword(ctx, "anonymized-"+anon.ID, ""), domain.ErrInvalidCredentials)

	operator := registerVerifiedUser(t, svc, "ops@example.com")
	require.NoError(t, svc.Store.Users().SetSystemFlag(ctx, operator.ID, true))
	require.ErrorIs(t, svc.ForgotPassword(ctx, operator.Email, ""), domain.ErrInvalidCredentials)

	require.Empty(t, mailer.links)
}

func TestLoginPrefersTOTPOverEmail(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newAuthService(t)
	user := registerVerifiedUser(t, svc, "totp-login@example.com")

	enrollment, err := svc.TwoFactor.BeginTOTPEnrollment(ctx, user.ID, user.Email, "phone")
	require.NoError(t, err)
	confirmCode, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	_, err = svc.TwoFactor.ConfirmTOTPEnrollment(ctx, user.ID, confirmCode)
	require.NoError(t, err)

	result, err := svc.Login(ctx, user.Email, testPassword, testApplicationID, "")
	require.NoError(t, err)
	require.Equal(t, []domain.TwoFactorMethod{domain.TwoFactorTOTP}, result.Methods)

	// No email code goes out when a TOTP device is enrolled.
	mailer.mu.Lock()
	require.Empty(t, mailer.codes)
	mailer.mu.Unlock()

	loginCode, err := totp.GenerateCode(enrollment.Secret, time.Now().Add(30*time.Second))
	require.NoError(t, err)
	_, err = svc.CompleteTwoFactor(ctx, result.SecurityToken, testApplicationID, domain.TwoFactorTOTP, loginCode, "")
	require.NoError(t, err)
}

func TestRefreshRotatesPair(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)
	user := registerVerifiedUser(t, svc, "refresh@example.com")

	pair, err := svc.Tokens.IssueAuthTokens(ctx, user.ID, testApplicationID)
	require.NoError(t, err)

	// A fresh refresh token is not redeemable yet.
	_, err = svc.Refresh(ctx, pair.RefreshToken, testApplicationID, "")
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	refreshToken := mintMatureRefreshToken(t, svc, user.ID)

	newPair, err := svc.Refresh(ctx, refreshToken, testApplicationID, "")
	require.NoError(t, err)

	// The redeemed token's audience is dead.
	_, err = svc.Refresh(ctx, refreshToken, testApplicationID, "")
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.Tokens.Verify(ctx, newPair.AccessToken, domain.TokenAccess, testApplicationID)
	require.NoError(t, err)
}

// mintMatureRefreshToken persists and signs a refresh token with no
// not-before delay, standing in for a pair issued over eight minutes ago.
func mintMatureRefreshToken(t *testing.T, svc *AuthService, userID string) string {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Add(-RefreshNotBefore)

	audience, err := cryptox.SaltedHash(testApplicationID)
	require.NoError(t, err)

	claims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:   svc.Tokens.Issuer,
		Subject:  userID,
		Audience: audience,
		TTL:      RefreshTokenTTL,
	}, now)

	require.NoError(t, svc.Store.Tokens().CreateToken(ctx, domain.UserToken{
		JTI:          claims.ID,
		UserID:       userID,
		Class:        domain.TokenRefresh,
		AudienceHash: audience,
		CreatedAt:    now,
		ExpiresAt:    claims.ExpiresAt.Time,
	}))

	token, err := svc.Keys.RefreshSigner().Sign(claims)
	require.NoError(t, err)
	return token
}

func TestLogoutRevokesPair(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)
	user := registerVerifiedUser(t, svc, "logout@example.com")

	pair, err := svc.Tokens.IssueAuthTokens(ctx, user.ID, testApplicationID)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.AccessToken, testApplicationID, ""))

	_, err = svc.Tokens.Verify(ctx, pair.AccessToken, domain.TokenAccess, testApplicationID)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newAuthService(t)
	user := registerVerifiedUser(t, svc, "reset@example.com")

	require.NoError(t, svc.ForgotPassword(ctx, user.Email, "198.51.100.4"))

	// One reset email per cooldown window.
	require.ErrorIs(t, svc.ForgotPassword(ctx, user.Email, "198.51.100.4"), domain.ErrTooManyAttempts)

	linkToken := linkQueryToken(t, mailer.lastLink(t))
	securityToken, err := svc.ExchangeResetLink(ctx, linkToken, testApplicationID)
	require.NoError(t, err)

	// A session issued before the reset must not survive it.
	pair, err := svc.Tokens.IssueAuthTokens(ctx, user.ID, testApplicationID)
	require.NoError(t, err)

	const newPassword = "brand new passphrase 9"
	require.NoError(t, svc.ResetPassword(ctx, securityToken, testApplicationID, newPassword, ""))

	// The step token is single use.
	require.ErrorIs(t, svc.ResetPassword(ctx, securityToken, testApplicationID, newPassword, ""),
		domain.ErrInvalidToken)

	_, err = svc.Tokens.Verify(ctx, pair.AccessToken, domain.TokenAccess, testApplicationID)
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.Login(ctx, user.Email, testPassword, testApplicationID, "")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, user.Email, newPassword, testApplicationID, "")
	require.NoError(t, err)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)

	require.ErrorIs(t, svc.ForgotPassword(ctx, "ghost@example.com", ""), domain.ErrInvalidCredentials)
}

func TestResetPasswordRejectsLoginStepToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t)
	user := registerVerifiedUser(t, svc, "amr@example.com")

	token, err := svc.Tokens.IssueSecurityToken(ctx, user.ID, testApplicationID, []string{domain.AMRTwoFactor})
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, token, testApplicationID, "another password 42", "")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}
