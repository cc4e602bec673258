package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/pkg/jwtx"
)

func newTokenService(t *testing.T) (*TokenService, domain.User) {
	t.Helper()

	st := newTestStore(t)
	svc := &TokenService{
		Keys:   newTestKeys(t),
		Store:  st,
		Issuer: "clubauth-test",
	}
	user := createTestUser(t, st, "token@example.com", "hunter2hunter2", true)
	return svc, user
}

func TestSecurityTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, user := newTokenService(t)

	token, err := svc.IssueSecurityToken(ctx, user.ID, testApplicationID, []string{domain.AMRTwoFactor})
	require.NoError(t, err)

	claims, err := svc.Verify(ctx, token, domain.TokenSecurity, testApplicationID)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.True(t, claims.HasAMR(domain.AMRTwoFactor))
	require.False(t, claims.HasAMR(domain.AMRResetPassword))
}

func TestVerifyRejectsWrongClass(t *testing.T) {
	ctx := context.Background()
	svc, user := newTokenService(t)

	token, err := svc.IssueSecurityToken(ctx, user.ID, testApplicationID, []string{domain.AMRTwoFactor})
	require.NoError(t, err)

	_, err = svc.Verify(ctx, token, domain.TokenAccess, testApplicationID)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyRejectsWrongApplication(t *testing.T) {
	ctx := context.Background()
	svc, user := newTokenService(t)

	token, err := svc.IssueSecurityToken(ctx, user.ID, testApplicationID, []string{domain.AMRTwoFactor})
	require.NoError(t, err)

	_, err = svc.Verify(ctx, token, domain.TokenSecurity, "5c4f58a2-73c8-4a40-9078-fa7c6ec7a77b")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTokenService(t)

	_, err := svc.Verify(ctx, "not-a-token", domain.TokenAccess, testApplicationID)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAuthTokensShareAudience(t *testing.T) {
	ctx := context.Background()
	svc, user := newTokenService(t)

	pair, err := svc.IssueAuthTokens(ctx, user.ID, testApplicationID)
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)
	require.EqualValues(t, AccessTokenTTL.Seconds(), pair.ExpiresIn)

	access, err := jwtx.DecodeUnverified(pair.AccessToken)
	require.NoError(t, err)
	refresh, err := jwtx.DecodeUnverified(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, access.SoleAudience(), refresh.SoleAudience())
	require.NotEqual(t, access.ID, refresh.ID)
}

func TestRefreshTokenNotValidImmediately(t *testing.T) {
	ctx := context.Background()
	svc, user := newTokenService(t)

	pair, err := svc.IssueAuthTokens(ctx, user.ID, testApplicationID)
	require.NoError(t, err)

	// The refresh token carries a not-before eight minutes out.
	_, err = svc.Verify(ctx, pair.RefreshToken, domain.TokenRefresh, testApplicationID)
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.Verify(ctx, pair.AccessToken, domain.TokenAccess, testApplicationID)
	require.NoError(t, err)
}

func TestRevokeAudienceKillsPair(t *testing.T) {
	ctx := context.Background()
	svc, user := newTokenService(t)

	pair, err := svc.IssueAuthTokens(ctx, user.ID, testApplicationID)
	require.NoError(t, err)

	access, err := svc.Verify(ctx, pair.AccessToken, domain.TokenAccess, testApplicationID)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAudience(ctx, user.ID, access.SoleAudience()))

	_, err = svc.Verify(ctx, pair.AccessToken, domain.TokenAccess, testApplicationID)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRevokeSingleToken(t *testing.T) {
	ctx := context.Background()
	svc, user := newTokenService(t)

	token, err := svc.IssueSecurityToken(ctx, user.ID, testApplicationID, []string{domain.AMRTwoFactor})
	require.NoError(t, err)

	claims, err := svc.Verify(ctx, token, domain.TokenSecurity, testApplicationID)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, claims.ID))

	_, err = svc.Verify(ctx, token, domain.TokenSecurity, testApplicationID)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRevokeAllClearsEveryAudience(t *testing.T) {
	ctx := context.Background()
	svc, user := newTokenService(t)

	first, err := svc.IssueAuthTokens(ctx, user.ID, testApplicationID)
	require.NoError(t, err)
	second, err := svc.IssueAuthTokens(ctx, user.ID, testApplicationID)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, user.ID))

	_, err = svc.Verify(ctx, first.AccessToken, domain.TokenAccess, testApplicationID)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = svc.Verify(ctx, second.AccessToken, domain.TokenAccess, testApplicationID)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}
