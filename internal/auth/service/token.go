package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/activitymaster/clubauth/pkg/jwtx"
	"github.com/activitymaster/clubauth/pkg/metrics"
	"github.com/activitymaster/clubauth/pkg/slogx"
)

// Token lifetimes per class. The refresh token cannot be redeemed during
// its first eight minutes, which keeps a stolen pair from being rotated
// while the access token is still fresh.
const (
	SecurityTokenTTL = 5 * time.Minute
	AccessTokenTTL   = 12 * time.Minute
	RefreshTokenTTL  = 7 * 24 * time.Hour
	RefreshNotBefore = 8 * time.Minute
)

// TokenService mints and verifies the three JWT classes. Every mint
// persists a row first and signs second; every verify requires the row to
// still exist. Deleting rows is how revocation works.
type TokenService struct {
	Keys   *keys.KeyStore
	Store  store.Store
	Issuer string
}

func (s *TokenService) signer(class domain.TokenClass) *jwtx.Signer {
	switch class {
	case domain.TokenSecurity:
		return s.Keys.SecuritySigner()
	case domain.TokenAccess:
		return s.Keys.AccessSigner()
	default:
		return s.Keys.RefreshSigner()
	}
}

func (s *TokenService) verifier(class domain.TokenClass) *jwtx.Verifier {
	switch class {
	case domain.TokenSecurity:
		return jwtx.NewVerifierES256(s.Keys.SecuritySigner().PublicKey(), s.Issuer)
	case domain.TokenAccess:
		return jwtx.NewVerifierES256(s.Keys.AccessSigner().PublicKey(), s.Issuer)
	default:
		return jwtx.NewVerifierES512(s.Keys.RefreshSigner().PublicKey(), s.Issuer)
	}
}

// IssueSecurityToken mints a five-minute step token carrying the given amr
// and bound to a freshly salted application hash.
func (s *TokenService) IssueSecurityToken(ctx context.Context, userID, applicationID string, amr []string) (string, error) {
	now := time.Now().UTC()

	audience, err := cryptox.SaltedHash(applicationID)
	if err != nil {
		return "", domain.Internal(err)
	}

	claims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:   s.Issuer,
		Subject:  userID,
		Audience: audience,
		AMR:      amr,
		TTL:      SecurityTokenTTL,
	}, now)

	err = s.Store.Tokens().CreateToken(ctx, domain.UserToken{
		JTI:          claims.ID,
		UserID:       userID,
		Class:        domain.TokenSecurity,
		AudienceHash: audience,
		CreatedAt:    now,
		ExpiresAt:    claims.ExpiresAt.Time,
	})
	if err != nil {
		return "", domain.Internal(err)
	}

	token, err := s.Keys.SecuritySigner().Sign(claims)
	if err != nil {
		return "", domain.Internal(err)
	}

	metrics.TokensIssued.WithLabelValues(string(domain.TokenSecurity)).Inc()
	return token, nil
}

// IssueAuthTokens mints an access/refresh pair. Both tokens share one
// salted audience hash so revoking the audience kills the pair together.
// The rows are committed in one transaction before either JWT is signed.
func (s *TokenService) IssueAuthTokens(ctx context.Context, userID, applicationID string) (domain.TokenPair, error) {
	now := time.Now().UTC()

	audience, err := cryptox.SaltedHash(applicationID)
	if err != nil {
		return domain.TokenPair{}, domain.Internal(err)
	}

	accessClaims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:   s.Issuer,
		Subject:  userID,
		Audience: audience,
		TTL:      AccessTokenTTL,
	}, now)

	refreshClaims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:         s.Issuer,
		Subject:        userID,
		Audience:       audience,
		TTL:            RefreshTokenTTL,
		NotBeforeDelay: RefreshNotBefore,
	}, now)

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().CreateToken(ctx, domain.UserToken{
			JTI:          accessClaims.ID,
			UserID:       userID,
			Class:        domain.TokenAccess,
			AudienceHash: audience,
			CreatedAt:    now,
			ExpiresAt:    accessClaims.ExpiresAt.Time,
		}); err != nil {
			return err
		}
		return tx.Tokens().CreateToken(ctx, domain.UserToken{
			JTI:          refreshClaims.ID,
			UserID:       userID,
			Class:        domain.TokenRefresh,
			AudienceHash: audience,
			CreatedAt:    now,
			ExpiresAt:    refreshClaims.ExpiresAt.Time,
		})
	})
	if err != nil {
		return domain.TokenPair{}, domain.Internal(err)
	}

	accessToken, err := s.Keys.AccessSigner().Sign(accessClaims)
	if err != nil {
		return domain.TokenPair{}, domain.Internal(err)
	}
	refreshToken, err := s.Keys.RefreshSigner().Sign(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, domain.Internal(err)
	}

	metrics.TokensIssued.WithLabelValues(string(domain.TokenAccess)).Inc()
	metrics.TokensIssued.WithLabelValues(string(domain.TokenRefresh)).Inc()

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(AccessTokenTTL.Seconds()),
	}, nil
}

// Verify checks a token of the expected class against the caller's
// application id. Every failure mode collapses to ErrInvalidToken so a
// probing client learns nothing about which check tripped.
func (s *TokenService) Verify(ctx context.Context, token string, class domain.TokenClass, applicationID string) (*jwtx.Claims, error) {
	l := slogx.FromContext(ctx)

	reject := func(reason string) (*jwtx.Claims, error) {
		metrics.TokensRejected.WithLabelValues(string(class)).Inc()
		l.Debug("token rejected", slog.String("class", string(class)), slog.String("reason", reason))
		return nil, domain.ErrInvalidToken
	}

	// Read the audience salt before any signature work. The salt is
	// public; only the recomputed digest binds the caller's app id.
	unverified, err := jwtx.DecodeUnverified(token)
	if err != nil {
		return reject("malformed")
	}

	salt, _, found := strings.Cut(unverified.SoleAudience(), ".")
	if !found {
		return reject("audience shape")
	}

	expectedAudience, err := cryptox.SaltedHashWith(applicationID, salt)
	if err != nil {
		return reject("audience salt")
	}

	claims, err := s.verifier(class).Verify(token)
	if err != nil {
		return reject("signature or claims")
	}

	if subtle.ConstantTimeCompare([]byte(expectedAudience), []byte(claims.SoleAudience())) != 1 {
		return reject("audience mismatch")
	}

	row, err := s.Store.Tokens().GetToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reject("revoked")
		}
		return nil, domain.Internal(err)
	}

	if row.Class != class || row.UserID != claims.Subject {
		return reject("row mismatch")
	}
	if !cryptox.VerifySaltedHash(applicationID, row.AudienceHash) {
		return reject("stored audience mismatch")
	}

	return claims, nil
}

// Revoke deletes one token row by jti.
func (s *TokenService) Revoke(ctx context.Context, jti string) error {
	if err := s.Store.Tokens().DeleteToken(ctx, jti); err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Internal(err)
	}
	return nil
}

// RevokeAudience deletes every token a user holds under one audience
// hash, killing an access/refresh pair in one stroke.
func (s *TokenService) RevokeAudience(ctx context.Context, userID, audienceHash string) error {
	if err := s.Store.Tokens().DeleteTokensForAudience(ctx, userID, audienceHash); err != nil {
		return domain.Internal(err)
	}
	return nil
}

// RevokeAll deletes everything a user holds, all classes and audiences.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.Store.Tokens().DeleteAllUserTokens(ctx, userID); err != nil {
		return domain.Internal(err)
	}
	return nil
}
