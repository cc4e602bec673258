package jwtx_test

import (
	"crypto/elliptic"
	"testing"
	"time"

	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/activitymaster/clubauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newSignerES256(t *testing.T) *jwtx.Signer {
	t.Helper()
	pemKey, err := cryptox.GenerateECDSAKeyPEM(elliptic.P256())
	require.NoError(t, err)
	s, err := jwtx.NewSignerES256(pemKey)
	require.NoError(t, err)
	return s
}

func TestSignVerifyES256(t *testing.T) {
	signer := newSignerES256(t)

	claims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:   "clubauth",
		Subject:  "user-1",
		Audience: "deadbeef.cafe",
		TTL:      5 * time.Minute,
	}, time.Now().UTC())

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierES256(signer.PublicKey(), "clubauth")
	got, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "deadbeef.cafe", got.SoleAudience())
	require.NotEmpty(t, got.ID, "jti should be set")
}

func TestSignVerifyES512(t *testing.T) {
	pemKey, err := cryptox.GenerateECDSAKeyPEM(elliptic.P521())
	require.NoError(t, err)
	signer, err := jwtx.NewSignerES512(pemKey)
	require.NoError(t, err)

	claims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:         "clubauth",
		Subject:        "user-1",
		Audience:       "deadbeef.cafe",
		TTL:            7 * 24 * time.Hour,
		NotBeforeDelay: 8 * time.Minute,
	}, time.Now().UTC())

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	// nbf is in the future, so verification must refuse the token for now
	verifier := jwtx.NewVerifierES512(signer.PublicKey(), "clubauth")
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrNotYetValid)
}

func TestVerifyAlgMismatch(t *testing.T) {
	signer := newSignerES256(t)

	claims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:   "clubauth",
		Subject:  "user-1",
		Audience: "aud",
		TTL:      time.Minute,
	}, time.Now().UTC())

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	// An ES256 token presented to an ES512 verifier is rejected on the
	// header alone.
	verifier := jwtx.NewVerifierES512(signer.PublicKey(), "clubauth")
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrAlgMismatch)
}

func TestSignerCurveMismatch(t *testing.T) {
	p256, err := cryptox.GenerateECDSAKeyPEM(elliptic.P256())
	require.NoError(t, err)

	_, err = jwtx.NewSignerES512(p256)
	require.Error(t, err)
}

func TestVerifyWrongIssuer(t *testing.T) {
	signer := newSignerES256(t)

	claims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:   "someone-else",
		Subject:  "user-1",
		Audience: "aud",
		TTL:      time.Minute,
	}, time.Now().UTC())

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierES256(signer.PublicKey(), "clubauth")
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestVerifyExpired(t *testing.T) {
	signer := newSignerES256(t)

	claims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:   "clubauth",
		Subject:  "user-1",
		Audience: "aud",
		TTL:      time.Minute,
	}, time.Now().UTC().Add(-time.Hour))

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierES256(signer.PublicKey(), "clubauth")
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestVerifyWrongKey(t *testing.T) {
	signer := newSignerES256(t)
	other := newSignerES256(t)

	claims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:   "clubauth",
		Subject:  "user-1",
		Audience: "aud",
		TTL:      time.Minute,
	}, time.Now().UTC())

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierES256(other.PublicKey(), "clubauth")
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestDecodeUnverified(t *testing.T) {
	signer := newSignerES256(t)

	claims := jwtx.NewClaims(jwtx.ClaimSpec{
		Issuer:   "clubauth",
		Subject:  "user-1",
		Audience: "salt.digest",
		AMR:      []string{"2fa"},
		TTL:      time.Minute,
	}, time.Now().UTC())

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := jwtx.DecodeUnverified(token)
	require.NoError(t, err)
	require.Equal(t, "salt.digest", got.SoleAudience())
	require.True(t, got.HasAMR("2fa"))

	_, err = jwtx.DecodeUnverified("garbage")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
