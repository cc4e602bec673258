package jwtx

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates tokens against a fixed ECDSA public key and signing
// method. Issuer and expiry are enforced here; the salted audience check
// belongs to the caller because it needs the stored application id.
type Verifier struct {
	method *jwt.SigningMethodECDSA
	pub    *ecdsa.PublicKey
	issuer string
}

// NewVerifierES256 creates a verifier for ES256 tokens.
func NewVerifierES256(pub *ecdsa.PublicKey, issuer string) *Verifier {
	return &Verifier{method: jwt.SigningMethodES256, pub: pub, issuer: issuer}
}

// NewVerifierES512 creates a verifier for ES512 tokens.
func NewVerifierES512(pub *ecdsa.PublicKey, issuer string) *Verifier {
	return &Verifier{method: jwt.SigningMethodES512, pub: pub, issuer: issuer}
}

// Verify validates the JWT string and returns its parsed Claims. The
// signing method is pinned inside the keyfunc, so an "alg" header swap
// fails before any signature work.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != v.method.Alg() {
			return nil, ErrAlgMismatch
		}
		return v.pub, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAlgMismatch):
			return nil, ErrAlgMismatch
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSig
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrNotYetValid
		default:
			return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("jwtx: invalid token claims")
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiry(time.Now().UTC()); err != nil {
		return nil, err
	}

	return claims, nil
}

// DecodeUnverified parses claims WITHOUT checking the signature. It exists
// so callers can read the audience salt before committing to the expensive
// verification path. Never trust its output on its own.
func DecodeUnverified(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser()

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, ErrMalformed
	}

	return claims, nil
}
