package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the token claims shared by every token class the service
// issues. The audience always holds exactly one salted application hash,
// never a plain application id.
type Claims struct {
	jwt.RegisteredClaims

	// Authentication Methods Reference, e.g. ["2fa"] on a token minted
	// after the first login factor, or ["reset_password"] on a token
	// minted by a password-reset link. Absent on fully authenticated
	// access and refresh tokens.
	AMR []string `json:"amr,omitempty"`
}

// ClaimSpec captures everything needed to mint one token's claims.
type ClaimSpec struct {
	Issuer   string
	Subject  string
	Audience string
	AMR      []string

	// TTL is the lifetime measured from now.
	TTL time.Duration

	// NotBeforeDelay pushes nbf past iat, used on refresh tokens so they
	// cannot be redeemed while their access sibling is still young.
	NotBeforeDelay time.Duration
}

// NewClaims builds claims from a spec at the given instant. The jti is a
// fresh UUIDv4 and keys the token's persisted row.
func NewClaims(spec ClaimSpec, now time.Time) Claims {
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    spec.Issuer,
			Subject:   spec.Subject,
			Audience:  jwt.ClaimStrings{spec.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(spec.TTL)),
			ID:        uuid.NewString(),
		},
		AMR: spec.AMR,
	}

	if spec.NotBeforeDelay > 0 {
		c.NotBefore = jwt.NewNumericDate(now.Add(spec.NotBeforeDelay))
	}

	return c
}

// SoleAudience returns the single audience entry, or "" if the claim is
// missing or carries more than one value.
func (c *Claims) SoleAudience() string {
	if len(c.Audience) != 1 {
		return ""
	}
	return c.Audience[0]
}

// HasAMR reports whether the given method is present in the amr claim.
func (c *Claims) HasAMR(method string) bool {
	for _, m := range c.AMR {
		if m == method {
			return true
		}
	}
	return false
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
