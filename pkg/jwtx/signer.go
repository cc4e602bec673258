package jwtx

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs claims with a fixed ECDSA key and signing method. The
// service runs one signer per token class, each backed by its own keypair.
type Signer struct {
	method *jwt.SigningMethodECDSA
	key    *ecdsa.PrivateKey
}

// NewSignerES256 creates a signer using ECDSA P-256 with SHA-256.
// Keys must be PKCS8 PEM.
func NewSignerES256(pemKey []byte) (*Signer, error) {
	return newSigner(jwt.SigningMethodES256, "P-256", pemKey)
}

// NewSignerES512 creates a signer using ECDSA P-521 with SHA-512.
// Keys must be PKCS8 PEM.
func NewSignerES512(pemKey []byte) (*Signer, error) {
	return newSigner(jwt.SigningMethodES512, "P-521", pemKey)
}

func newSigner(method *jwt.SigningMethodECDSA, curve string, pemKey []byte) (*Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for signing key")
	}

	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (PKCS8 required)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}

	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not ECDSA private key")
	}

	if key.Curve.Params().Name != curve {
		return nil, fmt.Errorf("jwtx: expected %s curve, got %s", curve, key.Curve.Params().Name)
	}

	return &Signer{method: method, key: key}, nil
}

// Alg returns the JOSE algorithm name, e.g. "ES256".
func (s *Signer) Alg() string { return s.method.Alg() }

// Sign turns claims into a signed compact JWT string.
func (s *Signer) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(s.method, claims).SignedString(s.key)
}

// PublicKey exposes the verification half of the signing key.
func (s *Signer) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}
