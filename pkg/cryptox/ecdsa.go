package cryptox

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// GenerateECDSAKeyPEM generates a new ECDSA private key on the given curve
// and returns it in PEM format (PKCS8). P-256 backs ES256 signing, P-521
// backs ES512 and P-384 backs the field-encryption exchange.
func GenerateECDSAKeyPEM(curve elliptic.Curve) ([]byte, error) {
	privateKey, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate ECDSA key: %w", err)
	}

	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}

	privateKeyPEM := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privateKeyBytes,
	}

	return pem.EncodeToMemory(privateKeyPEM), nil
}

// ParseECDSAKeyPEM parses a PKCS8 PEM-encoded ECDSA private key.
func ParseECDSAKeyPEM(pemData []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("cryptox: no PEM block found")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to parse PKCS8 key: %w", err)
	}

	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("cryptox: key is not ECDSA")
	}
	return ecKey, nil
}

// ECDHFromECDSA converts an ECDSA private key into its crypto/ecdh form for
// key agreement. Only NIST curves convert cleanly.
func ECDHFromECDSA(key *ecdsa.PrivateKey) (*ecdh.PrivateKey, error) {
	ecdhKey, err := key.ECDH()
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to convert key for ECDH: %w", err)
	}
	return ecdhKey, nil
}
