package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ECIES wire layout over P-384:
//
//	ephemeral public key (97 bytes, uncompressed point)
//	HKDF salt            (16 bytes)
//	GCM nonce            (12 bytes)
//	GCM tag              (16 bytes)
//	ciphertext           (variable)
const (
	eciesPubLen   = 97
	eciesSaltLen  = 16
	eciesNonceLen = 12
	eciesTagLen   = 16

	eciesHKDFInfo = "field-encryption"
)

// EncryptField encrypts a plaintext field for the holder of the given P-384
// private key. It performs an ephemeral ECDH exchange, derives an AES-256
// key via HKDF-SHA256 and seals with GCM.
func EncryptField(recipient *ecdh.PublicKey, plaintext []byte) ([]byte, error) {
	ephemeral, err := ecdh.P384().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return nil, fmt.Errorf("ecdh exchange failed: %w", err)
	}

	salt := make([]byte, eciesSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aesKey, err := deriveFieldKey(shared, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, eciesNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-eciesTagLen], sealed[len(sealed)-eciesTagLen:]

	out := make([]byte, 0, eciesPubLen+eciesSaltLen+eciesNonceLen+eciesTagLen+len(ciphertext))
	out = append(out, ephemeral.PublicKey().Bytes()...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptField reverses EncryptField using the recipient's private key.
func DecryptField(recipient *ecdh.PrivateKey, data []byte) ([]byte, error) {
	if len(data) < eciesPubLen+eciesSaltLen+eciesNonceLen+eciesTagLen {
		return nil, fmt.Errorf("encrypted field too short")
	}

	ephemeralPub, err := ecdh.P384().NewPublicKey(data[:eciesPubLen])
	if err != nil {
		return nil, fmt.Errorf("invalid ephemeral public key: %w", err)
	}

	salt := data[eciesPubLen : eciesPubLen+eciesSaltLen]
	nonce := data[eciesPubLen+eciesSaltLen : eciesPubLen+eciesSaltLen+eciesNonceLen]
	tag := data[eciesPubLen+eciesSaltLen+eciesNonceLen : eciesPubLen+eciesSaltLen+eciesNonceLen+eciesTagLen]
	ciphertext := data[eciesPubLen+eciesSaltLen+eciesNonceLen+eciesTagLen:]

	shared, err := recipient.ECDH(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("ecdh exchange failed: %w", err)
	}

	aesKey, err := deriveFieldKey(shared, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+eciesTagLen)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func deriveFieldKey(shared, salt []byte) ([]byte, error) {
	kdf := hkdf.New(sha256.New, shared, salt, []byte(eciesHKDFInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("hkdf derivation failed: %w", err)
	}
	return key, nil
}
