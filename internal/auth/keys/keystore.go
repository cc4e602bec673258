// Package keys owns every long-lived secret the service signs or encrypts
// with: the three JWT signing keypairs, the field-encryption keypair, the
// TOTP sealing key and the mail link key.
package keys

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/activitymaster/clubauth/pkg/jwtx"
)

// Key file names inside the key directory.
const (
	fileSecurity     = "security.pem"
	fileAccess       = "access.pem"
	fileRefresh      = "refresh.pem"
	fileVerification = "verification.pem"
	fileTOTP         = "totp.key"
	fileLink         = "link.key"
)

const symmetricKeyLen = 32

// ErrMissingKeys is returned outside dev mode when any key file is absent.
// Production never generates keys implicitly; losing a signing key silently
// would invalidate every outstanding token.
var ErrMissingKeys = errors.New("keys: key material missing")

// KeyStore loads, and in dev mode creates, the service key material. All
// accessors are safe for concurrent use; the TOTP key additionally supports
// a two-phase rotation.
type KeyStore struct {
	dir string

	securitySigner *jwtx.Signer
	accessSigner   *jwtx.Signer
	refreshSigner  *jwtx.Signer

	verificationKey *ecdh.PrivateKey
	linkKey         []byte

	mu          sync.RWMutex
	totpKey     []byte
	pendingTOTP []byte
}

// Open loads all key material from dir. In dev mode missing files are
// generated and persisted; otherwise a missing file is fatal.
func Open(dir string, devMode bool) (*KeyStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("keys: create key dir: %w", err)
	}

	ks := &KeyStore{dir: dir}

	securityPEM, err := ks.loadOrGeneratePEM(fileSecurity, elliptic.P256(), devMode)
	if err != nil {
		return nil, err
	}
	if ks.securitySigner, err = jwtx.NewSignerES256(securityPEM); err != nil {
		return nil, fmt.Errorf("keys: security key: %w", err)
	}

	accessPEM, err := ks.loadOrGeneratePEM(fileAccess, elliptic.P256(), devMode)
	if err != nil {
		return nil, err
	}
	if ks.accessSigner, err = jwtx.NewSignerES256(accessPEM); err != nil {
		return nil, fmt.Errorf("keys: access key: %w", err)
	}

	refreshPEM, err := ks.loadOrGeneratePEM(fileRefresh, elliptic.P521(), devMode)
	if err != nil {
		return nil, err
	}
	if ks.refreshSigner, err = jwtx.NewSignerES512(refreshPEM); err != nil {
		return nil, fmt.Errorf("keys: refresh key: %w", err)
	}

	verificationPEM, err := ks.loadOrGeneratePEM(fileVerification, elliptic.P384(), devMode)
	if err != nil {
		return nil, err
	}
	verificationECDSA, err := cryptox.ParseECDSAKeyPEM(verificationPEM)
	if err != nil {
		return nil, fmt.Errorf("keys: verification key: %w", err)
	}
	if ks.verificationKey, err = cryptox.ECDHFromECDSA(verificationECDSA); err != nil {
		return nil, fmt.Errorf("keys: verification key: %w", err)
	}

	if ks.totpKey, err = ks.loadOrGenerateSymmetric(fileTOTP, devMode); err != nil {
		return nil, err
	}
	if ks.linkKey, err = ks.loadOrGenerateSymmetric(fileLink, devMode); err != nil {
		return nil, err
	}

	return ks, nil
}

func (ks *KeyStore) loadOrGeneratePEM(name string, curve elliptic.Curve, devMode bool) ([]byte, error) {
	path := filepath.Join(ks.dir, name)

	data, err := os.ReadFile(path) // #nosec G304 - path is under the configured key dir
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keys: read %s: %w", name, err)
	}
	if !devMode {
		return nil, fmt.Errorf("%w: %s", ErrMissingKeys, name)
	}

	pemData, err := cryptox.GenerateECDSAKeyPEM(curve)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, pemData, 0600); err != nil {
		return nil, fmt.Errorf("keys: write %s: %w", name, err)
	}
	return pemData, nil
}

func (ks *KeyStore) loadOrGenerateSymmetric(name string, devMode bool) ([]byte, error) {
	path := filepath.Join(ks.dir, name)

	data, err := os.ReadFile(path) // #nosec G304 - path is under the configured key dir
	if err == nil {
		if len(data) != symmetricKeyLen {
			return nil, fmt.Errorf("keys: %s: expected %d bytes, got %d", name, symmetricKeyLen, len(data))
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keys: read %s: %w", name, err)
	}
	if !devMode {
		return nil, fmt.Errorf("%w: %s", ErrMissingKeys, name)
	}

	key := make([]byte, symmetricKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("keys: generate %s: %w", name, err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("keys: write %s: %w", name, err)
	}
	return key, nil
}

// SecuritySigner signs short-lived step tokens (ES256).
func (ks *KeyStore) SecuritySigner() *jwtx.Signer { return ks.securitySigner }

// AccessSigner signs access tokens (ES256).
func (ks *KeyStore) AccessSigner() *jwtx.Signer { return ks.accessSigner }

// RefreshSigner signs refresh tokens (ES512).
func (ks *KeyStore) RefreshSigner() *jwtx.Signer { return ks.refreshSigner }

// VerificationKey is the P-384 private half for decrypting identity
// document fields.
func (ks *KeyStore) VerificationKey() *ecdh.PrivateKey { return ks.verificationKey }

// LinkKey signs email verification and password reset links.
func (ks *KeyStore) LinkKey() []byte { return ks.linkKey }

// TOTPKey returns the key currently sealing TOTP secrets.
func (ks *KeyStore) TOTPKey() []byte {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.totpKey
}

// BeginTOTPRotation drafts a replacement TOTP key in memory and returns it
// so the caller can re-seal every stored secret. Nothing is persisted until
// CommitTOTPRotation; a crash mid-rotation leaves the old key authoritative.
func (ks *KeyStore) BeginTOTPRotation() ([]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.pendingTOTP != nil {
		return nil, errors.New("keys: totp rotation already in progress")
	}

	key := make([]byte, symmetricKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("keys: generate totp key: %w", err)
	}

	ks.pendingTOTP = key
	return key, nil
}

// CommitTOTPRotation persists the pending key and makes it current. Called
// only after every secret has been re-sealed and committed to the database.
func (ks *KeyStore) CommitTOTPRotation() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.pendingTOTP == nil {
		return errors.New("keys: no totp rotation in progress")
	}

	path := filepath.Join(ks.dir, fileTOTP)
	if err := os.WriteFile(path, ks.pendingTOTP, 0600); err != nil {
		return fmt.Errorf("keys: persist totp key: %w", err)
	}

	ks.totpKey = ks.pendingTOTP
	ks.pendingTOTP = nil
	return nil
}

// AbortTOTPRotation discards the pending key.
func (ks *KeyStore) AbortTOTPRotation() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.pendingTOTP = nil
}
