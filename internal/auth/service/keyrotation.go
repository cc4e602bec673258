package service

import (
	"context"

	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/cryptox"
)

// KeyRotationService re-seals every stored TOTP secret under a fresh key.
type KeyRotationService struct {
	Store store.Store
	Keys  *keys.KeyStore
}

// RotateTOTPKey swaps the TOTP sealing key. All secrets are re-sealed in
// one transaction against the draft key; the key file on disk only changes
// after that transaction commits, so a crash at any point leaves a key
// that can still open every stored secret.
func (s *KeyRotationService) RotateTOTPKey(ctx context.Context) error {
	oldKey := s.Keys.TOTPKey()

	newKey, err := s.Keys.BeginTOTPRotation()
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		rows, err := tx.TwoFactor().ListAllTOTP(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			secret, err := cryptox.OpenSecret(oldKey, row.KeyHandle)
			if err != nil {
				return err
			}
			sealed, err := cryptox.SealSecret(newKey, secret)
			if err != nil {
				return err
			}
			if err := tx.TwoFactor().UpdateKeyHandle(ctx, row.ID, sealed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.Keys.AbortTOTPRotation()
		return err
	}

	return s.Keys.CommitTOTPRotation()
}
