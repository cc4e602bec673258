package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/activitymaster/clubauth/pkg/idx"
	"github.com/activitymaster/clubauth/pkg/metrics"
)

const (
	emailCodeDigits = 6

	twoFactorMaxFails   = 3
	twoFactorLockWindow = 5 * time.Minute

	backupCodeCount = 10
	backupCodeBytes = 5 // 10 hex chars per code
)

var totpCodePattern = regexp.MustCompile(`^\d{6}$`)

// TwoFactorService manages second factors: emailed one-time codes, TOTP
// enrollments and the one-shot backup codes.
type TwoFactorService struct {
	Keys   *keys.KeyStore
	Store  store.Store
	Issuer string

	// now is overridable so tests can step past the lockout window.
	now func() time.Time
}

func (s *TwoFactorService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// confirmed reports whether a factor has completed enrollment. Email rows
// are always confirmed; TOTP rows start at FailsUnconfirmed.
func confirmed(tf domain.TwoFactor) bool {
	return tf.Fails != domain.FailsUnconfirmed
}

// ListMethods returns the user's confirmed second factors.
func (s *TwoFactorService) ListMethods(ctx context.Context, userID string) ([]domain.TwoFactor, error) {
	rows, err := s.Store.TwoFactor().ListUserMethods(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	out := rows[:0]
	for _, tf := range rows {
		if confirmed(tf) {
			out = append(out, tf)
		}
	}
	return out, nil
}

// CreateEmailChallenge replaces any outstanding email code with a fresh
// six-digit one and returns the cleartext for delivery. Only the salted
// hash touches the database.
func (s *TwoFactorService) CreateEmailChallenge(ctx context.Context, userID string) (string, error) {
	code, err := cryptox.GenerateNumericCode(emailCodeDigits)
	if err != nil {
		return "", domain.Internal(err)
	}
	codeHash, err := cryptox.SaltedHash(code)
	if err != nil {
		return "", domain.Internal(err)
	}

	now := time.Now().UTC()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.TwoFactor().GetTwoFactor(ctx, userID, domain.TwoFactorEmail)
		if err == nil {
			if err := tx.TwoFactor().DeleteTwoFactor(ctx, existing.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		return tx.TwoFactor().CreateTwoFactor(ctx, domain.TwoFactor{
			ID:        idx.New().String(),
			UserID:    userID,
			Method:    domain.TwoFactorEmail,
			PublicKey: codeHash,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return "", domain.Internal(err)
	}
	return code, nil
}

// VerifyEmailCode burns the outstanding email challenge. Three wrong
// guesses dispose of the challenge entirely; the caller is expected to
// revoke the step token alongside.
func (s *TwoFactorService) VerifyEmailCode(ctx context.Context, userID, code string) error {
	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, userID, domain.TwoFactorEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.TwoFactorAttempts.WithLabelValues(string(domain.TwoFactorEmail), "invalid").Inc()
			return domain.ErrInvalidCode
		}
		return domain.Internal(err)
	}

	if tf.Fails >= twoFactorMaxFails {
		if err := s.Store.TwoFactor().DeleteTwoFactor(ctx, tf.ID); err != nil {
			return domain.Internal(err)
		}
		metrics.TwoFactorAttempts.WithLabelValues(string(domain.TwoFactorEmail), "locked").Inc()
		return domain.ErrTooManyAttempts
	}

	if !cryptox.VerifySaltedHash(code, tf.PublicKey) {
		if err := s.Store.TwoFactor().UpdateFails(ctx, tf.ID, tf.Fails+1); err != nil {
			return domain.Internal(err)
		}
		metrics.TwoFactorAttempts.WithLabelValues(string(domain.TwoFactorEmail), "invalid").Inc()
		return domain.ErrInvalidCode
	}

	if err := s.Store.TwoFactor().DeleteTwoFactor(ctx, tf.ID); err != nil {
		return domain.Internal(err)
	}
	metrics.TwoFactorAttempts.WithLabelValues(string(domain.TwoFactorEmail), "ok").Inc()
	return nil
}

// VerifyTOTPCode checks a six-digit authenticator code against the user's
// confirmed TOTP enrollment. Anything that is not six digits is treated as
// a backup code instead.
//
// A code equal to the last accepted one is refused even when it would
// still validate, so an observed code cannot be replayed within its
// period. After three failures the factor locks for five minutes from the
// most recent attempt.
func (s *TwoFactorService) VerifyTOTPCode(ctx context.Context, userID, code string) error {
	if !totpCodePattern.MatchString(code) {
		return s.consumeBackupCode(ctx, userID, code)
	}

	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, userID, domain.TwoFactorTOTP)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.TwoFactorAttempts.WithLabelValues(string(domain.TwoFactorTOTP), "invalid").Inc()
			return domain.ErrInvalidCode
		}
		return domain.Internal(err)
	}
	if !confirmed(tf) {
		metrics.TwoFactorAttempts.WithLabelValues(string(domain.TwoFactorTOTP), "invalid").Inc()
		return domain.ErrInvalidCode
	}

	now := s.clock()
	if tf.Fails >= twoFactorMaxFails {
		if now.Sub(tf.UpdatedAt) < twoFactorLockWindow {
			metrics.TwoFactorAttempts.WithLabelValues(string(domain.TwoFactorTOTP), "locked").Inc()
			return domain.ErrTooManyAttempts
		}
		if err := s.Store.TwoFactor().UpdateFails(ctx, tf.ID, 0); err != nil {
			return domain.Internal(err)
		}
		tf.Fails = 0
	}

	fail := func() error {
		if err := s.Store.TwoFactor().UpdateFails(ctx, tf.ID, tf.Fails+1); err != nil {
			return domain.Internal(err)
		}
		metrics.TwoFactorAttempts.WithLabelValues(string(domain.TwoFactorTOTP), "invalid").Inc()
		return domain.ErrInvalidCode
	}

	codeValue, err := strconv.ParseInt(code, 10, 64)
	if err != nil || codeValue == tf.Counter {
		return fail()
	}

	secret, err := cryptox.OpenSecret(s.Keys.TOTPKey(), tf.KeyHandle)
	if err != nil {
		return domain.Internal(err)
	}
	if !totp.Validate(code, string(secret)) {
		return fail()
	}

	if err := s.Store.TwoFactor().UpdateCounter(ctx, tf.ID, codeValue); err != nil {
		return domain.Internal(err)
	}
	if err := s.Store.TwoFactor().UpdateFails(ctx, tf.ID, 0); err != nil {
		return domain.Internal(err)
	}
	metrics.TwoFactorAttempts.WithLabelValues(string(domain.TwoFactorTOTP), "ok").Inc()
	return nil
}

func (s *TwoFactorService) consumeBackupCode(ctx context.Context, userID, code string) error {
	hashes, err := s.Store.BackupCodes().ListBackupCodes(ctx, userID)
	if err != nil {
		return domain.Internal(err)
	}
	for _, h := range hashes {
		if cryptox.VerifySaltedHash(code, h) {
			if err := s.Store.BackupCodes().ConsumeBackupCode(ctx, userID, h); err != nil {
				return domain.Internal(err)
			}
			metrics.TwoFactorAttempts.WithLabelValues("backup", "ok").Inc()
			return nil
		}
	}
	metrics.TwoFactorAttempts.WithLabelValues("backup", "invalid").Inc()
	return domain.ErrInvalidCode
}

// BeginTOTPEnrollment provisions a fresh authenticator secret for the
// user. The secret is sealed before it reaches the database and the row is
// created unconfirmed, invisible to login until the first valid code.
func (s *TwoFactorService) BeginTOTPEnrollment(ctx context.Context, userID, accountName, deviceName string) (domain.TOTPEnrollment, error) {
	existing, err := s.Store.TwoFactor().GetTwoFactor(ctx, userID, domain.TwoFactorTOTP)
	switch {
	case err == nil && confirmed(existing):
		return domain.TOTPEnrollment{}, domain.ErrAlreadyExists
	case err == nil:
		// Restarting an unconfirmed enrollment discards the old secret.
		if err := s.Store.TwoFactor().DeleteTwoFactor(ctx, existing.ID); err != nil {
			return domain.TOTPEnrollment{}, domain.Internal(err)
		}
	case !errors.Is(err, store.ErrNotFound):
		return domain.TOTPEnrollment{}, domain.Internal(err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: accountName,
	})
	if err != nil {
		return domain.TOTPEnrollment{}, domain.Internal(err)
	}

	sealed, err := cryptox.SealSecret(s.Keys.TOTPKey(), []byte(key.Secret()))
	if err != nil {
		return domain.TOTPEnrollment{}, domain.Internal(err)
	}

	now := time.Now().UTC()
	err = s.Store.TwoFactor().CreateTwoFactor(ctx, domain.TwoFactor{
		ID:         idx.New().String(),
		UserID:     userID,
		Method:     domain.TwoFactorTOTP,
		KeyHandle:  sealed,
		Fails:      domain.FailsUnconfirmed,
		DeviceName: deviceName,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return domain.TOTPEnrollment{}, domain.Internal(err)
	}

	return domain.TOTPEnrollment{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
	}, nil
}

// ConfirmTOTPEnrollment proves device possession with a first code and
// activates the factor. The first confirmation on an account also mints
// its backup codes; they are returned in clear exactly once.
func (s *TwoFactorService) ConfirmTOTPEnrollment(ctx context.Context, userID, code string) ([]string, error) {
	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, userID, domain.TwoFactorTOTP)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrInvalidCode
		}
		return nil, domain.Internal(err)
	}
	if confirmed(tf) {
		return nil, domain.ErrAlreadyExists
	}

	secret, err := cryptox.OpenSecret(s.Keys.TOTPKey(), tf.KeyHandle)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if !totp.Validate(code, string(secret)) {
		// A failed possession proof discards the pending secret; the
		// client has to start enrollment over.
		if err := s.Store.TwoFactor().DeleteTwoFactor(ctx, tf.ID); err != nil {
			return nil, domain.Internal(err)
		}
		return nil, domain.ErrInvalidCode
	}

	codeValue, err := strconv.ParseInt(code, 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidCode
	}

	if err := s.Store.TwoFactor().UpdateCounter(ctx, tf.ID, codeValue); err != nil {
		return nil, domain.Internal(err)
	}
	if err := s.Store.TwoFactor().UpdateFails(ctx, tf.ID, 0); err != nil {
		return nil, domain.Internal(err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if user.BackupCodesHash != "" {
		return nil, nil
	}
	return s.generateBackupCodes(ctx, userID)
}

// generateBackupCodes mints the account's one-time recovery codes. Issued
// once per account; losing them means re-enrolling.
func (s *TwoFactorService) generateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	codes := make([]string, 0, backupCodeCount)
	hashes := make([]string, 0, backupCodeCount)
	for range backupCodeCount {
		raw := make([]byte, backupCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, domain.Internal(err)
		}
		code := hex.EncodeToString(raw)
		h, err := cryptox.SaltedHash(code)
		if err != nil {
			return nil, domain.Internal(err)
		}
		codes = append(codes, code)
		hashes = append(hashes, h)
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().ReplaceBackupCodes(ctx, userID, hashes); err != nil {
			return err
		}
		return tx.Users().UpdateBackupCodesHash(ctx, userID, strings.Join(hashes, ","))
	})
	if err != nil {
		return nil, domain.Internal(err)
	}
	return codes, nil
}

// RemoveTOTP deletes the user's TOTP enrollment. Requires the account
// password and a currently valid code so a hijacked session cannot strip
// the factor on its own.
func (s *TwoFactorService) RemoveTOTP(ctx context.Context, userID, password, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrInvalidCredentials
		}
		return domain.Internal(err)
	}
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return domain.ErrInvalidCredentials
	}

	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, userID, domain.TwoFactorTOTP)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrInvalidCode
		}
		return domain.Internal(err)
	}

	secret, err := cryptox.OpenSecret(s.Keys.TOTPKey(), tf.KeyHandle)
	if err != nil {
		return domain.Internal(err)
	}
	if !totp.Validate(code, string(secret)) {
		return domain.ErrInvalidCode
	}

	if err := s.Store.TwoFactor().DeleteTwoFactor(ctx, tf.ID); err != nil {
		return domain.Internal(err)
	}
	return nil
}
