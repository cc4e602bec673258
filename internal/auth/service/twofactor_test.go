package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

func newTwoFactorService(t *testing.T) (*TwoFactorService, domain.User) {
	t.Helper()

	st := newTestStore(t)
	svc := &TwoFactorService{
		Keys:   newTestKeys(t),
		Store:  st,
		Issuer: "clubauth-test",
	}
	user := createTestUser(t, st, "2fa@example.com", "hunter2hunter2", true)
	return svc, user
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	require.NoError(t, err)
	return code
}

func enrollTOTP(t *testing.T, svc *TwoFactorService, userID string) (secret string, backupCodes []string) {
	t.Helper()
	ctx := context.Background()

	enrollment, err := svc.BeginTOTPEnrollment(ctx, userID, "2fa@example.com", "phone")
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.OTPAuthURL, "otpauth://")

	codes, err := svc.ConfirmTOTPEnrollment(ctx, userID, totpCode(t, enrollment.Secret, time.Now()))
	require.NoError(t, err)
	return enrollment.Secret, codes
}

func TestEmailChallengeRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	code, err := svc.CreateEmailChallenge(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, svc.VerifyEmailCode(ctx, user.ID, code))

	// The challenge is single use.
	require.ErrorIs(t, svc.VerifyEmailCode(ctx, user.ID, code), domain.ErrInvalidCode)
}

func TestEmailChallengeReplacedOnReissue(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	first, err := svc.CreateEmailChallenge(ctx, user.ID)
	require.NoError(t, err)
	second, err := svc.CreateEmailChallenge(ctx, user.ID)
	require.NoError(t, err)

	if first != second {
		require.ErrorIs(t, svc.VerifyEmailCode(ctx, user.ID, first), domain.ErrInvalidCode)
	}
	require.NoError(t, svc.VerifyEmailCode(ctx, user.ID, second))
}

func TestEmailChallengeLockout(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	code, err := svc.CreateEmailChallenge(ctx, user.ID)
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	for range 3 {
		require.ErrorIs(t, svc.VerifyEmailCode(ctx, user.ID, wrong), domain.ErrInvalidCode)
	}

	// Fourth attempt locks and destroys the challenge, correct code or not.
	require.ErrorIs(t, svc.VerifyEmailCode(ctx, user.ID, code), domain.ErrTooManyAttempts)
	require.ErrorIs(t, svc.VerifyEmailCode(ctx, user.ID, code), domain.ErrInvalidCode)
}

func TestTOTPEnrollmentAndVerify(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	secret, backupCodes := enrollTOTP(t, svc, user.ID)
	require.Len(t, backupCodes, backupCodeCount)

	methods, err := svc.ListMethods(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	require.Equal(t, domain.TwoFactorTOTP, methods[0].Method)

	// A code from the next period is distinct from the confirmation code
	// and within the validator's skew.
	next := totpCode(t, secret, time.Now().Add(30*time.Second))
	require.NoError(t, svc.VerifyTOTPCode(ctx, user.ID, next))

	// The same code is refused on replay.
	require.ErrorIs(t, svc.VerifyTOTPCode(ctx, user.ID, next), domain.ErrInvalidCode)
}

func TestTOTPUnconfirmedIsInvisible(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	enrollment, err := svc.BeginTOTPEnrollment(ctx, user.ID, user.Email, "phone")
	require.NoError(t, err)

	methods, err := svc.ListMethods(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, methods)

	code := totpCode(t, enrollment.Secret, time.Now())
	require.ErrorIs(t, svc.VerifyTOTPCode(ctx, user.ID, code), domain.ErrInvalidCode)
}

func TestTOTPEnrollmentRestartDiscardsOldSecret(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	first, err := svc.BeginTOTPEnrollment(ctx, user.ID, user.Email, "phone")
	require.NoError(t, err)
	second, err := svc.BeginTOTPEnrollment(ctx, user.ID, user.Email, "phone")
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	_, err = svc.ConfirmTOTPEnrollment(ctx, user.ID, totpCode(t, second.Secret, time.Now()))
	require.NoError(t, err)

	// A confirmed enrollment cannot be restarted.
	_, err = svc.BeginTOTPEnrollment(ctx, user.ID, user.Email, "tablet")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestTOTPConfirmWrongCodeDiscardsPending(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	enrollment, err := svc.BeginTOTPEnrollment(ctx, user.ID, user.Email, "phone")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == totpCode(t, enrollment.Secret, time.Now()) {
		wrong = "111111"
	}
	_, err = svc.ConfirmTOTPEnrollment(ctx, user.ID, wrong)
	require.ErrorIs(t, err, domain.ErrInvalidCode)

	// The pending secret was discarded, so even the right code finds
	// nothing to confirm.
	_, err = svc.ConfirmTOTPEnrollment(ctx, user.ID, totpCode(t, enrollment.Secret, time.Now()))
	require.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = svc.BeginTOTPEnrollment(ctx, user.ID, user.Email, "phone")
	require.NoError(t, err)
}

func TestTOTPLockoutAfterThreeFails(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	secret, _ := enrollTOTP(t, svc, user.ID)

	valid := totpCode(t, secret, time.Now().Add(30*time.Second))
	wrong := "999999"
	if wrong == valid {
		wrong = "999998"
	}

	for range 3 {
		require.ErrorIs(t, svc.VerifyTOTPCode(ctx, user.ID, wrong), domain.ErrInvalidCode)
	}

	// Locked for five minutes from the last attempt, valid code or not.
	require.ErrorIs(t, svc.VerifyTOTPCode(ctx, user.ID, valid), domain.ErrTooManyAttempts)
}

func TestTOTPLockoutExpires(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	secret, _ := enrollTOTP(t, svc, user.ID)

	valid := totpCode(t, secret, time.Now().Add(30*time.Second))
	wrong := "999999"
	if wrong == valid {
		wrong = "999998"
	}

	for range 3 {
		require.ErrorIs(t, svc.VerifyTOTPCode(ctx, user.ID, wrong), domain.ErrInvalidCode)
	}
	require.ErrorIs(t, svc.VerifyTOTPCode(ctx, user.ID, valid), domain.ErrTooManyAttempts)

	// Once the window has passed, the counter resets and a valid code
	// is accepted again.
	svc.now = func() time.Time { return time.Now().UTC().Add(twoFactorLockWindow + time.Second) }
	require.NoError(t, svc.VerifyTOTPCode(ctx, user.ID, valid))

	tf, err := svc.Store.TwoFactor().GetTwoFactor(ctx, user.ID, domain.TwoFactorTOTP)
	require.NoError(t, err)
	require.Zero(t, tf.Fails)
}

func TestBackupCodeConsumedOnce(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	_, backupCodes := enrollTOTP(t, svc, user.ID)
	require.NotEmpty(t, backupCodes)

	code := backupCodes[0]
	require.NoError(t, svc.VerifyTOTPCode(ctx, user.ID, code))
	require.ErrorIs(t, svc.VerifyTOTPCode(ctx, user.ID, code), domain.ErrInvalidCode)
}

func TestBackupCodesIssuedOncePerAccount(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	secret, first := enrollTOTP(t, svc, user.ID)
	require.Len(t, first, backupCodeCount)

	// Remove and re-enroll: the account keeps its original codes.
	code := totpCode(t, secret, time.Now().Add(30*time.Second))
	require.NoError(t, svc.RemoveTOTP(ctx, user.ID, "hunter2hunter2", code))

	enrollment, err := svc.BeginTOTPEnrollment(ctx, user.ID, user.Email, "phone")
	require.NoError(t, err)
	again, err := svc.ConfirmTOTPEnrollment(ctx, user.ID, totpCode(t, enrollment.Secret, time.Now()))
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestRemoveTOTPRequiresPasswordAndCode(t *testing.T) {
	ctx := context.Background()
	svc, user := newTwoFactorService(t)

	secret, _ := enrollTOTP(t, svc, user.ID)
	code := totpCode(t, secret, time.Now().Add(30*time.Second))

	require.ErrorIs(t, svc.RemoveTOTP(ctx, user.ID, "wrong-password", code), domain.ErrInvalidCredentials)
	require.ErrorIs(t, svc.RemoveTOTP(ctx, user.ID, "hunter2hunter2", "000000"), domain.ErrInvalidCode)
	require.NoError(t, svc.RemoveTOTP(ctx, user.ID, "hunter2hunter2", code))

	methods, err := svc.ListMethods(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, methods)
}
