package service

import (
	"context"
	"errors"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/audit"
	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/cryptox"
	"github.com/activitymaster/clubauth/pkg/idx"
)

// VerificationRetention is how long a submitted identity document is kept
// before housekeeping purges it.
const VerificationRetention = 30 * 24 * time.Hour

// VerificationService handles identity document submissions. The machine
// readable zone is sealed to the verification public key on the way in, so
// a database leak never exposes document numbers.
type VerificationService struct {
	Store store.Store
	Keys  *keys.KeyStore
	Sink  *audit.Sink
}

// Submit files an identity verification for review. One open submission
// per user.
func (s *VerificationService) Submit(ctx context.Context, userID, mrz, firstName, lastName, dateOfBirth string) (domain.IdentityVerification, error) {
	if _, err := s.Store.Verifications().GetVerificationByUser(ctx, userID); err == nil {
		return domain.IdentityVerification{}, domain.ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.IdentityVerification{}, domain.Internal(err)
	}

	sealed, err := cryptox.EncryptField(s.Keys.VerificationKey().PublicKey(), []byte(mrz))
	if err != nil {
		return domain.IdentityVerification{}, domain.Internal(err)
	}

	now := time.Now().UTC()
	v := domain.IdentityVerification{
		ID:           idx.New().String(),
		UserID:       userID,
		EncryptedMRZ: sealed,
		FirstName:    firstName,
		LastName:     lastName,
		DateOfBirth:  dateOfBirth,
		Status:       domain.VerificationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(VerificationRetention),
	}
	if err := s.Store.Verifications().CreateVerification(ctx, v); err != nil {
		return domain.IdentityVerification{}, domain.Internal(err)
	}

	s.Sink.RecordAudit(userID, "submit_verification", domain.AuditUser, true, "")
	return v, nil
}

// Status returns the user's submission without the sealed document.
func (s *VerificationService) Status(ctx context.Context, userID string) (domain.IdentityVerification, error) {
	v, err := s.Store.Verifications().GetVerificationByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.IdentityVerification{}, domain.ErrUserNotFound
		}
		return domain.IdentityVerification{}, domain.Internal(err)
	}
	v.EncryptedMRZ = nil
	return v, nil
}

// RevealMRZ opens the sealed document for a reviewer. Callers gate this
// behind the confidential data permission.
func (s *VerificationService) RevealMRZ(ctx context.Context, reviewerID, userID string) (string, error) {
	v, err := s.Store.Verifications().GetVerificationByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", domain.ErrUserNotFound
		}
		return "", domain.Internal(err)
	}

	mrz, err := cryptox.DecryptField(s.Keys.VerificationKey(), v.EncryptedMRZ)
	if err != nil {
		return "", domain.Internal(err)
	}

	s.Sink.RecordAudit(reviewerID, "reveal_verification", domain.AuditUser, true, userID)
	return string(mrz), nil
}

// Review settles a pending submission.
func (s *VerificationService) Review(ctx context.Context, reviewerID, userID string, approve bool) error {
	v, err := s.Store.Verifications().GetVerificationByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return domain.Internal(err)
	}

	status := domain.VerificationRejected
	if approve {
		status = domain.VerificationApproved
	}
	if err := s.Store.Verifications().UpdateVerificationStatus(ctx, v.ID, status); err != nil {
		return domain.Internal(err)
	}

	s.Sink.RecordAudit(reviewerID, "review_verification", domain.AuditUser, true, string(status))
	return nil
}
