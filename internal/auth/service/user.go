package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/activitymaster/clubauth/internal/auth/audit"
	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/keys"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/cryptox"
)

// UserService covers account lifecycle: registration, email confirmation,
// password changes and account removal.
type UserService struct {
	Store  store.Store
	Tokens *TokenService
	Keys   *keys.KeyStore
	Sink   *audit.Sink
	Mailer Mailer

	PublicBaseURL string
}

// GetUser loads one account by id.
func (s *UserService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, domain.Internal(err)
	}
	return user, nil
}

// Register creates an unverified account and mails the confirmation link.
// The address stays unusable for login until the link is followed.
func (s *UserService) Register(ctx context.Context, firstName, lastName, email, password string) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, domain.Internal(err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, domain.ErrAlreadyExists
		}
		return domain.User{}, domain.Internal(err)
	}

	if err := s.sendVerificationLink(ctx, user); err != nil {
		return domain.User{}, err
	}

	s.Sink.RecordAudit(user.ID, "register", domain.AuditUser, true, "")
	return user, nil
}

// ResendVerification mails a fresh confirmation link for an account that
// has not confirmed its address yet.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return domain.Internal(err)
	}
	if user.IsVerified {
		return domain.ErrAlreadyExists
	}
	return s.sendVerificationLink(ctx, user)
}

func (s *UserService) sendVerificationLink(ctx context.Context, user domain.User) error {
	link := cryptox.SignLink(s.Keys.LinkKey(), user.ID, time.Now().UTC().Add(EmailVerifyLinkTTL))
	verifyURL := fmt.Sprintf("%s/v1/users/verify-email?token=%s", s.PublicBaseURL, link)
	if err := s.Mailer.SendVerificationLink(ctx, user.Email, verifyURL); err != nil {
		return domain.Internal(err)
	}
	return nil
}

// VerifyEmail redeems a confirmation link and marks the address owned.
func (s *UserService) VerifyEmail(ctx context.Context, linkToken string) error {
	userID, err := cryptox.VerifyLink(s.Keys.LinkKey(), linkToken, time.Now().UTC())
	if err != nil {
		return domain.ErrInvalidToken
	}

	if err := s.Store.Users().MarkEmailVerified(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return domain.Internal(err)
	}

	s.Sink.RecordAudit(userID, "verify_email", domain.AuditUser, true, "")
	return nil
}

// ChangePassword swaps the password after re-proving the current one, then
// revokes every outstanding token so stolen sessions die with the old
// credential.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return domain.Internal(err)
	}
	if err := cryptox.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return domain.Internal(err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return domain.Internal(err)
	}
	if err := s.Tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}

	s.Sink.RecordAudit(userID, "change_password", domain.AuditUser, true, "")
	return nil
}

// DeleteAccount anonymizes the user row and destroys every credential
// attached to it. The row itself survives so foreign keys in bookings and
// logs stay intact.
func (s *UserService) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return domain.Internal(err)
	}
	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return domain.ErrInvalidCredentials
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().DeleteAllUserTokens(ctx, userID); err != nil {
			return err
		}
		factors, err := tx.TwoFactor().ListUserMethods(ctx, userID)
		if err != nil {
			return err
		}
		for _, f := range factors {
			if err := tx.TwoFactor().DeleteTwoFactor(ctx, f.ID); err != nil {
				return err
			}
		}
		if err := tx.BackupCodes().ReplaceBackupCodes(ctx, userID, nil); err != nil {
			return err
		}
		if err := tx.Verifications().DeleteUserVerifications(ctx, userID); err != nil {
			return err
		}
		return tx.Users().AnonymizeUser(ctx, userID)
	})
	if err != nil {
		return domain.Internal(err)
	}

	s.Sink.RecordAudit(userID, "delete_account", domain.AuditUser, true, "")
	return nil
}
