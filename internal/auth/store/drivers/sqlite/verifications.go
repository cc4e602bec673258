package sqlite

import (
	"context"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

type verificationsRepo struct {
	db dbtx
}

func (r *verificationsRepo) CreateVerification(ctx context.Context, v domain.IdentityVerification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identity_verifications (id, user_id, encrypted_mrz,
			first_name, last_name, date_of_birth, status, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.EncryptedMRZ, v.FirstName, v.LastName, v.DateOfBirth,
		v.Status, v.CreatedAt, v.UpdatedAt, v.ExpiresAt)
	return mapConstraint(err)
}

func (r *verificationsRepo) GetVerificationByUser(ctx context.Context, userID string) (domain.IdentityVerification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, encrypted_mrz, first_name, last_name, date_of_birth,
			status, created_at, updated_at, expires_at
		FROM identity_verifications
		WHERE user_id = ?
		ORDER BY created_at DESC LIMIT 1`, userID)

	var v domain.IdentityVerification
	err := row.Scan(&v.ID, &v.UserID, &v.EncryptedMRZ, &v.FirstName, &v.LastName,
		&v.DateOfBirth, &v.Status, &v.CreatedAt, &v.UpdatedAt, &v.ExpiresAt)
	if err != nil {
		return domain.IdentityVerification{}, mapNotFound(err)
	}
	return v, nil
}

func (r *verificationsRepo) UpdateVerificationStatus(ctx context.Context, id string, status domain.VerificationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE identity_verifications SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *verificationsRepo) DeleteUserVerifications(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM identity_verifications WHERE user_id = ?`, userID)
	return err
}

func (r *verificationsRepo) DeleteExpiredVerifications(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM identity_verifications WHERE expires_at < ?`, time.Now().UTC())
	return err
}
