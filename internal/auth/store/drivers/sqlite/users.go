package sqlite

import (
	"context"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, first_name, last_name, email, password_hash,
	is_verified, is_anonymized, is_system, backup_codes_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.IsVerified, &u.IsAnonymized, &u.IsSystem, &u.BackupCodesHash,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash,
			is_verified, is_anonymized, is_system, backup_codes_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash,
		u.IsVerified, u.IsAnonymized, u.IsSystem, u.BackupCodesHash,
		u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	return r.exec(ctx,
		`UPDATE users SET is_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID)
}

func (r *usersRepo) SetSystemFlag(ctx context.Context, userID string, isSystem bool) error {
	return r.exec(ctx,
		`UPDATE users SET is_system = ?, updated_at = ? WHERE id = ?`,
		isSystem, time.Now().UTC(), userID)
}

func (r *usersRepo) UpdateBackupCodesHash(ctx context.Context, userID string, hashes string) error {
	return r.exec(ctx,
		`UPDATE users SET backup_codes_hash = ?, updated_at = ? WHERE id = ?`,
		hashes, time.Now().UTC(), userID)
}

func (r *usersRepo) AnonymizeUser(ctx context.Context, userID string) error {
	return r.exec(ctx, `
		UPDATE users
		SET first_name = '', last_name = '', email = 'anonymized-' || id,
			is_anonymized = 1, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), userID)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = ?`, userID)
}

func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
