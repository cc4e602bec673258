package sqlite

import (
	"context"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

type twoFactorRepo struct {
	db dbtx
}

const twoFactorColumns = `id, user_id, method, public_key, key_handle,
	counter, fails, device_name, created_at, updated_at`

func scanTwoFactor(row interface{ Scan(...any) error }) (domain.TwoFactor, error) {
	var tf domain.TwoFactor
	err := row.Scan(
		&tf.ID, &tf.UserID, &tf.Method, &tf.PublicKey, &tf.KeyHandle,
		&tf.Counter, &tf.Fails, &tf.DeviceName, &tf.CreatedAt, &tf.UpdatedAt,
	)
	if err != nil {
		return domain.TwoFactor{}, mapNotFound(err)
	}
	return tf, nil
}

func (r *twoFactorRepo) CreateTwoFactor(ctx context.Context, tf domain.TwoFactor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_2fa (id, user_id, method, public_key, key_handle,
			counter, fails, device_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tf.ID, tf.UserID, tf.Method, tf.PublicKey, tf.KeyHandle,
		tf.Counter, tf.Fails, tf.DeviceName, tf.CreatedAt, tf.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *twoFactorRepo) GetTwoFactor(ctx context.Context, userID string, method domain.TwoFactorMethod) (domain.TwoFactor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+twoFactorColumns+` FROM user_2fa WHERE user_id = ? AND method = ?`,
		userID, method)
	return scanTwoFactor(row)
}

func (r *twoFactorRepo) ListUserMethods(ctx context.Context, userID string) ([]domain.TwoFactor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+twoFactorColumns+` FROM user_2fa WHERE user_id = ? ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TwoFactor
	for rows.Next() {
		tf, err := scanTwoFactor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, rows.Err()
}

func (r *twoFactorRepo) UpdateCounter(ctx context.Context, id string, counter int64) error {
	return r.exec(ctx,
		`UPDATE user_2fa SET counter = ?, updated_at = ? WHERE id = ?`,
		counter, time.Now().UTC(), id)
}

func (r *twoFactorRepo) UpdateFails(ctx context.Context, id string, fails int) error {
	return r.exec(ctx,
		`UPDATE user_2fa SET fails = ?, updated_at = ? WHERE id = ?`,
		fails, time.Now().UTC(), id)
}

func (r *twoFactorRepo) UpdateKeyHandle(ctx context.Context, id string, keyHandle string) error {
	return r.exec(ctx,
		`UPDATE user_2fa SET key_handle = ?, updated_at = ? WHERE id = ?`,
		keyHandle, time.Now().UTC(), id)
}

func (r *twoFactorRepo) ListAllTOTP(ctx context.Context) ([]domain.TwoFactor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+twoFactorColumns+` FROM user_2fa WHERE method = ?`,
		domain.TwoFactorTOTP)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TwoFactor
	for rows.Next() {
		tf, err := scanTwoFactor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, rows.Err()
}

func (r *twoFactorRepo) DeleteTwoFactor(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM user_2fa WHERE id = ?`, id)
}

func (r *twoFactorRepo) DeleteStaleEmailCodes(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_2fa WHERE method = ? AND updated_at < ?`,
		domain.TwoFactorEmail, cutoff)
	return err
}

func (r *twoFactorRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
