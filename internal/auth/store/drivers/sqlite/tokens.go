package sqlite

import (
	"context"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

type tokensRepo struct {
	db dbtx
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.UserToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_tokens (jti, user_id, class, audience_hash, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.JTI, t.UserID, t.Class, t.AudienceHash, t.CreatedAt, t.ExpiresAt,
	)
	return mapConstraint(err)
}

func (r *tokensRepo) GetToken(ctx context.Context, jti string) (domain.UserToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT jti, user_id, class, audience_hash, created_at, expires_at
		FROM user_tokens WHERE jti = ?`, jti)

	var t domain.UserToken
	if err := row.Scan(&t.JTI, &t.UserID, &t.Class, &t.AudienceHash, &t.CreatedAt, &t.ExpiresAt); err != nil {
		return domain.UserToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *tokensRepo) DeleteToken(ctx context.Context, jti string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE jti = ?`, jti)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *tokensRepo) DeleteTokensForAudience(ctx context.Context, userID, audienceHash string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE user_id = ? AND audience_hash = ?`,
		userID, audienceHash)
	return err
}

func (r *tokensRepo) DeleteAllUserTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE user_id = ?`, userID)
	return err
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
