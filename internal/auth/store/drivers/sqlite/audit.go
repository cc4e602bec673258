package sqlite

import (
	"context"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

type auditRepo struct {
	db dbtx
}

func (r *auditRepo) CreateAuthLog(ctx context.Context, l domain.AuthLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO logs_authentication (id, user_id, method, ip_address, status, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Method, l.IPAddress, l.Status, l.Details, l.Timestamp)
	return err
}

func (r *auditRepo) CreateAuditLog(ctx context.Context, l domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO logs_audit (id, user_id, action, category, status, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Action, l.Category, l.Status, l.Details, l.Timestamp)
	return err
}

func (r *auditRepo) CountRecentAuthLogs(ctx context.Context, userID string, method domain.AuthMethod, since time.Time) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM logs_authentication
		WHERE user_id = ? AND method = ? AND timestamp >= ?`,
		userID, method, since)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *auditRepo) AnonymizeOldAuthLogIPs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE logs_authentication SET ip_address = ''
		WHERE timestamp < ? AND ip_address != ''`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
