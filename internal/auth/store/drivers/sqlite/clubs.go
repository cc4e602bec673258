package sqlite

import (
	"context"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

type clubsRepo struct {
	db dbtx
}

func (r *clubsRepo) GetClubByID(ctx context.Context, id string) (domain.Club, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM clubs WHERE id = ?`, id)

	var c domain.Club
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Club{}, mapNotFound(err)
	}
	return c, nil
}

func (r *clubsRepo) CreateClub(ctx context.Context, c domain.Club) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clubs (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.CreatedAt, c.UpdatedAt)
	return mapConstraint(err)
}

func (r *clubsRepo) DeleteClub(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clubs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
