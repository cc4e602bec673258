package sqlite

import (
	"context"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/domain"
)

type rolesRepo struct {
	db dbtx
}

const roleColumns = `id, club_id, name, description, level, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (domain.ClubRole, error) {
	var role domain.ClubRole
	err := row.Scan(&role.ID, &role.ClubID, &role.Name, &role.Description, &role.Level,
		&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.ClubRole{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id int64) (domain.ClubRole, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM club_roles WHERE id = ?`, id)
	return scanRole(row)
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, clubID, name string) (domain.ClubRole, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM club_roles WHERE club_id = ? AND name = ?`, clubID, name)
	return scanRole(row)
}

func (r *rolesRepo) ListRoles(ctx context.Context, clubID string) ([]domain.ClubRole, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM club_roles WHERE club_id = ? ORDER BY level, name`, clubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ClubRole
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.ClubRole, permissions []string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO club_roles (club_id, name, description, level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		role.ClubID, role.Name, role.Description, role.Level, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return 0, mapConstraint(err)
	}

	roleID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := r.insertPermissions(ctx, roleID, permissions); err != nil {
		return 0, err
	}
	return roleID, nil
}

func (r *rolesRepo) UpdateRolePermissions(ctx context.Context, roleID int64, permissions []string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM club_role_permissions WHERE role_id = ?`, roleID); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE club_roles SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), roleID); err != nil {
		return err
	}

	return r.insertPermissions(ctx, roleID, permissions)
}

func (r *rolesRepo) insertPermissions(ctx context.Context, roleID int64, permissions []string) error {
	for _, name := range permissions {
		perm, err := r.GetPermissionByName(ctx, name)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO club_role_permissions (role_id, permission_id) VALUES (?, ?)`,
			roleID, perm.ID); err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *rolesRepo) DeleteRole(ctx context.Context, roleID int64) error {
	// user_club_roles has no cascade on role_id, so deleting a role that
	// is still assigned fails at the FK.
	res, err := r.db.ExecContext(ctx, `DELETE FROM club_roles WHERE id = ?`, roleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *rolesRepo) ListRolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.name FROM permissions p
		JOIN club_role_permissions crp ON crp.permission_id = p.id
		WHERE crp.role_id = ?
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *rolesRepo) GetPermissionByName(ctx context.Context, name string) (domain.Permission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM permissions WHERE name = ?`, name)

	var p domain.Permission
	if err := row.Scan(&p.ID, &p.Name); err != nil {
		return domain.Permission{}, mapNotFound(err)
	}
	return p, nil
}

func (r *rolesRepo) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *rolesRepo) SeedPermissions(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO permissions (name) VALUES (?)`, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *rolesRepo) AssignUserClubRole(ctx context.Context, a domain.UserClubRole) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_club_roles (user_id, club_id, role_id, assigned_at)
		VALUES (?, ?, ?, ?)`,
		a.UserID, a.ClubID, a.RoleID, a.AssignedAt)
	return mapConstraint(err)
}

func (r *rolesRepo) RemoveUserClubRole(ctx context.Context, userID, clubID string, roleID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_club_roles WHERE user_id = ? AND club_id = ? AND role_id = ?`,
		userID, clubID, roleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *rolesRepo) GetUserClubRole(ctx context.Context, userID, clubID string) (domain.ClubRole, error) {
	// One role per user per club; the table's primary key enforces it.
	row := r.db.QueryRowContext(ctx, `
		SELECT cr.id, cr.club_id, cr.name, cr.description, cr.level, cr.created_at, cr.updated_at
		FROM club_roles cr
		JOIN user_club_roles ucr ON ucr.role_id = cr.id
		WHERE ucr.user_id = ? AND ucr.club_id = ?`, userID, clubID)
	return scanRole(row)
}
