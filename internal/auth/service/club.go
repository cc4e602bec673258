package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/activitymaster/clubauth/internal/auth/audit"
	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/store"
)

// ClubService manages clubs and their role catalogs. Every club gets the
// built-in role hierarchy at creation; owners can add custom roles on top.
type ClubService struct {
	Store store.Store
	RBAC  *RBACService
	Sink  *audit.Sink
}

// expandPermissions resolves the wildcard into the full catalog. Expansion
// happens when a role is written, so a later catalog addition never
// silently widens existing roles.
func expandPermissions(permissions []string) []string {
	for _, p := range permissions {
		if p == domain.PermissionWildcard {
			return domain.AllPermissions()
		}
	}
	return permissions
}

func (s *ClubService) validatePermissions(ctx context.Context, permissions []string) error {
	for _, name := range permissions {
		if _, err := s.Store.Roles().GetPermissionByName(ctx, name); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrPermissionNotFound
			}
			return domain.Internal(err)
		}
	}
	return nil
}

// EnsurePermissionCatalog seeds the fixed permission names. Run at
// startup; existing rows are left untouched.
func (s *ClubService) EnsurePermissionCatalog(ctx context.Context) error {
	if err := s.Store.Roles().SeedPermissions(ctx, domain.AllPermissions()); err != nil {
		return domain.Internal(err)
	}
	return nil
}

// CreateClub creates a club, seeds its default roles and makes the creator
// its owner, all in one transaction.
func (s *ClubService) CreateClub(ctx context.Context, name, ownerID string) (domain.Club, error) {
	now := time.Now().UTC()
	club := domain.Club{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Clubs().CreateClub(ctx, club); err != nil {
			return err
		}

		var ownerRoleID int64
		for _, def := range domain.DefaultClubRoles() {
			roleID, err := tx.Roles().CreateRole(ctx, domain.ClubRole{
				ClubID:      club.ID,
				Name:        def.Name,
				Description: def.Description,
				Level:       def.Level,
				CreatedAt:   now,
				UpdatedAt:   now,
			}, expandPermissions(def.Permissions))
			if err != nil {
				return err
			}
			if def.Level == 0 {
				ownerRoleID = roleID
			}
		}

		return tx.Roles().AssignUserClubRole(ctx, domain.UserClubRole{
			UserID:     ownerID,
			ClubID:     club.ID,
			RoleID:     ownerRoleID,
			AssignedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Club{}, domain.ErrAlreadyExists
		}
		return domain.Club{}, domain.Internal(err)
	}

	s.Sink.RecordAudit(ownerID, "create_club", domain.AuditClub, true, club.ID)
	return club, nil
}

// requireRoleAuthority checks that the actor holds a strictly more
// privileged role than level in the club, and holds every permission
// being granted. A role author can never mint privilege they lack.
func (s *ClubService) requireRoleAuthority(ctx context.Context, actorID, clubID string, level int, granted []string) error {
	actorRole, err := s.Store.Roles().GetUserClubRole(ctx, actorID, clubID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrInsufficientPermission
		}
		return domain.Internal(err)
	}
	if actorRole.Level >= level {
		return domain.ErrInsufficientPermission
	}

	if len(granted) > 0 {
		held, err := s.RBAC.rolePermissions(ctx, actorRole.ID)
		if err != nil {
			return err
		}
		for _, p := range granted {
			if !slices.Contains(held, p) {
				return domain.ErrInsufficientPermission
			}
		}
	}
	return nil
}

// CreateRole adds a custom role to a club. Wildcards are expanded and
// every permission name must exist in the catalog.
func (s *ClubService) CreateRole(ctx context.Context, actorID, clubID, name, description string, level int, permissions []string) (domain.ClubRole, error) {
	permissions = expandPermissions(permissions)
	if err := s.validatePermissions(ctx, permissions); err != nil {
		return domain.ClubRole{}, err
	}
	if err := s.requireRoleAuthority(ctx, actorID, clubID, level, permissions); err != nil {
		return domain.ClubRole{}, err
	}

	now := time.Now().UTC()
	role := domain.ClubRole{
		ClubID:      clubID,
		Name:        name,
		Description: description,
		Level:       level,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	roleID, err := s.Store.Roles().CreateRole(ctx, role, permissions)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.ClubRole{}, domain.ErrAlreadyExists
		}
		return domain.ClubRole{}, domain.Internal(err)
	}

	role.ID = roleID
	return role, nil
}

// UpdateRolePermissions replaces a role's permission set and drops the
// stale cache entry.
func (s *ClubService) UpdateRolePermissions(ctx context.Context, actorID string, roleID int64, permissions []string) error {
	permissions = expandPermissions(permissions)
	if err := s.validatePermissions(ctx, permissions); err != nil {
		return err
	}

	role, err := s.Store.Roles().GetRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrRoleNotFound
		}
		return domain.Internal(err)
	}
	if err := s.requireRoleAuthority(ctx, actorID, role.ClubID, role.Level, permissions); err != nil {
		return err
	}

	if err := s.Store.Roles().UpdateRolePermissions(ctx, roleID, permissions); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrRoleNotFound
		}
		return domain.Internal(err)
	}

	s.RBAC.Invalidate(roleID)
	return nil
}

// DeleteRole removes a role. The delete fails while any user still holds
// the role.
func (s *ClubService) DeleteRole(ctx context.Context, actorID string, roleID int64) error {
	role, err := s.Store.Roles().GetRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrRoleNotFound
		}
		return domain.Internal(err)
	}
	if err := s.requireRoleAuthority(ctx, actorID, role.ClubID, role.Level, nil); err != nil {
		return err
	}

	if err := s.Store.Roles().DeleteRole(ctx, roleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrRoleNotFound
		}
		return domain.Internal(err)
	}
	s.RBAC.Invalidate(roleID)
	return nil
}

// ListRoles returns a club's role catalog ordered by level.
func (s *ClubService) ListRoles(ctx context.Context, clubID string) ([]domain.ClubRole, error) {
	roles, err := s.Store.Roles().ListRoles(ctx, clubID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return roles, nil
}

// AssignRole grants a user a role within a club. The actor must hold a
// strictly more privileged role than both the target user and the role
// being granted. A user holds at most one role per club, so assigning a
// different role replaces the current one.
func (s *ClubService) AssignRole(ctx context.Context, actorID, userID, clubID string, roleID int64) error {
	role, err := s.Store.Roles().GetRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrRoleNotFound
		}
		return domain.Internal(err)
	}
	if role.ClubID != clubID {
		return domain.ErrRoleNotFound
	}

	actorRole, err := s.Store.Roles().GetUserClubRole(ctx, actorID, clubID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrInsufficientPermission
		}
		return domain.Internal(err)
	}
	if actorRole.Level >= role.Level {
		return domain.ErrInsufficientPermission
	}
	if err := s.RBAC.RequireOutranks(ctx, actorID, userID, clubID); err != nil {
		return err
	}

	current, err := s.Store.Roles().GetUserClubRole(ctx, userID, clubID)
	switch {
	case err == nil:
		if current.ID == roleID {
			return domain.ErrAlreadyExists
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return domain.Internal(err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if current.ID != 0 {
			if err := tx.Roles().RemoveUserClubRole(ctx, userID, clubID, current.ID); err != nil {
				return err
			}
		}
		return tx.Roles().AssignUserClubRole(ctx, domain.UserClubRole{
			UserID:     userID,
			ClubID:     clubID,
			RoleID:     roleID,
			AssignedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.ErrAlreadyExists
		}
		return domain.Internal(err)
	}

	s.Sink.RecordAudit(actorID, "assign_role", domain.AuditClub, true, userID)
	return nil
}

// RemoveRole strips a role from a user. The actor must outrank the target.
func (s *ClubService) RemoveRole(ctx context.Context, actorID, userID, clubID string, roleID int64) error {
	if err := s.RBAC.RequireOutranks(ctx, actorID, userID, clubID); err != nil {
		return err
	}

	if err := s.Store.Roles().RemoveUserClubRole(ctx, userID, clubID, roleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrRoleNotFound
		}
		return domain.Internal(err)
	}

	s.Sink.RecordAudit(actorID, "remove_role", domain.AuditClub, true, userID)
	return nil
}
