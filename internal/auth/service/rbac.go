package service

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/metrics"
)

// RBACService answers permission questions for club-scoped actions. Role
// permission sets are cached in memory; the role services invalidate the
// cache whenever they change a role.
type RBACService struct {
	Store store.Store

	mu    sync.RWMutex
	perms map[int64][]string
}

func NewRBACService(st store.Store) *RBACService {
	return &RBACService{Store: st, perms: make(map[int64][]string)}
}

func (s *RBACService) rolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	s.mu.RLock()
	cached, ok := s.perms[roleID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	perms, err := s.Store.Roles().ListRolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.perms[roleID] = perms
	s.mu.Unlock()
	return perms, nil
}

// Invalidate drops one role's cached permission set.
func (s *RBACService) Invalidate(roleID int64) {
	s.mu.Lock()
	delete(s.perms, roleID)
	s.mu.Unlock()
}

// InvalidateAll drops the whole cache.
func (s *RBACService) InvalidateAll() {
	s.mu.Lock()
	s.perms = make(map[int64][]string)
	s.mu.Unlock()
}

// RequirePermission checks that the user's role in the club grants at
// least one of the named permissions. A user with no role in the club
// holds nothing, and asking for nothing grants nothing.
func (s *RBACService) RequirePermission(ctx context.Context, userID, clubID string, permissions ...string) error {
	role, err := s.Store.Roles().GetUserClubRole(ctx, userID, clubID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.PermissionChecks.WithLabelValues("denied").Inc()
			return domain.ErrInsufficientPermission
		}
		return domain.Internal(err)
	}

	perms, err := s.rolePermissions(ctx, role.ID)
	if err != nil {
		return domain.Internal(err)
	}

	for _, p := range permissions {
		if slices.Contains(perms, p) {
			metrics.PermissionChecks.WithLabelValues("granted").Inc()
			return nil
		}
	}

	metrics.PermissionChecks.WithLabelValues("denied").Inc()
	return domain.ErrInsufficientPermission
}

// RequireOutranks checks that the actor's role in the club is strictly
// more privileged than the target's (lower level wins; equal levels do not
// outrank each other). A target with no role in the club is always
// outranked.
func (s *RBACService) RequireOutranks(ctx context.Context, actorID, targetID, clubID string) error {
	actorRole, err := s.Store.Roles().GetUserClubRole(ctx, actorID, clubID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrInsufficientPermission
		}
		return domain.Internal(err)
	}

	targetRole, err := s.Store.Roles().GetUserClubRole(ctx, targetID, clubID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return domain.Internal(err)
	}

	if actorRole.Level >= targetRole.Level {
		return domain.ErrInsufficientPermission
	}
	return nil
}
