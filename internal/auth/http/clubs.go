package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/activitymaster/clubauth/internal/auth/domain"
	"github.com/activitymaster/clubauth/internal/auth/service"
	"github.com/activitymaster/clubauth/pkg/httpx"
)

// ClubsHandler covers club creation and the per-club role catalog.
type ClubsHandler struct {
	ClubService *service.ClubService
}

type createClubRequest struct {
	Name string `json:"name"`
}

// HandleCreateClub handles POST /v1/clubs. The creator becomes the club
// owner.
func (h *ClubsHandler) HandleCreateClub(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	club, err := h.ClubService.CreateClub(ctx, req.Name, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{
		"id":   club.ID,
		"name": club.Name,
	})
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Level       int    `json:"level"`
}

// HandleListRoles handles GET /v1/clubs/{club_id}/roles.
func (h *ClubsHandler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roles, err := h.ClubService.ListRoles(ctx, r.PathValue("club_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponse{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			Level:       role.Level,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"roles": out})
}

type createRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Level       int      `json:"level"`
	Permissions []string `json:"permissions"`
}

// HandleCreateRole handles POST /v1/clubs/{club_id}/roles.
func (h *ClubsHandler) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	if req.Level < 0 {
		writeBadRequest(w, "level must not be negative")
		return
	}

	role, err := h.ClubService.CreateRole(ctx, httpx.UserIDFromContext(ctx),
		r.PathValue("club_id"), req.Name, req.Description, req.Level, req.Permissions)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Level:       role.Level,
	})
}

type updateRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// HandleUpdateRolePermissions handles PUT /v1/clubs/{club_id}/roles/{role_id}/permissions.
func (h *ClubsHandler) HandleUpdateRolePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roleID, ok := pathRoleID(w, r)
	if !ok {
		return
	}

	var req updateRolePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}

	if err := h.ClubService.UpdateRolePermissions(ctx, httpx.UserIDFromContext(ctx), roleID, req.Permissions); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteRole handles DELETE /v1/clubs/{club_id}/roles/{role_id}.
func (h *ClubsHandler) HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roleID, ok := pathRoleID(w, r)
	if !ok {
		return
	}

	if err := h.ClubService.DeleteRole(ctx, httpx.UserIDFromContext(ctx), roleID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

// HandleAssignRole handles POST /v1/clubs/{club_id}/members/{user_id}/roles.
func (h *ClubsHandler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoleID == 0 {
		writeBadRequest(w, "role_id is required")
		return
	}

	err := h.ClubService.AssignRole(ctx, httpx.UserIDFromContext(ctx),
		r.PathValue("user_id"), r.PathValue("club_id"), req.RoleID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveRole handles DELETE /v1/clubs/{club_id}/members/{user_id}/roles/{role_id}.
func (h *ClubsHandler) HandleRemoveRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roleID, ok := pathRoleID(w, r)
	if !ok {
		return
	}

	err := h.ClubService.RemoveRole(ctx, httpx.UserIDFromContext(ctx),
		r.PathValue("user_id"), r.PathValue("club_id"), roleID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pathRoleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	roleID, err := strconv.ParseInt(r.PathValue("role_id"), 10, 64)
	if err != nil {
		writeDomainError(w, r, domain.ErrRoleNotFound)
		return 0, false
	}
	return roleID, true
}
