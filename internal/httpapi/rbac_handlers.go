package httpapi

import (
	"net/http"
	"strings"
	"time"

	"clavis.dev/internal/auth"
)

type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roleResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	TenantID      string    `json:"tenant_id,omitempty"`
	IsSystem      bool      `json:"is_system"`
	PermissionIDs []string  `json:"permission_ids,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toRoleResponse(role *auth.Role) roleResponse {
	resp := roleResponse{
		ID:            role.ID,
		Name:          role.Name,
		Description:   role.Description,
		IsSystem:      role.IsSystem,
		PermissionIDs: role.PermissionIDs,
		CreatedAt:     role.CreatedAt,
		UpdatedAt:     role.UpdatedAt,
	}
	if tenantID, ok := role.Scope.TenantID(); ok {
		resp.TenantID = tenantID
	}
	return resp
}

type setPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

type assignPermissionRequest struct {
	PermissionID string `json:"permission_id"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	scope := auth.ScopeFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermRolesRead) {
			return
		}
		roles, err := a.rbac.ListRoles(r.Context(), scope)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		out := make([]roleResponse, 0, len(roles))
		for _, role := range roles {
			out = append(out, toRoleResponse(role))
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": out})
	case http.MethodPost:
		if !a.requirePermission(w, r, auth.PermRolesCreate) {
			return
		}
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), scope, req.Name, req.Description)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/roles/"+role.ID)
		writeJSON(w, http.StatusCreated, toRoleResponse(role))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	scope := auth.ScopeFromContext(r.Context())

	switch {
	case len(parts) == 1:
		a.handleRole(w, r, scope, parts[0])
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, scope, parts[0])
	case len(parts) == 3 && parts[1] == "permissions":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		if !a.requirePermission(w, r, auth.PermRolesAssignPermissions) {
			return
		}
		if err := a.rbac.RemovePermission(r.Context(), scope, parts[0], parts[2]); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRole(w http.ResponseWriter, r *http.Request, scope auth.Scope, roleID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermRolesRead) {
			return
		}
		role, err := a.rbac.GetRole(r.Context(), roleID, scope)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleResponse(role))
	case http.MethodPut:
		if !a.requirePermission(w, r, auth.PermRolesUpdate) {
			return
		}
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.UpdateRole(r.Context(), scope, roleID, req.Name, req.Description)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleResponse(role))
	case http.MethodDelete:
		if !a.requirePermission(w, r, auth.PermRolesDelete) {
			return
		}
		if err := a.rbac.DeleteRole(r.Context(), scope, roleID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, scope auth.Scope, roleID string) {
	if !a.requirePermission(w, r, auth.PermRolesAssignPermissions) {
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req setPermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.rbac.SetRolePermissions(r.Context(), scope, roleID, req.PermissionIDs); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		var req assignPermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.rbac.AssignPermission(r.Context(), scope, roleID, req.PermissionID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := a.rbac.ClearPermissions(r.Context(), scope, roleID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodPost, http.MethodDelete)
	}
}

// role groups ---------------------------------------------------------------

type roleGroupRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

type roleGroupResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DisplayOrder  int       `json:"display_order"`
	TenantID      string    `json:"tenant_id,omitempty"`
	IsSystem      bool      `json:"is_system"`
	SourceGroupID string    `json:"source_group_id,omitempty"`
	RoleIDs       []string  `json:"role_ids,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toRoleGroupResponse(g *auth.RoleGroup) roleGroupResponse {
	resp := roleGroupResponse{
		ID:            g.ID,
		Name:          g.Name,
		Description:   g.Description,
		DisplayOrder:  g.DisplayOrder,
		IsSystem:      g.IsSystem,
		SourceGroupID: g.SourceGroupID,
		RoleIDs:       g.RoleIDs,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	}
	if tenantID, ok := g.Scope.TenantID(); ok {
		resp.TenantID = tenantID
	}
	return resp
}

type setRolesRequest struct {
	RoleIDs []string `json:"role_ids"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handleRoleGroups(w http.ResponseWriter, r *http.Request) {
	scope := auth.ScopeFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermRoleGroupsRead) {
			return
		}
		groups, err := a.rbac.ListRoleGroups(r.Context(), scope)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		out := make([]roleGroupResponse, 0, len(groups))
		for _, g := range groups {
			out = append(out, toRoleGroupResponse(g))
		}
		writeJSON(w, http.StatusOK, map[string]any{"role_groups": out})
	case http.MethodPost:
		if !a.requirePermission(w, r, auth.PermRoleGroupsCreate) {
			return
		}
		var req roleGroupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		group, err := a.rbac.CreateRoleGroup(r.Context(), scope, req.Name, req.Description, req.DisplayOrder)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/role-groups/"+group.ID)
		writeJSON(w, http.StatusCreated, toRoleGroupResponse(group))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleGroupResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/role-groups/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	scope := auth.ScopeFromContext(r.Context())

	switch {
	case len(parts) == 1:
		a.handleRoleGroup(w, r, scope, parts[0])
	case len(parts) == 2 && parts[1] == "roles":
		a.handleRoleGroupRoles(w, r, scope, parts[0])
	case len(parts) == 3 && parts[1] == "roles":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		if !a.requirePermission(w, r, auth.PermRoleGroupsAssignRoles) {
			return
		}
		if err := a.rbac.RemoveRole(r.Context(), scope, parts[0], parts[2]); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRoleGroup(w http.ResponseWriter, r *http.Request, scope auth.Scope, groupID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermRoleGroupsRead) {
			return
		}
		group, err := a.rbac.GetRoleGroup(r.Context(), groupID, scope)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleGroupResponse(group))
	case http.MethodPut:
		if !a.requirePermission(w, r, auth.PermRoleGroupsUpdate) {
			return
		}
		var req roleGroupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		group, err := a.rbac.UpdateRoleGroup(r.Context(), scope, groupID, req.Name, req.Description, req.DisplayOrder)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleGroupResponse(group))
	case http.MethodDelete:
		if !a.requirePermission(w, r, auth.PermRoleGroupsDelete) {
			return
		}
		if err := a.rbac.DeleteRoleGroup(r.Context(), scope, groupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleRoleGroupRoles(w http.ResponseWriter, r *http.Request, scope auth.Scope, groupID string) {
	if !a.requirePermission(w, r, auth.PermRoleGroupsAssignRoles) {
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req setRolesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.rbac.SetRoles(r.Context(), scope, groupID, req.RoleIDs); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.rbac.AssignRole(r.Context(), scope, groupID, req.RoleID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := a.rbac.ClearRoles(r.Context(), scope, groupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodPost, http.MethodDelete)
	}
}
