package httpapi

import (
	"net/http"
	"strings"
	"time"

	"clavis.dev/internal/auth"
)

type createTenantRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	// Provision controls whether the template role groups are cloned into
	// the new tenant.
	Provision bool `json:"provision"`
}

type setTenantActiveRequest struct {
	Active bool `json:"active"`
}

type tenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTenantResponse(t *auth.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Active:    t.Active,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (a *API) handleTenants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.requirePermission(w, r, auth.PermTenantsRead) {
			return
		}
		tenants, err := a.tenants.ListTenants(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		out := make([]tenantResponse, 0, len(tenants))
		for _, t := range tenants {
			out = append(out, toTenantResponse(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"tenants": out})
	case http.MethodPost:
		if !a.requirePermission(w, r, auth.PermTenantsCreate) {
			return
		}
		var req createTenantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		var (
			tenant *auth.Tenant
			err    error
		)
		if req.Provision {
			tenant, err = a.tenants.ProvisionTenant(r.Context(), req.Name, req.Slug)
		} else {
			tenant, err = a.tenants.CreateTenant(r.Context(), req.Name, req.Slug)
		}
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/tenants/"+tenant.ID)
		writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTenantResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/tenants/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if !a.requirePermission(w, r, auth.PermTenantsRead) {
			return
		}
		tenant, err := a.tenants.GetTenant(r.Context(), parts[0])
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTenantResponse(tenant))
	case len(parts) == 2 && parts[1] == "active":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		if !a.requirePermission(w, r, auth.PermTenantsUpdate) {
			return
		}
		var req setTenantActiveRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.tenants.SetTenantActive(r.Context(), parts[0], req.Active); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

type permissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Group       string `json:"group"`
	Description string `json:"description,omitempty"`
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePermission(w, r, auth.PermRolesRead) {
		return
	}
	perms, err := a.rbac.ListPermissions(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{
			ID:          p.ID,
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Group:       string(p.Group),
			Description: p.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": out})
}

type userResponse struct {
	ID          string   `json:"id"`
	TenantID    string   `json:"tenant_id,omitempty"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Active      bool     `json:"active"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requirePermission(w, r, auth.PermUsersRead) {
		return
	}
	scope := auth.ScopeFromContext(r.Context())
	tenantID, ok := scope.TenantID()
	if !ok {
		// Global callers name the tenant explicitly.
		tenantID = strings.TrimSpace(r.URL.Query().Get("tenant_id"))
		if tenantID == "" {
			writeError(w, r, http.StatusBadRequest, "tenant_id is required")
			return
		}
	}
	users, err := a.identity.ListUsers(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{
			ID:          u.ID,
			TenantID:    u.TenantID,
			Email:       u.Email,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			Active:      u.Active,
			Roles:       u.Roles,
			Permissions: u.Permissions,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}
