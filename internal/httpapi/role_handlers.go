package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"backoffice.dev/internal/access"
)

// Role administration is part of user administration, so everything here
// is gated on the USERS module rather than a module of its own.

type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type setRolePermissionsRequest struct {
	Permissions []access.Grant `json:"permissions"`
}

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listRoles(w, r)
	case http.MethodPost:
		a.createRole(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := pathID(r.URL.Path, "/v1/roles/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch rest {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getRole(w, r, id)
		case http.MethodPut:
			a.updateRole(w, r, id)
		case http.MethodDelete:
			a.deleteRole(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "permissions":
		switch r.Method {
		case http.MethodGet:
			a.rolePermissions(w, r, id)
		case http.MethodPut:
			a.setRolePermissions(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionView); !ok {
		return
	}
	roles, err := a.admin.ListRoles(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if roles == nil {
		roles = []access.Role{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": roles})
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionView); !ok {
		return
	}
	role, err := a.admin.GetRole(r.Context(), id)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionEdit)
	if !ok {
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.admin.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "CREATE_ROLE", access.ModuleUsers,
		fmt.Sprintf("role %d: %s", role.ID, role.Name))
	w.Header().Set("Location", "/v1/roles/"+strconv.FormatInt(role.ID, 10))
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionEdit)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.admin.UpdateRole(r.Context(), id, access.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "UPDATE_ROLE", access.ModuleUsers,
		fmt.Sprintf("role %d: %s", role.ID, role.Name))
	writeJSON(w, http.StatusOK, role)
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionEdit)
	if !ok {
		return
	}
	if err := a.admin.DeleteRole(r.Context(), id); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "DELETE_ROLE", access.ModuleUsers,
		fmt.Sprintf("role %d", id))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) rolePermissions(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionView); !ok {
		return
	}
	grants, err := a.admin.RolePermissions(r.Context(), id)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if grants == nil {
		grants = []access.Grant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": grants})
}

// setRolePermissions replaces the role's grant set; the change is live
// for every session on its next permission check.
func (a *API) setRolePermissions(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionEdit)
	if !ok {
		return
	}
	var req setRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.admin.SetRolePermissions(r.Context(), id, req.Permissions); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "SET_ROLE_PERMISSIONS", access.ModuleUsers,
		fmt.Sprintf("role %d: %d grants", id, len(req.Permissions)))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionView); !ok {
		return
	}
	perms, err := a.admin.ListPermissionCatalog(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if perms == nil {
		perms = []access.Permission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": perms})
}
