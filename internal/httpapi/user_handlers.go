package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"backoffice.dev/internal/access"
)

type createUserRequest struct {
	Login    string `json:"login"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   int64  `json:"role_id"`
}

type updateUserRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	RoleID *int64  `json:"role_id"`
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := pathID(r.URL.Path, "/v1/users/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch rest {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getUser(w, r, id)
		case http.MethodPut:
			a.updateUser(w, r, id)
		case http.MethodDelete:
			a.deleteUser(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "deactivate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.deactivateUser(w, r, id)
	case "reactivate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.reactivateUser(w, r, id)
	case "password":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.changePassword(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionView); !ok {
		return
	}
	filter, err := listFilterFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	users, total, err := a.admin.ListUsers(r.Context(), filter)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if users == nil {
		users = []access.Identity{}
	}
	writeJSON(w, http.StatusOK, listResponse[access.Identity]{Items: users, Total: total})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionView); !ok {
		return
	}
	user, err := a.admin.GetUser(r.Context(), id)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	session, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionCreate)
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.admin.CreateUser(r.Context(), req.Login, req.Name, req.Email, req.Password, req.RoleID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "CREATE_USER", access.ModuleUsers,
		fmt.Sprintf("user %d: %s", user.ID, user.Login))
	w.Header().Set("Location", "/v1/users/"+strconv.FormatInt(user.ID, 10))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionEdit)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.admin.UpdateUser(r.Context(), id, access.IdentityUpdate{
		Name:   req.Name,
		Email:  req.Email,
		RoleID: req.RoleID,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "UPDATE_USER", access.ModuleUsers,
		fmt.Sprintf("user %d: %s", user.ID, user.Login))
	writeJSON(w, http.StatusOK, user)
}

// changePassword allows users to rotate their own password; changing
// someone else's requires USERS/EDIT.
func (a *API) changePassword(w http.ResponseWriter, r *http.Request, id int64) {
	session := sessionFromContext(r.Context())
	if session == nil {
		writeError(w, r, http.StatusUnauthorized, "session required")
		return
	}
	if session.IdentityID != id {
		if _, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionEdit); !ok {
			return
		}
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.admin.ChangePassword(r.Context(), id, req.Password); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "CHANGE_PASSWORD", access.ModuleUsers,
		fmt.Sprintf("user %d", id))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deactivateUser(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionDelete)
	if !ok {
		return
	}
	if err := a.admin.DeactivateUser(r.Context(), id); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "DEACTIVATE_USER", access.ModuleUsers,
		fmt.Sprintf("user %d", id))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) reactivateUser(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionEdit)
	if !ok {
		return
	}
	if err := a.admin.ReactivateUser(r.Context(), id); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, "REACTIVATE_USER", access.ModuleUsers,
		fmt.Sprintf("user %d", id))
	w.WriteHeader(http.StatusNoContent)
}

// deleteUser defaults to the soft delete; ?purge=true removes the row and
// its audit trail.
func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id int64) {
	session, ok := a.requirePermission(w, r, access.ModuleUsers, access.ActionDelete)
	if !ok {
		return
	}
	purge := r.URL.Query().Get("purge") == "true"
	var err error
	action := "DEACTIVATE_USER"
	if purge {
		action = "PURGE_USER"
		err = a.admin.PurgeUser(r.Context(), id)
	} else {
		err = a.admin.DeactivateUser(r.Context(), id)
	}
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.rec.RecordBestEffort(r.Context(), &session.IdentityID, action, access.ModuleUsers,
		fmt.Sprintf("user %d", id))
	w.WriteHeader(http.StatusNoContent)
}
