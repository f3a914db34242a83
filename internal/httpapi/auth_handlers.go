package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"backoffice.dev/internal/access"
	"backoffice.dev/internal/obs"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string                 `json:"token"`
	Identity access.IdentitySummary `json:"identity"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.svc.Login(r.Context(), strings.TrimSpace(req.Login), req.Password)
	if err != nil {
		if errors.Is(err, access.ErrInvalidCredentials) {
			obs.LoginAttempt("failure")
		} else {
			obs.LoginAttempt("error")
		}
		handleAccessError(w, r, err)
		return
	}
	obs.LoginAttempt("success")

	identity, err := a.svc.CurrentIdentity(r.Context(), session)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: session.ID, Identity: identity})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.svc.Logout(r.Context(), sessionFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, err := a.svc.CurrentIdentity(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (a *API) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	grants, err := a.svc.ListPermissions(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if grants == nil {
		grants = []access.Grant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": grants})
}
