package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"backoffice.dev/internal/access"
)

// handleAudit serves the audit log, newest first. ?identity_id= and
// ?module= narrow the listing; they are mutually exclusive.
func (a *API) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requirePermission(w, r, access.ModuleAudit, access.ActionView); !ok {
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	identityParam := strings.TrimSpace(r.URL.Query().Get("identity_id"))
	module := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("module")))
	if identityParam != "" && module != "" {
		writeError(w, r, http.StatusBadRequest, "identity_id and module are mutually exclusive")
		return
	}

	var entries []access.AuditEntry
	switch {
	case identityParam != "":
		identityID, err := strconv.ParseInt(identityParam, 10, 64)
		if err != nil || identityID <= 0 {
			writeError(w, r, http.StatusBadRequest, "identity_id must be a positive integer")
			return
		}
		entries, err = a.rec.ListByIdentity(r.Context(), identityID, limit)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
	case module != "":
		entries, err = a.rec.ListByModule(r.Context(), module, limit)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
	default:
		entries, err = a.rec.ListRecent(r.Context(), limit)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
	}
	if entries == nil {
		entries = []access.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
