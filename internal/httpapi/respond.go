package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"backoffice.dev/internal/access"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleAccessError maps the access sentinels onto HTTP statuses.
func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *access.ConflictError
	switch {
	case errors.Is(err, access.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, access.ErrSessionRevoked):
		writeError(w, r, http.StatusUnauthorized, "session revoked")
	case errors.Is(err, access.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, "permission denied")
	case errors.Is(err, access.ErrInactiveAccount):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &conflict):
		writeError(w, r, http.StatusConflict, conflict.Error())
	case errors.Is(err, access.ErrLastAdministrator):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, access.ErrStoreUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses the numeric id segment after prefix; remaining returns the
// rest of the path ("" for the bare resource).
func pathID(path, prefix string) (int64, string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return 0, "", false
	}
	idPart := rest
	remaining := ""
	if i := strings.Index(rest, "/"); i >= 0 {
		idPart = rest[:i]
		remaining = rest[i+1:]
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, remaining, true
}

func listFilterFromQuery(r *http.Request) (access.ListFilter, error) {
	filter := access.ListFilter{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		return access.ListFilter{}, err
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		return access.ListFilter{}, err
	}
	return filter, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return val, nil
}
