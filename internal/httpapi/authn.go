package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"backoffice.dev/internal/access"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withSession resolves the bearer session handle and runs the live
// activity check, so a deactivated account is rejected on its next
// request even with a previously valid handle.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		handle, err := extractBearerHandle(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		session, ok := a.svc.Sessions().Resolve(handle)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		if err := a.svc.RequireActive(r.Context(), session); err != nil {
			if errors.Is(err, access.ErrSessionRevoked) {
				writeError(w, r, http.StatusUnauthorized, "session revoked")
			} else {
				handleAccessError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) *access.Session {
	session, _ := ctx.Value(sessionKey).(*access.Session)
	return session
}

// requirePermission gates a handler on (module, action); the decision is
// a live lookup.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, module, action string) (*access.Session, bool) {
	session := sessionFromContext(r.Context())
	if err := a.svc.Require(r.Context(), session, module, action); err != nil {
		handleAccessError(w, r, err)
		return nil, false
	}
	return session, true
}

func extractBearerHandle(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	handle := strings.TrimSpace(header[len(bearer):])
	if handle == "" {
		return "", errors.New("missing bearer token")
	}
	return handle, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
