// Package httpapi is the HTTP presentation layer: JSON endpoints over the
// access service, admin repositories and audit log.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"backoffice.dev/internal/access"
	"backoffice.dev/internal/audit"
	"backoffice.dev/internal/obs"
)

// ReadyProbe reports backend readiness (typically a DB ping).
type ReadyProbe struct {
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Ping == nil {
		return nil
	}
	return rp.Ping(ctx)
}

// Options tunes the middleware chain.
type Options struct {
	// LoginRPS and LoginBurst shape the per-client limiter on the login
	// endpoint. Zero values fall back to 1 rps / burst 5.
	LoginRPS   float64
	LoginBurst int
	// MaxBodyBytes caps request bodies; zero means 1 MiB.
	MaxBodyBytes int64
}

// API wires the routes.
type API struct {
	mux     *http.ServeMux
	svc     *access.Service
	admin   *access.Admin
	rec     *audit.Recorder
	ready   ReadyProbe
	version string
	opts    Options
}

func New(svc *access.Service, admin *access.Admin, rec *audit.Recorder, ready ReadyProbe, version string, opts Options) *API {
	if opts.LoginRPS <= 0 {
		opts.LoginRPS = 1
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 5
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	a := &API{
		mux:     http.NewServeMux(),
		svc:     svc,
		admin:   admin,
		rec:     rec,
		ready:   ready,
		version: version,
		opts:    opts,
	}

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)
	a.mux.HandleFunc("/v1/auth/permissions", a.handleMyPermissions)

	a.mux.HandleFunc("/v1/customers", a.handleCustomersCollection)
	a.mux.HandleFunc("/v1/customers/", a.handleCustomerResource)
	a.mux.HandleFunc("/v1/products", a.handleProductsCollection)
	a.mux.HandleFunc("/v1/products/", a.handleProductResource)
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/roles", a.handleRolesCollection)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissionCatalog)
	a.mux.HandleFunc("/v1/audit", a.handleAudit)

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withSession(h)
	h = RateLimitLogin(h, a.opts.LoginBurst, a.opts.LoginRPS)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- probes ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "backoffice-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "backoffice-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
