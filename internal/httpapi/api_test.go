package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice.dev/internal/access"
	"backoffice.dev/internal/audit"
	"backoffice.dev/internal/migrate"
	"backoffice.dev/internal/store/memory"
)

type testEnv struct {
	handler http.Handler
	store   *memory.Store
	admin   *access.Admin
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	if _, err := migrate.Bootstrap(context.Background(), store); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	rec, err := audit.NewRecorder(store)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	svc, err := access.NewService(store, access.NewSessionRegistry(0), rec)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	adminSvc, err := access.NewAdmin(store)
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	api := New(svc, adminSvc, rec, ReadyProbe{}, "test", Options{LoginBurst: 100, LoginRPS: 100})
	return &testEnv{handler: api.Handler(), store: store, admin: adminSvc}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.7:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, login, password string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"login":    login,
		"password": password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", login, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty session token")
	}
	return resp.Token
}

func (e *testEnv) createOperator(t *testing.T, adminToken, login string) int64 {
	t.Helper()
	roles, err := e.admin.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	var roleID int64
	for _, role := range roles {
		if role.Name == "Operator" {
			roleID = role.ID
		}
	}
	w := e.do(t, http.MethodPost, "/v1/users", adminToken, map[string]any{
		"login":    login,
		"name":     "Op " + login,
		"email":    login + "@example.com",
		"password": "op-pass-" + login,
		"role_id":  roleID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create operator: status %d body %s", w.Code, w.Body.String())
	}
	var user access.Identity
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return user.ID
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	token := env.login(t, "admin", migrate.DefaultAdminPassword)

	w := env.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", w.Code, w.Body.String())
	}
	var me access.IdentitySummary
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Login != "admin" || me.RoleName != access.AdministratorRoleName {
		t.Fatalf("unexpected identity: %+v", me)
	}

	if w := env.do(t, http.MethodPost, "/v1/auth/logout", token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/v1/auth/me", token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("token must be dead after logout, got %d", w.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"login":    "admin",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d body %s", w.Code, w.Body.String())
	}
}

func TestProtectedEndpointsRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/v1/customers", "/v1/users", "/v1/audit", "/v1/auth/me"} {
		if w := env.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: want 401 without a session, got %d", path, w.Code)
		}
	}
	if w := env.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz must be public, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("readyz must be public, got %d", w.Code)
	}
}

func TestCustomerLifecycleWithAudit(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", migrate.DefaultAdminPassword)

	w := env.do(t, http.MethodPost, "/v1/customers", token, map[string]string{
		"name":   "ACME Ltd",
		"email":  "Contact@Acme.example",
		"phone1": "555-0100",
		"city":   "Springfield",
		"notes":  "prefers invoicing by email",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create customer: status %d body %s", w.Code, w.Body.String())
	}
	var customer access.Customer
	if err := json.Unmarshal(w.Body.Bytes(), &customer); err != nil {
		t.Fatalf("decode customer: %v", err)
	}
	if customer.Email != "contact@acme.example" {
		t.Fatalf("email must be lowercased: %+v", customer)
	}
	if customer.City != "Springfield" || customer.Notes != "prefers invoicing by email" {
		t.Fatalf("city/notes must round-trip: %+v", customer)
	}
	if loc := w.Header().Get("Location"); loc != fmt.Sprintf("/v1/customers/%d", customer.ID) {
		t.Fatalf("unexpected Location %q", loc)
	}

	w = env.do(t, http.MethodPut, fmt.Sprintf("/v1/customers/%d", customer.ID), token, map[string]string{
		"name": "ACME Holdings",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update customer: status %d body %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/customers/%d", customer.ID), token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete customer: status %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/audit?module=CUSTOMERS", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: status %d body %s", w.Code, w.Body.String())
	}
	var auditResp struct {
		Items []access.AuditEntry `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &auditResp); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(auditResp.Items) != 3 {
		t.Fatalf("want 3 customer audit entries, got %+v", auditResp.Items)
	}
	if auditResp.Items[0].Action != "DELETE_CUSTOMER" || auditResp.Items[2].Action != "CREATE_CUSTOMER" {
		t.Fatalf("unexpected audit ordering: %+v", auditResp.Items)
	}
}

func TestOperatorForbiddenFromDelete(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.login(t, "admin", migrate.DefaultAdminPassword)
	env.createOperator(t, adminToken, "op1")
	opToken := env.login(t, "op1", "op-pass-op1")

	w := env.do(t, http.MethodPost, "/v1/customers", opToken, map[string]string{"name": "Clientele"})
	if w.Code != http.StatusCreated {
		t.Fatalf("operator create: status %d body %s", w.Code, w.Body.String())
	}
	var customer access.Customer
	_ = json.Unmarshal(w.Body.Bytes(), &customer)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/customers/%d", customer.ID), opToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("operator delete: want 403, got %d body %s", w.Code, w.Body.String())
	}

	// User administration is off limits entirely.
	if w := env.do(t, http.MethodGet, "/v1/users", opToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("operator listing users: want 403, got %d", w.Code)
	}
}

func TestDeactivationRevokesLiveSession(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.login(t, "admin", migrate.DefaultAdminPassword)
	opID := env.createOperator(t, adminToken, "op2")
	opToken := env.login(t, "op2", "op-pass-op2")

	if w := env.do(t, http.MethodGet, "/v1/customers", opToken, nil); w.Code != http.StatusOK {
		t.Fatalf("operator list before deactivation: %d", w.Code)
	}

	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/users/%d/deactivate", opID), adminToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("deactivate: status %d body %s", w.Code, w.Body.String())
	}

	if w := env.do(t, http.MethodGet, "/v1/customers", opToken, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked session: want 401, got %d", w.Code)
	}
	// And the account cannot log back in.
	lw := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"login": "op2", "password": "op-pass-op2",
	})
	if lw.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated login: want 401, got %d", lw.Code)
	}
}

func TestLastAdministratorGuardOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.login(t, "admin", migrate.DefaultAdminPassword)

	w := env.do(t, http.MethodGet, "/v1/auth/me", adminToken, nil)
	var me access.IdentitySummary
	_ = json.Unmarshal(w.Body.Bytes(), &me)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/v1/users/%d/deactivate", me.ID), adminToken, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("last admin deactivate: want 409, got %d body %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d?purge=true", me.ID), adminToken, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("last admin purge: want 409, got %d body %s", w.Code, w.Body.String())
	}
}

func TestRolePermissionUpdateIsLive(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.login(t, "admin", migrate.DefaultAdminPassword)
	env.createOperator(t, adminToken, "op3")
	opToken := env.login(t, "op3", "op-pass-op3")

	if w := env.do(t, http.MethodGet, "/v1/customers", opToken, nil); w.Code != http.StatusOK {
		t.Fatalf("operator list: %d", w.Code)
	}

	roles, _ := env.admin.ListRoles(context.Background())
	var operatorRole int64
	for _, role := range roles {
		if role.Name == "Operator" {
			operatorRole = role.ID
		}
	}
	w := env.do(t, http.MethodPut, fmt.Sprintf("/v1/roles/%d/permissions", operatorRole), adminToken, map[string]any{
		"permissions": []map[string]string{},
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("set role permissions: status %d body %s", w.Code, w.Body.String())
	}

	if w := env.do(t, http.MethodGet, "/v1/customers", opToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("revoked grant must deny on the next request, got %d", w.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	store := memory.New()
	if _, err := migrate.Bootstrap(context.Background(), store); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	rec, err := audit.NewRecorder(store)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	svc, err := access.NewService(store, access.NewSessionRegistry(0), rec)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	adminSvc, err := access.NewAdmin(store)
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	api := New(svc, adminSvc, rec, ReadyProbe{}, "test", Options{LoginBurst: 1, LoginRPS: 0.001})
	env := &testEnv{handler: api.Handler(), store: store, admin: adminSvc}

	first := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"login": "admin", "password": "nope",
	})
	if first.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt: want 401, got %d", first.Code)
	}
	second := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"login": "admin", "password": "nope",
	})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt: want 429, got %d", second.Code)
	}
	// Other endpoints stay unthrottled.
	if w := env.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz throttled: %d", w.Code)
	}
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", migrate.DefaultAdminPassword)

	if w := env.do(t, http.MethodGet, "/v1/customers/abc", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("non-numeric id: want 404, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPatch, "/v1/customers", token, nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PATCH collection: want 405, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/v1/customers", token, map[string]string{"name": "  "}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank name: want 400, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/v1/audit?identity_id=4&module=USERS", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("exclusive filters: want 400, got %d", w.Code)
	}
}
