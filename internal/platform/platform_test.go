package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/atlasforge/agentmesh/internal/auth"
	"github.com/atlasforge/agentmesh/internal/config"
	"github.com/atlasforge/agentmesh/internal/orchestrator"
	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func newTestServer(t *testing.T) (*Server, storage.Store, *orchestrator.Manager) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	orchCfg := config.OrchestratorConfig{
		BasePort:    9000,
		DataDir:     dir,
		RoutingFile: filepath.Join(dir, "routes.json"),
		GatewayBin:  "true", // resolved via PATH; exits immediately, exercises spawn without a real gateway
	}
	orch := orchestrator.New(store, orchCfg)

	cfg := config.PlatformConfig{
		Auth: config.AuthConfig{JWTSecret: "test-secret-test-secret", TokenExpiry: 0},
	}
	srv := New(cfg, store, orch)
	return srv, store, orch
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func seedUser(t *testing.T, store storage.Store, email string, role models.UserRole, status models.UserStatus) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{Email: email, PasswordHash: hash, Role: role, Status: status}
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func tokenFor(t *testing.T, srv *Server, u *models.User) string {
	t.Helper()
	tok, err := srv.jwt.Generate(u)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedUser(t, store, "pending@example.com", models.RoleAdmin, models.UserPending)

	rec := doRequest(t, srv, http.MethodPost, "/api/admin/login", "", loginRequest{
		Email: "pending@example.com", Password: "correct-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for pending user, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginSucceedsAndIssuesToken(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedUser(t, store, "active@example.com", models.RoleAdmin, models.UserActive)

	rec := doRequest(t, srv, http.MethodPost, "/api/admin/login", "", loginRequest{
		Email: "active@example.com", Password: "correct-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["token"] == "" || resp["token"] == nil {
		t.Fatal("expected non-empty token")
	}
}

func TestLoginRateLimitedAfterFiveAttempts(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedUser(t, store, "victim@example.com", models.RoleAdmin, models.UserActive)

	for i := 0; i < 5; i++ {
		rec := doRequest(t, srv, http.MethodPost, "/api/admin/login", "", loginRequest{
			Email: "victim@example.com", Password: "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
	}
	rec := doRequest(t, srv, http.MethodPost, "/api/admin/login", "", loginRequest{
		Email: "victim@example.com", Password: "correct-password",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th attempt: expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPasswordResetRequestAlwaysReportsSuccess(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/admin/password-reset", "", passwordResetRequest{
		Email: "nobody@example.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 regardless of whether email exists, got %d", rec.Code)
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["ok"] != true {
		t.Fatal("expected ok:true to avoid leaking enumeration")
	}
}

func TestTenantsListScopedByRole(t *testing.T) {
	srv, store, _ := newTestServer(t)
	ctx := context.Background()

	owner := seedUser(t, store, "owner@example.com", models.RoleAdmin, models.UserActive)
	other := seedUser(t, store, "other@example.com", models.RoleAdmin, models.UserActive)

	mine := &models.Tenant{Slug: "mine", Name: "Mine", OwnerID: owner.ID, Port: 9101, Status: models.TenantStopped}
	theirs := &models.Tenant{Slug: "theirs", Name: "Theirs", OwnerID: other.ID, Port: 9102, Status: models.TenantStopped}
	if err := store.Tenants().Create(ctx, mine); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	if err := store.Tenants().Create(ctx, theirs); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	token := tokenFor(t, srv, owner)
	rec := doRequest(t, srv, http.MethodGet, "/api/admin/tenants", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Tenants []models.Tenant `json:"tenants"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Tenants) != 1 || resp.Tenants[0].Slug != "mine" {
		t.Fatalf("expected admin to see only owned tenant, got %+v", resp.Tenants)
	}
}

func TestTenantsListSuperAdminSeesAll(t *testing.T) {
	srv, store, _ := newTestServer(t)
	ctx := context.Background()

	owner := seedUser(t, store, "owner2@example.com", models.RoleAdmin, models.UserActive)
	root := seedUser(t, store, "root@example.com", models.RoleSuperAdmin, models.UserActive)

	if err := store.Tenants().Create(ctx, &models.Tenant{Slug: "alpha", Name: "Alpha", OwnerID: owner.ID, Port: 9201, Status: models.TenantStopped}); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	token := tokenFor(t, srv, root)
	rec := doRequest(t, srv, http.MethodGet, "/api/admin/tenants", token, nil)
	var resp struct {
		Tenants []models.Tenant `json:"tenants"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Tenants) != 1 {
		t.Fatalf("expected superadmin to see the seeded tenant, got %+v", resp.Tenants)
	}
}

func TestViewerCannotWriteTenant(t *testing.T) {
	srv, store, _ := newTestServer(t)
	ctx := context.Background()

	tn := &models.Tenant{Slug: "readonly", Name: "Readonly", OwnerID: "someone-else", Port: 9301, Status: models.TenantStopped}
	if err := store.Tenants().Create(ctx, tn); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	tenantID := tn.ID
	viewer := seedUser(t, store, "viewer@example.com", models.RoleViewer, models.UserActive)
	viewer.TenantID = &tenantID
	if err := store.Users().Update(ctx, viewer); err != nil {
		t.Fatalf("assign viewer tenant: %v", err)
	}

	token := tokenFor(t, srv, viewer)
	rec := doRequest(t, srv, http.MethodPost, "/api/admin/tenants/"+tn.ID+"/stop", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected viewer write to be rejected, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUserManagementRequiresSuperAdmin(t *testing.T) {
	srv, store, _ := newTestServer(t)
	admin := seedUser(t, store, "plainadmin@example.com", models.RoleAdmin, models.UserActive)

	token := tokenFor(t, srv, admin)
	rec := doRequest(t, srv, http.MethodGet, "/api/admin/users", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected non-superadmin to be rejected, got %d", rec.Code)
	}
}

func TestPairingValidateConsumesCodeOnce(t *testing.T) {
	srv, store, _ := newTestServer(t)
	ctx := context.Background()

	code := "654321"
	tn := &models.Tenant{Slug: "acme", Name: "Acme", Port: 9401, Status: models.TenantStopped, PairingCode: &code}
	if err := store.Tenants().Create(ctx, tn); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	first := doRequest(t, srv, http.MethodPost, "/api/admin/pairing/validate", "", pairingValidateRequest{Slug: "acme", Code: code})
	if first.Code != http.StatusOK {
		t.Fatalf("expected first validation to succeed, got %d: %s", first.Code, first.Body.String())
	}

	second := doRequest(t, srv, http.MethodPost, "/api/admin/pairing/validate", "", pairingValidateRequest{Slug: "acme", Code: code})
	var resp map[string]any
	json.Unmarshal(second.Body.Bytes(), &resp)
	if resp["ok"] == true {
		t.Fatal("expected second use of the same pairing code to fail")
	}
}

func TestRegisterCreatesOwnerAndTenant(t *testing.T) {
	srv, store, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/admin/register", "", registerRequest{
		Email: "founder@example.com", Password: "correct-password", TenantName: "Acme Corp",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	user, err := store.Users().GetByEmail(context.Background(), "founder@example.com")
	if err != nil {
		t.Fatalf("expected user to be persisted: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Fatalf("expected registered user to be admin, got %s", user.Role)
	}

	tenants, err := store.Tenants().List(context.Background(), user.ID)
	if err != nil || len(tenants) != 1 {
		t.Fatalf("expected one owned tenant, got %v (err=%v)", tenants, err)
	}
	if tenants[0].Slug != "acme-corp" {
		t.Fatalf("expected slugified tenant name, got %q", tenants[0].Slug)
	}
}

func TestCascadeDeleteUserRemovesOwnedTenants(t *testing.T) {
	srv, store, orch := newTestServer(t)
	ctx := context.Background()

	root := seedUser(t, store, "root2@example.com", models.RoleSuperAdmin, models.UserActive)
	owner := seedUser(t, store, "owner3@example.com", models.RoleAdmin, models.UserActive)

	t1, err := orch.Create(ctx, orchestrator.CreateParams{Name: "T1", Slug: "t1", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("create tenant 1: %v", err)
	}
	t2, err := orch.Create(ctx, orchestrator.CreateParams{Name: "T2", Slug: "t2", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("create tenant 2: %v", err)
	}

	token := tokenFor(t, srv, root)
	rec := doRequest(t, srv, http.MethodDelete, "/api/admin/users/"+owner.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := store.Tenants().Get(ctx, t1.ID); err == nil {
		t.Fatal("expected tenant 1 to be deleted by cascade")
	}
	if _, err := store.Tenants().Get(ctx, t2.ID); err == nil {
		t.Fatal("expected tenant 2 to be deleted by cascade")
	}
	if _, err := store.Users().Get(ctx, owner.ID); err == nil {
		t.Fatal("expected owner user row to be deleted")
	}
}
