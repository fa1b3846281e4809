package storage

import (
	"context"
	"testing"

	"github.com/atlasforge/agentmesh/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTenantCreateGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tn := &models.Tenant{Slug: "acme", Name: "Acme", OwnerID: "owner-1", Port: 10001, Status: models.TenantStopped}
	if err := s.Tenants().Create(ctx, tn); err != nil {
		t.Fatalf("create: %v", err)
	}
	if tn.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.Tenants().GetBySlug(ctx, "acme")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if got.Name != "Acme" || got.Port != 10001 {
		t.Fatalf("unexpected tenant: %+v", got)
	}

	exists, err := s.Tenants().SlugExists(ctx, "acme")
	if err != nil || !exists {
		t.Fatalf("expected slug to exist, err=%v", err)
	}

	if err := s.Tenants().Delete(ctx, tn.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Tenants().Get(ctx, tn.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTenantPortUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &models.Tenant{Slug: "a", Name: "A", OwnerID: "o", Port: 20000, Status: models.TenantStopped}
	if err := s.Tenants().Create(ctx, a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	b := &models.Tenant{Slug: "b", Name: "B", OwnerID: "o", Port: 20000, Status: models.TenantStopped}
	if err := s.Tenants().Create(ctx, b); err == nil {
		t.Fatal("expected unique port constraint violation")
	}
}

func TestUserCannotAuthenticateUnlessActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Email: "a@example.com", PasswordHash: "hash", Role: models.RoleAdmin, Status: models.UserPending}
	if err := s.Users().Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.CanAuthenticate() {
		t.Fatal("pending user should not authenticate")
	}
	u.Status = models.UserActive
	if err := s.Users().Update(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.Users().GetByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CanAuthenticate() {
		t.Fatal("active user should authenticate")
	}
}

func TestAuditLogAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Audit().Log(ctx, "tenant_created", "user", "u1", `{"slug":"acme"}`); err != nil {
		t.Fatalf("log: %v", err)
	}
	records, err := s.Audit().List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].EventType != "tenant_created" {
		t.Fatalf("unexpected audit records: %+v", records)
	}
}

func TestPasswordResetSingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Email: "reset@example.com", PasswordHash: "h", Role: models.RoleAdmin, Status: models.UserActive}
	if err := s.Users().Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.PasswordResets().Create(ctx, u.ID, "tok-1", timeNowPlusHour()); err != nil {
		t.Fatalf("create reset: %v", err)
	}
	gotUserID, err := s.PasswordResets().Consume(ctx, "tok-1")
	if err != nil || gotUserID != u.ID {
		t.Fatalf("consume: %v %v", gotUserID, err)
	}
	if _, err := s.PasswordResets().Consume(ctx, "tok-1"); err != ErrNotFound {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}
