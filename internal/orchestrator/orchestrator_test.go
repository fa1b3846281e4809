package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/atlasforge/agentmesh/internal/config"
	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func newTestManager(t *testing.T) (*Manager, storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	cfg := config.OrchestratorConfig{
		BasePort:    9000,
		DataDir:     dir,
		RoutingFile: filepath.Join(dir, "routes.json"),
	}
	return New(store, cfg), store
}

func TestAllocatePortNeverReusesAssigned(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	for i, port := range []int{9001, 9002, 9003} {
		tn := &models.Tenant{Slug: "tenant" + string(rune('a'+i)), Name: "x", Port: port, Status: models.TenantStopped}
		if err := store.Tenants().Create(ctx, tn); err != nil {
			t.Fatalf("seed tenant: %v", err)
		}
	}

	got, err := m.allocatePort(ctx)
	if err != nil {
		t.Fatalf("allocatePort: %v", err)
	}
	if got == 9001 || got == 9002 || got == 9003 {
		t.Fatalf("allocatePort reused an assigned port: %d", got)
	}
}

func TestValidatePairingConsumesCode(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	code := "123456"
	tn := &models.Tenant{Slug: "acme", Name: "Acme", Port: 9001, Status: models.TenantStopped, PairingCode: &code}
	if err := store.Tenants().Create(ctx, tn); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	got, err := m.ValidatePairing(ctx, "acme", code)
	if err != nil {
		t.Fatalf("first validate: %v", err)
	}
	if got.Slug != "acme" {
		t.Fatalf("unexpected tenant: %+v", got)
	}

	if _, err := m.ValidatePairing(ctx, "acme", code); err == nil {
		t.Fatal("expected second validate with same code to fail")
	}
}

func TestDeleteCascadesDependents(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	tn := &models.Tenant{Slug: "acme", Name: "Acme", Port: 9001, Status: models.TenantStopped}
	if err := store.Tenants().Create(ctx, tn); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if err := store.Channels().Create(ctx, tn.ID, &models.ChannelInstance{ID: "ch1", Type: models.ChannelWebhook}); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if err := store.TenantAgents().Create(ctx, tn.ID, &models.Agent{Name: "bot"}); err != nil {
		t.Fatalf("create agent: %v", err)
	}

	if err := m.Delete(ctx, tn.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := store.Tenants().Get(ctx, tn.ID); err != storage.ErrNotFound {
		t.Fatalf("expected tenant gone, got %v", err)
	}
	channels, _ := store.Channels().List(ctx, tn.ID)
	if len(channels) != 0 {
		t.Fatalf("expected channels cascade-deleted, got %v", channels)
	}
}

func TestRegenerateRoutingWritesOnlyRunningTenants(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	running := &models.Tenant{Slug: "running", Name: "R", Port: 9001, Status: models.TenantRunning}
	stopped := &models.Tenant{Slug: "stopped", Name: "S", Port: 9002, Status: models.TenantStopped}
	if err := store.Tenants().Create(ctx, running); err != nil {
		t.Fatalf("create running: %v", err)
	}
	if err := store.Tenants().Create(ctx, stopped); err != nil {
		t.Fatalf("create stopped: %v", err)
	}

	if err := m.regenerateRouting(ctx); err != nil {
		t.Fatalf("regenerateRouting: %v", err)
	}

	data, err := os.ReadFile(m.cfg.RoutingFile)
	if err != nil {
		t.Fatalf("read routing file: %v", err)
	}
	var table RoutingTable
	if err := json.Unmarshal(data, &table); err != nil {
		t.Fatalf("unmarshal routing table: %v", err)
	}
	if len(table.Routes) != 1 || table.Routes[0].Slug != "running" {
		t.Fatalf("unexpected routes: %+v", table.Routes)
	}
}
