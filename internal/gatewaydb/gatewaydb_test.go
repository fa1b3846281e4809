package gatewaydb

import (
	"context"
	"testing"

	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func TestSeedsDefaultProviders(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	providers, err := db.ListProviders(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(providers) == 0 {
		t.Fatal("expected seeded providers")
	}
	var sawOpenAI bool
	for _, p := range providers {
		if p.Name == "openai" {
			sawOpenAI = true
		}
	}
	if !sawOpenAI {
		t.Fatal("expected openai in default catalog")
	}
}

func TestProviderUpsertNeverImplicitlyDeleted(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	custom := &models.ProviderRecord{Name: "custom", Label: "Custom", Type: models.ProviderTypeProxy,
		BaseURL: "https://example.com", ChatPath: "/chat", AuthStyle: models.AuthBearer, EnvKeys: []string{"CUSTOM_KEY"}}
	if err := db.UpsertProvider(ctx, custom); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := db.GetProvider(ctx, "custom")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BaseURL != "https://example.com" {
		t.Fatalf("unexpected provider: %+v", got)
	}

	if err := db.DeleteProvider(ctx, "custom"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetProvider(ctx, "custom"); err != storage.ErrNotFound {
		t.Fatalf("expected not found after explicit delete, got %v", err)
	}
}

func TestAgentCRUD(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	a := &models.Agent{Name: "helper", Provider: "openai", Model: "gpt-4o-mini", SystemPrompt: "Be helpful.", Enabled: true}
	if err := db.UpsertAgent(ctx, a); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := db.GetAgent(ctx, "helper")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected agent: %+v", got)
	}
	if err := db.DeleteAgent(ctx, "helper"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetAgent(ctx, "helper"); err != storage.ErrNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
