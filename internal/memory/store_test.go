package memory

import (
	"context"
	"testing"
	"time"

	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &models.MemoryEntry{SessionID: "sess-1", Content: "the user prefers dark mode", Metadata: map[string]string{"session_id": "sess-1"}}
	if err := s.Save(ctx, entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != entry.Content {
		t.Fatalf("unexpected content: %q", got.Content)
	}
}

func TestSearchRanksMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	must := func(e *models.MemoryEntry) {
		if err := s.Save(ctx, e); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	must(&models.MemoryEntry{SessionID: "s1", Content: "the deployment pipeline uses kubernetes"})
	must(&models.MemoryEntry{SessionID: "s1", Content: "kubernetes kubernetes kubernetes clusters scale well"})
	must(&models.MemoryEntry{SessionID: "s1", Content: "completely unrelated note about lunch"})

	results, err := s.Search(ctx, "kubernetes", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one match")
	}
	for _, r := range results {
		if r.Entry.Content == "completely unrelated note about lunch" {
			t.Fatal("unrelated entry should not match")
		}
	}
	if results[0].Entry.Content != "kubernetes kubernetes kubernetes clusters scale well" {
		t.Fatalf("expected the entry repeating the term to rank first, got %q", results[0].Entry.Content)
	}
}

func TestSearchEmptyQuerySkipsLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, &models.MemoryEntry{SessionID: "s1", Content: "hello world"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	results, err := s.Search(ctx, "!!!", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results for unsanitizable query, got %+v", results)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	entry := &models.MemoryEntry{SessionID: "s1", Content: "ephemeral note"}
	if err := s.Save(ctx, entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, entry.ID); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersByRecency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Save(ctx, &models.MemoryEntry{SessionID: "s1", Content: "first", CreatedAt: base}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, &models.MemoryEntry{SessionID: "s1", Content: "second", CreatedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	list, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[0].Content != "second" {
		t.Fatalf("expected the newest entry first, got %q", list[0].Content)
	}
}
