package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/atlasforge/agentmesh/internal/storage"
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

func TestIngestSplitsParagraphsIntoChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	content := strings.Repeat("a", 500) + "\n\n" + strings.Repeat("b", 500) + "\n\n" + strings.Repeat("c", 500)
	doc, err := s.Ingest(ctx, "handbook.md", "uploads/handbook.md", content)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(doc.Chunks) < 2 {
		t.Fatalf("expected multiple chunks for oversized content, got %d", len(doc.Chunks))
	}
	for _, c := range doc.Chunks {
		if len(c.Content) > chunkSize*2 {
			t.Fatalf("chunk unexpectedly large: %d bytes", len(c.Content))
		}
	}
}

func TestIngestAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Ingest(ctx, "runbook", "manual", "To restart the gateway, run systemctl restart gateway."); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := s.Ingest(ctx, "other", "manual", "Unrelated cooking instructions for pasta."); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	results, err := s.Search(ctx, "gateway", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one match")
	}
	for _, r := range results {
		if strings.Contains(r.Chunk.Content, "pasta") {
			t.Fatal("unrelated chunk should not match")
		}
	}
}

func TestGetDocumentReturnsChunksInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc, err := s.Ingest(ctx, "doc", "src", "first paragraph\n\nsecond paragraph")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if len(got.Chunks) != 1 {
		t.Fatalf("expected paragraphs packed into one chunk under chunkSize, got %d", len(got.Chunks))
	}
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc, err := s.Ingest(ctx, "doc", "src", "some searchable content here")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetDocument(ctx, doc.ID); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
