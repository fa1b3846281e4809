package agent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atlasforge/agentmesh/internal/knowledge"
	"github.com/atlasforge/agentmesh/internal/memory"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func TestExtractKeywordsDropsStopwordsAndShortWords(t *testing.T) {
	got := extractKeywords("what is the status of the deployment pipeline today")
	for _, kw := range got {
		if len(kw) <= minKeywordLength {
			t.Fatalf("keyword %q shorter than minimum", kw)
		}
		if _, stop := stopwords[kw]; stop {
			t.Fatalf("keyword %q should have been dropped as a stopword", kw)
		}
	}
	if len(got) > memoryKeywordLimit {
		t.Fatalf("expected at most %d keywords, got %d", memoryKeywordLimit, len(got))
	}
}

func TestRetrieveKnowledgeFormatsBoundedBlock(t *testing.T) {
	store, err := knowledge.Open(filepath.Join(t.TempDir(), "knowledge.db"))
	if err != nil {
		t.Fatalf("open knowledge store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Ingest(ctx, "runbook", "test", "deployment pipeline rolls back on failed health checks"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	e := &Engine{knowledge: store, logger: testLogger()}
	block := e.retrieveKnowledge(ctx, "deployment pipeline")
	if block == "" {
		t.Fatal("expected a non-empty knowledge block")
	}
	if !strings.HasPrefix(block, "[knowledge]") {
		t.Fatalf("expected knowledge delimiter, got: %s", block)
	}
	if len(block) > knowledgeBlockMax {
		t.Fatalf("block exceeds max size: %d", len(block))
	}
}

func TestRetrieveMemoryDedupesById(t *testing.T) {
	store, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	entry := &models.MemoryEntry{Content: "the deployment pipeline failed twice this week"}
	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("save: %v", err)
	}

	e := &Engine{memory: store, logger: testLogger()}
	block := e.retrieveMemory(ctx, "deployment pipeline status")
	if block == "" {
		t.Fatal("expected a non-empty memory block")
	}
	if !strings.HasPrefix(block, "[memory]") {
		t.Fatalf("expected memory delimiter, got: %s", block)
	}
	if n := strings.Count(block, entry.Content); n != 1 {
		t.Fatalf("expected the entry exactly once, got %d times: %s", n, block)
	}
}

func TestRetrieveMemorySkipsWhenNoKeywords(t *testing.T) {
	store, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer store.Close()

	e := &Engine{memory: store, logger: testLogger()}
	block := e.retrieveMemory(context.Background(), "is it ok to do so")
	if block != "" {
		t.Fatalf("expected no retrieval for an all-stopword message, got: %s", block)
	}
}
