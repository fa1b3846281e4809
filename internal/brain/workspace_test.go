package brain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitializeSeedsDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	if err := w.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, name := range []string{soulFile, identityFile, userFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to be seeded: %v", name, err)
		}
	}
}

func TestInitializeDoesNotOverwriteExisting(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	if err := w.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := w.UpdateUser("the user is named Alice"); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if err := w.Initialize(); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	assembled := w.Assemble()
	if !strings.Contains(assembled, "Alice") {
		t.Fatalf("expected USER.md edit to survive re-initialize, got: %s", assembled)
	}
}

func TestAssembleOrdersSoulThenIdentityThenUser(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	if err := w.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	assembled := w.Assemble()
	soulIdx := strings.Index(assembled, "SOUL")
	identityIdx := strings.Index(assembled, "IDENTITY")
	userIdx := strings.Index(assembled, "USER")
	if !(soulIdx < identityIdx && identityIdx < userIdx) {
		t.Fatalf("expected SOUL < IDENTITY < USER ordering, got indices %d %d %d", soulIdx, identityIdx, userIdx)
	}
}

func TestDailyLogAppendsUnderTodaysFile(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	if err := w.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	log := NewDailyLog(w)
	fixed := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	if err := log.SaveCompaction("summarized 40 messages"); err != nil {
		t.Fatalf("save compaction: %v", err)
	}

	raw, err := os.ReadFile(log.pathFor(fixed))
	data := string(raw)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(data, "summarized 40 messages") {
		t.Fatalf("expected log entry, got: %s", data)
	}
	if !strings.Contains(data, "Compaction") {
		t.Fatalf("expected heading, got: %s", data)
	}
}
