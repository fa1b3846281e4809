package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlasforge/agentmesh/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "scheduler.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTickOnceTaskFiresExactlyOnceThenDisables(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &models.Task{
		Name:    "onboarding-nudge",
		Type:    models.TaskOnce,
		At:      time.Now().UTC().Add(-time.Minute),
		Enabled: true,
		Action:  models.TaskAction{Kind: models.ActionNotify, Message: "welcome"},
	}
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	eng := NewEngine(store)
	fired := eng.Tick(ctx)
	if len(fired) != 1 {
		t.Fatalf("expected 1 task to fire, got %d", len(fired))
	}

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Enabled {
		t.Fatal("expected once task to be disabled after firing")
	}
	if got.Status != models.TaskDisabled {
		t.Fatalf("expected status disabled, got %s", got.Status)
	}
	if got.RunCount != 1 {
		t.Fatalf("expected run_count 1, got %d", got.RunCount)
	}

	fired = eng.Tick(ctx)
	if len(fired) != 0 {
		t.Fatalf("expected a disabled once task not to fire again, got %d", len(fired))
	}

	notes := eng.Notifications()
	if len(notes) != 1 || notes[0].Body != "welcome" {
		t.Fatalf("unexpected notification history: %+v", notes)
	}
}

type stubRunner struct {
	reply string
	err   error
	seen  []string
}

func (s *stubRunner) RunAgentPrompt(ctx context.Context, agentName, prompt string) (string, error) {
	s.seen = append(s.seen, agentName+":"+prompt)
	return s.reply, s.err
}

type stubDeliverer struct {
	to, content string
}

func (d *stubDeliverer) Deliver(ctx context.Context, to, content string) error {
	d.to, d.content = to, content
	return nil
}

func TestTickAgentPromptDeliversReply(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &models.Task{
		Name:    "daily-digest",
		Type:    models.TaskInterval,
		EverySecs: 60,
		Enabled: true,
		Action: models.TaskAction{
			Kind:      models.ActionAgentPrompt,
			AgentName: "digest-bot",
			Prompt:    "summarize today",
			DeliverTo: "telegram:123",
		},
	}
	task.NextRun = time.Now().UTC().Add(-time.Second)
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Create recomputes NextRun via InitialNextRun; force it due again.
	task.NextRun = time.Now().UTC().Add(-time.Second)
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}

	runner := &stubRunner{reply: "all quiet"}
	deliverer := &stubDeliverer{}
	eng := NewEngine(store, WithAgentRunner(runner), WithDeliverer(deliverer))

	fired := eng.Tick(ctx)
	if len(fired) != 1 {
		t.Fatalf("expected 1 task to fire, got %d", len(fired))
	}
	if len(runner.seen) != 1 || runner.seen[0] != "digest-bot:summarize today" {
		t.Fatalf("unexpected runner invocation: %+v", runner.seen)
	}
	if deliverer.to != "telegram:123" || deliverer.content != "all quiet" {
		t.Fatalf("unexpected delivery: to=%s content=%s", deliverer.to, deliverer.content)
	}

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.NextRun.After(time.Now().UTC()) {
		t.Fatalf("expected interval task rescheduled into the future, got %s", got.NextRun)
	}
}

func TestTickWebhookFiresHTTPRequest(t *testing.T) {
	var gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := newTestStore(t)
	ctx := context.Background()

	task := &models.Task{
		Name:    "ping-ops",
		Type:    models.TaskOnce,
		At:      time.Now().UTC().Add(-time.Minute),
		Enabled: true,
		Action: models.TaskAction{
			Kind:   models.ActionWebhook,
			URL:    srv.URL,
			Method: http.MethodPost,
			Body:   `{"ok":true}`,
		},
	}
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	eng := NewEngine(store)
	fired := eng.Tick(ctx)
	if len(fired) != 1 {
		t.Fatalf("expected 1 task to fire, got %d", len(fired))
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotBody != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", gotBody)
	}

	notes := eng.Notifications()
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notes))
	}
}
