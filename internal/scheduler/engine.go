package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/atlasforge/agentmesh/pkg/models"
)

// AgentRunner delivers an "as-if-user" prompt to a named agent's turn
// engine and returns its reply text. The scheduler depends on this
// interface rather than internal/agent directly to avoid a cycle: the
// agent package schedules subagent/delegate work back through the lane
// scheduler.
type AgentRunner interface {
	RunAgentPrompt(ctx context.Context, agentName, prompt string) (string, error)
}

// Deliverer routes a finished agent reply to an external destination
// encoded as "channel:identifier" (Task.DeliverTo).
type Deliverer interface {
	Deliver(ctx context.Context, deliverTo, content string) error
}

// Engine is one tenant's scheduler: a persistent task store, a fixed
// tick loop, and the lane scheduler that fans agent_prompt actions out
// at bounded concurrency.
type Engine struct {
	store    *Store
	lanes    *LaneScheduler
	notifier *NotificationRing
	runner   AgentRunner
	deliver  Deliverer
	http     *http.Client
	logger   *slog.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

func WithAgentRunner(r AgentRunner) Option {
	return func(e *Engine) { e.runner = r }
}

func WithDeliverer(d Deliverer) Option {
	return func(e *Engine) { e.deliver = d }
}

// NewEngine builds a scheduler engine backed by store, defaulting to a
// 30-second tick interval per the spec.
func NewEngine(store *Store, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		lanes:        NewLaneScheduler(),
		notifier:     NewNotificationRing(defaultNotificationCapacity),
		http:         &http.Client{Timeout: 30 * time.Second},
		logger:       slog.Default(),
		tickInterval: 30 * time.Second,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Notifications returns the engine's recent notification history.
func (e *Engine) Notifications() []Notification { return e.notifier.History() }

// Run starts the tick loop; it blocks until ctx is canceled or Stop is
// called.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Stop halts a running tick loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	close(e.stop)
}

// Tick checks every due task once, firing its action and recomputing its
// schedule. Returns the tasks that fired.
func (e *Engine) Tick(ctx context.Context) []*models.Task {
	now := time.Now().UTC()
	due, err := e.store.Due(ctx, now)
	if err != nil {
		e.logger.Warn("scheduler: failed to load due tasks", "error", err)
		return nil
	}

	var fired []*models.Task
	for _, t := range due {
		t.Status = models.TaskRunning
		t.LastRun = now
		t.RunCount++

		e.execute(ctx, t)

		t.Status = models.TaskComplete
		if err := ComputeNextRun(t, now); err != nil {
			e.logger.Warn("scheduler: failed to compute next run", "task", t.Name, "error", err)
		}
		if err := e.store.Update(ctx, t); err != nil {
			e.logger.Warn("scheduler: failed to persist task", "task", t.Name, "error", err)
		}
		fired = append(fired, t)
	}
	return fired
}

func (e *Engine) execute(ctx context.Context, t *models.Task) {
	switch t.Action.Kind {
	case models.ActionNotify:
		e.notifier.Record(Notification{TaskName: t.Name, Body: t.Action.Message, Source: "scheduler", CreatedAt: time.Now().UTC()})

	case models.ActionAgentPrompt:
		if e.runner == nil {
			e.logger.Warn("scheduler: agent_prompt task has no runner configured", "task", t.Name)
			return
		}
		reply, err := e.runner.RunAgentPrompt(ctx, t.Action.AgentName, t.Action.Prompt)
		if err != nil {
			e.logger.Warn("scheduler: agent prompt failed", "task", t.Name, "error", err)
			e.notifier.Record(Notification{TaskName: t.Name, Body: fmt.Sprintf("agent prompt failed: %v", err), Source: "scheduler", CreatedAt: time.Now().UTC()})
			return
		}
		e.notifier.Record(Notification{TaskName: t.Name, Body: reply, Source: "scheduler", CreatedAt: time.Now().UTC()})
		if t.Action.DeliverTo != "" && e.deliver != nil {
			if err := e.deliver.Deliver(ctx, t.Action.DeliverTo, reply); err != nil {
				e.logger.Warn("scheduler: delivery failed", "task", t.Name, "deliver_to", t.Action.DeliverTo, "error", err)
			}
		}

	case models.ActionWebhook:
		e.fireWebhook(ctx, t)

	default:
		e.logger.Warn("scheduler: unknown action kind", "task", t.Name, "kind", t.Action.Kind)
	}
}

func (e *Engine) fireWebhook(ctx context.Context, t *models.Task) {
	wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	method := t.Action.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if t.Action.Body != "" {
		body = bytes.NewReader([]byte(t.Action.Body))
	}
	req, err := http.NewRequestWithContext(wctx, method, t.Action.URL, body)
	if err != nil {
		e.logger.Warn("scheduler: bad webhook request", "task", t.Name, "error", err)
		return
	}
	for k, v := range t.Action.Headers {
		req.Header.Set(k, v)
	}
	if t.Action.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.http.Do(req)
	if err != nil {
		e.logger.Warn("scheduler: webhook failed", "task", t.Name, "url", t.Action.URL, "error", err)
		e.notifier.Record(Notification{TaskName: t.Name, Body: fmt.Sprintf("webhook error: %v", err), Source: "scheduler", CreatedAt: time.Now().UTC()})
		return
	}
	defer resp.Body.Close()
	e.notifier.Record(Notification{TaskName: t.Name, Body: fmt.Sprintf("webhook %s -> %d", t.Action.URL, resp.StatusCode), Source: "scheduler", CreatedAt: time.Now().UTC()})
}

// SubmitLane enqueues a task through the four-lane fair scheduler (used
// for agent_prompt, subagent, and delegate work dispatched outside the
// tick loop — e.g. by the Agent Turn Engine's own subagent/delegate
// tools).
func (e *Engine) SubmitLane(task LaneTask) { e.lanes.Submit(task) }

// NextLane pops the next runnable lane task, if any.
func (e *Engine) NextLane() (LaneTask, bool) { return e.lanes.Next() }

// CompleteLane frees a concurrency slot in the given lane.
func (e *Engine) CompleteLane(lane Lane) { e.lanes.Complete(lane) }

// LaneStats reports current lane occupancy.
func (e *Engine) LaneStats() []LaneStats { return e.lanes.Stats() }
