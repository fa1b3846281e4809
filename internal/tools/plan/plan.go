// Package plan implements the built-in "plan" tool: structured,
// reviewable task decomposition with dependency-gated progress, backed
// by an in-memory Store an agent turn can mutate across calls.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/atlasforge/agentmesh/internal/tools"
	"github.com/atlasforge/agentmesh/pkg/models"
	"github.com/google/uuid"
)

var paramSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"op": {"type": "string", "enum": ["create", "get", "update_task", "list"]},
		"title": {"type": "string"},
		"description": {"type": "string"},
		"tasks": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"title": {"type": "string"},
					"dependencies": {"type": "array", "items": {"type": "string"}},
					"complexity": {"type": "integer"}
				}
			}
		},
		"plan_id": {"type": "string"},
		"task_id": {"type": "string"},
		"status": {"type": "string"},
		"result": {"type": "string"}
	},
	"required": ["op"]
}`)

// Store holds plans for one agent across turns.
type Store struct {
	mu    sync.Mutex
	plans map[string]*models.Plan
}

// NewStore builds an empty plan store.
func NewStore() *Store {
	return &Store{plans: make(map[string]*models.Plan)}
}

// Tool is the built-in plan tool.
type Tool struct {
	Store *Store
}

// New builds a plan tool backed by store.
func New(store *Store) *Tool {
	return &Tool{Store: store}
}

func (t *Tool) Name() string        { return "plan" }
func (t *Tool) Description() string { return "Create and track a structured, dependency-ordered task plan." }
func (t *Tool) Schema() json.RawMessage { return paramSchema }

type taskInput struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Dependencies []string `json:"dependencies"`
	Complexity   int      `json:"complexity"`
}

type params struct {
	Op          string      `json:"op"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Tasks       []taskInput `json:"tasks"`
	PlanID      string      `json:"plan_id"`
	TaskID      string      `json:"task_id"`
	Status      string      `json:"status"`
	Result      string      `json:"result"`
}

// Execute dispatches on params.Op.
func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (*tools.ToolResult, error) {
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return &tools.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}

	switch p.Op {
	case "create":
		return t.create(p)
	case "get":
		return t.get(p)
	case "list":
		return t.list()
	case "update_task":
		return t.updateTask(p)
	default:
		return &tools.ToolResult{Content: fmt.Sprintf("unknown op %q", p.Op), IsError: true}, nil
	}
}

func (t *Tool) create(p params) (*tools.ToolResult, error) {
	now := time.Now().UTC()
	plan := &models.Plan{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Description: p.Description,
		Status:      models.PlanDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, ti := range p.Tasks {
		id := ti.ID
		if id == "" {
			id = uuid.NewString()
		}
		plan.Tasks = append(plan.Tasks, models.PlanTask{
			ID:           id,
			Title:        ti.Title,
			Dependencies: ti.Dependencies,
			Complexity:   ti.Complexity,
			Status:       models.PlanTaskPending,
			CreatedAt:    now,
		})
	}

	t.Store.mu.Lock()
	t.Store.plans[plan.ID] = plan
	t.Store.mu.Unlock()

	out, _ := json.Marshal(plan)
	return &tools.ToolResult{Content: string(out)}, nil
}

func (t *Tool) get(p params) (*tools.ToolResult, error) {
	t.Store.mu.Lock()
	plan, ok := t.Store.plans[p.PlanID]
	t.Store.mu.Unlock()
	if !ok {
		return &tools.ToolResult{Content: fmt.Sprintf("plan %q not found", p.PlanID), IsError: true}, nil
	}
	out, _ := json.Marshal(plan)
	return &tools.ToolResult{Content: string(out)}, nil
}

func (t *Tool) list() (*tools.ToolResult, error) {
	t.Store.mu.Lock()
	defer t.Store.mu.Unlock()
	plans := make([]*models.Plan, 0, len(t.Store.plans))
	for _, pl := range t.Store.plans {
		plans = append(plans, pl)
	}
	out, _ := json.Marshal(plans)
	return &tools.ToolResult{Content: string(out)}, nil
}

// updateTask transitions one task's status, enforcing the dependency
// gate on in_progress and auto-completing the plan once every task
// resolves to completed or skipped.
func (t *Tool) updateTask(p params) (*tools.ToolResult, error) {
	t.Store.mu.Lock()
	defer t.Store.mu.Unlock()

	plan, ok := t.Store.plans[p.PlanID]
	if !ok {
		return &tools.ToolResult{Content: fmt.Sprintf("plan %q not found", p.PlanID), IsError: true}, nil
	}

	var target *models.PlanTask
	for i := range plan.Tasks {
		if plan.Tasks[i].ID == p.TaskID {
			target = &plan.Tasks[i]
			break
		}
	}
	if target == nil {
		return &tools.ToolResult{Content: fmt.Sprintf("task %q not found in plan", p.TaskID), IsError: true}, nil
	}

	newStatus := models.PlanTaskStatus(p.Status)
	if newStatus == models.PlanTaskInProgress && !plan.ReadyFor(target) {
		return &tools.ToolResult{Content: "task has unresolved dependencies", IsError: true}, nil
	}

	target.Status = newStatus
	if p.Result != "" {
		target.Result = p.Result
	}
	if newStatus == models.PlanTaskCompleted || newStatus == models.PlanTaskSkipped {
		now := time.Now().UTC()
		target.CompletedAt = &now
	}

	plan.UpdatedAt = time.Now().UTC()
	if plan.Status != models.PlanCompleted && plan.AllResolved() {
		plan.Status = models.PlanCompleted
	} else if plan.Status == models.PlanDraft || plan.Status == models.PlanApproved {
		plan.Status = models.PlanInProgress
	}

	out, _ := json.Marshal(plan)
	return &tools.ToolResult{Content: string(out)}, nil
}
