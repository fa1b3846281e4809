package models

import "time"

// PlanStatus is the lifecycle state of a Plan.
type PlanStatus string

const (
	PlanDraft           PlanStatus = "draft"
	PlanPendingApproval  PlanStatus = "pending_approval"
	PlanApproved         PlanStatus = "approved"
	PlanInProgress       PlanStatus = "in_progress"
	PlanCompleted        PlanStatus = "completed"
	PlanRejected         PlanStatus = "rejected"
)

// PlanTaskStatus is the lifecycle state of one task within a Plan.
type PlanTaskStatus string

const (
	PlanTaskPending    PlanTaskStatus = "pending"
	PlanTaskInProgress PlanTaskStatus = "in_progress"
	PlanTaskCompleted  PlanTaskStatus = "completed"
	PlanTaskSkipped    PlanTaskStatus = "skipped"
	PlanTaskFailed     PlanTaskStatus = "failed"
)

// PlanTask is one dependency-ordered step of a Plan.
type PlanTask struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	TaskType     string         `json:"task_type,omitempty"`
	Status       PlanTaskStatus `json:"status"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Complexity   int            `json:"complexity"`
	Result       string         `json:"result,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Plan is a structured, reviewable decomposition of a complex task.
type Plan struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      PlanStatus `json:"status"`
	Tasks       []PlanTask `json:"tasks"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ReadyFor reports whether task t's dependencies are satisfied, meaning it
// may transition to in_progress.
func (p *Plan) ReadyFor(t *PlanTask) bool {
	byID := make(map[string]*PlanTask, len(p.Tasks))
	for i := range p.Tasks {
		byID[p.Tasks[i].ID] = &p.Tasks[i]
	}
	for _, depID := range t.Dependencies {
		dep, ok := byID[depID]
		if !ok {
			return false
		}
		if dep.Status != PlanTaskCompleted && dep.Status != PlanTaskSkipped {
			return false
		}
	}
	return true
}

// AllResolved reports whether every task is completed or skipped, the
// condition under which the plan itself transitions to completed.
func (p *Plan) AllResolved() bool {
	for _, t := range p.Tasks {
		if t.Status != PlanTaskCompleted && t.Status != PlanTaskSkipped {
			return false
		}
	}
	return true
}

// Progress reports how many of the plan's tasks have completed, out of
// the total.
func (p *Plan) Progress() (done, total int) {
	total = len(p.Tasks)
	for _, t := range p.Tasks {
		if t.Status == PlanTaskCompleted {
			done++
		}
	}
	return done, total
}
