package scheduler

import (
	"fmt"
	"time"

	"github.com/atlasforge/agentmesh/internal/cron"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// ShouldRun reports whether t is due to fire: enabled and next_run has
// arrived (or, for an un-scheduled once task, its At has arrived).
func ShouldRun(t *models.Task, now time.Time) bool {
	if !t.Enabled || t.Status == models.TaskDisabled {
		return false
	}
	if t.NextRun.IsZero() {
		return t.Type == models.TaskOnce && !t.At.IsZero() && !now.Before(t.At)
	}
	return !now.Before(t.NextRun)
}

// ComputeNextRun updates t.NextRun (and, for "once" tasks, disables it)
// following the firing just completed at `now`.
func ComputeNextRun(t *models.Task, now time.Time) error {
	switch t.Type {
	case models.TaskOnce:
		t.Enabled = false
		t.Status = models.TaskDisabled
		t.NextRun = time.Time{}
		return nil
	case models.TaskInterval:
		t.NextRun = now.Add(time.Duration(t.EverySecs) * time.Second)
		t.Status = models.TaskPending
		return nil
	case models.TaskCron:
		expr, err := cron.Parse(t.CronExpr)
		if err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
		next, err := expr.Next(now)
		if err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
		t.NextRun = next
		t.Status = models.TaskPending
		return nil
	default:
		return fmt.Errorf("task %s: unknown type %q", t.ID, t.Type)
	}
}

// InitialNextRun computes NextRun for a freshly created task, used so a
// cron task has a sensible next_run before its first tick.
func InitialNextRun(t *models.Task, now time.Time) error {
	switch t.Type {
	case models.TaskOnce:
		t.NextRun = t.At
		return nil
	case models.TaskInterval:
		t.NextRun = now.Add(time.Duration(t.EverySecs) * time.Second)
		return nil
	case models.TaskCron:
		expr, err := cron.Parse(t.CronExpr)
		if err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
		next, err := expr.Next(now)
		if err != nil {
			return err
		}
		t.NextRun = next
		return nil
	default:
		return fmt.Errorf("task %s: unknown type %q", t.ID, t.Type)
	}
}
