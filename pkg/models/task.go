package models

import "time"

// TaskType identifies how a scheduler Task fires.
type TaskType string

const (
	TaskOnce     TaskType = "once"
	TaskInterval TaskType = "interval"
	TaskCron     TaskType = "cron"
)

// TaskActionKind identifies what a Task (or WorkflowRule) does when it fires.
type TaskActionKind string

const (
	ActionAgentPrompt TaskActionKind = "agent_prompt"
	ActionNotify      TaskActionKind = "notify"
	ActionWebhook     TaskActionKind = "webhook"
)

// TaskStatus is the current run state of a scheduler Task.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "completed"
	TaskFailed   TaskStatus = "failed"
	TaskDisabled TaskStatus = "disabled"
)

// TaskAction is the action configuration shared by Task and WorkflowRule.
type TaskAction struct {
	Kind       TaskActionKind    `json:"kind"`
	Prompt     string            `json:"prompt,omitempty"`
	Message    string            `json:"message,omitempty"`
	URL        string            `json:"url,omitempty"`
	Method     string            `json:"method,omitempty"`
	Body       string            `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	AgentName  string            `json:"agent_name,omitempty"`
	DeliverTo  string            `json:"deliver_to,omitempty"`
}

// Task is a persisted scheduler entry with once/interval/cron firing.
type Task struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      TaskType   `json:"type"`
	At        time.Time  `json:"at,omitempty"`
	EverySecs int        `json:"every_secs,omitempty"`
	CronExpr  string     `json:"cron_expr,omitempty"`
	Action    TaskAction `json:"action"`
	Status    TaskStatus `json:"status"`
	Enabled   bool       `json:"enabled"`
	RunCount  int        `json:"run_count"`
	LastRun   time.Time  `json:"last_run,omitempty"`
	NextRun   time.Time  `json:"next_run,omitempty"`
}

// WorkflowTriggerType identifies what kind of event a WorkflowRule matches.
type WorkflowTriggerType string

const (
	TriggerMessageKeyword WorkflowTriggerType = "message_keyword"
	TriggerChannelEvent   WorkflowTriggerType = "channel_event"
	TriggerThreshold      WorkflowTriggerType = "threshold"
	TriggerSchedule       WorkflowTriggerType = "schedule"
	TriggerStartup        WorkflowTriggerType = "startup"
	TriggerAnyMessage     WorkflowTriggerType = "any_message"
)

// WorkflowRule is a persistent trigger to action mapping evaluated against
// the event stream.
type WorkflowRule struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Trigger        WorkflowTriggerType  `json:"trigger"`
	TriggerConfig  map[string]any       `json:"trigger_config"`
	Action         TaskAction           `json:"action"`
	Priority       int                  `json:"priority"`
	CooldownSecs   int                  `json:"cooldown_secs"`
	LastTriggered  time.Time            `json:"last_triggered,omitempty"`
	RunCount       int                  `json:"run_count"`
}

// CanFire reports whether the rule's cooldown has elapsed as of now.
func (r *WorkflowRule) CanFire(now time.Time) bool {
	if r.LastTriggered.IsZero() {
		return true
	}
	return now.Sub(r.LastTriggered) >= time.Duration(r.CooldownSecs)*time.Second
}
