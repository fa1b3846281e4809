package workflow

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/atlasforge/agentmesh/pkg/models"
)

// Action is a rule match ready for the runtime to execute: the action
// configuration with event data interpolated in.
type Action struct {
	RuleID       string
	RuleName     string
	Action       models.TaskAction
	TriggerEvent Event
	FiredAt      time.Time
}

// Engine evaluates events against a tenant's loaded workflow rules.
type Engine struct {
	rules  []*models.WorkflowRule
	logger *slog.Logger
}

// New builds an engine from already-loaded rules.
func New(rules []*models.WorkflowRule, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: rules, logger: logger}
}

// Reload replaces the rule set, used after an admin edits workflow rules.
func (e *Engine) Reload(rules []*models.WorkflowRule) {
	e.rules = rules
	e.logger.Debug("workflow engine reloaded", "rules", len(rules))
}

// Rules returns the currently loaded rule set.
func (e *Engine) Rules() []*models.WorkflowRule { return e.rules }

// AddRule appends a rule to the in-memory set (persistence is the
// caller's responsibility).
func (e *Engine) AddRule(rule *models.WorkflowRule) {
	e.rules = append(e.rules, rule)
}

// MarkFired records that the rule identified by ruleID just fired at the
// given instant, so a subsequent Evaluate call enforces its cooldown
// immediately. The caller is still responsible for persisting the same
// update to storage; this only keeps the in-memory copy (against which
// CanFire is actually checked) from going stale until the next Reload.
func (e *Engine) MarkFired(ruleID string, at time.Time) {
	for _, r := range e.rules {
		if r.ID == ruleID {
			r.LastTriggered = at
			r.RunCount++
			return
		}
	}
}

// Evaluate checks event against every rule whose cooldown has elapsed,
// returning the matching actions sorted by ascending priority (lower
// fires first). A rule with no priority set has priority 0; rules with
// equal priority keep their order in the loaded rule set.
func (e *Engine) Evaluate(event Event, now time.Time) []Action {
	var actions []Action
	for _, rule := range e.rules {
		if !rule.CanFire(now) {
			continue
		}
		if !e.matchesTrigger(rule, event) {
			continue
		}
		e.logger.Info("workflow rule matched", "rule", rule.Name, "event", event.Type)
		actions = append(actions, Action{
			RuleID:       rule.ID,
			RuleName:     rule.Name,
			Action:       interpolateAction(rule.Action, event),
			TriggerEvent: event,
			FiredAt:      now,
		})
	}

	priority := make(map[string]int, len(e.rules))
	for _, r := range e.rules {
		priority[r.ID] = r.Priority
	}
	sort.SliceStable(actions, func(i, j int) bool {
		pi, oki := priority[actions[i].RuleID]
		pj, okj := priority[actions[j].RuleID]
		if !oki {
			pi = 99
		}
		if !okj {
			pj = 99
		}
		return pi < pj
	})
	return actions
}

func (e *Engine) matchesTrigger(rule *models.WorkflowRule, event Event) bool {
	switch rule.Trigger {
	case models.TriggerMessageKeyword:
		return matchesMessageKeyword(rule, event)
	case models.TriggerChannelEvent:
		return matchesChannelEvent(rule, event)
	case models.TriggerThreshold:
		return matchesThreshold(rule, event)
	case models.TriggerSchedule:
		return event.Type == EventSchedule
	case models.TriggerStartup:
		return event.Type == EventStartup
	case models.TriggerAnyMessage:
		return event.Type == EventMessage
	default:
		return false
	}
}

func matchesMessageKeyword(rule *models.WorkflowRule, event Event) bool {
	if event.Type != EventMessage {
		return false
	}
	keywords := stringSlice(rule.TriggerConfig["keywords"])
	if len(keywords) == 0 {
		return false
	}

	if channels := stringSlice(rule.TriggerConfig["channels"]); len(channels) > 0 {
		if !contains(channels, event.Source) {
			return false
		}
	}

	text := strings.ToLower(event.str("text"))
	mode, _ := rule.TriggerConfig["match_mode"].(string)
	if mode == "" {
		mode = "any"
	}
	switch mode {
	case "all":
		for _, kw := range keywords {
			if !strings.Contains(text, strings.ToLower(kw)) {
				return false
			}
		}
		return true
	default:
		for _, kw := range keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return true
			}
		}
		return false
	}
}

func matchesChannelEvent(rule *models.WorkflowRule, event Event) bool {
	if event.Type != EventChannel {
		return false
	}
	expected, _ := rule.TriggerConfig["event"].(string)
	if expected != event.str("event") {
		return false
	}
	if channel, ok := rule.TriggerConfig["channel"].(string); ok && channel != "" {
		if channel != event.Source {
			return false
		}
	}
	return true
}

func matchesThreshold(rule *models.WorkflowRule, event Event) bool {
	if event.Type != EventMetric {
		return false
	}
	expectedMetric, _ := rule.TriggerConfig["metric"].(string)
	if expectedMetric != event.str("metric") {
		return false
	}

	threshold := toFloat(rule.TriggerConfig["value"])
	actual := event.num("value")
	operator, _ := rule.TriggerConfig["operator"].(string)
	if operator == "" {
		operator = ">"
	}

	const epsilon = 1e-9
	switch operator {
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case "==":
		return abs(actual-threshold) < epsilon
	case "!=":
		return abs(actual-threshold) >= epsilon
	default:
		return false
	}
}

func stringSlice(v any) []string {
	arr, ok := v.([]string)
	if ok {
		return arr
	}
	anyArr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(anyArr))
	for _, e := range anyArr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
