package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/workflow"
	"github.com/atlasforge/agentmesh/pkg/models"
)

func (s *Server) handleWorkflowRulesList(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListWorkflowRules(r.Context())
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list workflow rules", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "rules": list})
}

func (s *Server) handleWorkflowRuleCreate(w http.ResponseWriter, r *http.Request) {
	var rule models.WorkflowRule
	if status, err := decodeJSON(w, r, &rule); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if rule.ID == "" {
		writeErr(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.db.UpsertWorkflowRule(r.Context(), &rule); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create workflow rule", err))
		return
	}
	s.reloadWorkflowRules(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "rule": rule})
}

func (s *Server) handleWorkflowRuleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.db.DeleteWorkflowRule(r.Context(), id); err != nil {
		s.writeAppErr(w, mapStorageErr(err, "workflow rule not found"))
		return
	}
	s.reloadWorkflowRules(r.Context())
	writeOK(w, map[string]any{"ok": true})
}

func (s *Server) reloadWorkflowRules(ctx context.Context) {
	rules, err := s.db.ListWorkflowRules(ctx)
	if err != nil {
		s.logger.Warn("reload workflow rules failed", "error", err)
		return
	}
	s.workflowEngine.Reload(rules)
}

// dispatchWorkflow evaluates an inbound message against the loaded rule
// set and fires every matching action concurrently; actions never block
// each other or the caller, matching the "no nested scheduler lock"
// dispatch model.
func (s *Server) dispatchWorkflow(ctx context.Context, env *models.IncomingEnvelope) {
	event := workflow.NewMessageEvent(string(env.Channel), env.SenderID, env.Content, env.ThreadID)
	actions := s.workflowEngine.Evaluate(event, time.Now().UTC())
	for _, action := range actions {
		// Mark the in-memory rule fired before dispatch so a second event
		// arriving before the DB write below completes still respects the
		// cooldown instead of racing it.
		s.workflowEngine.MarkFired(action.RuleID, action.FiredAt)
		go s.executeWorkflowAction(ctx, action)
	}
}

func (s *Server) executeWorkflowAction(ctx context.Context, action workflow.Action) {
	if rule, err := s.db.GetWorkflowRule(ctx, action.RuleID); err == nil {
		rule.LastTriggered = action.FiredAt
		rule.RunCount++
		_ = s.db.UpsertWorkflowRule(ctx, rule)
	}

	switch action.Action.Kind {
	case models.ActionNotify:
		s.logger.Info("workflow notify", "rule", action.RuleName, "message", action.Action.Message)

	case models.ActionAgentPrompt:
		reply, err := s.pool.RunAgentPrompt(ctx, action.Action.AgentName, action.Action.Prompt)
		if err != nil {
			s.logger.Warn("workflow agent_prompt failed", "rule", action.RuleName, "error", err)
			return
		}
		if action.Action.DeliverTo != "" {
			if err := s.Deliver(ctx, action.Action.DeliverTo, reply); err != nil {
				s.logger.Warn("workflow delivery failed", "rule", action.RuleName, "error", err)
			}
		}

	case models.ActionWebhook:
		s.fireWorkflowWebhook(ctx, action.Action)

	default:
		s.logger.Warn("workflow: unknown action kind", "rule", action.RuleName, "kind", action.Action.Kind)
	}
}

func (s *Server) fireWorkflowWebhook(ctx context.Context, a models.TaskAction) {
	wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	method := a.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if a.Body != "" {
		body = bytes.NewReader([]byte(a.Body))
	}
	req, err := http.NewRequestWithContext(wctx, method, a.URL, body)
	if err != nil {
		s.logger.Warn("workflow: bad webhook request", "error", err)
		return
	}
	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.logger.Warn("workflow: webhook failed", "url", a.URL, "error", err)
		return
	}
	defer resp.Body.Close()
}
