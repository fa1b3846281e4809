package agent

import (
	"context"
	"time"

	"github.com/atlasforge/agentmesh/internal/providers"
	"github.com/atlasforge/agentmesh/internal/tools"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// slidingWindowTrigger and slidingWindowKeep bound phase 3: once the
// conversation exceeds slidingWindowTrigger messages, everything but the
// system message and the most recent slidingWindowKeep messages is
// dropped outright (no summarization, unlike phase 0 compaction).
const (
	slidingWindowTrigger = 41
	slidingWindowKeep    = 40
)

// fallbackReply is returned when the tool-calling loop exhausts its
// rounds without the model ever producing a textual answer.
const fallbackReply = "tools executed"

func slidingWindow(conversation []models.Message) []models.Message {
	if len(conversation) <= slidingWindowTrigger {
		return conversation
	}
	system := conversation[0]
	tail := conversation[len(conversation)-slidingWindowKeep:]
	out := make([]models.Message, 0, 1+len(tail))
	out = append(out, system)
	out = append(out, tail...)
	return out
}

// Process runs one full turn: phase 0 compaction, phase 1 knowledge
// retrieval, phase 2 memory retrieval, phase 3 sliding window plus the
// user message, phase 4 the bounded tool-calling loop, phase 5
// save-to-memory, and phase 6 stats publication.
func (e *Engine) Process(ctx context.Context, userMessage string) (string, error) {
	ctx, span := e.tracer.TraceAgentTurn(ctx, e.cfg.AgentName, e.cfg.SessionID)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	compacted, didCompact, summary := maybeCompact(e.conversation, e.cfg.ContextLimit)
	e.conversation = compacted
	if didCompact && e.dailyLog != nil {
		if err := e.dailyLog.SaveCompaction(summary); err != nil {
			e.logger.Warn("failed to persist compaction summary", "error", err)
		}
	}

	if block := e.retrieveKnowledge(ctx, userMessage); block != "" {
		e.conversation = append(e.conversation, contextMessage(block))
	}
	if block := e.retrieveMemory(ctx, userMessage); block != "" {
		e.conversation = append(e.conversation, contextMessage(block))
	}

	e.conversation = slidingWindow(e.conversation)
	e.conversation = append(e.conversation, models.Message{
		Role:      models.RoleUser,
		Content:   userMessage,
		CreatedAt: time.Now().UTC(),
	})

	reply, rounds, err := e.runToolLoop(ctx)
	if err != nil {
		e.tracer.RecordError(span, err)
		return "", err
	}

	if e.cfg.AutoSaveMemory && e.memory != nil {
		entry := &models.MemoryEntry{
			SessionID: e.cfg.SessionID,
			Content:   userMessage + "\n" + reply,
			Metadata:  map[string]string{"session_id": e.cfg.SessionID},
		}
		if err := e.memory.Save(ctx, entry); err != nil {
			e.logger.Warn("failed to save turn to memory", "error", err)
		}
	}

	e.lastStats = ContextStats{
		SessionID:       e.cfg.SessionID,
		MessageCount:    len(e.conversation),
		EstimatedTokens: estimateTokens(e.conversation),
		ContextLimit:    e.cfg.ContextLimit,
		UtilizationPct:  100 * float64(estimateTokens(e.conversation)) / float64(e.cfg.ContextLimit),
		ToolRounds:      rounds,
		Compacted:       didCompact,
	}

	return reply, nil
}

// runToolLoop implements phase 4: up to maxToolRounds rounds of
// provider dispatch. Every round but the last offers the registered
// tools; the final round omits them, forcing a textual answer. The
// conversation log is mutated in place as the single source of truth.
func (e *Engine) runToolLoop(ctx context.Context) (string, int, error) {
	params := providers.GenerateParams{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}
	systemPrompt := e.conversation[0].Content

	for round := 1; round <= maxToolRounds; round++ {
		var toolDefs []providers.ToolDefinition
		final := round == maxToolRounds
		if !final {
			toolDefs = e.cache.ToolDefinitions(systemPrompt, e.registry)
		}

		provCtx, provSpan := e.tracer.TraceProviderRequest(ctx, e.provider.Name, params.Model)
		resp, err := e.provider.ChatCompletion(provCtx, e.conversation, toolDefs, params)
		e.tracer.RecordError(provSpan, err)
		provSpan.End()
		if err != nil {
			return "", round, err
		}

		assistantMsg := models.Message{
			Role:      models.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			CreatedAt: time.Now().UTC(),
		}
		e.conversation = append(e.conversation, assistantMsg)

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				return fallbackReply, round, nil
			}
			return resp.Content, round, nil
		}
		if final {
			// The model called tools on the round where tools were withheld;
			// there is nothing left to execute against.
			if resp.Content != "" {
				return resp.Content, round, nil
			}
			return fallbackReply, round, nil
		}

		for _, tc := range resp.ToolCalls {
			toolCtx, toolSpan := e.tracer.TraceToolExecution(ctx, tc.Name)
			result, execErr := e.registry.Execute(toolCtx, tc.Name, []byte(tc.Arguments))
			e.tracer.RecordError(toolSpan, execErr)
			toolSpan.End()
			content := toolResultContent(result, execErr)
			e.conversation = append(e.conversation, models.Message{
				Role:       models.RoleTool,
				Content:    content,
				ToolCallID: tc.ID,
				CreatedAt:  time.Now().UTC(),
			})
		}
	}

	return fallbackReply, maxToolRounds, nil
}

func toolResultContent(result *tools.ToolResult, err error) string {
	if err != nil {
		return "tool execution failed: " + err.Error()
	}
	if result == nil {
		return ""
	}
	return result.Content
}
