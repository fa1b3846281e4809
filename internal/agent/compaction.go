package agent

import (
	"fmt"
	"strings"

	"github.com/atlasforge/agentmesh/pkg/models"
)

// compactionUtilizationThreshold and compactionMinLength gate when
// phase 0 collapses history into a single synthetic system message.
const (
	compactionUtilizationThreshold = 0.70
	compactionMinLength            = 10
	compactionTailKeep              = 10
)

// maybeCompact runs phase 0: if the conversation's estimated token
// utilization exceeds 70% of the context limit and its length exceeds
// 10 messages, everything but the system message and the most recent 10
// messages is folded into one synthetic summary system message. Returns
// whether compaction ran, for stats, and the summary text for the daily
// log.
func maybeCompact(conversation []models.Message, contextLimit int) ([]models.Message, bool, string) {
	if len(conversation) <= compactionMinLength {
		return conversation, false, ""
	}
	utilization := float64(estimateTokens(conversation)) / float64(contextLimit)
	if utilization <= compactionUtilizationThreshold {
		return conversation, false, ""
	}

	system := conversation[0]
	tailStart := len(conversation) - compactionTailKeep
	if tailStart < 1 {
		tailStart = 1
	}
	middle := conversation[1:tailStart]
	tail := conversation[tailStart:]

	summary := summarize(middle)
	compacted := make([]models.Message, 0, 2+len(tail))
	compacted = append(compacted, system)
	compacted = append(compacted, models.Message{
		Role:    models.RoleSystem,
		Content: fmt.Sprintf("[Compacted: %d earlier messages]\n%s", tailStart, summary),
	})
	compacted = append(compacted, tail...)
	return compacted, true, summary
}

// summarize produces a plain-text digest of the messages being dropped.
// It is intentionally a simple transcript condensation rather than a
// second provider round-trip, keeping compaction synchronous and cheap.
func summarize(messages []models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if len(content) > 200 {
			content = content[:200] + "…"
		}
		fmt.Fprintf(&b, "- %s: %s\n", m.Role, content)
	}
	return strings.TrimSpace(b.String())
}
