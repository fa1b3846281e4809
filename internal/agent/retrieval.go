package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlasforge/agentmesh/pkg/models"
)

const (
	knowledgeResultLimit = 3
	knowledgeBlockMax    = 1500
	memoryKeywordLimit   = 5
	memoryResultLimit    = 5
	memoryBlockMax       = 2000
	// minKeywordLength is the shortest word length RETAINED by keyword
	// extraction: the spec's "length > 2" means words of length 3+ survive.
	minKeywordLength = 2
)

// stopwords covers the minimum English (and Vietnamese, the operator's
// locale) set of function words dropped before keyword extraction.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "being": {}, "to": {}, "of": {}, "in": {},
	"on": {}, "at": {}, "for": {}, "with": {}, "about": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "it": {}, "its": {}, "you": {}, "your": {}, "i": {}, "me": {}, "my": {},
	"we": {}, "our": {}, "do": {}, "does": {}, "did": {}, "can": {}, "could": {}, "will": {},
	"would": {}, "should": {}, "what": {}, "when": {}, "where": {}, "who": {}, "why": {}, "how": {},
	"và": {}, "là": {}, "của": {}, "có": {}, "không": {}, "những": {}, "một": {}, "cho": {},
	"này": {}, "đó": {}, "với": {}, "được": {}, "trong": {}, "khi": {},
}

// extractKeywords returns up to memoryKeywordLimit significant words from
// text: lowercased, longer than minKeywordLength, not a stopword.
func extractKeywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'à' && r <= 'ỹ')
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		if len(f) <= minKeywordLength {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
		if len(out) == memoryKeywordLimit {
			break
		}
	}
	return out
}

// retrieveKnowledge runs phase 1: query the knowledge store with the raw
// user message and format a bounded system-role block from the hits. An
// empty return means nothing should be pushed onto the conversation.
func (e *Engine) retrieveKnowledge(ctx context.Context, userMessage string) string {
	if e.knowledge == nil {
		return ""
	}
	results, err := e.knowledge.Search(ctx, userMessage, knowledgeResultLimit)
	if err != nil {
		e.logger.Warn("knowledge retrieval failed", "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[knowledge]\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- %s\n", r.Chunk.Content)
		if b.Len() >= knowledgeBlockMax {
			break
		}
	}
	b.WriteString("[/knowledge]")
	return truncate(b.String(), knowledgeBlockMax)
}

// retrieveMemory runs phase 2: extract keywords from the user message,
// query memory with them joined, dedupe by entry id, and format a
// bounded system-role block. An empty return means skip.
func (e *Engine) retrieveMemory(ctx context.Context, userMessage string) string {
	if e.memory == nil {
		return ""
	}
	keywords := extractKeywords(userMessage)
	if len(keywords) == 0 {
		return ""
	}
	results, err := e.memory.Search(ctx, strings.Join(keywords, " OR "), memoryResultLimit)
	if err != nil {
		e.logger.Warn("memory retrieval failed", "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(results))
	var b strings.Builder
	b.WriteString("[memory]\n")
	for _, r := range results {
		if _, dup := seen[r.Entry.ID]; dup {
			continue
		}
		seen[r.Entry.ID] = struct{}{}
		fmt.Fprintf(&b, "- %s\n", r.Entry.Content)
		if b.Len() >= memoryBlockMax {
			break
		}
	}
	b.WriteString("[/memory]")
	return truncate(b.String(), memoryBlockMax)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// contextMessage wraps a retrieval block as a system-role message, ready
// to be appended to the conversation.
func contextMessage(block string) models.Message {
	return models.Message{Role: models.RoleSystem, Content: block}
}
