package agent

import (
	"sync"
	"time"

	"github.com/atlasforge/agentmesh/internal/providers"
	"github.com/atlasforge/agentmesh/internal/tools"
)

const promptCacheTTL = 5 * time.Minute

// PromptCache holds the serialized tool definitions for one system
// prompt, invalidated either by TTL or by a change to the prompt's
// content hash (an in-place identity-prompt rewrite).
type PromptCache struct {
	mu         sync.RWMutex
	promptHash string
	expiresAt  time.Time
	toolDefs   []providers.ToolDefinition
}

// NewPromptCache builds a cache already populated for systemPrompt.
func NewPromptCache(systemPrompt string, registry *tools.Registry) *PromptCache {
	c := &PromptCache{}
	c.refresh(systemPrompt, registry)
	return c
}

// ToolDefinitions returns the cached tool definitions, refreshing first
// if the prompt changed or the TTL elapsed.
func (c *PromptCache) ToolDefinitions(systemPrompt string, registry *tools.Registry) []providers.ToolDefinition {
	c.mu.RLock()
	hash := systemPromptHash(systemPrompt)
	stale := hash != c.promptHash || time.Now().After(c.expiresAt)
	defs := c.toolDefs
	c.mu.RUnlock()

	if !stale {
		return defs
	}
	return c.refresh(systemPrompt, registry)
}

func (c *PromptCache) refresh(systemPrompt string, registry *tools.Registry) []providers.ToolDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()

	var defs []providers.ToolDefinition
	if registry != nil {
		for _, t := range registry.AsLLMTools() {
			defs = append(defs, providers.ToolDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			})
		}
	}
	c.toolDefs = defs
	c.promptHash = systemPromptHash(systemPrompt)
	c.expiresAt = time.Now().Add(promptCacheTTL)
	return defs
}
