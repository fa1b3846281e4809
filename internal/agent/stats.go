package agent

// ContextStats summarizes the state published at the end of a turn, for
// callers (gateway status endpoints, admin tooling) to surface without
// re-deriving them from the raw conversation.
type ContextStats struct {
	SessionID      string
	MessageCount   int
	EstimatedTokens int
	ContextLimit   int
	UtilizationPct float64
	ToolRounds     int
	Compacted      bool
}
