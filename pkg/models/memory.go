package models

import "time"

// MemoryEntry is a session-scoped conversational memory record.
type MemoryEntry struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// KnowledgeChunk is an individually searchable slice of a KnowledgeDocument.
type KnowledgeChunk struct {
	ID       string `json:"id"`
	DocID    string `json:"doc_id"`
	Content  string `json:"content"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
}

// KnowledgeDocument is a source document chunked for ranked retrieval.
type KnowledgeDocument struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Source    string           `json:"source"`
	Chunks    []KnowledgeChunk `json:"chunks,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ChannelType identifies a messaging platform.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelDiscord  ChannelType = "discord"
	ChannelSlack    ChannelType = "slack"
	ChannelEmail    ChannelType = "email"
	ChannelWebhook  ChannelType = "webhook"
)

// ChannelStatus is the connection state of a channel instance.
type ChannelStatus string

const (
	ChannelDisconnected ChannelStatus = "disconnected"
	ChannelConnected    ChannelStatus = "connected"
	ChannelErrorStatus  ChannelStatus = "error"
)

// ChannelInstance is a per-tenant configured channel binding.
type ChannelInstance struct {
	ID        string            `json:"id"`
	Type      ChannelType       `json:"channel_type"`
	Enabled   bool              `json:"enabled"`
	AgentName string            `json:"agent_name"`
	Config    map[string]string `json:"config"`
	Status    ChannelStatus     `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ThreadType distinguishes direct messages from group conversations.
type ThreadType string

const (
	ThreadDirect ThreadType = "direct"
	ThreadGroup  ThreadType = "group"
)

// IncomingEnvelope is the normalized shape of an inbound channel message.
type IncomingEnvelope struct {
	Channel    ChannelType `json:"channel"`
	ThreadID   string      `json:"thread_id"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name,omitempty"`
	Content    string      `json:"content"`
	ThreadType ThreadType  `json:"thread_type"`
	Timestamp  time.Time   `json:"timestamp"`
	ReplyTo    string      `json:"reply_to,omitempty"`
}

// OutgoingEnvelope is the normalized shape of an outbound channel message.
type OutgoingEnvelope struct {
	ThreadID   string     `json:"thread_id"`
	Content    string     `json:"content"`
	ThreadType ThreadType `json:"thread_type"`
	ReplyTo    string     `json:"reply_to,omitempty"`
}
