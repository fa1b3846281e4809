// Package models defines the shared entity types used across the platform,
// gateway, and orchestrator packages.
package models

import "time"

// TenantStatus is the lifecycle state of a tenant workspace.
type TenantStatus string

const (
	TenantStopped TenantStatus = "stopped"
	TenantRunning TenantStatus = "running"
	TenantError   TenantStatus = "error"
)

// Tenant is an isolated workspace with its own agent pool, DB, port, and
// credentials.
type Tenant struct {
	ID          string       `json:"id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	OwnerID     string       `json:"owner_id"`
	Port        int          `json:"port"`
	Status      TenantStatus `json:"status"`
	PairingCode *string      `json:"pairing_code,omitempty"`
	Provider    string       `json:"provider"`
	Model       string       `json:"model"`
	PID         *int         `json:"pid,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// UserRole is the access level granted to a platform user.
type UserRole string

const (
	RoleSuperAdmin UserRole = "superadmin"
	RoleAdmin      UserRole = "admin"
	RoleViewer     UserRole = "viewer"
)

// UserStatus is the account state of a platform user.
type UserStatus string

const (
	UserPending   UserStatus = "pending"
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

// User is a platform account: admins, owners, and viewers.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	TenantID     *string    `json:"tenant_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CanAuthenticate reports whether the user is allowed to log in.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.Status == UserActive
}

// AuthStyle identifies how a provider expects its credentials attached.
type AuthStyle string

const (
	AuthBearer     AuthStyle = "bearer"
	AuthNone       AuthStyle = "none"
	AuthHeaderKeyed AuthStyle = "header-keyed"
	AuthQueryKeyed AuthStyle = "query-keyed"
)

// ProviderType classifies where a provider runs.
type ProviderType string

const (
	ProviderTypeCloud ProviderType = "cloud"
	ProviderTypeLocal ProviderType = "local"
	ProviderTypeProxy ProviderType = "proxy"
)

// ProviderRecord is the per-tenant, self-describing LLM backend entry.
type ProviderRecord struct {
	Name        string       `json:"name"`
	Label       string       `json:"label"`
	Icon        string       `json:"icon,omitempty"`
	Type        ProviderType `json:"type"`
	BaseURL     string       `json:"base_url"`
	ChatPath    string       `json:"chat_path"`
	ModelsPath  string       `json:"models_path"`
	AuthStyle   AuthStyle    `json:"auth_style"`
	EnvKeys     []string     `json:"env_keys"`
	APIKey      string       `json:"api_key,omitempty"`
	CachedModels []ModelInfo `json:"models,omitempty"`
}

// ModelInfo describes one model reported by a provider.
type ModelInfo struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Provider         string `json:"provider"`
	ContextLength    int    `json:"context_length,omitempty"`
	MaxOutputTokens  int    `json:"max_output_tokens,omitempty"`
}

// Agent is a per-tenant named configuration plus a live conversation log.
type Agent struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Role            string     `json:"role,omitempty"`
	Description     string     `json:"description,omitempty"`
	Provider        string     `json:"provider"`
	Model           string     `json:"model"`
	SystemPrompt    string     `json:"system_prompt"`
	Enabled         bool       `json:"enabled"`
	ChannelBindings []string   `json:"channel_bindings,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Role identifies the speaker of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an assistant-issued request to invoke a tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in an agent's conversation log.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
