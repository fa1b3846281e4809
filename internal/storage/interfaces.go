// Package storage implements the platform's embedded relational store: one
// platform DB (tenants, users, audit log, tenant-scoped channels/agents/
// configs) backed by SQLite with WAL enabled.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/atlasforge/agentmesh/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// AuditRecord is one append-only audit log row.
type AuditRecord struct {
	ID        string
	EventType string
	ActorType string
	ActorID   string
	Details   string
	CreatedAt time.Time
}

// TenantStore persists Tenant rows.
type TenantStore interface {
	Create(ctx context.Context, t *models.Tenant) error
	Get(ctx context.Context, id string) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	List(ctx context.Context, ownerID string) ([]*models.Tenant, error)
	Update(ctx context.Context, t *models.Tenant) error
	Delete(ctx context.Context, id string) error
	UsedPorts(ctx context.Context) (map[int]bool, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// UserStore persists User rows.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
}

// ChannelStore persists per-tenant channel instance records.
type ChannelStore interface {
	Create(ctx context.Context, tenantID string, c *models.ChannelInstance) error
	Get(ctx context.Context, tenantID, id string) (*models.ChannelInstance, error)
	List(ctx context.Context, tenantID string) ([]*models.ChannelInstance, error)
	Update(ctx context.Context, tenantID string, c *models.ChannelInstance) error
	Delete(ctx context.Context, tenantID, id string) error
}

// TenantAgentStore persists the platform's view of tenant agent records
// (used for admin listing; the gateway DB is authoritative at runtime).
type TenantAgentStore interface {
	Create(ctx context.Context, tenantID string, a *models.Agent) error
	Get(ctx context.Context, tenantID, name string) (*models.Agent, error)
	List(ctx context.Context, tenantID string) ([]*models.Agent, error)
	Update(ctx context.Context, tenantID string, a *models.Agent) error
	Delete(ctx context.Context, tenantID, name string) error
}

// ConfigStore persists free-form per-tenant KV configuration.
type ConfigStore interface {
	Set(ctx context.Context, tenantID, key, value string) error
	Get(ctx context.Context, tenantID, key string) (string, error)
	List(ctx context.Context, tenantID string) (map[string]string, error)
	Delete(ctx context.Context, tenantID, key string) error
}

// PasswordResetStore persists single-use password-reset tokens.
type PasswordResetStore interface {
	Create(ctx context.Context, userID, token string, expiresAt time.Time) error
	Consume(ctx context.Context, token string) (userID string, err error)
}

// AuditStore appends and lists audit records.
type AuditStore interface {
	Log(ctx context.Context, eventType, actorType, actorID, details string) error
	List(ctx context.Context, limit int) ([]AuditRecord, error)
}

// Store aggregates every platform persistence contract plus a Close hook.
type Store interface {
	Tenants() TenantStore
	Users() UserStore
	Channels() ChannelStore
	TenantAgents() TenantAgentStore
	Configs() ConfigStore
	PasswordResets() PasswordResetStore
	Audit() AuditStore
	Close() error
}
