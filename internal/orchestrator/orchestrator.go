// Package orchestrator implements tenant workspace lifecycle: OS process
// supervision, port allocation, the pairing-code handshake, and routing
// table regeneration. It is the exclusive owner of tenant process
// handles (see spec §3's ownership rules).
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/config"
	"github.com/atlasforge/agentmesh/internal/storage"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// Manager supervises every tenant workspace on the host.
type Manager struct {
	store  storage.Store
	cfg    config.OrchestratorConfig
	logger *slog.Logger
	procs  *processTable
}

// Option configures a Manager at construction.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New builds a Manager around the platform store and orchestrator config.
func New(store storage.Store, cfg config.OrchestratorConfig, opts ...Option) *Manager {
	m := &Manager{store: store, cfg: cfg, logger: slog.Default(), procs: newProcessTable()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateParams are the inputs accepted by Create.
type CreateParams struct {
	Name     string
	Slug     string
	Provider string
	Model    string
	OwnerID  string
}

// Create allocates a tenant: a free port, a single-use pairing code, a
// persisted row, an on-disk config file, and a spawned process, in that
// order. On any failure after the row is persisted, the tenant is left
// in place with status=error rather than rolled back, per the spec's
// "later steps may fail, earlier steps are not undone" orchestrator
// failure semantics.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*models.Tenant, error) {
	slug := p.Slug
	if slug == "" {
		slug = Slugify(p.Name)
	}
	if !ValidSlug(slug) {
		return nil, apperror.New(apperror.Conflict, "invalid slug", nil)
	}
	taken, err := m.store.Tenants().SlugExists(ctx, slug)
	if err != nil {
		return nil, apperror.New(apperror.Storage, "check slug", err)
	}
	if taken {
		return nil, apperror.New(apperror.Conflict, "slug already in use", nil)
	}

	port, err := m.allocatePort(ctx)
	if err != nil {
		return nil, err
	}

	code, err := generatePairingCode()
	if err != nil {
		return nil, apperror.New(apperror.Internal, "generate pairing code", err)
	}

	now := time.Now().UTC()
	tenant := &models.Tenant{
		ID:          uuid.NewString(),
		Slug:        slug,
		Name:        p.Name,
		OwnerID:     p.OwnerID,
		Port:        port,
		Status:      models.TenantStopped,
		PairingCode: &code,
		Provider:    p.Provider,
		Model:       p.Model,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.Tenants().Create(ctx, tenant); err != nil {
		return nil, apperror.New(apperror.Storage, "persist tenant", err)
	}
	_ = m.store.Audit().Log(ctx, "tenant_created", "user", p.OwnerID, tenant.ID)

	if err := m.writePairingFile(slug, code); err != nil {
		m.logger.Warn("write pairing file failed", "tenant", tenant.ID, "error", err)
	}

	if _, err := m.Start(ctx, tenant.ID); err != nil {
		m.logger.Warn("tenant auto-start failed", "tenant", tenant.ID, "error", err)
		return tenant, apperror.New(apperror.Internal, "spawn failed", err)
	}

	if err := m.regenerateRouting(ctx); err != nil {
		m.logger.Warn("routing regeneration failed", "error", err)
	}

	return m.store.Tenants().Get(ctx, tenant.ID)
}

// allocatePort scans the used-port set and returns the first free port
// above BasePort. Ports are never reused while a tenant row exists.
func (m *Manager) allocatePort(ctx context.Context) (int, error) {
	base := m.cfg.BasePort
	if base <= 0 {
		base = 9000
	}
	used, err := m.store.Tenants().UsedPorts(ctx)
	if err != nil {
		return 0, apperror.New(apperror.Storage, "list used ports", err)
	}
	for port := base + 1; port < base+100000; port++ {
		if !used[port] {
			return port, nil
		}
	}
	return 0, apperror.New(apperror.Internal, "port space exhausted", nil)
}

// Start spawns the tenant's gateway process if one is not already
// running. Idempotent: refuses (returns the existing tenant unchanged)
// if a handle already exists.
func (m *Manager) Start(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := m.store.Tenants().Get(ctx, tenantID)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "tenant not found", err)
	}
	if m.procs.has(tenantID) {
		return tenant, nil
	}

	configPath, err := m.writeTenantConfig(ctx, tenant)
	if err != nil {
		tenant.Status = models.TenantError
		_ = m.store.Tenants().Update(ctx, tenant)
		return nil, apperror.New(apperror.Internal, "write tenant config", err)
	}

	binPath := m.cfg.GatewayBin
	if binPath == "" {
		binPath = "agentmesh-gateway"
	}
	handle, err := spawnGateway(binPath, configPath)
	if err != nil {
		tenant.Status = models.TenantError
		_ = m.store.Tenants().Update(ctx, tenant)
		_ = m.store.Audit().Log(ctx, "tenant_spawn_failed", "system", "", tenant.ID)
		return nil, apperror.New(apperror.Internal, "spawn gateway process", err)
	}
	m.procs.set(tenantID, handle)

	pid := handle.pid()
	tenant.Status = models.TenantRunning
	tenant.PID = &pid
	if err := m.store.Tenants().Update(ctx, tenant); err != nil {
		return nil, apperror.New(apperror.Storage, "persist tenant status", err)
	}
	_ = m.store.Audit().Log(ctx, "tenant_started", "system", "", tenant.ID)

	if err := m.regenerateRouting(ctx); err != nil {
		m.logger.Warn("routing regeneration failed", "error", err)
	}
	return tenant, nil
}

// Stop sends a termination signal to the tenant's process and removes
// its handle. Idempotent: a no-op if no handle exists.
func (m *Manager) Stop(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := m.store.Tenants().Get(ctx, tenantID)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "tenant not found", err)
	}
	if handle, ok := m.procs.get(tenantID); ok {
		if err := handle.stop(); err != nil {
			m.logger.Warn("stop signal failed", "tenant", tenantID, "error", err)
		}
		m.procs.remove(tenantID)
	}
	tenant.Status = models.TenantStopped
	tenant.PID = nil
	if err := m.store.Tenants().Update(ctx, tenant); err != nil {
		return nil, apperror.New(apperror.Storage, "persist tenant status", err)
	}
	_ = m.store.Audit().Log(ctx, "tenant_stopped", "system", "", tenant.ID)

	if err := m.regenerateRouting(ctx); err != nil {
		m.logger.Warn("routing regeneration failed", "error", err)
	}
	return tenant, nil
}

// Restart stops then starts the tenant.
func (m *Manager) Restart(ctx context.Context, tenantID string) (*models.Tenant, error) {
	if _, err := m.Stop(ctx, tenantID); err != nil {
		return nil, err
	}
	return m.Start(ctx, tenantID)
}

// ResetPairing replaces a tenant's pairing code, invalidating the old one.
func (m *Manager) ResetPairing(ctx context.Context, tenantID string) (string, error) {
	tenant, err := m.store.Tenants().Get(ctx, tenantID)
	if err != nil {
		return "", apperror.New(apperror.NotFound, "tenant not found", err)
	}
	code, err := generatePairingCode()
	if err != nil {
		return "", apperror.New(apperror.Internal, "generate pairing code", err)
	}
	tenant.PairingCode = &code
	if err := m.store.Tenants().Update(ctx, tenant); err != nil {
		return "", apperror.New(apperror.Storage, "persist pairing code", err)
	}
	if err := m.writePairingFile(tenant.Slug, code); err != nil {
		m.logger.Warn("write pairing file failed", "tenant", tenantID, "error", err)
	}
	_ = m.store.Audit().Log(ctx, "pairing_reset", "user", "", tenant.ID)
	return code, nil
}

// ValidatePairing consumes a tenant's pairing code on success so that a
// second attempt with the same code always fails.
func (m *Manager) ValidatePairing(ctx context.Context, slug, code string) (*models.Tenant, error) {
	tenant, err := m.store.Tenants().GetBySlug(ctx, slug)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "tenant not found", err)
	}
	if tenant.PairingCode == nil || *tenant.PairingCode == "" || *tenant.PairingCode != code {
		return nil, apperror.New(apperror.Auth, "invalid pairing code", nil)
	}
	tenant.PairingCode = nil
	if err := m.store.Tenants().Update(ctx, tenant); err != nil {
		return nil, apperror.New(apperror.Storage, "consume pairing code", err)
	}
	if err := m.writePairingFile(tenant.Slug, ""); err != nil {
		m.logger.Warn("clear pairing file failed", "tenant", tenant.ID, "error", err)
	}
	_ = m.store.Audit().Log(ctx, "pairing_validated", "user", "", tenant.ID)
	return tenant, nil
}

// Delete cascades: stop the process, delete dependent rows, delete the
// tenant row, then regenerate routing. Each step is best-effort past the
// process kill; a failure in a later step is logged, never rolled back.
func (m *Manager) Delete(ctx context.Context, tenantID string) error {
	if _, err := m.store.Tenants().Get(ctx, tenantID); err != nil {
		return apperror.New(apperror.NotFound, "tenant not found", err)
	}
	if handle, ok := m.procs.get(tenantID); ok {
		if err := handle.stop(); err != nil {
			m.logger.Warn("stop on delete failed", "tenant", tenantID, "error", err)
		}
		m.procs.remove(tenantID)
	}

	if channels, err := m.store.Channels().List(ctx, tenantID); err == nil {
		for _, c := range channels {
			_ = m.store.Channels().Delete(ctx, tenantID, c.ID)
		}
	}
	if agents, err := m.store.TenantAgents().List(ctx, tenantID); err == nil {
		for _, a := range agents {
			_ = m.store.TenantAgents().Delete(ctx, tenantID, a.Name)
		}
	}
	if configs, err := m.store.Configs().List(ctx, tenantID); err == nil {
		for k := range configs {
			_ = m.store.Configs().Delete(ctx, tenantID, k)
		}
	}

	if err := m.store.Tenants().Delete(ctx, tenantID); err != nil {
		return apperror.New(apperror.Storage, "delete tenant", err)
	}
	_ = m.store.Audit().Log(ctx, "tenant_deleted", "user", "", tenantID)

	if err := m.regenerateRouting(ctx); err != nil {
		m.logger.Warn("routing regeneration failed", "error", err)
	}
	return nil
}

// IsRunning reports whether the orchestrator holds a live process handle
// for tenantID — the invariant backing "if running, a live handle exists".
func (m *Manager) IsRunning(tenantID string) bool {
	return m.procs.has(tenantID)
}
