package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/atlasforge/agentmesh/internal/config"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// tenantDir returns the per-tenant data directory under the
// orchestrator's configured data root.
func (m *Manager) tenantDir(slug string) string {
	return filepath.Join(m.cfg.DataDir, slug)
}

// writeTenantConfig assembles and writes the per-tenant gateway config
// file: provider, model, identity, gateway port, and the tenant's
// enabled channel credentials, gathered from the platform DB's channel
// records per spec §6's on-disk tenant layout.
func (m *Manager) writeTenantConfig(ctx context.Context, t *models.Tenant) (string, error) {
	dir := m.tenantDir(t.Slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir tenant dir: %w", err)
	}

	channels, err := m.store.Channels().List(ctx, t.ID)
	if err != nil {
		return "", fmt.Errorf("list tenant channels: %w", err)
	}

	gw := config.GatewayConfig{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: t.Port},
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "gateway.db")},
		Identity: config.IdentityConfig{Name: t.Name},
		LLM:      config.LLMConfig{Provider: t.Provider, Model: t.Model},
		Channels: channelsConfigFrom(channels),
	}

	data, err := yaml.Marshal(gw)
	if err != nil {
		return "", fmt.Errorf("marshal tenant config: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write tenant config: %w", err)
	}
	return path, nil
}

// channelsConfigFrom flattens enabled channel instance records into the
// per-type config blobs the gateway config schema expects.
func channelsConfigFrom(instances []*models.ChannelInstance) config.ChannelsConfig {
	var out config.ChannelsConfig
	for _, c := range instances {
		if !c.Enabled {
			continue
		}
		switch c.Type {
		case models.ChannelTelegram:
			out.Telegram = c.Config
		case models.ChannelDiscord:
			out.Discord = c.Config
		case models.ChannelSlack:
			out.Slack = c.Config
		case models.ChannelEmail:
			out.Email = c.Config
		case models.ChannelWebhook:
			out.Webhook = c.Config
		}
	}
	return out
}

// writePairingFile persists the current pairing code to the tenant's
// on-disk .pairing_code marker, matching the layout in spec §6.
func (m *Manager) writePairingFile(slug, code string) error {
	path := filepath.Join(m.tenantDir(slug), ".pairing_code")
	if code == "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return os.WriteFile(path, []byte(code), 0o600)
}
