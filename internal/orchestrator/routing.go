package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/atlasforge/agentmesh/pkg/models"
)

// RoutingEntry is one subdomain-to-port mapping in the generated routing
// table.
type RoutingEntry struct {
	Slug string `json:"slug"`
	Port int    `json:"port"`
}

// RoutingTable is the host-level routing document the external
// reverse proxy consumes. It is regenerated wholesale after every tenant
// set mutation rather than patched incrementally.
type RoutingTable struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Routes      []RoutingEntry `json:"routes"`
}

// regenerateRouting rebuilds the routing table from the current tenant
// set and writes it atomically, then best-effort signals the external
// reverse proxy to reload. Failures here are logged by the caller but
// never propagated: routing is a derived, eventually-consistent view and
// the next successful mutation covers any gap.
func (m *Manager) regenerateRouting(ctx context.Context) error {
	if m.cfg.RoutingFile == "" {
		return nil
	}
	tenants, err := m.store.Tenants().List(ctx, "")
	if err != nil {
		return fmt.Errorf("list tenants for routing: %w", err)
	}

	table := RoutingTable{GeneratedAt: time.Now().UTC()}
	for _, t := range tenants {
		if t.Status != models.TenantRunning {
			continue
		}
		// Re-validate the safe character set before injecting the slug
		// into routing configuration, guarding against a row written by
		// an older or misbehaving code path.
		if !ValidSlug(t.Slug) {
			continue
		}
		table.Routes = append(table.Routes, RoutingEntry{Slug: t.Slug, Port: t.Port})
	}
	sort.Slice(table.Routes, func(i, j int) bool { return table.Routes[i].Slug < table.Routes[j].Slug })

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal routing table: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.RoutingFile), 0o755); err != nil {
		return fmt.Errorf("mkdir routing dir: %w", err)
	}
	tmp := m.cfg.RoutingFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write routing table: %w", err)
	}
	if err := os.Rename(tmp, m.cfg.RoutingFile); err != nil {
		return fmt.Errorf("rename routing table: %w", err)
	}

	m.signalReload(ctx)
	return nil
}

// signalReload best-effort notifies the external reverse proxy that the
// routing table changed. A failure here is logged by the caller and
// never blocks the HTTP response that triggered the regeneration.
func (m *Manager) signalReload(ctx context.Context) {
	if m.cfg.ReloadURL == "" {
		return
	}
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, m.cfg.ReloadURL, nil)
	if err != nil {
		m.logger.Warn("routing reload request build failed", "error", err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		m.logger.Warn("routing reload signal failed", "error", err)
		return
	}
	defer resp.Body.Close()
}
