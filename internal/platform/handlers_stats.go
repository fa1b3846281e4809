package platform

import (
	"net/http"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/auth"
	"github.com/atlasforge/agentmesh/pkg/models"
)

type adminStats struct {
	Tenants        int `json:"tenants"`
	TenantsRunning int `json:"tenants_running"`
	Users          int `json:"users,omitempty"`
}

// handleStats reports totals filtered by the caller's role: a viewer or
// admin only ever sees counts over tenants they're permitted to view
// (CanView applies the same rule used for the tenant list endpoint), and
// the user total is included only for superadmins.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	all, err := s.store.Tenants().List(r.Context(), "")
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list tenants", err))
		return
	}

	var stats adminStats
	for _, t := range all {
		if !auth.CanView(user, t) {
			continue
		}
		stats.Tenants++
		if t.Status == models.TenantRunning {
			stats.TenantsRunning++
		}
	}

	if auth.IsSuperAdmin(user) {
		if users, err := s.store.Users().List(r.Context()); err == nil {
			stats.Users = len(users)
		}
	}

	writeOK(w, map[string]any{"ok": true, "stats": stats})
}
