package platform

import (
	"net/http"

	"github.com/atlasforge/agentmesh/internal/apperror"
	"github.com/atlasforge/agentmesh/internal/auth"
	"github.com/atlasforge/agentmesh/pkg/models"
)

// handleTenantAgentsList reports the platform's view of a tenant's agent
// records — a mirror kept for admin visibility; the gateway DB remains
// authoritative at runtime per spec §4.2.
func (s *Server) handleTenantAgentsList(w http.ResponseWriter, r *http.Request) {
	_, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	list, err := s.store.TenantAgents().List(r.Context(), tenant.ID)
	if err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "list agents", err))
		return
	}
	writeOK(w, map[string]any{"ok": true, "agents": list})
}

func (s *Server) handleTenantAgentCreate(w http.ResponseWriter, r *http.Request) {
	user, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	if !auth.CanWrite(user, tenant) {
		s.writeAppErr(w, apperror.New(apperror.Auth, "write access required", nil))
		return
	}
	var ag models.Agent
	if status, err := decodeJSON(w, r, &ag); err != nil {
		writeErr(w, status, "invalid request body")
		return
	}
	if ag.Name == "" {
		writeErr(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.TenantAgents().Create(r.Context(), tenant.ID, &ag); err != nil {
		s.writeAppErr(w, apperror.New(apperror.Storage, "create agent", err))
		return
	}
	_ = s.store.Audit().Log(r.Context(), "agent_upserted", "user", user.ID, tenant.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "agent": ag})
}

func (s *Server) handleTenantAgentDelete(w http.ResponseWriter, r *http.Request) {
	user, tenant, err := s.loadTenantForUser(r)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	if !auth.CanWrite(user, tenant) {
		s.writeAppErr(w, apperror.New(apperror.Auth, "write access required", nil))
		return
	}
	if err := s.store.TenantAgents().Delete(r.Context(), tenant.ID, r.PathValue("name")); err != nil {
		s.writeAppErr(w, mapStorageErr(err, "agent not found"))
		return
	}
	writeOK(w, map[string]any{"ok": true})
}
